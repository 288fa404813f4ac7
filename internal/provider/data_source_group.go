package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/datasourcevalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/provider/helpers"
	customtypes "github.com/isometry/terraform-provider-adquery/internal/provider/types"
	"github.com/isometry/terraform-provider-adquery/internal/provider/validators"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &GroupDataSource{}
var _ datasource.DataSourceWithConfigure = &GroupDataSource{}
var _ datasource.DataSourceWithConfigValidators = &GroupDataSource{}

func NewGroupDataSource() datasource.DataSource {
	return &GroupDataSource{}
}

// GroupDataSource looks up a single group.
type GroupDataSource struct {
	data *ProviderData
}

// GroupDataSourceModel describes the data source data model.
type GroupDataSourceModel struct {
	// Lookup methods (mutually exclusive)
	ID                types.String              `tfsdk:"id"`
	DistinguishedName customtypes.DNStringValue `tfsdk:"dn"`
	Name              types.String              `tfsdk:"name"`
	SAMAccountName    types.String              `tfsdk:"sam_account_name"`
	SID               types.String              `tfsdk:"sid"`

	// Lookup options
	Container      types.String `tfsdk:"container"`
	IncludeMembers types.Bool   `tfsdk:"include_members"`

	Description types.String `tfsdk:"description"`
	Mail        types.String `tfsdk:"mail"`
	ManagedBy   types.String `tfsdk:"managed_by"`
	Scope       types.String `tfsdk:"scope"`
	Category    types.String `tfsdk:"category"`
	GroupType   types.Int64  `tfsdk:"group_type"`

	Members     types.List  `tfsdk:"members"` // direct member DNs
	MemberCount types.Int64 `tfsdk:"member_count"`
	MemberOf    types.List  `tfsdk:"member_of"`
	Users       types.List  `tfsdk:"users"` // nested, with include_members

	WhenCreated types.String `tfsdk:"when_created"`
	WhenChanged types.String `tfsdk:"when_changed"`
}

func (d *GroupDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_group"
}

func (d *GroupDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves information about an Active Directory group. Supports lookup by " +
			"objectGUID, Distinguished Name, common name, SAM account name or Security Identifier (SID).",

		Attributes: map[string]schema.Attribute{
			// Lookup methods (mutually exclusive)
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the group.",
				Optional:            true,
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the group.",
				CustomType:          customtypes.DNStringType{},
				Optional:            true,
				Computed:            true,
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The common name (cn) of the group. Use `container` to disambiguate.",
				Optional:            true,
				Computed:            true,
			},
			"sam_account_name": schema.StringAttribute{
				MarkdownDescription: "The SAM account name of the group.",
				Optional:            true,
				Computed:            true,
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The Security Identifier of the group.",
				Optional:            true,
				Computed:            true,
			},

			"container": schema.StringAttribute{
				MarkdownDescription: "The DN of the container to search within. Defaults to the provider base DN.",
				Optional:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"include_members": schema.BoolAttribute{
				MarkdownDescription: "Populate `users` with every user in the group, including nested membership. " +
					"This runs a second search. Defaults to `false`.",
				Optional: true,
			},

			"description": computedString("The description of the group."),
			"mail":        computedString("The email address of the group."),
			"managed_by":  computedString("The Distinguished Name of the group's manager."),
			"scope":       computedString("The group scope: `global`, `domainlocal` or `universal`."),
			"category":    computedString("The group category: `security` or `distribution`."),
			"group_type": schema.Int64Attribute{
				MarkdownDescription: "The raw groupType value.",
				Computed:            true,
			},
			"members": schema.ListAttribute{
				MarkdownDescription: "Distinguished Names of the direct members.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"member_count": schema.Int64Attribute{
				MarkdownDescription: "The number of direct members.",
				Computed:            true,
			},
			"member_of": schema.ListAttribute{
				MarkdownDescription: "Distinguished Names of the groups this group is a direct member of.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"users": schema.ListNestedAttribute{
				MarkdownDescription: "Users in the group, including nested membership. Null unless `include_members` is `true`.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: userListSchemaAttributes(),
				},
			},
			"when_created": computedString("When the group was created (RFC3339 format)."),
			"when_changed": computedString("When the group was last modified (RFC3339 format)."),
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *GroupDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("id"),
			path.MatchRoot("dn"),
			path.MatchRoot("name"),
			path.MatchRoot("sam_account_name"),
			path.MatchRoot("sid"),
		),
	}
}

func (d *GroupDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *GroupDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data GroupDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	opts := setOptions(d.data.BaseDN, searchArgs{Container: data.Container, Scope: types.StringNull()}, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	kind, value, predicate, err := groupLookup(&data)
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root(lookupAttribute(kind)), "Invalid Group Identity", err.Error())
		return
	}

	done := adldap.LogDataSourceOperation(ctx, "adquery_group", "read", map[string]any{
		"lookup": string(kind),
	})
	group, err := d.data.Directory.Groups(opts...).Single(ctx, predicate)
	if err != nil {
		done(err)
		addSingleResultError(&resp.Diagnostics, "Group", kind, value, err)
		return
	}

	var users []directory.User
	if data.IncludeMembers.ValueBool() {
		users, err = group.Members.ToSlice(ctx)
		if err != nil {
			done(err)
			resp.Diagnostics.AddError(
				"Error Reading Group Members",
				fmt.Sprintf("Could not list the members of %s: %s", group.DistinguishedName, queryErrorDetail(err)),
			)
			return
		}
	}
	done(nil)

	tflog.Debug(ctx, "Retrieved AD group", map[string]any{
		"group_guid": group.ObjectGUID.String(),
		"group_dn":   group.DistinguishedName,
		"users":      len(users),
	})

	resp.Diagnostics.Append(data.fill(ctx, group, users)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// groupNameKind is the lookup kind for the name attribute.
const groupNameKind directory.IdentityKind = "name"

// groupLookup returns the configured lookup and its predicate.
func groupLookup(data *GroupDataSourceModel) (directory.IdentityKind, string, query.Predicate, error) {
	var kind directory.IdentityKind
	var value string
	switch {
	case data.ID.ValueString() != "":
		kind, value = directory.IdentityGUID, data.ID.ValueString()
	case data.DistinguishedName.ValueString() != "":
		kind, value = directory.IdentityDN, data.DistinguishedName.ValueString()
	case data.Name.ValueString() != "":
		return groupNameKind, data.Name.ValueString(), fieldMatch("Name", query.Expr.Eq)(data.Name.ValueString()), nil
	case data.SAMAccountName.ValueString() != "":
		kind, value = directory.IdentitySAMAccountName, data.SAMAccountName.ValueString()
	default:
		kind, value = directory.IdentitySID, data.SID.ValueString()
	}
	p, err := directory.ByIdentity(kind, value)
	return kind, value, p, err
}

func (m *GroupDataSourceModel) fill(ctx context.Context, group directory.Group, users []directory.User) diag.Diagnostics {
	var diags diag.Diagnostics

	if m.ID.IsNull() || m.ID.IsUnknown() {
		m.ID = helpers.GUIDString(group.ObjectGUID)
	}
	if m.DistinguishedName.IsNull() || m.DistinguishedName.IsUnknown() {
		m.DistinguishedName = customtypes.DNString(group.DistinguishedName)
	}
	if m.Name.IsNull() || m.Name.IsUnknown() {
		m.Name = helpers.StringOrNull(group.Name)
	}
	if m.SAMAccountName.IsNull() || m.SAMAccountName.IsUnknown() {
		m.SAMAccountName = helpers.StringOrNull(group.SAMAccountName)
	}
	if m.SID.IsNull() || m.SID.IsUnknown() {
		m.SID = helpers.StringOrNull(group.ObjectSid)
	}

	m.Description = helpers.StringOrNull(group.Description)
	m.Mail = helpers.StringOrNull(group.Mail)
	m.ManagedBy = helpers.StringOrNull(group.ManagedBy)
	m.Scope = types.StringValue(string(group.Scope()))
	m.Category = types.StringValue(string(group.Category()))
	m.GroupType = types.Int64Value(int64(group.GroupType))

	members, d := helpers.DNList(ctx, group.Member)
	diags.Append(d...)
	m.Members = members
	m.MemberCount = types.Int64Value(int64(len(group.Member)))

	memberOf, d := helpers.DNList(ctx, group.MemberOf)
	diags.Append(d...)
	m.MemberOf = memberOf

	if m.IncludeMembers.ValueBool() {
		list, d := helpers.ObjectList(userListAttrTypes, users, userListValues)
		diags.Append(d...)
		m.Users = list
	} else {
		m.Users = types.ListNull(types.ObjectType{AttrTypes: userListAttrTypes})
	}

	m.WhenCreated = helpers.TimeString(group.WhenCreated)
	m.WhenChanged = helpers.TimeString(group.WhenChanged)

	return diags
}
