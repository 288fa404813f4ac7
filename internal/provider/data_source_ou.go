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
var _ datasource.DataSource = &OUDataSource{}
var _ datasource.DataSourceWithConfigure = &OUDataSource{}
var _ datasource.DataSourceWithConfigValidators = &OUDataSource{}

func NewOUDataSource() datasource.DataSource {
	return &OUDataSource{}
}

// OUDataSource looks up a single organizational unit.
type OUDataSource struct {
	data *ProviderData
}

// OUDataSourceModel describes the data source data model with multiple lookup methods.
type OUDataSourceModel struct {
	// Lookup methods (mutually exclusive)
	ID   types.String              `tfsdk:"id"`
	DN   customtypes.DNStringValue `tfsdk:"dn"`
	Name types.String              `tfsdk:"name"` // with path
	Path types.String              `tfsdk:"path"`

	Description types.String `tfsdk:"description"`
	ManagedBy   types.String `tfsdk:"managed_by"`
	Parent      types.String `tfsdk:"parent"`
	Children    types.List   `tfsdk:"children"`
	ChildCount  types.Int64  `tfsdk:"child_count"`
	UserCount   types.Int64  `tfsdk:"user_count"`

	WhenCreated types.String `tfsdk:"when_created"`
	WhenChanged types.String `tfsdk:"when_changed"`
}

func (d *OUDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_ou"
}

func (d *OUDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves information about an Active Directory Organizational Unit (OU). " +
			"Supports lookup by objectGUID, Distinguished Name, or name within a parent container.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the OU.",
				Optional:            true,
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the OU.",
				CustomType:          customtypes.DNStringType{},
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},
			"name": schema.StringAttribute{
				MarkdownDescription: "The name of the OU. Requires `path`.",
				Optional:            true,
				Computed:            true,
			},
			"path": schema.StringAttribute{
				MarkdownDescription: "The DN of the container directly holding the OU. Used with `name`.",
				Optional:            true,
				Validators: []validator.String{
					validators.IsValidDN(),
				},
			},

			"description": computedString("The description of the OU."),
			"managed_by":  computedString("The Distinguished Name of the OU's manager."),
			"parent":      computedString("The Distinguished Name of the container holding the OU."),
			"children": schema.ListAttribute{
				MarkdownDescription: "Distinguished Names of the OUs directly below this one, sorted by name.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"child_count": schema.Int64Attribute{
				MarkdownDescription: "The number of OUs directly below this one.",
				Computed:            true,
			},
			"user_count": schema.Int64Attribute{
				MarkdownDescription: "The number of users anywhere below this OU.",
				Computed:            true,
			},
			"when_created": computedString("When the OU was created (RFC3339 format)."),
			"when_changed": computedString("When the OU was last modified (RFC3339 format)."),
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *OUDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("id"),
			path.MatchRoot("dn"),
			path.MatchRoot("name"),
		),
		datasourcevalidator.RequiredTogether(
			path.MatchRoot("name"),
			path.MatchRoot("path"),
		),
	}
}

func (d *OUDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *OUDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data OUDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	q, kind, value, err := ouLookup(d.data.Directory, &data)
	if err != nil {
		resp.Diagnostics.AddAttributeError(path.Root(lookupAttribute(kind)), "Invalid OU Identity", err.Error())
		return
	}

	done := adldap.LogDataSourceOperation(ctx, "adquery_ou", "read", map[string]any{
		"lookup": string(kind),
	})
	ou, err := q.Single(ctx)
	if err != nil {
		done(err)
		addSingleResultError(&resp.Diagnostics, "OU", kind, value, err)
		return
	}

	children, err := ou.Children.OrderBy(func(x query.Expr) query.Expr { return x.Field("Name") }).ToSlice(ctx)
	if err != nil {
		done(err)
		resp.Diagnostics.AddError("Error Reading OU Children",
			fmt.Sprintf("Could not list the OUs below %s: %s", ou.DistinguishedName, queryErrorDetail(err)))
		return
	}

	userCount, err := ou.Users.Count(ctx)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError("Error Counting OU Users",
			fmt.Sprintf("Could not count the users below %s: %s", ou.DistinguishedName, queryErrorDetail(err)))
		return
	}

	tflog.Debug(ctx, "Retrieved AD OU", map[string]any{
		"ou_dn":       ou.DistinguishedName,
		"child_count": len(children),
		"user_count":  userCount,
	})

	resp.Diagnostics.Append(data.fill(ctx, ou, children, userCount)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// ouLookup returns the query matching the configured OU. Name lookups search
// one level below path.
func ouLookup(dir *directory.Context, data *OUDataSourceModel) (*query.Query[directory.OrganizationalUnit], directory.IdentityKind, string, error) {
	var kind directory.IdentityKind
	var value string
	switch {
	case data.ID.ValueString() != "":
		kind, value = directory.IdentityGUID, data.ID.ValueString()
	case data.DN.ValueString() != "":
		kind, value = directory.IdentityDN, data.DN.ValueString()
	}
	if kind != "" {
		p, err := directory.ByIdentity(kind, value)
		if err != nil {
			return nil, kind, value, err
		}
		return dir.OUs().Where(p), kind, value, nil
	}

	name := data.Name.ValueString()
	q := dir.OUs(query.Under(data.Path.ValueString()), query.InScope(query.ScopeOneLevel)).
		Where(fieldMatch("Name", query.Expr.Eq)(name))
	return q, "name", name, nil
}

func (m *OUDataSourceModel) fill(ctx context.Context, ou directory.OrganizationalUnit, children []directory.OrganizationalUnit, userCount int) diag.Diagnostics {
	var diags diag.Diagnostics

	if m.ID.IsNull() || m.ID.IsUnknown() {
		m.ID = helpers.GUIDString(ou.ObjectGUID)
	}
	if m.DN.IsNull() || m.DN.IsUnknown() {
		m.DN = customtypes.DNString(ou.DistinguishedName)
	}
	if m.Name.IsNull() || m.Name.IsUnknown() {
		m.Name = helpers.StringOrNull(ou.Name)
	}

	m.Description = helpers.StringOrNull(ou.Description)
	m.ManagedBy = helpers.StringOrNull(ou.ManagedBy)

	if parent, err := adldap.ParentDN(ou.DistinguishedName); err == nil {
		m.Parent = helpers.StringOrNull(parent)
	} else {
		m.Parent = types.StringNull()
	}

	dns := make([]string, len(children))
	for i, child := range children {
		dns[i] = child.DistinguishedName
	}
	list, d := helpers.DNList(ctx, dns)
	diags.Append(d...)
	m.Children = list
	m.ChildCount = types.Int64Value(int64(len(children)))
	m.UserCount = types.Int64Value(int64(userCount))

	m.WhenCreated = helpers.TimeString(ou.WhenCreated)
	m.WhenChanged = helpers.TimeString(ou.WhenChanged)

	return diags
}
