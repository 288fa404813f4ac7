package provider

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/provider/helpers"
	"github.com/isometry/terraform-provider-adquery/internal/provider/validators"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &GroupsDataSource{}
var _ datasource.DataSourceWithConfigure = &GroupsDataSource{}

func NewGroupsDataSource() datasource.DataSource {
	return &GroupsDataSource{}
}

// GroupsDataSource searches for groups.
type GroupsDataSource struct {
	data *ProviderData
}

// GroupsDataSourceModel describes the data source data model.
type GroupsDataSourceModel struct {
	// Search configuration
	Container  types.String `tfsdk:"container"`
	Scope      types.String `tfsdk:"scope"`
	OrderBy    types.String `tfsdk:"order_by"`
	Descending types.Bool   `tfsdk:"descending"`
	Skip       types.Int64  `tfsdk:"skip"`
	Take       types.Int64  `tfsdk:"take"`
	Filter     types.Object `tfsdk:"filter"`

	// Output
	Groups     types.List   `tfsdk:"groups"`
	GroupCount types.Int64  `tfsdk:"group_count"`
	LDAPFilter types.String `tfsdk:"ldap_filter"`
	ID         types.String `tfsdk:"id"`
}

func (m *GroupsDataSourceModel) searchArgs() searchArgs {
	return searchArgs{
		Container:  m.Container,
		Scope:      m.Scope,
		OrderBy:    m.OrderBy,
		Descending: m.Descending,
		Skip:       m.Skip,
		Take:       m.Take,
	}
}

// GroupFilterModel describes the nested filter block.
type GroupFilterModel struct {
	NamePrefix   types.String `tfsdk:"name_prefix"`
	NameSuffix   types.String `tfsdk:"name_suffix"`
	NameContains types.String `tfsdk:"name_contains"`
	Category     types.String `tfsdk:"category"` // security, distribution
	Scope        types.String `tfsdk:"scope"`    // global, domainlocal, universal
	HasMembers   types.Bool   `tfsdk:"has_members"`

	MemberOf  types.String `tfsdk:"member_of"`  // nested
	HasMember types.String `tfsdk:"has_member"` // direct
}

var groupSortFields = map[string]string{
	"name":             "Name",
	"sam_account_name": "SAMAccountName",
	"mail":             "Mail",
	"when_created":     "WhenCreated",
	"when_changed":     "WhenChanged",
}

var groupListAttrTypes = map[string]attr.Type{
	"id":               types.StringType,
	"dn":               types.StringType,
	"sid":              types.StringType,
	"name":             types.StringType,
	"sam_account_name": types.StringType,
	"description":      types.StringType,
	"mail":             types.StringType,
	"managed_by":       types.StringType,
	"scope":            types.StringType,
	"category":         types.StringType,
	"member_count":     types.Int64Type,
	"when_created":     types.StringType,
	"when_changed":     types.StringType,
}

func (d *GroupsDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_groups"
}

func (d *GroupsDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	attributes := searchAttributes("groups", groupSortFields)
	maps.Copy(attributes, map[string]schema.Attribute{
		"group_count": schema.Int64Attribute{
			MarkdownDescription: "The number of groups returned.",
			Computed:            true,
		},
		"groups": schema.ListNestedAttribute{
			MarkdownDescription: "Groups matching the search criteria.",
			Computed:            true,
			NestedObject: schema.NestedAttributeObject{
				Attributes: map[string]schema.Attribute{
					"id":               computedString("The objectGUID of the group."),
					"dn":               computedString("The full Distinguished Name of the group."),
					"sid":              computedString("The objectSid of the group in string form."),
					"name":             computedString("The common name (cn) of the group."),
					"sam_account_name": computedString("The SAM account name of the group."),
					"description":      computedString("The description of the group."),
					"mail":             computedString("The email address of the group."),
					"managed_by":       computedString("The Distinguished Name of the group's manager."),
					"scope":            computedString("The group scope: `global`, `domainlocal` or `universal`."),
					"category":         computedString("The group category: `security` or `distribution`."),
					"member_count": schema.Int64Attribute{
						MarkdownDescription: "The number of direct members.",
						Computed:            true,
					},
					"when_created": computedString("When the group was created (RFC3339 format)."),
					"when_changed": computedString("When the group was last modified (RFC3339 format)."),
				},
			},
		},
	})

	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves a list of Active Directory groups based on search criteria. " +
			"The criteria are compiled into a single LDAP search; `ldap_filter` shows the filter sent.",

		Attributes: attributes,

		Blocks: map[string]schema.Block{
			"filter": schema.SingleNestedBlock{
				MarkdownDescription: "Filter criteria for searching groups. All specified criteria must match (AND logic).",
				Attributes: map[string]schema.Attribute{
					"name_prefix": schema.StringAttribute{
						MarkdownDescription: "Groups whose name starts with this string. Case-insensitive.",
						Optional:            true,
					},
					"name_suffix": schema.StringAttribute{
						MarkdownDescription: "Groups whose name ends with this string. Case-insensitive.",
						Optional:            true,
					},
					"name_contains": schema.StringAttribute{
						MarkdownDescription: "Groups whose name contains this string. Case-insensitive.",
						Optional:            true,
					},
					"category": schema.StringAttribute{
						MarkdownDescription: "Group category: `security` or `distribution`. Prefix with `!` to negate.",
						Optional:            true,
						Validators: []validator.String{
							validators.NegatableOneOf(string(directory.GroupCategorySecurity), string(directory.GroupCategoryDistribution)),
						},
					},
					"scope": schema.StringAttribute{
						MarkdownDescription: "Group scope: `global`, `domainlocal` or `universal`. Prefix with `!` to negate.",
						Optional:            true,
						Validators: []validator.String{
							validators.NegatableOneOf(
								string(directory.GroupScopeGlobal),
								string(directory.GroupScopeDomainLocal),
								string(directory.GroupScopeUniversal),
							),
						},
					},
					"has_members": schema.BoolAttribute{
						MarkdownDescription: "`true` returns only groups with members, `false` only empty groups.",
						Optional:            true,
					},
					"member_of": schema.StringAttribute{
						MarkdownDescription: "Distinguished Name of a group these groups belong to, including nested membership. " +
							"Prefix with `!` to negate.",
						Optional: true,
						Validators: []validator.String{
							validators.IsValidDNWithNegation(),
						},
					},
					"has_member": schema.StringAttribute{
						MarkdownDescription: "Distinguished Name of a direct member. Prefix with `!` to negate.",
						Optional:            true,
						Validators: []validator.String{
							validators.IsValidDNWithNegation(),
						},
					},
				},
			},
		},
	}
}

func (d *GroupsDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *GroupsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data GroupsDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var filter *GroupFilterModel
	if !data.Filter.IsNull() && !data.Filter.IsUnknown() {
		filter = &GroupFilterModel{}
		resp.Diagnostics.Append(data.Filter.As(ctx, filter, basetypes.ObjectAsOptions{})...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	q := buildGroupsQuery(d.data.Directory, d.data.BaseDN, data.searchArgs(), filter, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	compiled, err := q.Compile()
	if err != nil {
		resp.Diagnostics.AddError("Error Building Search Filter", queryErrorDetail(err))
		return
	}

	done := adldap.LogDataSourceOperation(ctx, "adquery_groups", "search", map[string]any{
		"ldap_filter": compiled.Filter,
	})
	groups, err := q.ToSlice(ctx)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Searching Groups",
			fmt.Sprintf("Could not search Active Directory groups: %s", queryErrorDetail(err)),
		)
		return
	}

	tflog.Debug(ctx, "Found AD groups", map[string]any{
		"group_count": len(groups),
	})

	list, diags := helpers.ObjectList(groupListAttrTypes, groups, groupListValues)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Groups = list
	data.GroupCount = types.Int64Value(int64(len(groups)))
	data.LDAPFilter = types.StringValue(compiled.Filter)
	data.ID = types.StringValue(searchID(compiled, d.data.BaseDN))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// buildGroupsQuery turns the search arguments and filter block into a query.
// filter may be nil.
func buildGroupsQuery(dir *directory.Context, baseDN string, args searchArgs, filter *GroupFilterModel, diags *diag.Diagnostics) *query.Query[directory.Group] {
	opts := setOptions(baseDN, args, diags)
	if diags.HasError() {
		return nil
	}

	q := dir.Groups(opts...)
	if filter != nil {
		predicates := groupFilterPredicates(filter, diags)
		if diags.HasError() {
			return nil
		}
		for _, p := range predicates {
			q = q.Where(p)
		}
	}

	field, err := sortField(args, groupSortFields)
	if err != nil {
		diags.AddAttributeError(path.Root("order_by"), "Invalid Sort Attribute", err.Error())
		return nil
	}
	return orderAndPage(q, args, field)
}

func groupFilterPredicates(f *GroupFilterModel, diags *diag.Diagnostics) []query.Predicate {
	var predicates []query.Predicate
	add := func(p query.Predicate) { predicates = append(predicates, p) }

	if v := f.NamePrefix.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("Name").StartsWith(v) })
	}
	if v := f.NameSuffix.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("Name").EndsWith(v) })
	}
	if v := f.NameContains.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("Name").Contains(v) })
	}

	if v := f.Category.ValueString(); v != "" {
		clean, negate := parseFilterValue(v)
		p, err := directory.GroupCategoryIs(directory.GroupCategory(strings.ToLower(strings.TrimSpace(clean))))
		if err != nil {
			diags.AddAttributeError(path.Root("filter").AtName("category"), "Invalid Group Category", err.Error())
		} else {
			add(negateIf(p, negate))
		}
	}
	if v := f.Scope.ValueString(); v != "" {
		clean, negate := parseFilterValue(v)
		p, err := directory.GroupScopeIs(directory.GroupScope(strings.ToLower(strings.TrimSpace(clean))))
		if err != nil {
			diags.AddAttributeError(path.Root("filter").AtName("scope"), "Invalid Group Scope", err.Error())
		} else {
			add(negateIf(p, negate))
		}
	}

	if !f.HasMembers.IsNull() && !f.HasMembers.IsUnknown() {
		if f.HasMembers.ValueBool() {
			add(func(x query.Expr) query.Expr { return x.Field("Member").NotNull() })
		} else {
			add(func(x query.Expr) query.Expr { return x.Field("Member").IsNull() })
		}
	}

	if v := f.MemberOf.ValueString(); v != "" {
		add(negatable(v, directory.MemberOfGroup))
	}
	if v := f.HasMember.ValueString(); v != "" {
		add(negatable(v, func(dn string) query.Predicate {
			if normalized, err := adldap.NormalizeDN(dn); err == nil {
				dn = normalized
			}
			return fieldMatch("Member", query.Expr.Eq)(dn)
		}))
	}

	return predicates
}

func groupListValues(g directory.Group) (map[string]attr.Value, diag.Diagnostics) {
	return map[string]attr.Value{
		"id":               helpers.GUIDString(g.ObjectGUID),
		"dn":               types.StringValue(g.DistinguishedName),
		"sid":              helpers.StringOrNull(g.ObjectSid),
		"name":             helpers.StringOrNull(g.Name),
		"sam_account_name": helpers.StringOrNull(g.SAMAccountName),
		"description":      helpers.StringOrNull(g.Description),
		"mail":             helpers.StringOrNull(g.Mail),
		"managed_by":       helpers.StringOrNull(g.ManagedBy),
		"scope":            types.StringValue(string(g.Scope())),
		"category":         types.StringValue(string(g.Category())),
		"member_count":     types.Int64Value(int64(len(g.Member))),
		"when_created":     helpers.TimeString(g.WhenCreated),
		"when_changed":     helpers.TimeString(g.WhenChanged),
	}, nil
}
