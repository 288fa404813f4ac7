package provider

import (
	"context"
	"fmt"
	"maps"

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
var _ datasource.DataSource = &UsersDataSource{}
var _ datasource.DataSourceWithConfigure = &UsersDataSource{}

func NewUsersDataSource() datasource.DataSource {
	return &UsersDataSource{}
}

// UsersDataSource searches for users.
type UsersDataSource struct {
	data *ProviderData
}

// UsersDataSourceModel describes the data source data model.
type UsersDataSourceModel struct {
	// Search configuration
	Container  types.String `tfsdk:"container"`
	Scope      types.String `tfsdk:"scope"`
	OrderBy    types.String `tfsdk:"order_by"`
	Descending types.Bool   `tfsdk:"descending"`
	Skip       types.Int64  `tfsdk:"skip"`
	Take       types.Int64  `tfsdk:"take"`
	Filter     types.Object `tfsdk:"filter"`

	// Output
	Users      types.List   `tfsdk:"users"`
	UserCount  types.Int64  `tfsdk:"user_count"`
	LDAPFilter types.String `tfsdk:"ldap_filter"`
	ID         types.String `tfsdk:"id"`
}

func (m *UsersDataSourceModel) searchArgs() searchArgs {
	return searchArgs{
		Container:  m.Container,
		Scope:      m.Scope,
		OrderBy:    m.OrderBy,
		Descending: m.Descending,
		Skip:       m.Skip,
		Take:       m.Take,
	}
}

// UserFilterModel describes the nested filter block. String values other
// than the name and email_domain filters may be negated with a leading "!".
type UserFilterModel struct {
	// Name filters
	NamePrefix   types.String `tfsdk:"name_prefix"`
	NameSuffix   types.String `tfsdk:"name_suffix"`
	NameContains types.String `tfsdk:"name_contains"`

	// Organizational filters
	Department types.String `tfsdk:"department"` // substring
	Title      types.String `tfsdk:"title"`      // substring
	Company    types.String `tfsdk:"company"`
	Office     types.String `tfsdk:"office"`
	Manager    types.String `tfsdk:"manager"` // DN

	Enabled types.Bool `tfsdk:"enabled"`

	HasEmail    types.Bool   `tfsdk:"has_email"`
	EmailDomain types.String `tfsdk:"email_domain"`

	// Nested membership through LDAP_MATCHING_RULE_IN_CHAIN
	MemberOf types.String `tfsdk:"member_of"`
}

// userSortFields maps order_by values to User fields.
var userSortFields = map[string]string{
	"name":             "CommonName",
	"sam_account_name": "SAMAccountName",
	"upn":              "UserPrincipalName",
	"display_name":     "DisplayName",
	"given_name":       "GivenName",
	"surname":          "Surname",
	"email_address":    "EmailAddress",
	"department":       "Department",
	"title":            "Title",
	"employee_id":      "EmployeeID",
	"when_created":     "WhenCreated",
	"when_changed":     "WhenChanged",
}

var userListAttrTypes = map[string]attr.Type{
	"id":               types.StringType,
	"dn":               types.StringType,
	"sid":              types.StringType,
	"upn":              types.StringType,
	"sam_account_name": types.StringType,
	"name":             types.StringType,
	"display_name":     types.StringType,
	"given_name":       types.StringType,
	"surname":          types.StringType,
	"email_address":    types.StringType,
	"title":            types.StringType,
	"department":       types.StringType,
	"company":          types.StringType,
	"manager":          types.StringType,
	"office":           types.StringType,
	"employee_id":      types.StringType,
	"account_enabled":  types.BoolType,
	"when_created":     types.StringType,
	"when_changed":     types.StringType,
	"last_logon":       types.StringType,
}

func (d *UsersDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_users"
}

func (d *UsersDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	attributes := searchAttributes("users", userSortFields)
	maps.Copy(attributes, map[string]schema.Attribute{
		"user_count": schema.Int64Attribute{
			MarkdownDescription: "The number of users returned.",
			Computed:            true,
		},
		"users": schema.ListNestedAttribute{
			MarkdownDescription: "Users matching the search criteria, in server order unless `order_by` is set.",
			Computed:            true,
			NestedObject: schema.NestedAttributeObject{
				Attributes: userListSchemaAttributes(),
			},
		},
	})

	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves a list of Active Directory users based on search criteria. " +
			"The criteria are compiled into a single LDAP search; `ldap_filter` shows the filter sent.",

		Attributes: attributes,

		Blocks: map[string]schema.Block{
			"filter": schema.SingleNestedBlock{
				MarkdownDescription: "Filter criteria for searching users. All specified criteria must match (AND logic). " +
					"Values marked negatable may be prefixed with `!` to match users that do not satisfy them.",
				Attributes: map[string]schema.Attribute{
					"name_prefix": schema.StringAttribute{
						MarkdownDescription: "Users whose common name starts with this string. Case-insensitive.",
						Optional:            true,
					},
					"name_suffix": schema.StringAttribute{
						MarkdownDescription: "Users whose common name ends with this string. Case-insensitive.",
						Optional:            true,
					},
					"name_contains": schema.StringAttribute{
						MarkdownDescription: "Users whose common name contains this string. Case-insensitive.",
						Optional:            true,
					},
					"department": schema.StringAttribute{
						MarkdownDescription: "Department contains this string. Negatable.",
						Optional:            true,
					},
					"title": schema.StringAttribute{
						MarkdownDescription: "Job title contains this string. Negatable.",
						Optional:            true,
					},
					"company": schema.StringAttribute{
						MarkdownDescription: "Company name equals this string. Negatable.",
						Optional:            true,
					},
					"office": schema.StringAttribute{
						MarkdownDescription: "Office location equals this string. Negatable.",
						Optional:            true,
					},
					"manager": schema.StringAttribute{
						MarkdownDescription: "Distinguished Name of the manager. Negatable.",
						Optional:            true,
						Validators: []validator.String{
							validators.IsValidDNWithNegation(),
						},
					},
					"enabled": schema.BoolAttribute{
						MarkdownDescription: "`true` returns only enabled accounts, `false` only disabled accounts.",
						Optional:            true,
					},
					"has_email": schema.BoolAttribute{
						MarkdownDescription: "`true` returns only users with an email address, `false` only users without.",
						Optional:            true,
					},
					"email_domain": schema.StringAttribute{
						MarkdownDescription: "Email address ends with `@` and this domain, e.g. `example.com`.",
						Optional:            true,
					},
					"member_of": schema.StringAttribute{
						MarkdownDescription: "Distinguished Name of a group the user belongs to, including nested membership. " +
							"Negatable. Examples: `CN=Staff,OU=Groups,DC=example,DC=com` or `!CN=Contractors,OU=Groups,DC=example,DC=com`",
						Optional: true,
						Validators: []validator.String{
							validators.IsValidDNWithNegation(),
						},
					},
				},
			},
		},
	}
}

func (d *UsersDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *UsersDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UsersDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	var filter *UserFilterModel
	if !data.Filter.IsNull() && !data.Filter.IsUnknown() {
		filter = &UserFilterModel{}
		resp.Diagnostics.Append(data.Filter.As(ctx, filter, basetypes.ObjectAsOptions{})...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	q := buildUsersQuery(d.data.Directory, d.data.BaseDN, data.searchArgs(), filter, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	compiled, err := q.Compile()
	if err != nil {
		resp.Diagnostics.AddError("Error Building Search Filter", queryErrorDetail(err))
		return
	}

	done := adldap.LogDataSourceOperation(ctx, "adquery_users", "search", map[string]any{
		"ldap_filter": compiled.Filter,
	})
	users, err := q.ToSlice(ctx)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Searching Users",
			fmt.Sprintf("Could not search Active Directory users: %s", queryErrorDetail(err)),
		)
		return
	}

	tflog.Debug(ctx, "Found AD users", map[string]any{
		"user_count": len(users),
	})

	list, diags := helpers.ObjectList(userListAttrTypes, users, userListValues)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Users = list
	data.UserCount = types.Int64Value(int64(len(users)))
	data.LDAPFilter = types.StringValue(compiled.Filter)
	data.ID = types.StringValue(searchID(compiled, d.data.BaseDN))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// buildUsersQuery turns the search arguments and filter block into a query.
// filter may be nil.
func buildUsersQuery(dir *directory.Context, baseDN string, args searchArgs, filter *UserFilterModel, diags *diag.Diagnostics) *query.Query[directory.User] {
	opts := setOptions(baseDN, args, diags)
	if diags.HasError() {
		return nil
	}

	q := dir.Users(opts...)
	if filter != nil {
		for _, p := range userFilterPredicates(filter) {
			q = q.Where(p)
		}
	}

	field, err := sortField(args, userSortFields)
	if err != nil {
		diags.AddAttributeError(path.Root("order_by"), "Invalid Sort Attribute", err.Error())
		return nil
	}
	return orderAndPage(q, args, field)
}

// userFilterPredicates returns one predicate per set filter attribute.
func userFilterPredicates(f *UserFilterModel) []query.Predicate {
	var predicates []query.Predicate
	add := func(p query.Predicate) { predicates = append(predicates, p) }

	if v := f.NamePrefix.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("CommonName").StartsWith(v) })
	}
	if v := f.NameSuffix.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("CommonName").EndsWith(v) })
	}
	if v := f.NameContains.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("CommonName").Contains(v) })
	}

	if v := f.Department.ValueString(); v != "" {
		add(negatable(v, fieldMatch("Department", query.Expr.Contains)))
	}
	if v := f.Title.ValueString(); v != "" {
		add(negatable(v, fieldMatch("Title", query.Expr.Contains)))
	}
	if v := f.Company.ValueString(); v != "" {
		add(negatable(v, fieldMatch("Company", query.Expr.Eq)))
	}
	if v := f.Office.ValueString(); v != "" {
		add(negatable(v, fieldMatch("Office", query.Expr.Eq)))
	}
	if v := f.Manager.ValueString(); v != "" {
		add(negatable(v, func(dn string) query.Predicate {
			if normalized, err := adldap.NormalizeDN(dn); err == nil {
				dn = normalized
			}
			return fieldMatch("Manager", query.Expr.Eq)(dn)
		}))
	}

	if !f.Enabled.IsNull() && !f.Enabled.IsUnknown() {
		if f.Enabled.ValueBool() {
			add(directory.Enabled)
		} else {
			add(directory.Disabled)
		}
	}

	if !f.HasEmail.IsNull() && !f.HasEmail.IsUnknown() {
		if f.HasEmail.ValueBool() {
			add(func(x query.Expr) query.Expr { return x.Field("EmailAddress").NotNull() })
		} else {
			add(func(x query.Expr) query.Expr { return x.Field("EmailAddress").IsNull() })
		}
	}
	if v := f.EmailDomain.ValueString(); v != "" {
		add(func(x query.Expr) query.Expr { return x.Field("EmailAddress").EndsWith("@" + v) })
	}

	if v := f.MemberOf.ValueString(); v != "" {
		add(negatable(v, directory.MemberOfGroup))
	}

	return predicates
}

// fieldMatch returns a predicate builder applying match to field.
func fieldMatch(field string, match func(query.Expr, any) query.Expr) func(string) query.Predicate {
	return func(v string) query.Predicate {
		return func(x query.Expr) query.Expr { return match(x.Field(field), v) }
	}
}

// userListSchemaAttributes describes each user in a list of users.
func userListSchemaAttributes() map[string]schema.Attribute {
	return map[string]schema.Attribute{
		"id":               computedString("The objectGUID of the user."),
		"dn":               computedString("The full Distinguished Name of the user."),
		"sid":              computedString("The objectSid of the user in string form."),
		"upn":              computedString("The User Principal Name (UPN) of the user."),
		"sam_account_name": computedString("The SAM account name (pre-Windows 2000 name) of the user."),
		"name":             computedString("The common name (cn) of the user."),
		"display_name":     computedString("The display name of the user."),
		"given_name":       computedString("The first name (given name) of the user."),
		"surname":          computedString("The last name (surname) of the user."),
		"email_address":    computedString("The primary email address of the user."),
		"title":            computedString("The job title of the user."),
		"department":       computedString("The department of the user."),
		"company":          computedString("The company name of the user."),
		"manager":          computedString("The Distinguished Name of the user's manager."),
		"office":           computedString("The physical office location of the user."),
		"employee_id":      computedString("The employee ID of the user."),
		"account_enabled": schema.BoolAttribute{
			MarkdownDescription: "Whether the user account is enabled.",
			Computed:            true,
		},
		"when_created": computedString("When the user was created (RFC3339 format)."),
		"when_changed": computedString("When the user was last modified (RFC3339 format)."),
		"last_logon":   computedString("When the user last logged on (RFC3339 format)."),
	}
}

func computedString(description string) schema.StringAttribute {
	return schema.StringAttribute{MarkdownDescription: description, Computed: true}
}

func userListValues(u directory.User) (map[string]attr.Value, diag.Diagnostics) {
	return map[string]attr.Value{
		"id":               helpers.GUIDString(u.ObjectGUID),
		"dn":               types.StringValue(u.DistinguishedName),
		"sid":              helpers.StringOrNull(u.ObjectSid),
		"upn":              helpers.StringOrNull(u.UserPrincipalName),
		"sam_account_name": helpers.StringOrNull(u.SAMAccountName),
		"name":             helpers.StringOrNull(u.CommonName),
		"display_name":     helpers.StringOrNull(u.DisplayName),
		"given_name":       helpers.StringOrNull(u.GivenName),
		"surname":          helpers.StringOrNull(u.Surname),
		"email_address":    helpers.StringOrNull(u.EmailAddress),
		"title":            helpers.StringOrNull(u.Title),
		"department":       helpers.StringOrNull(u.Department),
		"company":          helpers.StringOrNull(u.Company),
		"manager":          helpers.StringOrNull(u.Manager),
		"office":           helpers.StringOrNull(u.Office),
		"employee_id":      helpers.StringOrNull(u.EmployeeID),
		"account_enabled":  types.BoolValue(u.Enabled()),
		"when_created":     helpers.TimeString(u.WhenCreated),
		"when_changed":     helpers.TimeString(u.WhenChanged),
		"last_logon":       helpers.OptionalTimeString(u.LastLogon),
	}, nil
}
