package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/datasourcevalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/provider/helpers"
	customtypes "github.com/isometry/terraform-provider-adquery/internal/provider/types"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &UserDataSource{}
var _ datasource.DataSourceWithConfigure = &UserDataSource{}
var _ datasource.DataSourceWithConfigValidators = &UserDataSource{}

func NewUserDataSource() datasource.DataSource {
	return &UserDataSource{}
}

// UserDataSource looks up a single user.
type UserDataSource struct {
	data *ProviderData
}

// UserDataSourceModel describes the data source data model with multiple lookup methods.
type UserDataSourceModel struct {
	// Lookup methods (mutually exclusive)
	ID                types.String              `tfsdk:"id"`
	DistinguishedName customtypes.DNStringValue `tfsdk:"dn"`
	UserPrincipalName types.String              `tfsdk:"upn"`
	SAMAccountName    types.String              `tfsdk:"sam_account_name"`
	SID               types.String              `tfsdk:"sid"`

	// Identity
	ObjectGUID  types.String `tfsdk:"object_guid"`
	ObjectSid   types.String `tfsdk:"object_sid"`
	Name        types.String `tfsdk:"name"`
	DisplayName types.String `tfsdk:"display_name"`
	GivenName   types.String `tfsdk:"given_name"`
	Surname     types.String `tfsdk:"surname"`
	Description types.String `tfsdk:"description"`

	// Organizational information
	EmailAddress types.String `tfsdk:"email_address"`
	Title        types.String `tfsdk:"title"`
	Department   types.String `tfsdk:"department"`
	Company      types.String `tfsdk:"company"`
	Manager      types.String `tfsdk:"manager"`
	EmployeeID   types.String `tfsdk:"employee_id"`
	Office       types.String `tfsdk:"office"`

	// Account status
	AccountEnabled       types.Bool  `tfsdk:"account_enabled"`
	PasswordNeverExpires types.Bool  `tfsdk:"password_never_expires"`
	UserAccountControl   types.Int64 `tfsdk:"user_account_control"`

	MemberOf types.List `tfsdk:"member_of"`

	// Timestamps
	WhenCreated     types.String `tfsdk:"when_created"`
	WhenChanged     types.String `tfsdk:"when_changed"`
	LastLogon       types.String `tfsdk:"last_logon"`
	PasswordLastSet types.String `tfsdk:"password_last_set"`
	AccountExpires  types.String `tfsdk:"account_expires"`
}

func (d *UserDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_user"
}

func (d *UserDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves information about an Active Directory user. Supports multiple lookup methods: " +
			"objectGUID, Distinguished Name, User Principal Name (UPN), SAM account name, or Security Identifier (SID). " +
			"Exactly one must be given, and it must match exactly one user.",

		Attributes: map[string]schema.Attribute{
			// Lookup methods (mutually exclusive)
			"id": schema.StringAttribute{
				MarkdownDescription: "The objectGUID of the user. Accepts any common GUID format.",
				Optional:            true,
				Computed:            true,
			},
			"dn": schema.StringAttribute{
				MarkdownDescription: "The Distinguished Name of the user.",
				CustomType:          customtypes.DNStringType{},
				Optional:            true,
				Computed:            true,
			},
			"upn": schema.StringAttribute{
				MarkdownDescription: "The User Principal Name, e.g. `jane@example.com`.",
				Optional:            true,
				Computed:            true,
			},
			"sam_account_name": schema.StringAttribute{
				MarkdownDescription: "The SAM account name (pre-Windows 2000 name).",
				Optional:            true,
				Computed:            true,
			},
			"sid": schema.StringAttribute{
				MarkdownDescription: "The Security Identifier, e.g. `S-1-5-21-...`.",
				Optional:            true,
				Computed:            true,
			},

			"object_guid":   computedString("The objectGUID of the user."),
			"object_sid":    computedString("The objectSid of the user in string form."),
			"name":          computedString("The common name (cn) of the user."),
			"display_name":  computedString("The display name of the user."),
			"given_name":    computedString("The first name of the user."),
			"surname":       computedString("The last name of the user."),
			"description":   computedString("The description of the user."),
			"email_address": computedString("The primary email address of the user."),
			"title":         computedString("The job title of the user."),
			"department":    computedString("The department of the user."),
			"company":       computedString("The company of the user."),
			"manager":       computedString("The Distinguished Name of the user's manager."),
			"employee_id":   computedString("The employee ID of the user."),
			"office":        computedString("The physical office location of the user."),

			"account_enabled": schema.BoolAttribute{
				MarkdownDescription: "Whether the account is enabled.",
				Computed:            true,
			},
			"password_never_expires": schema.BoolAttribute{
				MarkdownDescription: "Whether the password never expires.",
				Computed:            true,
			},
			"user_account_control": schema.Int64Attribute{
				MarkdownDescription: "The raw userAccountControl value.",
				Computed:            true,
			},
			"member_of": schema.ListAttribute{
				MarkdownDescription: "Distinguished Names of the groups the user is a direct member of.",
				ElementType:         types.StringType,
				Computed:            true,
			},

			"when_created":      computedString("When the user was created (RFC3339 format)."),
			"when_changed":      computedString("When the user was last modified (RFC3339 format)."),
			"last_logon":        computedString("When the user last logged on (RFC3339 format). Replicated with some delay."),
			"password_last_set": computedString("When the password was last set (RFC3339 format)."),
			"account_expires":   computedString("When the account expires (RFC3339 format). Null when it never expires."),
		},
	}
}

// ConfigValidators implements datasource.DataSourceWithConfigValidators.
func (d *UserDataSource) ConfigValidators(ctx context.Context) []datasource.ConfigValidator {
	return []datasource.ConfigValidator{
		datasourcevalidator.ExactlyOneOf(
			path.MatchRoot("id"),
			path.MatchRoot("dn"),
			path.MatchRoot("upn"),
			path.MatchRoot("sam_account_name"),
			path.MatchRoot("sid"),
		),
	}
}

func (d *UserDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *UserDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data UserDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	kind, value := userIdentity(&data)
	done := adldap.LogDataSourceOperation(ctx, "adquery_user", "read", map[string]any{
		"lookup": string(kind),
	})

	predicate, err := directory.ByIdentity(kind, value)
	if err != nil {
		done(err)
		resp.Diagnostics.AddAttributeError(path.Root(lookupAttribute(kind)), "Invalid User Identity", err.Error())
		return
	}

	user, err := d.data.Directory.Users().Single(ctx, predicate)
	done(err)
	if err != nil {
		addSingleResultError(&resp.Diagnostics, "User", kind, value, err)
		return
	}

	tflog.Debug(ctx, "Retrieved AD user", map[string]any{
		"user_guid": user.ObjectGUID.String(),
		"user_dn":   user.DistinguishedName,
	})

	resp.Diagnostics.Append(data.fill(ctx, user)...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// userIdentity returns the configured lookup.
func userIdentity(data *UserDataSourceModel) (directory.IdentityKind, string) {
	switch {
	case data.ID.ValueString() != "":
		return directory.IdentityGUID, data.ID.ValueString()
	case data.DistinguishedName.ValueString() != "":
		return directory.IdentityDN, data.DistinguishedName.ValueString()
	case data.UserPrincipalName.ValueString() != "":
		return directory.IdentityUPN, data.UserPrincipalName.ValueString()
	case data.SAMAccountName.ValueString() != "":
		return directory.IdentitySAMAccountName, data.SAMAccountName.ValueString()
	default:
		return directory.IdentitySID, data.SID.ValueString()
	}
}

// lookupAttribute is the schema attribute holding an identity of kind.
func lookupAttribute(kind directory.IdentityKind) string {
	switch kind {
	case directory.IdentityGUID:
		return "id"
	case directory.IdentitySID:
		return "sid"
	}
	return string(kind)
}

// addSingleResultError reports a failed single-entry lookup.
func addSingleResultError(diags *diag.Diagnostics, noun string, kind directory.IdentityKind, value string, err error) {
	switch {
	case query.IsResultNotFound(err):
		diags.AddError(noun+" Not Found",
			fmt.Sprintf("No Active Directory %s matches %s %q.", strings.ToLower(noun), kind, value))
	case query.IsMoreThanOneResult(err):
		diags.AddError("Ambiguous "+noun,
			fmt.Sprintf("More than one Active Directory %s matches %s %q. Use a unique identifier such as the objectGUID.", strings.ToLower(noun), kind, value))
	default:
		diags.AddError("Error Reading "+noun,
			fmt.Sprintf("Could not read Active Directory %s: %s", strings.ToLower(noun), queryErrorDetail(err)))
	}
}

// fill copies user into the model. Configured lookup values are kept as given.
func (m *UserDataSourceModel) fill(ctx context.Context, user directory.User) diag.Diagnostics {
	var diags diag.Diagnostics

	if m.ID.IsNull() || m.ID.IsUnknown() {
		m.ID = helpers.GUIDString(user.ObjectGUID)
	}
	if m.DistinguishedName.IsNull() || m.DistinguishedName.IsUnknown() {
		m.DistinguishedName = customtypes.DNString(user.DistinguishedName)
	}
	if m.UserPrincipalName.IsNull() || m.UserPrincipalName.IsUnknown() {
		m.UserPrincipalName = helpers.StringOrNull(user.UserPrincipalName)
	}
	if m.SAMAccountName.IsNull() || m.SAMAccountName.IsUnknown() {
		m.SAMAccountName = helpers.StringOrNull(user.SAMAccountName)
	}
	if m.SID.IsNull() || m.SID.IsUnknown() {
		m.SID = helpers.StringOrNull(user.ObjectSid)
	}

	m.ObjectGUID = helpers.GUIDString(user.ObjectGUID)
	m.ObjectSid = helpers.StringOrNull(user.ObjectSid)
	m.Name = helpers.StringOrNull(user.CommonName)
	m.DisplayName = helpers.StringOrNull(user.DisplayName)
	m.GivenName = helpers.StringOrNull(user.GivenName)
	m.Surname = helpers.StringOrNull(user.Surname)
	m.Description = helpers.StringOrNull(user.Description)

	m.EmailAddress = helpers.StringOrNull(user.EmailAddress)
	m.Title = helpers.StringOrNull(user.Title)
	m.Department = helpers.StringOrNull(user.Department)
	m.Company = helpers.StringOrNull(user.Company)
	m.Manager = helpers.StringOrNull(user.Manager)
	m.EmployeeID = helpers.StringOrNull(user.EmployeeID)
	m.Office = helpers.StringOrNull(user.Office)

	m.AccountEnabled = types.BoolValue(user.Enabled())
	m.PasswordNeverExpires = types.BoolValue(user.PasswordNeverExpires())
	m.UserAccountControl = types.Int64Value(int64(user.UserAccountControl))

	memberOf, d := helpers.DNList(ctx, user.MemberOf)
	diags.Append(d...)
	m.MemberOf = memberOf

	m.WhenCreated = helpers.TimeString(user.WhenCreated)
	m.WhenChanged = helpers.TimeString(user.WhenChanged)
	m.LastLogon = helpers.OptionalTimeString(user.LastLogon)
	m.PasswordLastSet = helpers.OptionalTimeString(user.PasswordLastSet)
	m.AccountExpires = helpers.OptionalTimeString(user.AccountExpires)

	return diags
}
