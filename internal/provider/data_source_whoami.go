package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/provider/helpers"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &WhoAmIDataSource{}
var _ datasource.DataSourceWithConfigure = &WhoAmIDataSource{}

func NewWhoAmIDataSource() datasource.DataSource {
	return &WhoAmIDataSource{}
}

// WhoAmIDataSource reports the identity the provider is bound as.
type WhoAmIDataSource struct {
	data *ProviderData
}

// WhoAmIDataSourceModel describes the data source data model.
type WhoAmIDataSourceModel struct {
	ID                types.String `tfsdk:"id"`
	AuthzID           types.String `tfsdk:"authz_id"`
	Format            types.String `tfsdk:"format"` // dn, upn, sam, sid, empty or unknown
	DN                types.String `tfsdk:"dn"`
	UserPrincipalName types.String `tfsdk:"upn"`
	SAMAccountName    types.String `tfsdk:"sam_account_name"`
	SID               types.String `tfsdk:"sid"`
}

// authzIdentity is a parsed authorization ID.
type authzIdentity struct {
	Format         string
	DN             string
	UPN            string
	SAMAccountName string
	SID            string
}

func (d *WhoAmIDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_whoami"
}

func (d *WhoAmIDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Retrieves the authenticated identity using the LDAP \"Who Am I?\" extended operation (RFC 4532). " +
			"When the server answers with a UPN, SAM account name or SID, the matching user is looked up to fill in `dn`.",

		Attributes: map[string]schema.Attribute{
			"id": computedString("Same as `authz_id`."),
			"authz_id": computedString("The authorization ID returned by the server, without its `u:` or `dn:` prefix. " +
				"Example: `EXAMPLE\\jdoe`"),
			"format": computedString("The format of the authorization ID: `dn`, `upn`, `sam`, `sid`, " +
				"`empty` (anonymous) or `unknown`."),
			"dn": computedString("The Distinguished Name of the authenticated account, when known. " +
				"Example: `CN=John Doe,CN=Users,DC=example,DC=com`"),
			"upn": computedString("The User Principal Name, when the authorization ID is in UPN format."),
			"sam_account_name": computedString("The SAM account name, when the authorization ID is in `DOMAIN\\name` format. " +
				"The domain part is removed."),
			"sid": computedString("The Security Identifier, when the authorization ID is in SID format."),
		},
	}
}

func (d *WhoAmIDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	d.data = providerDataFrom(req.ProviderData, &resp.Diagnostics)
}

func (d *WhoAmIDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data WhoAmIDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	done := adldap.LogDataSourceOperation(ctx, "adquery_whoami", "read", nil)
	authzID, err := d.data.Client.WhoAmI(ctx)
	done(err)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Performing WhoAmI Operation",
			fmt.Sprintf("Could not perform LDAP Who Am I? operation: %s", err.Error()),
		)
		return
	}

	identity := parseAuthzID(authzID)
	if identity.DN == "" {
		identity.DN = d.resolveDN(ctx, identity)
	}

	tflog.Debug(ctx, "Performed WhoAmI operation", map[string]any{
		"authz_id": authzID,
		"format":   identity.Format,
	})

	data.ID = types.StringValue(authzID)
	data.AuthzID = types.StringValue(authzID)
	data.Format = types.StringValue(identity.Format)
	data.DN = helpers.StringOrNull(identity.DN)
	data.UserPrincipalName = helpers.StringOrNull(identity.UPN)
	data.SAMAccountName = helpers.StringOrNull(identity.SAMAccountName)
	data.SID = helpers.StringOrNull(identity.SID)

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// resolveDN looks up the user behind identity. Accounts that are not users,
// such as computer accounts, resolve to "".
func (d *WhoAmIDataSource) resolveDN(ctx context.Context, identity authzIdentity) string {
	var kind directory.IdentityKind
	var value string
	switch identity.Format {
	case "upn":
		kind, value = directory.IdentityUPN, identity.UPN
	case "sam":
		kind, value = directory.IdentitySAMAccountName, identity.SAMAccountName
	case "sid":
		kind, value = directory.IdentitySID, identity.SID
	default:
		return ""
	}

	predicate, err := directory.ByIdentity(kind, value)
	if err != nil {
		return ""
	}
	user, err := d.data.Directory.Users().SingleOrDefault(ctx, predicate)
	if err != nil {
		tflog.Warn(ctx, "Could not resolve WhoAmI identity", map[string]any{
			"lookup":   string(kind),
			"error":    err.Error(),
			"category": string(query.ErrorCategoryOf(err)),
		})
		return ""
	}
	return user.DistinguishedName
}

// parseAuthzID classifies an authorization ID with its prefix removed.
func parseAuthzID(id string) authzIdentity {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return authzIdentity{Format: "empty"}
	case strings.Contains(id, "=") && adldap.ValidateDN(id) == nil:
		return authzIdentity{Format: "dn", DN: id}
	case strings.HasPrefix(strings.ToUpper(id), "S-1-") && adldap.NewSIDHandler().ValidateSIDString(id) == nil:
		return authzIdentity{Format: "sid", SID: id}
	case strings.Contains(id, `\`):
		_, name, _ := strings.Cut(id, `\`)
		return authzIdentity{Format: "sam", SAMAccountName: name}
	case strings.Contains(id, "@"):
		return authzIdentity{Format: "upn", UPN: id}
	}
	return authzIdentity{Format: "unknown"}
}
