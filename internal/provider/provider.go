package provider

import (
	"context"
	"os"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/providervalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/ephemeral"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/spf13/cast"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Ensure ADQueryProvider satisfies various provider interfaces.
var _ provider.Provider = &ADQueryProvider{}
var _ provider.ProviderWithConfigValidators = &ADQueryProvider{}
var _ provider.ProviderWithFunctions = &ADQueryProvider{}
var _ provider.ProviderWithEphemeralResources = &ADQueryProvider{}

// ADQueryProvider is a read-only Active Directory provider whose data sources
// are compiled into LDAP searches by the query engine.
type ADQueryProvider struct {
	// Version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	Version string

	// newClient is replaced in tests.
	newClient func(ctx context.Context, config *adldap.ConnectionConfig) (adldap.Client, error)
}

// ADQueryProviderModel describes the provider data model.
type ADQueryProviderModel struct {
	// Connection settings - mutually exclusive
	Domain  types.String `tfsdk:"domain"`
	LdapURL types.String `tfsdk:"ldap_url"`
	BaseDN  types.String `tfsdk:"base_dn"`

	// Authentication settings
	Username types.String `tfsdk:"username"`
	Password types.String `tfsdk:"password"`

	// Kerberos settings (optional)
	KerberosRealm  types.String `tfsdk:"kerberos_realm"`
	KerberosKeytab types.String `tfsdk:"kerberos_keytab"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`

	// TLS settings
	UseTLS            types.Bool   `tfsdk:"use_tls"`
	SkipTLSVerify     types.Bool   `tfsdk:"skip_tls_verify"`
	TLSCACertFile     types.String `tfsdk:"tls_ca_cert_file"`
	TLSCACert         types.String `tfsdk:"tls_ca_cert"`
	TLSClientCertFile types.String `tfsdk:"tls_client_cert_file"`
	TLSClientKeyFile  types.String `tfsdk:"tls_client_key_file"`

	// Connection pool settings
	MaxConnections types.Int64 `tfsdk:"max_connections"`
	MaxIdleTime    types.Int64 `tfsdk:"max_idle_time"`
	ConnectTimeout types.Int64 `tfsdk:"connect_timeout"`

	// Retry settings
	MaxRetries     types.Int64 `tfsdk:"max_retries"`
	InitialBackoff types.Int64 `tfsdk:"initial_backoff"`
	MaxBackoff     types.Int64 `tfsdk:"max_backoff"`

	// Search settings
	PageSize          types.Int64   `tfsdk:"page_size"`
	RequestsPerSecond types.Float64 `tfsdk:"requests_per_second"`
}

func (p *ADQueryProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "adquery"
	resp.Version = p.Version
}

func (p *ADQueryProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The adquery provider reads Active Directory over LDAP/LDAPS. " +
			"Data source arguments are compiled into a single LDAP search each, with server-side sorting and paging.",
		Attributes: map[string]schema.Attribute{
			// Connection settings - mutually exclusive
			"domain": schema.StringAttribute{
				MarkdownDescription: "Active Directory domain name for SRV-based discovery (e.g., `example.com`). " +
					"Mutually exclusive with `ldap_url`. Can be set via the `AD_DOMAIN` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"ldap_url": schema.StringAttribute{
				MarkdownDescription: "Direct LDAP/LDAPS URL (e.g., `ldaps://dc1.example.com:636`). " +
					"Mutually exclusive with `domain`. Can be set via the `AD_LDAP_URL` environment variable.",
				Optional: true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"base_dn": schema.StringAttribute{
				MarkdownDescription: "Default search root (e.g., `DC=example,DC=com`). " +
					"Read from the root DSE when not set. Can be set via the `AD_BASE_DN` environment variable.",
				Optional: true,
			},

			// Authentication settings
			"username": schema.StringAttribute{
				MarkdownDescription: "Username for LDAP authentication. Supports DN, UPN, or SAM account name formats. " +
					"Can be set via the `AD_USERNAME` environment variable.",
				Optional: true,
			},
			"password": schema.StringAttribute{
				MarkdownDescription: "Password for LDAP authentication. " +
					"Can be set via the `AD_PASSWORD` environment variable.",
				Optional:  true,
				Sensitive: true,
			},

			// Kerberos settings
			"kerberos_realm": schema.StringAttribute{
				MarkdownDescription: "Kerberos realm for GSSAPI authentication (e.g., `EXAMPLE.COM`). " +
					"Can be set via the `AD_KERBEROS_REALM` environment variable.",
				Optional: true,
			},
			"kerberos_keytab": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos keytab file for authentication. " +
					"Can be set via the `AD_KERBEROS_KEYTAB` environment variable.",
				Optional: true,
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos configuration file. A configuration is generated from the realm when not set. " +
					"Can be set via the `AD_KERBEROS_CONFIG` environment variable.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to Kerberos credential cache file for authentication. " +
					"Can be set via the `AD_KERBEROS_CCACHE` environment variable.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Override Service Principal Name (SPN) for Kerberos authentication, " +
					"for example when connecting by IP address. Format: `ldap/<hostname>`. " +
					"Can be set via the `AD_KERBEROS_SPN` environment variable.",
				Optional: true,
			},

			// TLS settings
			"use_tls": schema.BoolAttribute{
				MarkdownDescription: "Force TLS/LDAPS connection. Defaults to `true`. " +
					"Can be set via the `AD_USE_TLS` environment variable.",
				Optional: true,
			},
			"skip_tls_verify": schema.BoolAttribute{
				MarkdownDescription: "Skip TLS certificate verification. Not recommended for production. Defaults to `false`. " +
					"Can be set via the `AD_SKIP_TLS_VERIFY` environment variable.",
				Optional: true,
			},
			"tls_ca_cert_file": schema.StringAttribute{
				MarkdownDescription: "Path to custom CA certificate file for TLS verification. " +
					"Can be set via the `AD_TLS_CA_CERT_FILE` environment variable.",
				Optional: true,
			},
			"tls_ca_cert": schema.StringAttribute{
				MarkdownDescription: "Custom CA certificate content for TLS verification. " +
					"Can be set via the `AD_TLS_CA_CERT` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"tls_client_cert_file": schema.StringAttribute{
				MarkdownDescription: "Path to client certificate file for mutual TLS and SASL EXTERNAL binds. " +
					"Can be set via the `AD_TLS_CLIENT_CERT_FILE` environment variable.",
				Optional: true,
			},
			"tls_client_key_file": schema.StringAttribute{
				MarkdownDescription: "Path to client private key file for mutual TLS and SASL EXTERNAL binds. " +
					"Can be set via the `AD_TLS_CLIENT_KEY_FILE` environment variable.",
				Optional:  true,
				Sensitive: true,
			},

			// Connection pool settings
			"max_connections": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of connections in the connection pool. Defaults to `4`. " +
					"Can be set via the `AD_MAX_CONNECTIONS` environment variable.",
				Optional: true,
			},
			"max_idle_time": schema.Int64Attribute{
				MarkdownDescription: "Maximum idle time for connections in seconds. Defaults to `300` (5 minutes). " +
					"Can be set via the `AD_MAX_IDLE_TIME` environment variable.",
				Optional: true,
			},
			"connect_timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection timeout in seconds. Defaults to `30`. " +
					"Can be set via the `AD_CONNECT_TIMEOUT` environment variable.",
				Optional: true,
			},

			// Retry settings
			"max_retries": schema.Int64Attribute{
				MarkdownDescription: "Maximum number of retry attempts for failed operations. Defaults to `3`. " +
					"Can be set via the `AD_MAX_RETRIES` environment variable.",
				Optional: true,
			},
			"initial_backoff": schema.Int64Attribute{
				MarkdownDescription: "Initial backoff delay in milliseconds for retry attempts. Defaults to `500`. " +
					"Can be set via the `AD_INITIAL_BACKOFF` environment variable.",
				Optional: true,
			},
			"max_backoff": schema.Int64Attribute{
				MarkdownDescription: "Maximum backoff delay in seconds for retry attempts. Defaults to `30`. " +
					"Can be set via the `AD_MAX_BACKOFF` environment variable.",
				Optional: true,
			},

			// Search settings
			"page_size": schema.Int64Attribute{
				MarkdownDescription: "Entries per page of the paged results control. `0` disables paging. Defaults to `500`. " +
					"Can be set via the `AD_PAGE_SIZE` environment variable.",
				Optional: true,
			},
			"requests_per_second": schema.Float64Attribute{
				MarkdownDescription: "Client-side limit on search requests and result pages per second. `0` is unlimited. " +
					"Can be set via the `AD_REQUESTS_PER_SECOND` environment variable.",
				Optional: true,
			},
		},
	}
}

// ConfigValidators implements provider.ProviderWithConfigValidators.
func (p *ADQueryProvider) ConfigValidators(ctx context.Context) []provider.ConfigValidator {
	return []provider.ConfigValidator{
		// Domain and ldap_url are mutually exclusive
		providervalidator.Conflicting(
			path.MatchRoot("domain"),
			path.MatchRoot("ldap_url"),
		),
		// TLS cert file and cert content are mutually exclusive
		providervalidator.Conflicting(
			path.MatchRoot("tls_ca_cert_file"),
			path.MatchRoot("tls_ca_cert"),
		),
	}
}

func (p *ADQueryProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data ADQueryProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring adquery provider", map[string]any{
		"version": p.Version,
	})

	config := p.buildLDAPConfig(&data, &resp.Diagnostics)
	if resp.Diagnostics.HasError() {
		return
	}

	newClient := p.newClient
	if newClient == nil {
		newClient = adldap.NewClient
	}

	start := time.Now()
	client, err := newClient(ctx, config)
	if err != nil {
		tflog.Error(ctx, "Failed to create LDAP client", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		resp.Diagnostics.AddError(
			"Unable to Create LDAP Client",
			"An unexpected error occurred when creating the LDAP client. "+
				"If the error is not clear, please contact the provider developers.\n\n"+
				"LDAP Client Error: "+err.Error(),
		)
		return
	}

	start = time.Now()
	if err := client.Connect(ctx); err != nil {
		tflog.Error(ctx, "Connection test failed", map[string]any{
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		resp.Diagnostics.AddError(
			"Unable to Connect to Active Directory",
			"The provider could not connect and bind to Active Directory. "+
				"Please verify your connection and authentication settings.\n\n"+
				"Connection Error: "+err.Error(),
		)
		return
	}

	tflog.Info(ctx, "Connection established successfully", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	baseDN := config.BaseDN
	if baseDN == "" {
		baseDN, err = client.GetBaseDN(ctx)
		if err != nil {
			resp.Diagnostics.AddError(
				"Unable to Determine Base DN",
				"No base_dn was configured and defaultNamingContext could not be read from the root DSE.\n\n"+
					"Error: "+err.Error(),
			)
			return
		}
	}

	tflog.Info(ctx, "adquery provider configured successfully", map[string]any{
		"base_dn": baseDN,
	})

	providerData := NewProviderData(client, baseDN)
	resp.DataSourceData = providerData
	resp.ResourceData = providerData
}

// configureLogging adds persistent fields for all provider logs.
func (p *ADQueryProvider) configureLogging(ctx context.Context) context.Context {
	ctx = tflog.SetField(ctx, "provider", "adquery")
	ctx = tflog.SetField(ctx, "provider_version", p.Version)
	ctx = adldap.NewLoggingContext(ctx)
	return query.NewLoggingContext(ctx)
}

// buildLDAPConfig constructs the LDAP client configuration from provider config and environment variables.
func (p *ADQueryProvider) buildLDAPConfig(data *ADQueryProviderModel, diags *diag.Diagnostics) *adldap.ConnectionConfig {
	config := adldap.DefaultConfig()

	// Connection settings
	config.Domain = getStringValue(data.Domain, "AD_DOMAIN")
	if ldapURL := getStringValue(data.LdapURL, "AD_LDAP_URL"); ldapURL != "" {
		config.LDAPURLs = []string{ldapURL}
	}
	if config.Domain == "" && len(config.LDAPURLs) == 0 {
		diags.AddError(
			"Missing Connection Configuration",
			"Either 'domain' or 'ldap_url' must be configured, or AD_DOMAIN or AD_LDAP_URL set.",
		)
		return config
	}

	if baseDN := getStringValue(data.BaseDN, "AD_BASE_DN"); baseDN != "" {
		if err := adldap.ValidateDN(baseDN); err != nil {
			diags.AddAttributeError(path.Root("base_dn"), "Invalid Base DN", err.Error())
			return config
		}
		config.BaseDN = baseDN
	}

	// Authentication settings
	config.Username = getStringValue(data.Username, "AD_USERNAME")
	config.Password = getStringValue(data.Password, "AD_PASSWORD")
	config.KerberosRealm = getStringValue(data.KerberosRealm, "AD_KERBEROS_REALM")
	config.KerberosKeytab = getStringValue(data.KerberosKeytab, "AD_KERBEROS_KEYTAB")
	config.KerberosConfig = getStringValue(data.KerberosConfig, "AD_KERBEROS_CONFIG")
	config.KerberosCCache = getStringValue(data.KerberosCCache, "AD_KERBEROS_CCACHE")
	config.KerberosSPN = getStringValue(data.KerberosSPN, "AD_KERBEROS_SPN")

	// TLS settings
	config.UseTLS = getBoolValue(data.UseTLS, "AD_USE_TLS", config.UseTLS)
	config.TLSSkipVerify = getBoolValue(data.SkipTLSVerify, "AD_SKIP_TLS_VERIFY", false)
	config.TLSCACertFile = getStringValue(data.TLSCACertFile, "AD_TLS_CA_CERT_FILE")
	config.TLSCACert = getStringValue(data.TLSCACert, "AD_TLS_CA_CERT")
	config.TLSClientCertFile = getStringValue(data.TLSClientCertFile, "AD_TLS_CLIENT_CERT_FILE")
	config.TLSClientKeyFile = getStringValue(data.TLSClientKeyFile, "AD_TLS_CLIENT_KEY_FILE")

	if !config.HasAuthentication() {
		diags.AddError(
			"Missing Authentication Configuration",
			"Either username/password, Kerberos, or client certificate authentication must be configured. "+
				"For username/password: provide 'username' and 'password' or set AD_USERNAME and AD_PASSWORD. "+
				"For Kerberos: provide 'kerberos_realm' with a password, 'kerberos_keytab' or 'kerberos_ccache'. "+
				"For SASL EXTERNAL: provide 'tls_client_cert_file' and 'tls_client_key_file'.",
		)
		return config
	}

	// Connection pool settings
	if v := getInt64Value(data.MaxConnections, "AD_MAX_CONNECTIONS", 0); v > 0 {
		config.MaxConnections = int(v)
	}
	if v := getInt64Value(data.MaxIdleTime, "AD_MAX_IDLE_TIME", 0); v > 0 {
		config.MaxIdleTime = time.Duration(v) * time.Second
	}
	if v := getInt64Value(data.ConnectTimeout, "AD_CONNECT_TIMEOUT", 0); v > 0 {
		config.Timeout = time.Duration(v) * time.Second
	}

	// Retry settings
	if v := getInt64Value(data.MaxRetries, "AD_MAX_RETRIES", -1); v >= 0 {
		config.MaxRetries = int(v)
	}
	if v := getInt64Value(data.InitialBackoff, "AD_INITIAL_BACKOFF", 0); v > 0 {
		config.InitialBackoff = time.Duration(v) * time.Millisecond
	}
	if v := getInt64Value(data.MaxBackoff, "AD_MAX_BACKOFF", 0); v > 0 {
		config.MaxBackoff = time.Duration(v) * time.Second
	}

	// Search settings
	if v := getInt64Value(data.PageSize, "AD_PAGE_SIZE", -1); v >= 0 {
		config.PageSize = uint32(v)
	}
	config.RequestsPerSecond = getFloat64Value(data.RequestsPerSecond, "AD_REQUESTS_PER_SECOND", 0)

	if err := config.Validate(); err != nil {
		diags.AddError("Invalid Provider Configuration", err.Error())
	}
	return config
}

// Helper functions for configuration value resolution

func getStringValue(configValue types.String, envVar string) string {
	if !configValue.IsNull() && configValue.ValueString() != "" {
		return configValue.ValueString()
	}
	return os.Getenv(envVar)
}

func getBoolValue(configValue types.Bool, envVar string, defaultValue bool) bool {
	if !configValue.IsNull() {
		return configValue.ValueBool()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := cast.ToBoolE(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := cast.ToInt64E(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloat64Value(configValue types.Float64, envVar string, defaultValue float64) float64 {
	if !configValue.IsNull() {
		return configValue.ValueFloat64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := cast.ToFloat64E(envValue); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func (p *ADQueryProvider) Resources(ctx context.Context) []func() resource.Resource {
	return nil
}

func (p *ADQueryProvider) EphemeralResources(ctx context.Context) []func() ephemeral.EphemeralResource {
	return nil
}

func (p *ADQueryProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewEntriesDataSource,
		NewGroupDataSource,
		NewGroupsDataSource,
		NewOUDataSource,
		NewUserDataSource,
		NewUsersDataSource,
		NewWhoAmIDataSource,
	}
}

func (p *ADQueryProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewLDAPFilterFunction,
		NewNormalizeDNFunction,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &ADQueryProvider{
			Version: version,
		}
	}
}
