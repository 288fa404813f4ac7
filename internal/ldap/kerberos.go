package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// performKerberosAuth binds conn with GSSAPI.
func performKerberosAuth(ctx context.Context, conn *ldap.Conn, cfg *ConnectionConfig, serverInfo *ServerInfo) error {
	if err := prepareKerberosConfig(cfg); err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	krb5conf, cleanup, err := resolveKrb5Conf(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := createGSSAPIClient(ctx, cfg, krb5conf)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(cfg, serverInfo)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	if err := conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// resolveKrb5Conf returns the krb5.conf to use. Without a configured or
// system file, a DNS-discovery configuration is written to a temporary file
// that cleanup removes.
func resolveKrb5Conf(ctx context.Context, cfg *ConnectionConfig) (string, func(), error) {
	noop := func() {}

	if cfg.KerberosConfig != "" {
		if !fileExists(cfg.KerberosConfig) {
			return "", noop, fmt.Errorf("kerberos configuration file not found at %s", cfg.KerberosConfig)
		}
		return cfg.KerberosConfig, noop, nil
	}
	if fileExists(defaultKrb5Conf) {
		return defaultKrb5Conf, noop, nil
	}

	content, err := generateRuntimeKrb5Conf(ctx, cfg)
	if err != nil {
		return "", noop, err
	}

	f, err := os.CreateTemp("", "adquery-krb5-*.conf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to write runtime krb5.conf: %w", err)
	}
	return f.Name(), cleanup, nil
}

// createGSSAPIClient picks credentials in order: configured ccache, default
// ccache, configured keytab, default keytab, password.
func createGSSAPIClient(ctx context.Context, cfg *ConnectionConfig, krb5conf string) (ldap.GSSAPIClient, error) {
	noFAST := krb5client.DisablePAFXFAST(true)

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, noFAST)
	}

	if ccache := getDefaultCCachePath(); fileExists(ccache) {
		tflog.SubsystemDebug(ctx, Subsystem, "Using default credential cache", map[string]any{
			"ccache": ccache,
		})
		return gssapi.NewClientFromCCache(ccache, krb5conf, noFAST)
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(cfg.Username, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, noFAST)
	}

	if cfg.Username != "" {
		if keytab := getDefaultKeytabPath(); fileExists(keytab) {
			return gssapi.NewClientWithKeytab(cfg.Username, cfg.KerberosRealm, keytab, krb5conf, noFAST)
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		return gssapi.NewClientWithPassword(cfg.Username, cfg.KerberosRealm, cfg.Password, krb5conf, noFAST)
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// buildServicePrincipal returns KerberosSPN or ldap/<host>.
func buildServicePrincipal(cfg *ConnectionConfig, serverInfo *ServerInfo) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("configuration is required for service principal")
	}
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}
	if serverInfo == nil || serverInfo.Host == "" {
		return "", fmt.Errorf("hostname is required for service principal")
	}

	hostname := serverInfo.Host
	if i := strings.Index(hostname, ":"); i != -1 {
		hostname = hostname[:i]
	}
	return "ldap/" + hostname, nil
}

// prepareKerberosConfig splits user@REALM principals and checks that some
// credential source exists.
func prepareKerberosConfig(cfg *ConnectionConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if cfg.KerberosRealm == "" {
		if user, realm, ok := strings.Cut(cfg.Username, "@"); ok && realm != "" {
			cfg.Username = user
			cfg.KerberosRealm = realm
		}
	}
	if cfg.KerberosRealm == "" && cfg.Domain != "" {
		cfg.KerberosRealm = strings.ToUpper(cfg.Domain)
	}

	if cfg.KerberosRealm == "" {
		return fmt.Errorf("kerberos realm is required (set kerberos_realm or include realm in username)")
	}
	if cfg.Username == "" && cfg.KerberosCCache == "" && !fileExists(getDefaultCCachePath()) {
		return fmt.Errorf("username (principal) is required for Kerberos authentication")
	}
	if !hasKerberosCredentials(cfg) {
		return fmt.Errorf("no suitable Kerberos credentials found: provide kerberos_ccache, kerberos_keytab, password, or ensure default credential cache/keytab exists")
	}
	return nil
}

func hasKerberosCredentials(cfg *ConnectionConfig) bool {
	return (cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache)) ||
		fileExists(getDefaultCCachePath()) ||
		(cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab)) ||
		fileExists(getDefaultKeytabPath()) ||
		cfg.Password != ""
}

// generateRuntimeKrb5Conf renders a krb5.conf that finds KDCs through DNS.
// The result is parsed before it is returned.
func generateRuntimeKrb5Conf(ctx context.Context, cfg *ConnectionConfig) (string, error) {
	if cfg.KerberosRealm == "" {
		return "", fmt.Errorf("kerberos realm is required for auto-discovery")
	}

	realm := strings.ToUpper(cfg.KerberosRealm)
	domain := strings.ToLower(cfg.KerberosRealm)
	if cfg.Domain != "" {
		domain = strings.ToLower(cfg.Domain)
	}

	content := fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_kdc = %t
    dns_lookup_realm = %t
    rdns = false
    forwardable = true
    ticket_lifetime = 24h
    renew_lifetime = 7d

[realms]
    %s = {
    }

[domain_realm]
    .%s = %s
    %s = %s
`,
		realm,
		cfg.KerberosDNSLookupKDC,
		cfg.KerberosDNSLookupRealm,
		realm,
		domain, realm,
		domain, realm,
	)

	if _, err := krb5config.NewFromString(content); err != nil {
		return "", fmt.Errorf("generated krb5.conf is invalid: %w", err)
	}

	tflog.SubsystemDebug(ctx, Subsystem, "Generated runtime krb5.conf", map[string]any{
		"realm":            realm,
		"domain":           domain,
		"dns_lookup_kdc":   cfg.KerberosDNSLookupKDC,
		"dns_lookup_realm": cfg.KerberosDNSLookupRealm,
	})
	return content, nil
}

func getDefaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func getDefaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks if a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
