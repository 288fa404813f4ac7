package ldap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	krb5config "github.com/jcmturner/gokrb5/v8/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateKerberosDefaults points the default ccache and keytab at paths that
// do not exist, so tests do not see the host's credentials.
func isolateKerberosDefaults(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("KRB5CCNAME", "FILE:"+filepath.Join(dir, "missing-ccache"))
	t.Setenv("KRB5_KTNAME", filepath.Join(dir, "missing-keytab"))
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPrepareKerberosConfig(t *testing.T) {
	dir := isolateKerberosDefaults(t)
	keytab := writeFile(t, dir, "svc.keytab", "not a real keytab")

	tests := []struct {
		name      string
		config    *ConnectionConfig
		wantErr   string
		wantUser  string
		wantRealm string
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: "cannot be nil",
		},
		{
			name:      "realm from principal",
			config:    &ConnectionConfig{Username: "svc@EXAMPLE.COM", Password: "secret"},
			wantUser:  "svc",
			wantRealm: "EXAMPLE.COM",
		},
		{
			name:      "realm from domain",
			config:    &ConnectionConfig{Domain: "example.com", Username: "svc", Password: "secret"},
			wantUser:  "svc",
			wantRealm: "EXAMPLE.COM",
		},
		{
			name:      "explicit realm wins over principal suffix",
			config:    &ConnectionConfig{Username: "svc@OTHER.COM", KerberosRealm: "EXAMPLE.COM", Password: "secret"},
			wantUser:  "svc@OTHER.COM",
			wantRealm: "EXAMPLE.COM",
		},
		{
			name:      "keytab credentials",
			config:    &ConnectionConfig{Username: "svc", KerberosRealm: "EXAMPLE.COM", KerberosKeytab: keytab},
			wantUser:  "svc",
			wantRealm: "EXAMPLE.COM",
		},
		{
			name:    "no realm",
			config:  &ConnectionConfig{Username: "svc", Password: "secret"},
			wantErr: "kerberos realm is required",
		},
		{
			name:    "no principal",
			config:  &ConnectionConfig{KerberosRealm: "EXAMPLE.COM"},
			wantErr: "username (principal) is required",
		},
		{
			name:    "no credentials",
			config:  &ConnectionConfig{Username: "svc", KerberosRealm: "EXAMPLE.COM"},
			wantErr: "no suitable Kerberos credentials found",
		},
		{
			name:    "missing keytab is not a credential",
			config:  &ConnectionConfig{Username: "svc", KerberosRealm: "EXAMPLE.COM", KerberosKeytab: filepath.Join(dir, "nope")},
			wantErr: "no suitable Kerberos credentials found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := prepareKerberosConfig(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, tt.config.Username)
			assert.Equal(t, tt.wantRealm, tt.config.KerberosRealm)
		})
	}
}

func TestBuildServicePrincipal(t *testing.T) {
	tests := []struct {
		name    string
		config  *ConnectionConfig
		server  *ServerInfo
		want    string
		wantErr bool
	}{
		{
			name:   "derived from host",
			config: &ConnectionConfig{},
			server: &ServerInfo{Host: "dc1.example.com", Port: 636},
			want:   "ldap/dc1.example.com",
		},
		{
			name:   "host with port",
			config: &ConnectionConfig{},
			server: &ServerInfo{Host: "dc1.example.com:389"},
			want:   "ldap/dc1.example.com",
		},
		{
			name:   "explicit SPN",
			config: &ConnectionConfig{KerberosSPN: "ldap/dc.example.com@EXAMPLE.COM"},
			server: &ServerInfo{Host: "10.0.0.5"},
			want:   "ldap/dc.example.com@EXAMPLE.COM",
		},
		{name: "nil config", server: &ServerInfo{Host: "dc1"}, wantErr: true},
		{name: "no server", config: &ConnectionConfig{}, wantErr: true},
		{name: "empty host", config: &ConnectionConfig{}, server: &ServerInfo{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildServicePrincipal(tt.config, tt.server)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateRuntimeKrb5Conf(t *testing.T) {
	cfg := &ConnectionConfig{
		Domain:               "Example.com",
		KerberosRealm:        "example.com",
		KerberosDNSLookupKDC: true,
	}

	content, err := generateRuntimeKrb5Conf(context.Background(), cfg)
	require.NoError(t, err)

	assert.Contains(t, content, "default_realm = EXAMPLE.COM")
	assert.Contains(t, content, "dns_lookup_kdc = true")
	assert.Contains(t, content, "dns_lookup_realm = false")
	assert.Contains(t, content, ".example.com = EXAMPLE.COM")

	parsed, err := krb5config.NewFromString(content)
	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE.COM", parsed.LibDefaults.DefaultRealm)
	assert.True(t, parsed.LibDefaults.DNSLookupKDC)
	assert.Equal(t, "EXAMPLE.COM", parsed.DomainRealm[".example.com"])

	_, err = generateRuntimeKrb5Conf(context.Background(), &ConnectionConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "realm is required")
}

func TestResolveKrb5Conf(t *testing.T) {
	dir := t.TempDir()

	_, _, err := resolveKrb5Conf(context.Background(), &ConnectionConfig{
		KerberosConfig: "/nonexistent/krb5.conf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos configuration file not found at /nonexistent/krb5.conf")

	configured := writeFile(t, dir, "krb5.conf", "[libdefaults]\n")
	path, cleanup, err := resolveKrb5Conf(context.Background(), &ConnectionConfig{KerberosConfig: configured})
	require.NoError(t, err)
	cleanup()
	assert.Equal(t, configured, path)
	assert.FileExists(t, configured)

	if fileExists(defaultKrb5Conf) {
		t.Skip("host has a system krb5.conf")
	}

	path, cleanup, err = resolveKrb5Conf(context.Background(), &ConnectionConfig{KerberosRealm: "EXAMPLE.COM"})
	require.NoError(t, err)
	assert.FileExists(t, path)
	cleanup()
	assert.NoFileExists(t, path)
}

func TestCreateGSSAPIClient_NoCredentials(t *testing.T) {
	isolateKerberosDefaults(t)

	_, err := createGSSAPIClient(context.Background(), &ConnectionConfig{KerberosRealm: "EXAMPLE.COM"}, "/nonexistent/krb5.conf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no suitable credentials found")
}

func TestGetDefaultCCachePath(t *testing.T) {
	t.Setenv("KRB5CCNAME", "FILE:/tmp/custom_ccache")
	assert.Equal(t, "/tmp/custom_ccache", getDefaultCCachePath())

	t.Setenv("KRB5CCNAME", "/tmp/plain_ccache")
	assert.Equal(t, "/tmp/plain_ccache", getDefaultCCachePath())

	t.Setenv("KRB5CCNAME", "")
	assert.Regexp(t, `^/tmp/krb5cc_\d+$`, getDefaultCCachePath())
}

func TestGetDefaultKeytabPath(t *testing.T) {
	t.Setenv("KRB5_KTNAME", "FILE:/etc/custom.keytab")
	assert.Equal(t, "/etc/custom.keytab", getDefaultKeytabPath())

	t.Setenv("KRB5_KTNAME", "")
	assert.Equal(t, "/etc/krb5.keytab", getDefaultKeytabPath())
}

func TestFileExists(t *testing.T) {
	path := writeFile(t, t.TempDir(), "present", "x")

	assert.True(t, fileExists(path))
	assert.False(t, fileExists(path+".missing"))
	assert.False(t, fileExists(""))
}
