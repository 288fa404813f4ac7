package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/isometry/terraform-provider-adquery/internal/ldap"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestDomain    = "AD_TEST_DOMAIN"
	EnvTestLDAPURL   = "AD_TEST_LDAP_URL"
	EnvTestUsername  = "AD_TEST_USERNAME"
	EnvTestPassword  = "AD_TEST_PASSWORD"
	EnvTestBaseDN    = "AD_TEST_BASE_DN"
	EnvTestContainer = "AD_TEST_CONTAINER"
	EnvTestKeytab    = "AD_TEST_KEYTAB"
	EnvTestRealm     = "AD_TEST_REALM"
	EnvTestUser      = "AD_TEST_USER_SAM"
	EnvTestGroup     = "AD_TEST_GROUP_SAM"

	// Default values for testing.
	DefaultTestContainer = "CN=Users"
	DefaultTestDomain    = "example.com"
	DefaultTestBaseDN    = "DC=example,DC=com"
	DefaultTestUser      = "Administrator"
	DefaultTestGroup     = "Domain Admins"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	Domain      string
	LDAPURL     string
	Username    string
	Password    string
	BaseDN      string
	Container   string
	Keytab      string
	Realm       string
	UseKerberos bool

	// Existing objects the read-only acceptance tests look up.
	User  string
	Group string
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	config := &TestConfig{
		Domain:    getEnvWithDefault(EnvTestDomain, DefaultTestDomain),
		LDAPURL:   os.Getenv(EnvTestLDAPURL),
		Username:  os.Getenv(EnvTestUsername),
		Password:  os.Getenv(EnvTestPassword),
		BaseDN:    getEnvWithDefault(EnvTestBaseDN, DefaultTestBaseDN),
		Container: getEnvWithDefault(EnvTestContainer, DefaultTestContainer),
		Keytab:    os.Getenv(EnvTestKeytab),
		Realm:     os.Getenv(EnvTestRealm),
		User:      getEnvWithDefault(EnvTestUser, DefaultTestUser),
		Group:     getEnvWithDefault(EnvTestGroup, DefaultTestGroup),
	}

	config.UseKerberos = config.Keytab != "" && config.Realm != ""

	return config
}

// ContainerDN is the test container below the base DN.
func (c *TestConfig) ContainerDN() string {
	return c.Container + "," + c.BaseDN
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig validates the acceptance test environment.
func testAccPreCheckWithConfig(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	config := GetTestConfig()

	if config.Username == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestUsername)
	}

	if config.Password == "" && !config.UseKerberos {
		t.Skipf("Skipping test: %s must be set (or configure Kerberos)", EnvTestPassword)
	}

	if config.LDAPURL == "" && config.Domain == DefaultTestDomain {
		t.Skipf("Skipping test: Either %s or %s must be set to a real AD environment", EnvTestLDAPURL, EnvTestDomain)
	}

	return config
}

// TestProviderConfig generates provider configuration for tests.
func TestProviderConfig() string {
	config := GetTestConfig()

	var providerConfig strings.Builder
	providerConfig.WriteString("provider \"adquery\" {\n")

	if config.LDAPURL != "" {
		fmt.Fprintf(&providerConfig, "  ldap_url = %q\n", config.LDAPURL)
	} else {
		fmt.Fprintf(&providerConfig, "  domain = %q\n", config.Domain)
	}
	fmt.Fprintf(&providerConfig, "  base_dn = %q\n", config.BaseDN)
	fmt.Fprintf(&providerConfig, "  username = %q\n", config.Username)

	if config.UseKerberos {
		fmt.Fprintf(&providerConfig, "  kerberos_realm = %q\n", config.Realm)
		fmt.Fprintf(&providerConfig, "  kerberos_keytab = %q\n", config.Keytab)
	} else {
		fmt.Fprintf(&providerConfig, "  password = %q\n", config.Password)
	}

	providerConfig.WriteString("}\n")
	return providerConfig.String()
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MockLDAPClient is a testify mock of ldap.Client.
type MockLDAPClient struct {
	mock.Mock
}

var _ ldap.Client = (*MockLDAPClient)(nil)

// NewMockLDAPClient returns a mock with no expectations.
func NewMockLDAPClient() *MockLDAPClient {
	return &MockLDAPClient{}
}

func (m *MockLDAPClient) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLDAPClient) Search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchStream, error) {
	args := m.Called(ctx, req)
	stream, _ := args.Get(0).(*ldap.SearchStream)
	return stream, args.Error(1)
}

func (m *MockLDAPClient) GetBaseDN(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockLDAPClient) WhoAmI(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockLDAPClient) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLDAPClient) Stats() ldap.PoolStats {
	args := m.Called()
	stats, _ := args.Get(0).(ldap.PoolStats)
	return stats
}

func (m *MockLDAPClient) Close() error {
	return m.Called().Error(0)
}
