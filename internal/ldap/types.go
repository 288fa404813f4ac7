package ldap

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// ConnectionConfig holds configuration for LDAP connections.
type ConnectionConfig struct {
	// Connection settings
	Domain   string        `mapstructure:"domain" yaml:"domain,omitempty"`       // Domain for SRV discovery
	LDAPURLs []string      `mapstructure:"ldap_urls" yaml:"ldap_urls,omitempty"` // Direct LDAP URLs (overrides domain)
	BaseDN   string        `mapstructure:"base_dn" yaml:"base_dn,omitempty"`     // Base DN for searches, from the root DSE when empty
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty" default:"30s"`

	// Authentication settings
	Username               string `mapstructure:"username" yaml:"username,omitempty"` // DN, UPN, or SAM format
	Password               string `mapstructure:"password" yaml:"-"`
	KerberosRealm          string `mapstructure:"kerberos_realm" yaml:"kerberos_realm,omitempty"`
	KerberosKeytab         string `mapstructure:"kerberos_keytab" yaml:"kerberos_keytab,omitempty"`
	KerberosConfig         string `mapstructure:"kerberos_config" yaml:"kerberos_config,omitempty"` // krb5.conf path
	KerberosCCache         string `mapstructure:"kerberos_ccache" yaml:"kerberos_ccache,omitempty"`
	KerberosSPN            string `mapstructure:"kerberos_spn" yaml:"kerberos_spn,omitempty"`
	KerberosDNSLookupKDC   bool   `mapstructure:"kerberos_dns_lookup_kdc" yaml:"kerberos_dns_lookup_kdc,omitempty" default:"true"`
	KerberosDNSLookupRealm bool   `mapstructure:"kerberos_dns_lookup_realm" yaml:"kerberos_dns_lookup_realm,omitempty"`

	// TLS settings
	TLSConfig     *tls.Config `mapstructure:"-" yaml:"-"` // Custom TLS configuration
	UseTLS        bool        `mapstructure:"use_tls" yaml:"use_tls" default:"true"`
	SkipTLS       bool        `mapstructure:"skip_tls" yaml:"skip_tls,omitempty"` // Plain LDAP, not recommended
	TLSSkipVerify bool        `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify,omitempty"`
	TLSCACertFile string      `mapstructure:"tls_ca_cert_file" yaml:"tls_ca_cert_file,omitempty"`
	TLSCACert     string      `mapstructure:"tls_ca_cert" yaml:"tls_ca_cert,omitempty"` // PEM content

	// Client certificate for SASL EXTERNAL binds
	TLSClientCertFile string `mapstructure:"tls_client_cert_file" yaml:"tls_client_cert_file,omitempty"`
	TLSClientKeyFile  string `mapstructure:"tls_client_key_file" yaml:"tls_client_key_file,omitempty"`

	// Pool settings
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" default:"4"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time" yaml:"max_idle_time" default:"5m"`
	HealthCheck    time.Duration `mapstructure:"health_check" yaml:"health_check,omitempty"` // Idle connection probe interval, 0 disables

	// Retry settings
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries" default:"3"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" default:"500ms"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" default:"30s"`
	BackoffFactor  float64       `mapstructure:"backoff_factor" yaml:"backoff_factor" default:"2.0"`

	// Search settings
	PageSize          uint32  `mapstructure:"page_size" yaml:"page_size" default:"500"`                  // Paged results control size, 0 disables paging
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second,omitempty"` // Client-side search rate, 0 is unlimited
	Burst             int     `mapstructure:"burst" yaml:"burst" default:"1"`
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *ConnectionConfig {
	cfg := &ConnectionConfig{}
	defaults.MustSet(cfg)
	return cfg
}

// Validate checks the configuration is usable.
func (c *ConnectionConfig) Validate() error {
	if c.Domain == "" && len(c.LDAPURLs) == 0 {
		return fmt.Errorf("either domain or LDAP URLs must be specified")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MaxConnections > MaxConnectionPoolLimit {
		return fmt.Errorf("max connections too high (max %d)", MaxConnectionPoolLimit)
	}
	if c.MaxIdleTime <= 0 {
		return fmt.Errorf("max idle time must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.BackoffFactor <= 1.0 {
		return fmt.Errorf("backoff factor must be greater than 1.0")
	}
	if (c.TLSClientCertFile == "") != (c.TLSClientKeyFile == "") {
		return fmt.Errorf("client certificate and key must be set together")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1 when requests per second is set")
	}
	return nil
}

// ServerInfo contains information about an LDAP server.
type ServerInfo struct {
	Host     string
	Port     int
	UseTLS   bool
	Priority int
	Weight   int
	Source   string // "srv", "config", "fallback"
}

// PoolStats provides statistics about the connection pool.
type PoolStats struct {
	Total   int           // Idle connections held by the pool
	Active  int64         // Connections currently lent out
	Created int64         // Total connections created
	Errors  int64         // Total connection errors
	Uptime  time.Duration // Pool uptime
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "one"
	case ScopeWholeSubtree:
		return "sub"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// SortKey requests server-side sorting on one attribute.
type SortKey struct {
	Attribute    string
	MatchingRule string
	Reverse      bool
}

// SearchRequest encapsulates LDAP search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
	Sort       *SortKey
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // Username/password authentication
	AuthMethodKerberos                     // GSSAPI/Kerberos authentication
	AuthMethodExternal                     // External/certificate authentication
	AuthMethodAnonymous
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	case AuthMethodExternal:
		return "external"
	case AuthMethodAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// GetAuthMethod determines the authentication method from the configuration.
func (c *ConnectionConfig) GetAuthMethod() AuthMethod {
	// Kerberos authentication takes precedence
	if c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.Username != "") {
		return AuthMethodKerberos
	}

	if c.Username != "" {
		return AuthMethodSimpleBind
	}

	if c.TLSClientCertFile != "" && c.TLSClientKeyFile != "" {
		return AuthMethodExternal
	}

	return AuthMethodAnonymous
}

// HasAuthentication reports whether connections must bind before use.
func (c *ConnectionConfig) HasAuthentication() bool {
	return c.GetAuthMethod() != AuthMethodAnonymous
}

// RetryableError indicates an error that can be retried.
type RetryableError interface {
	error
	IsRetryable() bool
}

// ConnectionError represents connection-related errors.
type ConnectionError struct {
	message   string
	retryable bool
	cause     error
}

func (e *ConnectionError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *ConnectionError) IsRetryable() bool {
	return e.retryable
}

func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, retryable bool, cause error) *ConnectionError {
	return &ConnectionError{
		message:   message,
		retryable: retryable,
		cause:     cause,
	}
}
