package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeDNValue escapes an attribute value for use in a DN (RFC 4514).
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)
	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			b.WriteRune('\\')
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		case 0:
			b.WriteString(`\00`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateDN checks that dn parses as a distinguished name.
func ValidateDN(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("DN cannot be empty")
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid DN syntax: %w", err)
	}
	return nil
}

// NormalizeDN rewrites dn with upper-case attribute types and no spacing
// between components. Values keep their case.
//
//	"cn=john, ou=users,dc=example,dc=com" => "CN=john,OU=users,DC=example,DC=com"
func NormalizeDN(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", nil
	}
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}
	return formatDN(parsed.RDNs), nil
}

func formatDN(rdns []*ldap.RelativeDN) string {
	parts := make([]string, 0, len(rdns))
	for _, rdn := range rdns {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, a := range rdn.Attributes {
			attrs = append(attrs, strings.ToUpper(a.Type)+"="+EscapeDNValue(a.Value))
		}
		parts = append(parts, strings.Join(attrs, "+"))
	}
	return strings.Join(parts, ",")
}

// IsBeneath reports whether dn equals root or lies anywhere below it.
// Comparison ignores case.
func IsBeneath(dn, root string) (bool, error) {
	child, err := ldap.ParseDN(dn)
	if err != nil {
		return false, fmt.Errorf("invalid DN syntax: %w", err)
	}
	parent, err := ldap.ParseDN(root)
	if err != nil {
		return false, fmt.Errorf("invalid root DN syntax: %w", err)
	}
	if len(child.RDNs) < len(parent.RDNs) {
		return false, nil
	}
	tail := child.RDNs[len(child.RDNs)-len(parent.RDNs):]
	return strings.EqualFold(formatDN(tail), formatDN(parent.RDNs)), nil
}

// ParentDN returns the normalized DN of the entry containing dn, or "" for a
// single-component DN.
func ParentDN(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}
	if len(parsed.RDNs) < 2 {
		return "", nil
	}
	return formatDN(parsed.RDNs[1:]), nil
}
