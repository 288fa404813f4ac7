package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeDNValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no special characters", "John Doe", "John Doe"},
		{"comma", "Doe, John", `Doe\, John`},
		{"leading and trailing spaces", " John ", `\ John\ `},
		{"leading hash", "#123", `\#123`},
		{"inner hash", "a#b", "a#b"},
		{"angle brackets", "John<>Doe", `John\<\>Doe`},
		{"backslash", `a\b`, `a\\b`},
		{"null byte", "a\x00b", `a\00b`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeDNValue(tt.input))
		})
	}
}

func TestValidateDN(t *testing.T) {
	assert.NoError(t, ValidateDN("CN=John,OU=Users,DC=example,DC=com"))

	err := ValidateDN("  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	err = ValidateDN("not a dn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DN syntax")
}

func TestNormalizeDN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
		{name: "lowercase types", input: "cn=john,ou=users,dc=example,dc=com", expected: "CN=john,OU=users,DC=example,DC=com"},
		{name: "mixed case types", input: "Cn=john,Ou=users,Dc=example", expected: "CN=john,OU=users,DC=example"},
		{name: "value case kept", input: "cn=John DOE,dc=com", expected: "CN=John DOE,DC=com"},
		{name: "escaped comma kept", input: `cn=Doe\, John,dc=com`, expected: `CN=Doe\, John,DC=com`},
		{name: "multi-valued RDN", input: "cn=a+sn=b,dc=com", expected: "CN=a+SN=b,DC=com"},
		{name: "invalid", input: "cn", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDN(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestIsBeneath(t *testing.T) {
	tests := []struct {
		name     string
		dn       string
		root     string
		expected bool
	}{
		{"direct child", "OU=Users,DC=example,DC=com", "DC=example,DC=com", true},
		{"grandchild", "CN=John,OU=Users,DC=example,DC=com", "DC=example,DC=com", true},
		{"same entry", "DC=example,DC=com", "DC=example,DC=com", true},
		{"case differs", "cn=john,ou=users,dc=EXAMPLE,dc=com", "OU=Users,DC=example,DC=com", true},
		{"sibling", "OU=Groups,DC=example,DC=com", "OU=Users,DC=example,DC=com", false},
		{"other domain", "CN=John,DC=other,DC=com", "DC=example,DC=com", false},
		{"root is longer", "DC=com", "DC=example,DC=com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsBeneath(tt.dn, tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := IsBeneath("bogus", "DC=com")
	assert.Error(t, err)
}

func TestParentDN(t *testing.T) {
	tests := []struct {
		name     string
		dn       string
		expected string
	}{
		{"nested OU", "ou=Sales, OU=Corp,DC=example,DC=com", "OU=Corp,DC=example,DC=com"},
		{"escaped comma kept", `CN=Doe\, John,OU=Users,DC=example,DC=com`, "OU=Users,DC=example,DC=com"},
		{"single component", "DC=com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParentDN(tt.dn)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParentDN("not a dn")
	assert.Error(t, err)
}
