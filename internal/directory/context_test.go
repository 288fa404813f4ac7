package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

const userFilterPrefix = "(&(objectClass=user)(!(objectClass=computer))"

func TestByIdentity(t *testing.T) {
	guid := uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	guidFilter, err := query.FormatFilter(&query.Comparison{
		Op:    query.OpEq,
		Left:  &query.AttributeRef{Name: "objectGUID", Type: query.Scalar(query.KindGUID)},
		Right: query.Lit(guid),
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		kind    IdentityKind
		value   string
		want    string
		wantErr string
	}{
		{
			name:  "dn",
			kind:  IdentityDN,
			value: "cn=Jane,ou=Staff,dc=example,dc=com",
			want:  "(distinguishedName=CN=Jane,OU=Staff,DC=example,DC=com)",
		},
		{
			name:  "guid",
			kind:  IdentityGUID,
			value: "{" + guid.String() + "}",
			want:  guidFilter,
		},
		{
			name:  "sid",
			kind:  IdentitySID,
			value: "S-1-5-21-1-2-3-1104",
			want:  "(objectSid=S-1-5-21-1-2-3-1104)",
		},
		{
			name:  "upn",
			kind:  IdentityUPN,
			value: "jdoe@example.com",
			want:  "(userPrincipalName=jdoe@example.com)",
		},
		{
			name:  "sam account name trimmed",
			kind:  IdentitySAMAccountName,
			value: "  jdoe ",
			want:  "(sAMAccountName=jdoe)",
		},
		{
			name:  "sam account name escaped",
			kind:  IdentitySAMAccountName,
			value: "j*doe",
			want:  `(sAMAccountName=j\2adoe)`,
		},
		{name: "empty value", kind: IdentityUPN, value: " ", wantErr: "cannot be empty"},
		{name: "bad dn", kind: IdentityDN, value: "Jane", wantErr: "invalid DN syntax"},
		{name: "bad guid", kind: IdentityGUID, value: "not-a-guid", wantErr: "invalid GUID"},
		{name: "bad sid", kind: IdentitySID, value: "S-1", wantErr: "invalid SID format"},
		{name: "unknown kind", kind: IdentityKind("email"), value: "x", wantErr: "unknown identity kind"},
	}

	dc := NewContext(nil, testBaseDN)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := ByIdentity(tt.kind, tt.value)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			filter, err := dc.Users().Where(pred).Filter()
			require.NoError(t, err)
			assert.Equal(t, userFilterPrefix+tt.want+")", filter)
		})
	}
}

func TestIdentityKinds(t *testing.T) {
	assert.Equal(t, []string{"dn", "guid", "sid", "upn", "sam_account_name"}, IdentityKinds())
}

func TestPredicates(t *testing.T) {
	dc := NewContext(nil, testBaseDN)

	scope, err := GroupScopeIs(GroupScopeUniversal)
	require.NoError(t, err)
	security, err := GroupCategoryIs(GroupCategorySecurity)
	require.NoError(t, err)
	distribution, err := GroupCategoryIs(GroupCategoryDistribution)
	require.NoError(t, err)

	tests := []struct {
		name string
		got  func() (string, error)
		want string
	}{
		{
			name: "enabled users",
			got:  dc.Users().Where(Enabled).Filter,
			want: userFilterPrefix + "(!(userAccountControl:1.2.840.113556.1.4.803:=2)))",
		},
		{
			name: "nested membership",
			got:  dc.Users().Where(MemberOfGroup("CN=Admins,DC=example,DC=com")).Filter,
			want: userFilterPrefix + "(memberOf:1.2.840.113556.1.4.1941:=CN=Admins,DC=example,DC=com))",
		},
		{
			name: "universal groups",
			got:  dc.Groups().Where(scope).Filter,
			want: "(&(objectClass=group)(groupType:1.2.840.113556.1.4.803:=8))",
		},
		{
			name: "security groups",
			got:  dc.Groups().Where(security).Filter,
			want: "(&(objectClass=group)(groupType:1.2.840.113556.1.4.803:=2147483648))",
		},
		{
			name: "distribution groups",
			got:  dc.Groups().Where(distribution).Filter,
			want: "(&(objectClass=group)(!(groupType:1.2.840.113556.1.4.803:=2147483648)))",
		},
		{
			name: "organizational units",
			got:  dc.OUs().Filter,
			want: "(objectClass=organizationalUnit)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicates_InvalidValues(t *testing.T) {
	_, err := GroupScopeIs(GroupScope("forest"))
	assert.Error(t, err)

	_, err = GroupCategoryIs(GroupCategory("mail"))
	assert.Error(t, err)
}

func TestMappings_Validate(t *testing.T) {
	for _, m := range []*query.Mapping{UserMapping, GroupMapping, OUMapping} {
		t.Run(m.Name, func(t *testing.T) {
			require.NoError(t, m.Validate())
		})
	}

	_, ok := OUMapping.Lookup("Children")
	assert.True(t, ok)
	assert.NotContains(t, OUMapping.Attributes(), "")
}

func TestContext_NoBackend(t *testing.T) {
	dc := NewContext(nil, testBaseDN)

	_, err := dc.Users().ToSlice(context.Background())
	require.Error(t, err)
	assert.True(t, query.IsInvalidOperation(err))
}

func TestClientBackend(t *testing.T) {
	// A nil client is never called until a search runs.
	var client adldap.Client
	assert.NotNil(t, ClientBackend(client))
}
