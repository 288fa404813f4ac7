package directory

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

const testBaseDN = "DC=example,DC=com"

type fakeStream struct {
	entries []*ldap.Entry
	pos     int
	err     error
	closed  int
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.entries) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Entry() *ldap.Entry { return s.entries[s.pos-1] }
func (s *fakeStream) Err() error         { return s.err }

func (s *fakeStream) Close() error {
	s.closed++
	return nil
}

// recorder returns a Backend serving stream and the requests it received.
func recorder(stream *fakeStream) (*Backend, *[]*adldap.SearchRequest) {
	var requests []*adldap.SearchRequest
	backend := NewBackend(SearchFunc(func(_ context.Context, req *adldap.SearchRequest) (EntryStream, error) {
		requests = append(requests, req)
		return stream, nil
	}))
	return backend, &requests
}

func binarySID(authority byte, subs ...uint32) []byte {
	b := []byte{1, byte(len(subs)), 0, 0, 0, 0, 0, authority}
	for _, s := range subs {
		b = binary.LittleEndian.AppendUint32(b, s)
	}
	return b
}

func TestBackend_SearchRequest(t *testing.T) {
	stream := &fakeStream{}
	backend, requests := recorder(stream)

	rs, err := backend.Search(context.Background(), &query.SearchRequest{
		Root:       "OU=Staff," + testBaseDN,
		Filter:     "(objectClass=user)",
		Attributes: []string{"cn", "mail"},
		Scope:      query.ScopeOneLevel,
		Sort:       &query.SortKey{Attribute: "cn", Descending: true},
		SizeLimit:  20,
	})
	require.NoError(t, err)
	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "OU=Staff,"+testBaseDN, req.BaseDN)
	assert.Equal(t, adldap.ScopeSingleLevel, req.Scope)
	assert.Equal(t, "(objectClass=user)", req.Filter)
	assert.Equal(t, []string{"cn", "mail"}, req.Attributes)
	assert.Equal(t, 20, req.SizeLimit)
	require.NotNil(t, req.Sort)
	assert.Equal(t, "cn", req.Sort.Attribute)
	assert.True(t, req.Sort.Reverse)
	assert.Equal(t, 1, stream.closed, "stream closed once")
}

func TestBackend_SearchError(t *testing.T) {
	backend := NewBackend(SearchFunc(func(context.Context, *adldap.SearchRequest) (EntryStream, error) {
		return nil, errors.New("connection refused")
	}))

	_, err := backend.Search(context.Background(), &query.SearchRequest{Root: testBaseDN})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSearchScope(t *testing.T) {
	tests := []struct {
		name  string
		scope query.Scope
		want  adldap.SearchScope
	}{
		{"base", query.ScopeBase, adldap.ScopeBaseObject},
		{"one level", query.ScopeOneLevel, adldap.ScopeSingleLevel},
		{"subtree", query.ScopeSubtree, adldap.ScopeWholeSubtree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, searchScope(tt.scope))
		})
	}
}

func TestEntryRecord_Attribute(t *testing.T) {
	sid := binarySID(5, 21, 1, 2, 3, 500)
	entry := ldap.NewEntry("CN=Jane,"+testBaseDN, map[string][]string{
		"sAMAccountName": {"jane"},
		"memberOf":       {"CN=A," + testBaseDN, "CN=B," + testBaseDN},
		"objectSid":      {string(sid)},
	})
	rec := newEntryRecord(entry)

	assert.Equal(t, "CN=Jane,"+testBaseDN, rec.DN())
	assert.Same(t, entry, rec.Handle())

	values, ok := rec.Attribute("SAMACCOUNTNAME")
	require.True(t, ok)
	assert.Equal(t, []any{"jane"}, values)

	values, ok = rec.Attribute("memberof")
	require.True(t, ok)
	assert.Len(t, values, 2)

	values, ok = rec.Attribute("objectSid")
	require.True(t, ok)
	require.Len(t, values, 1)
	assert.Equal(t, sid, values[0], "binary values stay bytes")

	_, ok = rec.Attribute("mail")
	assert.False(t, ok)
}

func TestRecordSet_DistinctRecords(t *testing.T) {
	stream := &fakeStream{entries: []*ldap.Entry{
		ldap.NewEntry("CN=a,"+testBaseDN, nil),
		ldap.NewEntry("CN=b,"+testBaseDN, nil),
	}}
	rs := &recordSet{stream: stream}

	require.True(t, rs.Next())
	first := rs.Record()
	require.True(t, rs.Next())
	second := rs.Record()
	assert.False(t, rs.Next())
	assert.Nil(t, rs.Record())

	assert.Equal(t, "CN=a,"+testBaseDN, first.DN())
	assert.Equal(t, "CN=b,"+testBaseDN, second.DN())
}

func TestContext_UsersToSlice(t *testing.T) {
	guid := uuid.MustParse("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	sid := binarySID(5, 21, 1, 2, 3, 1104)

	stream := &fakeStream{entries: []*ldap.Entry{
		ldap.NewEntry("CN=Jane Doe,OU=Staff,"+testBaseDN, map[string][]string{
			"objectGUID":         {string(adldap.GUIDToBytes(guid))},
			"objectSid":          {string(sid)},
			"sAMAccountName":     {"jdoe"},
			"userPrincipalName":  {"jdoe@example.com"},
			"cn":                 {"Jane Doe"},
			"mail":               {"jane@example.com"},
			"userAccountControl": {"66050"},
			"memberOf":           {"CN=Admins," + testBaseDN},
			"whenCreated":        {"20240102030405.0Z"},
			"pwdLastSet":         {"0"},
			"lastLogonTimestamp": {"133500000000000000"},
		}),
	}}
	backend, requests := recorder(stream)
	dc := NewContext(backend, testBaseDN)

	users, err := dc.Users().Where(Disabled).ToSlice(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	u := users[0]
	assert.Equal(t, guid, u.ObjectGUID)
	assert.Equal(t, "S-1-5-21-1-2-3-1104", u.ObjectSid)
	assert.Equal(t, "CN=Jane Doe,OU=Staff,"+testBaseDN, u.DistinguishedName)
	assert.Equal(t, "jdoe", u.SAMAccountName)
	assert.Equal(t, "jane@example.com", u.EmailAddress)
	assert.Equal(t, 66050, u.UserAccountControl)
	assert.False(t, u.Enabled())
	assert.True(t, u.PasswordNeverExpires())
	assert.Equal(t, []string{"CN=Admins," + testBaseDN}, u.MemberOf)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), u.WhenCreated)
	assert.Nil(t, u.PasswordLastSet)
	require.NotNil(t, u.LastLogon)
	assert.Equal(t, 2024, u.LastLogon.Year())
	assert.Empty(t, u.Title)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, testBaseDN, req.BaseDN)
	assert.Equal(t,
		"(&(objectClass=user)(!(objectClass=computer))(userAccountControl:1.2.840.113556.1.4.803:=2))",
		req.Filter)
	assert.Contains(t, req.Attributes, "sAMAccountName")
	assert.Contains(t, req.Attributes, "distinguishedName")
	assert.Equal(t, 1, stream.closed)
}

func TestContext_GroupMembersDeferred(t *testing.T) {
	groupDN := "CN=Admins,OU=Groups," + testBaseDN
	var requests []*adldap.SearchRequest
	backend := NewBackend(SearchFunc(func(_ context.Context, req *adldap.SearchRequest) (EntryStream, error) {
		requests = append(requests, req)
		if len(requests) == 1 {
			return &fakeStream{entries: []*ldap.Entry{
				ldap.NewEntry(groupDN, map[string][]string{
					"cn":        {"Admins"},
					"groupType": {"-2147483646"},
				}),
			}}, nil
		}
		return &fakeStream{entries: []*ldap.Entry{
			ldap.NewEntry("CN=Jane,"+testBaseDN, map[string][]string{"sAMAccountName": {"jane"}}),
		}}, nil
	}))
	dc := NewContext(backend, testBaseDN)

	group, err := dc.Groups().Single(context.Background(), func(x query.Expr) query.Expr {
		return x.Field("Name").Eq("Admins")
	})
	require.NoError(t, err)
	assert.Equal(t, "Admins", group.Name)
	assert.Equal(t, GroupScopeGlobal, group.Scope())
	assert.Equal(t, GroupCategorySecurity, group.Category())
	require.Len(t, requests, 1, "members are not loaded until enumerated")

	require.NotNil(t, group.Members)
	members, err := group.Members.ToSlice(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "jane", members[0].SAMAccountName)

	require.Len(t, requests, 2)
	assert.Equal(t,
		"(&(objectClass=user)(!(objectClass=computer))(memberOf:1.2.840.113556.1.4.1941:="+query.EscapeValue(groupDN)+"))",
		requests[1].Filter)
}

func TestContext_OUChildren(t *testing.T) {
	ouDN := "OU=Staff," + testBaseDN
	var requests []*adldap.SearchRequest
	backend := NewBackend(SearchFunc(func(_ context.Context, req *adldap.SearchRequest) (EntryStream, error) {
		requests = append(requests, req)
		if len(requests) == 1 {
			return &fakeStream{entries: []*ldap.Entry{
				ldap.NewEntry(ouDN, map[string][]string{"ou": {"Staff"}}),
			}}, nil
		}
		return &fakeStream{}, nil
	}))
	dc := NewContext(backend, testBaseDN)

	ou, err := dc.OUs().First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Staff", ou.Name)

	children, err := ou.Children.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Empty(t, children)

	require.Len(t, requests, 2)
	assert.Equal(t, ouDN, requests[1].BaseDN)
	assert.Equal(t, adldap.ScopeSingleLevel, requests[1].Scope)
	assert.Equal(t, "(objectClass=organizationalUnit)", requests[1].Filter)
}

func TestContext_Entries(t *testing.T) {
	stream := &fakeStream{entries: []*ldap.Entry{
		ldap.NewEntry("CN=ws01,"+testBaseDN, map[string][]string{
			"dNSHostName":          {"ws01.example.com"},
			"servicePrincipalName": {"HOST/ws01", "HOST/ws01.example.com"},
		}),
	}}
	backend, requests := recorder(stream)
	dc := NewContext(backend, testBaseDN)

	entries, err := dc.Entries("computer", []string{"dNSHostName", "servicePrincipalName"}).
		Take(5).
		ToSlice(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "CN=ws01,"+testBaseDN, entries[0].DN)
	assert.Equal(t, "ws01.example.com", entries[0].Get("dnshostname"))
	assert.Len(t, entries[0].Attributes["servicePrincipalName"], 2)

	require.Len(t, *requests, 1)
	assert.Equal(t, "(objectClass=computer)", (*requests)[0].Filter)
	assert.Equal(t, 5, (*requests)[0].SizeLimit)
}

func TestContext_DynamicFiltered(t *testing.T) {
	stream := &fakeStream{entries: []*ldap.Entry{
		ldap.NewEntry("CN=Jane,"+testBaseDN, map[string][]string{"mail": {"jane@example.com"}}),
	}}
	backend, requests := recorder(stream)
	dc := NewContext(backend, testBaseDN)

	q := dc.Dynamic("user", []string{"mail"}).
		Where(func(x query.Expr) query.Expr {
			return x.Field("mail").EndsWith("@example.com").And(x.Field("department").Eq("IT"))
		}).
		OrderByDescending(func(x query.Expr) query.Expr { return x.Field("mail") })

	entries, err := query.AsEntries(q).ToSlice(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "jane@example.com", entries[0].Get("mail"))

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "(&(objectClass=user)(mail=*@example.com)(department=IT))", req.Filter)
	assert.Equal(t, []string{"distinguishedName", "mail"}, req.Attributes)
	require.NotNil(t, req.Sort)
	assert.Equal(t, "mail", req.Sort.Attribute)
	assert.True(t, req.Sort.Reverse)
}
