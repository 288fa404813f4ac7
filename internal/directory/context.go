package directory

import (
	"fmt"
	"strings"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// Context is a query context with typed entry points for the standard
// Active Directory object classes.
type Context struct {
	*query.Context
}

// NewContext returns a Context searching below root through backend.
func NewContext(backend query.Backend, root string, opts ...query.Option) *Context {
	return &Context{Context: query.NewContext(backend, root, opts...)}
}

func (c *Context) Users(opts ...query.SetOption) *query.Query[User] {
	return query.From[User](c.Context, UserMapping, opts...)
}

func (c *Context) Groups(opts ...query.SetOption) *query.Query[Group] {
	return query.From[Group](c.Context, GroupMapping, opts...)
}

func (c *Context) OUs(opts ...query.SetOption) *query.Query[OrganizationalUnit] {
	return query.From[OrganizationalUnit](c.Context, OUMapping, opts...)
}

// Entries queries raw entries of objectClass, loading attributes.
func (c *Context) Entries(objectClass string, attributes []string, opts ...query.SetOption) *query.Query[query.Entry] {
	return query.Entries(c.Context, query.DynamicMapping(objectClass, attributes...), opts...)
}

// Dynamic starts a query over entries of objectClass whose fields are named
// after attributes. Filter and sort it, then finish with query.AsEntries.
func (c *Context) Dynamic(objectClass string, attributes []string, opts ...query.SetOption) *query.Query[query.Entry] {
	return query.From[query.Entry](c.Context, query.DynamicMapping(objectClass, attributes...), opts...)
}

// IdentityKind names the attribute a user is looked up by.
type IdentityKind string

const (
	IdentityDN             IdentityKind = "dn"
	IdentityGUID           IdentityKind = "guid"
	IdentitySID            IdentityKind = "sid"
	IdentityUPN            IdentityKind = "upn"
	IdentitySAMAccountName IdentityKind = "sam_account_name"
)

// IdentityKinds lists the accepted identity kinds.
func IdentityKinds() []string {
	return []string{
		string(IdentityDN),
		string(IdentityGUID),
		string(IdentitySID),
		string(IdentityUPN),
		string(IdentitySAMAccountName),
	}
}

// ByIdentity matches the entry whose identity of the given kind is value.
// GUIDs may be given in any form uuid.Parse accepts.
func ByIdentity(kind IdentityKind, value string) (query.Predicate, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s identity cannot be empty", kind)
	}

	switch kind {
	case IdentityDN:
		dn, err := adldap.NormalizeDN(value)
		if err != nil {
			return nil, err
		}
		return fieldEquals("DistinguishedName", dn), nil
	case IdentityGUID:
		guid, err := adldap.ParseGUID(value)
		if err != nil {
			return nil, fmt.Errorf("invalid GUID %q: %w", value, err)
		}
		return fieldEquals("ObjectGUID", guid), nil
	case IdentitySID:
		if err := adldap.NewSIDHandler().ValidateSIDString(value); err != nil {
			return nil, err
		}
		return fieldEquals("ObjectSid", value), nil
	case IdentityUPN:
		return fieldEquals("UserPrincipalName", value), nil
	case IdentitySAMAccountName:
		return fieldEquals("SAMAccountName", value), nil
	}
	return nil, fmt.Errorf("unknown identity kind %q", kind)
}

func fieldEquals(field string, v any) query.Predicate {
	return func(x query.Expr) query.Expr { return x.Field(field).Eq(v) }
}

// Enabled matches accounts without the ACCOUNTDISABLE flag.
func Enabled(x query.Expr) query.Expr {
	return x.Field("UserAccountControl").BitAnd(int(UACAccountDisabled)).Not()
}

// Disabled matches accounts with the ACCOUNTDISABLE flag.
func Disabled(x query.Expr) query.Expr {
	return x.Field("UserAccountControl").BitAnd(int(UACAccountDisabled))
}

// MemberOfGroup matches entries in group, directly or through nesting.
func MemberOfGroup(groupDN string) query.Predicate {
	return func(x query.Expr) query.Expr { return x.Field("MemberOf").InChain(groupDN) }
}

// GroupScopeIs matches groups of scope.
func GroupScopeIs(scope GroupScope) (query.Predicate, error) {
	flag, ok := GroupScopeFlag(scope)
	if !ok {
		return nil, fmt.Errorf("unknown group scope %q", scope)
	}
	return func(x query.Expr) query.Expr { return x.Field("GroupType").BitAnd(int(flag)) }, nil
}

// securityBit is GroupTypeFlagSecurity as the unsigned value filters expect.
const securityBit int64 = 0x80000000

// GroupCategoryIs matches security or distribution groups.
func GroupCategoryIs(category GroupCategory) (query.Predicate, error) {
	security := func(x query.Expr) query.Expr {
		return x.Field("GroupType").BitAnd(securityBit)
	}
	switch category {
	case GroupCategorySecurity:
		return security, nil
	case GroupCategoryDistribution:
		return func(x query.Expr) query.Expr { return security(x).Not() }, nil
	}
	return nil, fmt.Errorf("unknown group category %q", category)
}
