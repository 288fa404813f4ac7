package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// User is an Active Directory user account.
type User struct {
	ObjectGUID        uuid.UUID
	DistinguishedName string
	ObjectSid         string

	SAMAccountName    string
	UserPrincipalName string
	CommonName        string
	DisplayName       string
	GivenName         string
	Surname           string
	Description       string

	EmailAddress string
	Title        string
	Department   string
	Company      string
	Manager      string
	EmployeeID   string
	Office       string

	UserAccountControl int
	MemberOf           []string

	WhenCreated     time.Time
	WhenChanged     time.Time
	LastLogon       *time.Time
	PasswordLastSet *time.Time
	AccountExpires  *time.Time
}

// Enabled reports whether the account is not disabled.
func (u User) Enabled() bool {
	return !HasFlag(int32(u.UserAccountControl), UACAccountDisabled)
}

// PasswordNeverExpires reports the DONT_EXPIRE_PASSWORD flag.
func (u User) PasswordNeverExpires() bool {
	return HasFlag(int32(u.UserAccountControl), UACPasswordNeverExpires)
}

// Group is an Active Directory group.
type Group struct {
	ObjectGUID        uuid.UUID
	DistinguishedName string
	ObjectSid         string

	Name           string
	SAMAccountName string
	Description    string
	Mail           string
	ManagedBy      string
	GroupType      int
	Member         []string
	MemberOf       []string

	WhenCreated time.Time
	WhenChanged time.Time

	// Members are the users in the group, including nested membership.
	Members *query.Query[User]
}

// Scope returns the group scope from GroupType.
func (g Group) Scope() GroupScope {
	scope, _ := ParseGroupType(int32(g.GroupType))
	return scope
}

// Category returns the group category from GroupType.
func (g Group) Category() GroupCategory {
	_, category := ParseGroupType(int32(g.GroupType))
	return category
}

// OrganizationalUnit is an organizationalUnit container.
type OrganizationalUnit struct {
	ObjectGUID        uuid.UUID
	DistinguishedName string

	Name        string
	Description string
	ManagedBy   string

	WhenCreated time.Time
	WhenChanged time.Time

	// Children are the OUs directly below this one.
	Children *query.Query[OrganizationalUnit]
	// Users are the users anywhere below this OU.
	Users *query.Query[User]
}

var (
	UserMapping  *query.Mapping
	GroupMapping *query.Mapping
	OUMapping    *query.Mapping
)

func init() {
	str := query.Scalar(query.KindString)
	dn := query.Scalar(query.KindDN)
	guid := query.Scalar(query.KindGUID)
	sid := query.Scalar(query.KindSID)
	when := query.Scalar(query.KindTime)
	filetime := query.Optional(query.KindFileTime)

	UserMapping = query.NewMapping("User", "user",
		query.Field("ObjectGUID", "objectGUID", guid),
		query.Field("DistinguishedName", query.DNAttribute, dn),
		query.Field("ObjectSid", "objectSid", sid),
		query.Field("SAMAccountName", "sAMAccountName", str),
		query.Field("UserPrincipalName", "userPrincipalName", str),
		query.Field("CommonName", "cn", str),
		query.Field("DisplayName", "displayName", str),
		query.Field("GivenName", "givenName", str),
		query.Field("Surname", "sn", str),
		query.Field("Description", "description", str),
		query.Field("EmailAddress", "mail", str),
		query.Field("Title", "title", str),
		query.Field("Department", "department", str),
		query.Field("Company", "company", str),
		query.Field("Manager", "manager", dn),
		query.Field("EmployeeID", "employeeID", str),
		query.Field("Office", "physicalDeliveryOfficeName", str),
		query.Field("UserAccountControl", "userAccountControl", query.Scalar(query.KindInt)),
		query.Field("MemberOf", "memberOf", query.List(query.KindDN)),
		query.Field("WhenCreated", "whenCreated", when),
		query.Field("WhenChanged", "whenChanged", when),
		query.Field("LastLogon", "lastLogonTimestamp", filetime),
		query.Field("PasswordLastSet", "pwdLastSet", filetime),
		query.Field("AccountExpires", "accountExpires", filetime),
	)
	// objectClass=user also matches computer accounts.
	UserMapping.Filter = query.Attr("objectClass", str).Ne("computer").Node()

	GroupMapping = query.NewMapping("Group", "group",
		query.Field("ObjectGUID", "objectGUID", guid),
		query.Field("DistinguishedName", query.DNAttribute, dn),
		query.Field("ObjectSid", "objectSid", sid),
		query.Field("Name", "cn", str),
		query.Field("SAMAccountName", "sAMAccountName", str),
		query.Field("Description", "description", str),
		query.Field("Mail", "mail", str),
		query.Field("ManagedBy", "managedBy", dn),
		query.Field("GroupType", "groupType", query.Scalar(query.KindInt)),
		query.Field("Member", "member", query.List(query.KindDN)),
		query.Field("MemberOf", "memberOf", query.List(query.KindDN)),
		query.Field("WhenCreated", "whenCreated", when),
		query.Field("WhenChanged", "whenChanged", when),
		query.Collection[User]("Members", UserMapping, query.Referencing("memberOf", query.RuleInChain)),
	)

	OUMapping = query.NewMapping("OrganizationalUnit", "organizationalUnit",
		query.Field("ObjectGUID", "objectGUID", guid),
		query.Field("DistinguishedName", query.DNAttribute, dn),
		query.Field("Name", "ou", str),
		query.Field("Description", "description", str),
		query.Field("ManagedBy", "managedBy", dn),
		query.Field("WhenCreated", "whenCreated", when),
		query.Field("WhenChanged", "whenChanged", when),
	)
	// Children refers back to OUMapping, so it is added once the mapping exists.
	OUMapping.Fields = append(OUMapping.Fields,
		query.Collection[OrganizationalUnit]("Children", OUMapping, query.Beneath(query.ScopeOneLevel)),
		query.Collection[User]("Users", UserMapping, query.Beneath(query.ScopeSubtree)),
	)
}
