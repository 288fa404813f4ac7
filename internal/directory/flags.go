package directory

// userAccountControl flags.
const (
	UACAccountDisabled         int32 = 0x00000002
	UACHomeDirRequired         int32 = 0x00000008
	UACLockout                 int32 = 0x00000010
	UACPasswordNotRequired     int32 = 0x00000020
	UACPasswordCantChange      int32 = 0x00000040
	UACEncryptedTextPwdAllowed int32 = 0x00000080
	UACTempDuplicateAccount    int32 = 0x00000100
	UACNormalAccount           int32 = 0x00000200
	UACInterdomainTrustAccount int32 = 0x00000800
	UACWorkstationTrustAccount int32 = 0x00001000
	UACServerTrustAccount      int32 = 0x00002000
	UACPasswordNeverExpires    int32 = 0x00010000
	UACMNSLogonAccount         int32 = 0x00020000
	UACSmartCardRequired       int32 = 0x00040000
	UACTrustedForDelegation    int32 = 0x00080000
	UACNotDelegated            int32 = 0x00100000
	UACUseDesKeyOnly           int32 = 0x00200000
	UACDontRequirePreauth      int32 = 0x00400000
	UACPasswordExpired         int32 = 0x00800000
	UACTrustedToAuthForDeleg   int32 = 0x01000000
)

// groupType flags.
const (
	GroupTypeFlagGlobal      int32 = 0x00000002
	GroupTypeFlagDomainLocal int32 = 0x00000004
	GroupTypeFlagUniversal   int32 = 0x00000008
	GroupTypeFlagSecurity    int32 = -2147483648 // 0x80000000 as signed int32
)

// GroupScope is the replication scope of a group.
type GroupScope string

const (
	GroupScopeGlobal      GroupScope = "global"
	GroupScopeDomainLocal GroupScope = "domainlocal"
	GroupScopeUniversal   GroupScope = "universal"
)

// GroupCategory distinguishes security groups from distribution lists.
type GroupCategory string

const (
	GroupCategorySecurity     GroupCategory = "security"
	GroupCategoryDistribution GroupCategory = "distribution"
)

// GroupScopeFlag returns the groupType bit for scope.
func GroupScopeFlag(scope GroupScope) (int32, bool) {
	switch scope {
	case GroupScopeGlobal:
		return GroupTypeFlagGlobal, true
	case GroupScopeDomainLocal:
		return GroupTypeFlagDomainLocal, true
	case GroupScopeUniversal:
		return GroupTypeFlagUniversal, true
	}
	return 0, false
}

// CalculateGroupType combines scope and category into a groupType value.
func CalculateGroupType(scope GroupScope, category GroupCategory) int32 {
	groupType, ok := GroupScopeFlag(scope)
	if !ok {
		groupType = GroupTypeFlagGlobal
	}
	if category == GroupCategorySecurity {
		groupType |= GroupTypeFlagSecurity
	}
	return groupType
}

// ParseGroupType extracts scope and category from a groupType value.
func ParseGroupType(groupType int32) (GroupScope, GroupCategory) {
	var scope GroupScope
	switch {
	case groupType&GroupTypeFlagGlobal != 0:
		scope = GroupScopeGlobal
	case groupType&GroupTypeFlagDomainLocal != 0:
		scope = GroupScopeDomainLocal
	case groupType&GroupTypeFlagUniversal != 0:
		scope = GroupScopeUniversal
	default:
		scope = GroupScopeGlobal
	}

	category := GroupCategoryDistribution
	if groupType&GroupTypeFlagSecurity != 0 {
		category = GroupCategorySecurity
	}
	return scope, category
}

// HasFlag reports whether all bits of flag are set in value.
func HasFlag(value, flag int32) bool {
	return value&flag == flag
}
