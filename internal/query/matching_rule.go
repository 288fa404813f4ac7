package query

// MatchingRule is the OID of an extensible-match rule.
type MatchingRule string

// Standard matching rules (RFC 4517).
const (
	RuleObjectIdentifier    MatchingRule = "2.5.13.0"
	RuleDistinguishedName   MatchingRule = "2.5.13.1"
	RuleCaseIgnore          MatchingRule = "2.5.13.2"
	RuleNumericString       MatchingRule = "2.5.13.8"
	RuleCaseIgnoreList      MatchingRule = "2.5.13.11"
	RuleInteger             MatchingRule = "2.5.13.14"
	RuleBitString           MatchingRule = "2.5.13.16"
	RuleTelephoneNumber     MatchingRule = "2.5.13.20"
	RulePresentationAddress MatchingRule = "2.5.13.22"
	RuleUniqueMember        MatchingRule = "2.5.13.23"
	RuleProtocolInformation MatchingRule = "2.5.13.24"
	RuleGeneralizedTime     MatchingRule = "2.5.13.27"
	RuleCaseExactIA5        MatchingRule = "1.3.6.1.4.1.1466.109.114.1"
	RuleCaseIgnoreIA5       MatchingRule = "1.3.6.1.4.1.1466.109.114.2"
)

// Active Directory matching rules.
const (
	// RuleBitwiseAnd matches when all bits of the value are set.
	RuleBitwiseAnd MatchingRule = "1.2.840.113556.1.4.803"
	// RuleBitwiseOr matches when any bit of the value is set.
	RuleBitwiseOr MatchingRule = "1.2.840.113556.1.4.804"
	// RuleInChain walks the ancestry of a DN-valued attribute, so memberOf
	// matches nested group membership.
	RuleInChain MatchingRule = "1.2.840.113556.1.4.1941"
)

var ruleNames = map[MatchingRule]string{
	RuleObjectIdentifier:    "objectIdentifierMatch",
	RuleDistinguishedName:   "distinguishedNameMatch",
	RuleCaseIgnore:          "caseIgnoreMatch",
	RuleNumericString:       "numericStringMatch",
	RuleCaseIgnoreList:      "caseIgnoreListMatch",
	RuleInteger:             "integerMatch",
	RuleBitString:           "bitStringMatch",
	RuleTelephoneNumber:     "telephoneNumberMatch",
	RulePresentationAddress: "presentationAddressMatch",
	RuleUniqueMember:        "uniqueMemberMatch",
	RuleProtocolInformation: "protocolInformationMatch",
	RuleGeneralizedTime:     "generalizedTimeMatch",
	RuleCaseExactIA5:        "caseExactIA5Match",
	RuleCaseIgnoreIA5:       "caseIgnoreIA5Match",
	RuleBitwiseAnd:          "LDAP_MATCHING_RULE_BIT_AND",
	RuleBitwiseOr:           "LDAP_MATCHING_RULE_BIT_OR",
	RuleInChain:             "LDAP_MATCHING_RULE_IN_CHAIN",
}

// Name returns the descriptive name of the rule, or the OID when it has none.
func (r MatchingRule) Name() string {
	if n, ok := ruleNames[r]; ok {
		return n
	}
	return string(r)
}

func (r MatchingRule) String() string { return string(r) }
