package ldap

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

var sidPattern = regexp.MustCompile(`^S-\d+-\d+(-\d+)*$`)

// SIDHandler converts objectSid values.
// Active Directory stores SIDs in binary; filters and users see S-1-5-21-... strings.
type SIDHandler struct{}

// NewSIDHandler creates a new SID handler instance.
func NewSIDHandler() *SIDHandler {
	return &SIDHandler{}
}

// ConvertBinarySIDToString converts a binary SID to its string representation.
func (s *SIDHandler) ConvertBinarySIDToString(binarySID []byte) (string, error) {
	if len(binarySID) < 8 {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(binarySID))
	}
	// Revision, sub-authority count, six bytes of authority, then four bytes
	// per sub-authority.
	if want := 8 + 4*int(binarySID[1]); len(binarySID) != want {
		return "", fmt.Errorf("invalid binary SID length: expected %d, got %d", want, len(binarySID))
	}
	sid := objectsid.Decode(binarySID)
	return sid.String(), nil
}

// ValidateSIDString validates that a string is a properly formatted SID.
func (s *SIDHandler) ValidateSIDString(sidString string) error {
	if sidString == "" {
		return fmt.Errorf("SID string cannot be empty")
	}
	if !sidPattern.MatchString(sidString) {
		return fmt.Errorf("invalid SID format: %s", sidString)
	}
	return nil
}

// IsWellKnownSID checks if the SID is one of the fixed authority or service SIDs.
func (s *SIDHandler) IsWellKnownSID(sidString string) bool {
	wellKnownPrefixes := []string{
		"S-1-0",    // Null Authority
		"S-1-1",    // World Authority
		"S-1-2",    // Local Authority
		"S-1-3",    // Creator Authority
		"S-1-4",    // Non-unique Authority
		"S-1-5-18", // Local System
		"S-1-5-19", // Local Service
		"S-1-5-20", // Network Service
		"S-1-5-32", // Builtin domain
	}
	for _, prefix := range wellKnownPrefixes {
		if sidString == prefix || strings.HasPrefix(sidString, prefix+"-") {
			return true
		}
	}
	return false
}

// DomainSID returns the domain part of an account SID, dropping the RID.
func (s *SIDHandler) DomainSID(sidString string) (string, error) {
	if err := s.ValidateSIDString(sidString); err != nil {
		return "", err
	}
	i := strings.LastIndex(sidString, "-")
	if !strings.HasPrefix(sidString, "S-1-5-21-") || strings.Count(sidString, "-") < 7 {
		return "", fmt.Errorf("%s is not a domain account SID", sidString)
	}
	return sidString[:i], nil
}
