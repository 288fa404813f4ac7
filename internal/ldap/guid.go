package ldap

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GUIDBytesLength is the size of an objectGUID value.
const GUIDBytesLength = 16

// Active Directory stores GUIDs mixed-endian: Data1, Data2 and Data3 are
// little-endian, Data4 is kept in order. Swapping is its own inverse.
func swapGUIDBytes(b []byte) []byte {
	out := make([]byte, GUIDBytesLength)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out
}

// GUIDFromBytes decodes an objectGUID attribute value.
func GUIDFromBytes(b []byte) (uuid.UUID, error) {
	if len(b) != GUIDBytesLength {
		return uuid.Nil, fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(b))
	}
	return uuid.FromBytes(swapGUIDBytes(b))
}

// GUIDToBytes encodes id in objectGUID byte order, as filters must match it.
func GUIDToBytes(id uuid.UUID) []byte {
	return swapGUIDBytes(id[:])
}

// ParseGUID accepts the hyphenated, compact and braced string forms.
func ParseGUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("GUID string cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid GUID format: %s", s)
	}
	return id, nil
}

// IsValidGUID reports whether s parses as a GUID.
func IsValidGUID(s string) bool {
	_, err := ParseGUID(s)
	return err == nil
}
