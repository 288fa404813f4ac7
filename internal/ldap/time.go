package ldap

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// fileTimeEpoch is the number of 100ns intervals between 1601 and 1970.
	fileTimeEpoch = 116444736000000000
	// FileTimeNever is used by accountExpires for accounts that never expire.
	FileTimeNever = math.MaxInt64

	ticksPerSecond = 10000000
)

// FileTimeToTime converts Windows FILETIME ticks, as stored in lastLogon or
// pwdLastSet. Zero and FileTimeNever mean "not set" and report false.
func FileTimeToTime(ticks int64) (time.Time, bool) {
	if ticks <= 0 || ticks == FileTimeNever {
		return time.Time{}, false
	}
	delta := ticks - fileTimeEpoch
	return time.Unix(delta/ticksPerSecond, (delta%ticksPerSecond)*100).UTC(), true
}

// TimeToFileTime converts t to FILETIME ticks.
func TimeToFileTime(t time.Time) int64 {
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond()/100) + fileTimeEpoch
}

var generalizedTimeLayouts = []string{
	"20060102150405Z0700",
	"200601021504Z0700",
	"2006010215Z0700",
}

// ParseGeneralizedTime parses an LDAP generalized time such as whenCreated.
// Fractional seconds and numeric offsets are accepted.
func ParseGeneralizedTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range generalizedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid generalized time %q", s)
}
