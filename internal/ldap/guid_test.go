package ldap

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GUID 01234567-89ab-cdef-0123-456789abcdef as stored in objectGUID.
var adGUIDBytes = []byte{
	0x67, 0x45, 0x23, 0x01, // Data1: little-endian
	0xab, 0x89, // Data2: little-endian
	0xef, 0xcd, // Data3: little-endian
	0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, // Data4: unchanged
}

const adGUIDString = "01234567-89ab-cdef-0123-456789abcdef"

func TestGUIDFromBytes(t *testing.T) {
	id, err := GUIDFromBytes(adGUIDBytes)
	require.NoError(t, err)
	assert.Equal(t, adGUIDString, id.String())

	_, err = GUIDFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid GUID byte length")
}

func TestGUIDToBytes(t *testing.T) {
	id := uuid.MustParse(adGUIDString)
	assert.Equal(t, adGUIDBytes, GUIDToBytes(id))
}

func TestGUID_RoundTrip(t *testing.T) {
	for range 10 {
		id := uuid.New()
		got, err := GUIDFromBytes(GUIDToBytes(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestParseGUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "hyphenated", input: adGUIDString},
		{name: "upper case", input: "01234567-89AB-CDEF-0123-456789ABCDEF"},
		{name: "braced", input: "{" + adGUIDString + "}"},
		{name: "compact", input: "0123456789abcdef0123456789abcdef"},
		{name: "surrounding whitespace", input: "  " + adGUIDString + " "},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "01234567-89ab", wantErr: true},
		{name: "not hex", input: "zzzzzzzz-89ab-cdef-0123-456789abcdef", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGUID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.False(t, IsValidGUID(tt.input))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, adGUIDString, got.String())
			assert.True(t, IsValidGUID(tt.input))
		})
	}
}

func BenchmarkGUIDFromBytes(b *testing.B) {
	for b.Loop() {
		_, _ = GUIDFromBytes(adGUIDBytes)
	}
}
