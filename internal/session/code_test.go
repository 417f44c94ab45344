package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "unexpected char %q", ch)
		}
		seen[code] = true
	}
	// Not a strict uniqueness guarantee, but 100 collisions would mean the
	// generator is broken.
	assert.Greater(t, len(seen), 90)
}

func TestNormalizeCode(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"AB3F91", "AB3F91"},
		{"ab3f91", "AB3F91"},
		{"AB3-F91", "AB3F91"},
		{"ab3-f91", "AB3F91"},
		{"  ab3 f91 ", "AB3F91"},
	} {
		assert.Equal(t, tc.want, NormalizeCode(tc.in), "input %q", tc.in)
	}
}

func TestFormatCode(t *testing.T) {
	assert.Equal(t, "AB3-F91", FormatCode("AB3F91"))
	// Non-canonical lengths pass through untouched.
	assert.Equal(t, "AB3", FormatCode("AB3"))
}
