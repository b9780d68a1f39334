package provisioner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePassword(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		pw, err := GeneratePassword(16)
		require.NoError(t, err)

		assert.Len(t, pw, 16)
		assert.True(t, strings.ContainsAny(pw, passwordLower), "missing lowercase: %s", pw)
		assert.True(t, strings.ContainsAny(pw, passwordUpper), "missing uppercase: %s", pw)
		assert.True(t, strings.ContainsAny(pw, passwordDigits), "missing digit: %s", pw)

		for _, ch := range pw {
			assert.Contains(t, passwordAlphabet, string(ch))
		}

		seen[pw] = true
	}

	// 1000 draws from a 62^16 space should never collide
	assert.Len(t, seen, 1000)
}

func TestGeneratePasswordEnforcesMinimumLength(t *testing.T) {
	for _, length := range []int{0, 8, 15, -1} {
		pw, err := GeneratePassword(length)
		require.NoError(t, err)
		assert.Len(t, pw, MinPasswordLength)
	}
}

func TestGeneratePasswordLongerLengths(t *testing.T) {
	pw, err := GeneratePassword(32)
	require.NoError(t, err)
	assert.Len(t, pw, 32)
}
