// ABOUTME: Tests for session token generation
// ABOUTME: Validates length, charset, and uniqueness across many generations

package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestGenerate_Format(t *testing.T) {
	tok, err := Generate()
	require.NoError(t, err)
	assert.Regexp(t, hexToken, tok)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}
