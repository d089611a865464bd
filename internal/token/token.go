// ABOUTME: Opaque session token generation from crypto/rand
// ABOUTME: Tokens are hex-encoded and safe to use in URLs and filenames

package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Length is the byte length of raw token material (128 bits).
const Length = 16

// Generate returns a new opaque session token: 16 random bytes, hex encoded.
// The result is 32 lowercase hex characters, safe for URLs and filenames.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
