// Package auth - identifier.go generates the opaque access identifiers students
// and staff exchange for session tokens.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// IdentifierLength is the length of the random part of an identifier in bytes
const IdentifierLength = 24

// GenerateIdentifier creates a new random URL-safe identifier. prefix, when set,
// is joined with a dash so operators can tell cohorts apart.
func GenerateIdentifier(prefix string) (string, error) {
	randomBytes := make([]byte, IdentifierLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	randomPart := base64.RawURLEncoding.EncodeToString(randomBytes)
	if prefix == "" {
		return randomPart, nil
	}
	return fmt.Sprintf("%s-%s", prefix, randomPart), nil
}
