package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"mercator-hq/gatekeeper/pkg/audit"
)

// HashContent returns the hex SHA-256 of content, or "" for empty content.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashRecord computes the content hash of r. The ContentHash field itself is
// excluded, so the result can be compared against a stored hash.
func HashRecord(r *audit.Record) (string, error) {
	c := *r
	c.ContentHash = ""
	data, err := json.Marshal(&c)
	if err != nil {
		return "", err
	}
	return HashContent(data), nil
}

// Verify reports whether r still matches its stored content hash.
func Verify(r *audit.Record) bool {
	if r.ContentHash == "" {
		return false
	}
	h, err := HashRecord(r)
	return err == nil && h == r.ContentHash
}
