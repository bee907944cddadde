// Package privacy keeps raw user content out of persisted records. Audit
// entries and failed-request records only ever see the output of this
// package: salted truncated hashes for identifiers and free text, and
// sanitized copies of parameter maps.
package privacy

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

const (
	// hashLen is the number of hex characters kept from a digest. Enough
	// to correlate records, too short to be worth brute-forcing back.
	hashLen = 16

	// maxStringLen caps string parameter values persisted in sanitized form.
	maxStringLen = 100

	redactedPlaceholder = "[REDACTED]"
)

// sensitiveFields are parameter names whose raw values must never be
// persisted, regardless of which function they belong to. Free-text queries
// count: they carry user content the same way a message body does.
var sensitiveFields = map[string]struct{}{
	"query":   {},
	"text":    {},
	"content": {},
	"message": {},
}

// Hasher produces salted, truncated BLAKE3 hashes.
type Hasher struct {
	salt string
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns the first 16 hex characters of blake3(salt || value).
// Empty input hashes to the empty string so optional fields stay absent.
func (h *Hasher) Hash(value string) string {
	if value == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(h.salt + value))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// SanitizeParams returns a copy of params safe to persist: sensitive string
// values are replaced with their salted hash (keeping them correlatable with
// failed-request records), non-string sensitive values with a placeholder,
// and long strings are truncated. The input map is not modified.
func (h *Hasher) SanitizeParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for key, value := range params {
		if _, sensitive := sensitiveFields[key]; sensitive {
			if s, ok := value.(string); ok {
				out[key] = h.Hash(s)
			} else {
				out[key] = redactedPlaceholder
			}
			continue
		}
		if s, ok := value.(string); ok && len(s) > maxStringLen {
			out[key] = s[:maxStringLen] + "..."
			continue
		}
		out[key] = value
	}
	return out
}
