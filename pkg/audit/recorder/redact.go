package recorder

import (
	"strings"
)

// DefaultRedactKeys are parameter names whose values are never stored in
// plaintext.
var DefaultRedactKeys = []string{
	"password", "secret", "token", "api_key", "apikey", "private_key",
	"credentials", "ssn", "card_number", "authorization",
}

// RedactValue replaces a secret with its SHA-256, so equal secrets can still
// be correlated without being recoverable.
func RedactValue(v string) string {
	if v == "" {
		return ""
	}
	return "sha256:" + HashContent([]byte(v))
}

// TruncateString shortens s to maxLen bytes, appending "..." when there is
// room. maxLen <= 0 disables truncation.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// redactor masks sensitive keys and truncates long strings in parameter
// maps, recursing into nested maps and slices.
type redactor struct {
	keys   map[string]bool
	maxLen int
}

func newRedactor(keys []string, maxLen int) *redactor {
	r := &redactor{keys: make(map[string]bool, len(keys)), maxLen: maxLen}
	for _, k := range keys {
		r.keys[strings.ToLower(k)] = true
	}
	return r
}

func (r *redactor) sensitive(key string) bool {
	return r.keys[strings.ToLower(key)]
}

func (r *redactor) params(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if r.sensitive(k) {
			if s, ok := v.(string); ok {
				out[k] = RedactValue(s)
			} else {
				out[k] = "[REDACTED]"
			}
			continue
		}
		out[k] = r.value(v)
	}
	return out
}

func (r *redactor) value(v any) any {
	switch t := v.(type) {
	case string:
		return TruncateString(t, r.maxLen)
	case map[string]any:
		return r.params(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = r.value(item)
		}
		return out
	default:
		return v
	}
}
