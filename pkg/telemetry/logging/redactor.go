package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pattern is a named value pattern and its replacement.
type Pattern struct {
	Name        string
	Pattern     string
	Replacement string
}

// Redactor removes secrets and personal data from log attributes.
type Redactor struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternEmail       = "email"
	PatternCreditCard  = "credit_card"
	PatternIBAN        = "iban"
)

var defaultPatterns = []Pattern{
	{Name: PatternAPIKey, Pattern: `sk-[a-zA-Z0-9]{8,}`, Replacement: "sk-***"},
	{Name: PatternBearerToken, Pattern: `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, Replacement: "Bearer ***"},
	{Name: PatternEmail, Pattern: `[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`, Replacement: "***@$1"},
	{Name: PatternCreditCard, Pattern: `\b(?:\d[ -]?){12,15}\d\b`, Replacement: "****-****-****-****"},
	{Name: PatternIBAN, Pattern: `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`, Replacement: "IBAN-***"},
}

// sensitiveKeys are substrings of attribute keys whose values are always
// hidden.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "private_key", "ssh_key", "account_number", "ssn",
}

// NewRedactor compiles the built-in patterns plus custom ones.
func NewRedactor(custom []Pattern) (*Redactor, error) {
	r := &Redactor{}
	for _, p := range append(append([]Pattern(nil), defaultPatterns...), custom...) {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, compiledPattern{name: p.Name, regex: regex, replacement: p.Replacement})
	}
	return r, nil
}

// RedactString applies every value pattern to s.
func (r *Redactor) RedactString(s string) string {
	if s == "" {
		return s
	}
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// RedactAttr hides sensitive keys and scrubs string values. Groups are
// processed recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, "***")
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]any, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Group(a.Key, out...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// IsSensitiveKey reports whether values under key must never be logged.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
