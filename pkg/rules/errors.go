package rules

import "fmt"

// ValidationError indicates a rule set failed structural validation.
type ValidationError struct {
	Errors []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("rule set validation error: %s", e.Errors[0])
	}
	return fmt.Sprintf("rule set: %d validation errors: %v", len(e.Errors), e.Errors)
}

// DecodeError indicates a rule document could not be decoded.
type DecodeError struct {
	Path  string
	Cause error
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to decode rule document: %v", e.Cause)
	}
	return fmt.Sprintf("failed to decode rule document %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// LookupError reports a rule that is missing from the rule set or carries a
// value of the wrong kind.
type LookupError struct {
	Rule string
	Want ValueKind

	// Got is empty when the rule is missing.
	Got ValueKind
}

// Error returns the error message.
func (e *LookupError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("rule %q is not defined", e.Rule)
	}
	return fmt.Sprintf("rule %q is a %s value, want %s", e.Rule, e.Got, e.Want)
}
