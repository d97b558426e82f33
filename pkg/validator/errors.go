package validator

import "fmt"

// RuleEvaluationError indicates a single check could not be evaluated. It is
// contained by the engine and surfaced as a warning.
type RuleEvaluationError struct {
	Rule  string
	Cause error
}

// Error returns the error message.
func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s evaluation failed: %v", e.Rule, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RuleEvaluationError) Unwrap() error {
	return e.Cause
}
