package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("rules.source", "unknown source")

	expected := "config error in rules.source: unknown source"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("connection refused")
	err := NewCommandError("stats", underlyingErr)

	if err.Error() != "command stats failed: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestVerdictError(t *testing.T) {
	err := &VerdictError{DecisionID: "dec-1", Verdict: "denied"}
	if err.Error() != "decision dec-1: denied" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "generic", err: errors.New("boom"), want: ExitError},
		{name: "config", err: NewConfigError("f", "m"), want: ExitConfigError},
		{name: "wrapped config", err: fmt.Errorf("load: %w", NewConfigError("f", "m")), want: ExitConfigError},
		{name: "verdict", err: &VerdictError{Verdict: "escalate"}, want: ExitNotApproved},
		{name: "command wrapping verdict", err: NewCommandError("decide", &VerdictError{Verdict: "denied"}), want: ExitNotApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
