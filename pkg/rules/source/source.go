package source

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/gatekeeper/pkg/rules"
)

// Source provides the rule set. It is read once at start-up.
type Source interface {
	// LoadRules loads and validates the rule set.
	LoadRules(ctx context.Context) (*rules.RuleSet, error)

	// Describe returns a short human-readable location for logs.
	Describe() string
}

// LoadError indicates a rule source could not produce a rule set.
type LoadError struct {
	Source string
	Cause  error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load rules from %s: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Result reports where the active rule set came from.
type Result struct {
	RuleSet *rules.RuleSet

	// Fallback is true when the compiled-in rule set replaced a failed source.
	Fallback bool

	// Err is the source error that caused the fallback, if any.
	Err error
}

// LoadWithFallback loads rules from src. If the source fails and strict is false,
// the compiled-in default rule set is returned with Fallback set. If strict is
// true the error is returned and callers must fail closed.
func LoadWithFallback(ctx context.Context, src Source, strict bool, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if src == nil {
		logger.Info("no rule source configured, using compiled-in rules",
			"version", rules.DefaultVersion,
		)
		return Result{RuleSet: rules.Default()}, nil
	}

	rs, err := src.LoadRules(ctx)
	if err == nil && rs == nil {
		err = fmt.Errorf("source returned no rule set")
	}
	if err == nil {
		logger.Info("rules loaded",
			"source", src.Describe(),
			"version", rs.Version(),
			"rule_count", rs.Len(),
			"digest", rs.Digest(),
		)
		if missing := rs.Missing(); len(missing) > 0 {
			logger.Warn("rule set does not define every enforced rule; checks that need them will report evaluation failures",
				"source", src.Describe(),
				"missing", missing,
			)
		}
		return Result{RuleSet: rs}, nil
	}

	loadErr := &LoadError{Source: src.Describe(), Cause: err}
	if strict {
		logger.Error("rule source unavailable in strict mode, failing closed",
			"source", src.Describe(),
			"error", err,
		)
		return Result{Err: loadErr}, loadErr
	}

	logger.Warn("rule source unavailable, falling back to compiled-in rules",
		"source", src.Describe(),
		"error", err,
		"version", rules.DefaultVersion,
	)
	return Result{RuleSet: rules.Default(), Fallback: true, Err: loadErr}, nil
}
