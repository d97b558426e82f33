package orchestrator

import (
	"fmt"
	"time"

	"mercator-hq/gatekeeper/pkg/synthesis"
)

// Config tunes the escalation heuristic, level timeouts, and history size.
type Config struct {
	// LevelTimeout bounds each advisory collaborator call.
	LevelTimeout time.Duration

	// FullPathBudget bounds the whole advisory fan-out.
	FullPathBudget time.Duration

	// ReviewBandLow and ReviewBandHigh bound the compliance score band that
	// marks an action as an edge case.
	ReviewBandLow  float64
	ReviewBandHigh float64

	// SimpleActionTypes are read-only types eligible for the fast path.
	SimpleActionTypes []string

	// HighStakesActionTypes always take the full path and trigger Level 4.
	HighStakesActionTypes []string

	// MaxRulesChecked is the rules-checked count above which an action is an
	// edge case.
	MaxRulesChecked int

	// MaxParameters is the parameter count above which Level 2 triggers.
	MaxParameters int

	// ClaimKeywords trigger Level 3 when found in the action text.
	ClaimKeywords []string

	// HistorySize caps the recent-decision ring buffer.
	HistorySize int

	Synthesis synthesis.Config
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		LevelTimeout:          150 * time.Millisecond,
		FullPathBudget:        400 * time.Millisecond,
		ReviewBandLow:         0.90,
		ReviewBandHigh:        0.95,
		SimpleActionTypes:     []string{"query", "read", "list", "get", "search", "status", "describe"},
		HighStakesActionTypes: []string{"trade", "execute", "delete", "transfer", "modify"},
		MaxRulesChecked:       5,
		MaxParameters:         6,
		ClaimKeywords: []string{
			"guarantee", "guaranteed", "certain", "proven", "definitely", "risk-free",
			"always", "never", "100%", "verified", "studies show", "according to", "fact",
		},
		HistorySize: 1000,
		Synthesis:   synthesis.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LevelTimeout <= 0 {
		return fmt.Errorf("level timeout must be positive")
	}
	if c.FullPathBudget <= 0 {
		return fmt.Errorf("full path budget must be positive")
	}
	if c.ReviewBandLow < 0 || c.ReviewBandHigh > 1 || c.ReviewBandLow > c.ReviewBandHigh {
		return fmt.Errorf("review band [%g, %g] must lie within [0,1]", c.ReviewBandLow, c.ReviewBandHigh)
	}
	if c.MaxRulesChecked < 0 || c.MaxParameters < 0 {
		return fmt.Errorf("thresholds cannot be negative")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive")
	}
	return c.Synthesis.Validate()
}
