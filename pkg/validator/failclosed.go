package validator

import (
	"log/slog"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
)

// RuleSetUnavailable is the pseudo-rule reported by the fail-closed engine.
const RuleSetUnavailable = "rule_set_unavailable"

// FailClosedEngine denies every action. It stands in for the rule engine when
// no rule set could be loaded.
type FailClosedEngine struct {
	cause  error
	logger *slog.Logger
	now    func() time.Time
}

// NewFailClosed creates an engine that denies everything because of cause.
func NewFailClosed(cause error, logger *slog.Logger) *FailClosedEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailClosedEngine{
		cause:  cause,
		logger: logger.With("component", "validator"),
		now:    time.Now,
	}
}

// Cause returns the error that put the engine into fail-closed mode.
func (e *FailClosedEngine) Cause() error {
	return e.cause
}

// Validate denies a with a single critical violation.
func (e *FailClosedEngine) Validate(a *action.Action, agent string) *ComplianceReport {
	if agent == "" && a != nil {
		agent = a.Agent
	}

	msg := "rule set unavailable; all actions are denied"
	if e.cause != nil {
		msg = "rule set unavailable: " + e.cause.Error()
	}

	e.logger.Warn("denying action: rule set unavailable", "agent", agent)

	return &ComplianceReport{
		Approved: false,
		Violations: []Violation{{
			Rule:     RuleSetUnavailable,
			Message:  msg,
			Severity: SeverityCritical,
		}},
		Warnings:        []string{},
		RulesChecked:    []string{RuleSetUnavailable},
		ComplianceScore: 0.0,
		Agent:           agent,
		Timestamp:       e.now().UTC(),
		RuleSetVersion:  "",
	}
}
