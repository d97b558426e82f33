package validator

import (
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/rules"
)

// ruleActionRequired is the pseudo-rule violated by a nil action.
const ruleActionRequired = "action_required"

// Engine evaluates actions against an immutable rule set. It is safe for
// concurrent use.
type Engine struct {
	rules  *rules.RuleSet
	checks []check
	logger *slog.Logger
	now    func() time.Time
}

// New creates a rule engine for rs. rs must not be nil; use NewFailClosed when
// no rule set is available.
func New(rs *rules.RuleSet, logger *slog.Logger) *Engine {
	if rs == nil {
		panic("validator: nil rule set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:  rs,
		checks: defaultChecks(),
		logger: logger.With("component", "validator"),
		now:    time.Now,
	}
}

// RuleSet returns the rule set the engine enforces.
func (e *Engine) RuleSet() *rules.RuleSet {
	return e.rules
}

// Validate evaluates a against the rule set. agent overrides the action's own
// agent field when non-empty.
func (e *Engine) Validate(a *action.Action, agent string) *ComplianceReport {
	report := &ComplianceReport{
		Violations:     []Violation{},
		Warnings:       []string{},
		RulesChecked:   []string{},
		Timestamp:      e.now().UTC(),
		RuleSetVersion: e.rules.Version(),
	}

	if a == nil {
		report.Agent = agent
		report.Violations = append(report.Violations, Violation{
			Rule:     ruleActionRequired,
			Message:  "no action supplied",
			Severity: SeverityCritical,
		})
		finalize(report)
		return report
	}

	if agent == "" {
		agent = a.Agent
	}
	report.Agent = agent

	ev := &evaluation{
		action:  a,
		rules:   e.rules,
		report:  report,
		checked: make(map[string]struct{}),
	}

	for _, c := range e.checks {
		e.runCheck(ev, c)
	}

	finalize(report)

	e.logger.Debug("action validated",
		"action_id", a.ID,
		"action_type", a.Type,
		"agent", agent,
		"approved", report.Approved,
		"violations", len(report.Violations),
		"warnings", len(report.Warnings),
		"score", report.ComplianceScore,
	)

	return report
}

// runCheck evaluates one check, containing errors and panics as warnings.
func (e *Engine) runCheck(ev *evaluation, c check) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if c.applies != nil {
			relevant, applyErr := c.applies(ev)
			if applyErr != nil || !relevant {
				err = applyErr
				return
			}
		}
		ev.consult(c.rules...)
		err = c.eval(ev)
	}()

	if err != nil {
		evalErr := &RuleEvaluationError{Rule: c.name, Cause: err}
		ev.report.Warnings = append(ev.report.Warnings, evalErr.Error())
		e.logger.Warn("rule evaluation failed",
			"rule", c.name,
			"action_type", ev.action.Type,
			"error", err,
		)
	}
}

// finalize computes the score and approval from the violations.
func finalize(report *ComplianceReport) {
	score := 1.0
	for _, v := range report.Violations {
		score -= v.Severity.Weight()
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	report.ComplianceScore = score
	report.Approved = len(report.Violations) == 0
}
