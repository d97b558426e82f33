package validator

import (
	"time"

	"mercator-hq/gatekeeper/pkg/action"
)

// Severity ranks a rule violation.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Weight returns the compliance score penalty for the severity.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 0.05
	case SeverityMedium:
		return 0.15
	case SeverityHigh:
		return 0.30
	case SeverityCritical:
		return 0.50
	default:
		// Unknown severities are treated as critical.
		return 0.50
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 4
	}
}

// Violation is a single broken rule.
type Violation struct {
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ComplianceReport is the result of validating one action.
type ComplianceReport struct {
	Approved        bool        `json:"approved"`
	Violations      []Violation `json:"violations"`
	Warnings        []string    `json:"warnings"`
	RulesChecked    []string    `json:"rules_checked"`
	ComplianceScore float64     `json:"compliance_score"`
	Agent           string      `json:"agent"`
	Timestamp       time.Time   `json:"timestamp"`
	RuleSetVersion  string      `json:"rule_set_version"`
}

// HasWarnings reports whether the report carries any warning.
func (r *ComplianceReport) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Validator evaluates an action against the active rules.
type Validator interface {
	Validate(a *action.Action, agent string) *ComplianceReport
}
