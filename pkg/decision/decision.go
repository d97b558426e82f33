package decision

import (
	"time"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/validator"
)

// Verdict is the final decision on an action. Callers must treat VerdictError
// as a denial.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictDenied   Verdict = "denied"
	VerdictEscalate Verdict = "escalate"
	VerdictError    Verdict = "error"
)

// Verdicts returns every verdict in a stable order.
func Verdicts() []Verdict {
	return []Verdict{VerdictApproved, VerdictDenied, VerdictEscalate, VerdictError}
}

// Path is the route a decision took through the levels.
type Path string

const (
	// PathFast runs only Level 1 and Level 5.
	PathFast Path = "fast"

	// PathFull runs the triggered advisory levels before synthesis.
	PathFull Path = "full"

	// PathShortCircuit is taken when Level 1 reports a violation.
	PathShortCircuit Path = "short_circuit"
)

// Level numbers.
const (
	LevelRules     = 1
	LevelContext   = 2
	LevelTruth     = 3
	LevelRisk      = 4
	LevelSynthesis = 5
)

// LevelName returns the display name of a level.
func LevelName(level int) string {
	switch level {
	case LevelRules:
		return "rule_validation"
	case LevelContext:
		return "context"
	case LevelTruth:
		return "truth"
	case LevelRisk:
		return "risk"
	case LevelSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// Status is the outcome of a level.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// LevelOutcome records what happened at one level.
type LevelOutcome struct {
	Level     int            `json:"level"`
	Name      string         `json:"name"`
	Triggered bool           `json:"triggered"`
	Executed  bool           `json:"executed"`
	Status    Status         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Decision is the verdict for one action. It is created per request and owned
// by the caller.
type Decision struct {
	ID            string                      `json:"id"`
	Action        *action.Action              `json:"action"`
	Agent         string                      `json:"agent"`
	FinalDecision Verdict                     `json:"final_decision"`
	Confidence    float64                     `json:"confidence"`
	Path          Path                        `json:"path"`
	Levels        []LevelOutcome              `json:"levels"`
	ReasoningPath []string                    `json:"reasoning_path"`
	Warnings      []string                    `json:"warnings"`
	Compliance    *validator.ComplianceReport `json:"compliance,omitempty"`
	TotalDuration time.Duration               `json:"total_duration"`
	Timestamp     time.Time                   `json:"timestamp"`
}

// Level returns the outcome for level n.
func (d *Decision) Level(n int) (LevelOutcome, bool) {
	for _, l := range d.Levels {
		if l.Level == n {
			return l, true
		}
	}
	return LevelOutcome{}, false
}

// Allowed reports whether the action may proceed without further review.
func (d *Decision) Allowed() bool {
	return d.FinalDecision == VerdictApproved
}

// ExecutedLevels returns the numbers of the levels that executed.
func (d *Decision) ExecutedLevels() []int {
	var out []int
	for _, l := range d.Levels {
		if l.Executed {
			out = append(out, l.Level)
		}
	}
	return out
}

// ActionType returns the action type, or "" when there is no action.
func (d *Decision) ActionType() string {
	if d.Action == nil {
		return ""
	}
	return d.Action.Type
}

// RuleSetVersion returns the version of the rules that produced the
// compliance report.
func (d *Decision) RuleSetVersion() string {
	if d.Compliance == nil {
		return ""
	}
	return d.Compliance.RuleSetVersion
}

// Summary is a compact view of a decision kept in the recent history.
type Summary struct {
	ID            string    `json:"id"`
	Agent         string    `json:"agent"`
	ActionType    string    `json:"action_type"`
	FinalDecision Verdict   `json:"final_decision"`
	Confidence    float64   `json:"confidence"`
	Path          Path      `json:"path"`
	Levels        []int     `json:"executed_levels"`
	Warnings      int       `json:"warnings"`
	DurationMs    float64   `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// Summarize returns the summary of d.
func (d *Decision) Summarize() Summary {
	return Summary{
		ID:            d.ID,
		Agent:         d.Agent,
		ActionType:    d.ActionType(),
		FinalDecision: d.FinalDecision,
		Confidence:    d.Confidence,
		Path:          d.Path,
		Levels:        d.ExecutedLevels(),
		Warnings:      len(d.Warnings),
		DurationMs:    float64(d.TotalDuration) / float64(time.Millisecond),
		Timestamp:     d.Timestamp,
	}
}
