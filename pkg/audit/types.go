package audit

import (
	"context"
	"io"
	"time"

	"mercator-hq/gatekeeper/pkg/decision"
)

// Sink accepts completed decisions for durable logging. Implementations must
// never block a decision for long; failures are reported to the caller, which
// logs them and carries on.
type Sink interface {
	Record(ctx context.Context, d *decision.Decision) error
}

// Record is the stored form of one decision.
type Record struct {
	// Identity
	ID         string `json:"id"`          // UUID v4 of the audit record
	DecisionID string `json:"decision_id"` // Decision.ID
	ActionID   string `json:"action_id"`

	// Timestamps
	DecidedAt  time.Time `json:"decided_at"`  // Decision timestamp
	RecordedAt time.Time `json:"recorded_at"` // When the record was written

	// Subject
	Agent      string `json:"agent"`
	ActionType string `json:"action_type"`

	// Verdict
	FinalDecision  string  `json:"final_decision"`
	Confidence     float64 `json:"confidence"`
	Path           string  `json:"path"`
	ExecutedLevels []int   `json:"executed_levels"`

	// Level 1
	Approved        bool              `json:"approved"`
	ComplianceScore float64           `json:"compliance_score"`
	Violations      []ViolationRecord `json:"violations"`
	RulesChecked    []string          `json:"rules_checked"`
	RuleSetVersion  string            `json:"rule_set_version"`

	Warnings      []string `json:"warnings"`
	ReasoningPath []string `json:"reasoning_path"`

	DurationMs float64 `json:"duration_ms"`

	// ActionJSON is the submitted action, redacted before storage.
	ActionJSON string `json:"action_json"`

	// ContentHash is the SHA-256 of the record content, for tamper checks.
	ContentHash string `json:"content_hash"`
}

// ViolationRecord is a stored rule violation.
type ViolationRecord struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// FromDecision builds a record from d. ID, RecordedAt, ActionJSON, and
// ContentHash are filled in by the recorder.
func FromDecision(d *decision.Decision) *Record {
	r := &Record{
		DecisionID:     d.ID,
		DecidedAt:      d.Timestamp,
		Agent:          d.Agent,
		ActionType:     d.ActionType(),
		FinalDecision:  string(d.FinalDecision),
		Confidence:     d.Confidence,
		Path:           string(d.Path),
		ExecutedLevels: d.ExecutedLevels(),
		Warnings:       append([]string(nil), d.Warnings...),
		ReasoningPath:  append([]string(nil), d.ReasoningPath...),
		DurationMs:     float64(d.TotalDuration) / float64(time.Millisecond),
		RuleSetVersion: d.RuleSetVersion(),
	}
	if d.Action != nil {
		r.ActionID = d.Action.ID
	}
	if c := d.Compliance; c != nil {
		r.Approved = c.Approved
		r.ComplianceScore = c.ComplianceScore
		r.RulesChecked = append([]string(nil), c.RulesChecked...)
		for _, v := range c.Violations {
			r.Violations = append(r.Violations, ViolationRecord{
				Rule:     v.Rule,
				Severity: string(v.Severity),
				Message:  v.Message,
			})
		}
	}
	return r
}

// Query defines filter parameters for audit records.
type Query struct {
	// Time range on DecidedAt, inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Agent         string `json:"agent,omitempty"`
	ActionType    string `json:"action_type,omitempty"`
	FinalDecision string `json:"final_decision,omitempty"`
	Path          string `json:"path,omitempty"`
	DecisionID    string `json:"decision_id,omitempty"`

	MinConfidence *float64 `json:"min_confidence,omitempty"`
	MaxConfidence *float64 `json:"max_confidence,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Sorting
	SortBy    string `json:"sort_by,omitempty"`    // "decided_at", "confidence", "duration"
	SortOrder string `json:"sort_order,omitempty"` // "asc", "desc"
}

// Storage is an audit storage backend. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching q. An empty slice means no match.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching q and returns the number removed.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Exporter writes records in an export format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
