package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
)

// CSVExporter writes records as CSV. Lists are joined with ';' and violations
// are embedded as JSON.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Header returns the CSV column names.
func (e *CSVExporter) Header() []string {
	return []string{
		"id", "decision_id", "action_id",
		"decided_at", "recorded_at",
		"agent", "action_type",
		"final_decision", "confidence", "path", "executed_levels",
		"approved", "compliance_score", "violations", "rules_checked", "rule_set_version",
		"warnings", "reasoning_path", "duration_ms",
		"content_hash",
	}
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(e.Header()); err != nil {
			return &audit.ExportError{Format: "csv", RecordCount: len(records), Cause: err}
		}
	}

	for i, r := range records {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := writer.Write(toRow(r)); err != nil {
			return &audit.ExportError{Format: "csv", RecordCount: len(records), Cause: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &audit.ExportError{Format: "csv", RecordCount: len(records), Cause: err}
	}
	return nil
}

func toRow(r *audit.Record) []string {
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	formatFloat := func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	levels := make([]string, len(r.ExecutedLevels))
	for i, l := range r.ExecutedLevels {
		levels[i] = strconv.Itoa(l)
	}
	violations := ""
	if len(r.Violations) > 0 {
		data, _ := json.Marshal(r.Violations)
		violations = string(data)
	}

	return []string{
		r.ID, r.DecisionID, r.ActionID,
		formatTime(r.DecidedAt), formatTime(r.RecordedAt),
		r.Agent, r.ActionType,
		r.FinalDecision, formatFloat(r.Confidence), r.Path, strings.Join(levels, ";"),
		strconv.FormatBool(r.Approved), formatFloat(r.ComplianceScore), violations,
		strings.Join(r.RulesChecked, ";"), r.RuleSetVersion,
		strings.Join(r.Warnings, ";"), strings.Join(r.ReasoningPath, ";"), formatFloat(r.DurationMs),
		r.ContentHash,
	}
}
