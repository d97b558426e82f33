package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/audit"
)

func sampleRecords() []*audit.Record {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*audit.Record{
		{
			ID: "r1", DecisionID: "d1", DecidedAt: at, Agent: "alpha", ActionType: "trade",
			FinalDecision: "denied", Confidence: 1, Path: "short_circuit", ExecutedLevels: []int{1, 5},
			Violations:   []audit.ViolationRecord{{Rule: "max_leverage", Severity: "HIGH", Message: "leverage 3, max 2"}},
			RulesChecked: []string{"max_leverage", "require_stop_loss"},
			Warnings:     []string{"a, with comma"},
		},
		{
			ID: "r2", DecisionID: "d2", DecidedAt: at.Add(time.Minute), Agent: "beta", ActionType: "query",
			FinalDecision: "approved", Confidence: 0.5, Path: "fast", ExecutedLevels: []int{1, 5}, Approved: true,
		},
	}
}

func TestJSONExporter(t *testing.T) {
	tests := []struct {
		name    string
		records []*audit.Record
		want    int
	}{
		{name: "records", records: sampleRecords(), want: 2},
		{name: "empty", records: nil, want: 0},
	}
	for _, tt := range tests {
		for _, pretty := range []bool{false, true} {
			t.Run(tt.name, func(t *testing.T) {
				var buf bytes.Buffer
				if err := NewJSONExporter(pretty).Export(context.Background(), tt.records, &buf); err != nil {
					t.Fatalf("Export() error = %v", err)
				}
				var got []audit.Record
				if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
					t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
				}
				if len(got) != tt.want {
					t.Errorf("decoded %d records, want %d", len(got), tt.want)
				}
			})
		}
	}
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	exp := NewCSVExporter(true)
	if err := exp.Export(context.Background(), sampleRecords(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	header := rows[0]
	if len(header) != len(exp.Header()) {
		t.Errorf("header has %d columns", len(header))
	}
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %q", name)
		return -1
	}

	first := rows[1]
	if first[col("executed_levels")] != "1;5" {
		t.Errorf("executed_levels = %q", first[col("executed_levels")])
	}
	if first[col("warnings")] != "a, with comma" {
		t.Errorf("warnings = %q", first[col("warnings")])
	}
	if !strings.Contains(first[col("violations")], `"max_leverage"`) {
		t.Errorf("violations = %q", first[col("violations")])
	}
	if first[col("decided_at")] != "2026-03-01T12:00:00Z" {
		t.Errorf("decided_at = %q", first[col("decided_at")])
	}
	if rows[2][col("approved")] != "true" || rows[2][col("violations")] != "" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), sampleRecords()[:1], &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if strings.HasPrefix(buf.String(), "id,") {
		t.Errorf("unexpected header: %s", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExport_WriteErrors(t *testing.T) {
	for _, format := range []string{"json", "csv"} {
		t.Run(format, func(t *testing.T) {
			exp, err := New(format, false)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			err = exp.Export(context.Background(), sampleRecords(), failingWriter{})
			var ee *audit.ExportError
			if !errors.As(err, &ee) || ee.Format != format {
				t.Errorf("Export() error = %v, want ExportError for %s", err, format)
			}
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New("xml", false); err == nil {
		t.Error("New(xml) error = nil")
	}
}
