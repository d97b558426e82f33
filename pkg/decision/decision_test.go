package decision

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
)

func sampleDecision() *Decision {
	return &Decision{
		ID:            "d-1",
		Action:        action.New("trade", map[string]any{"position_size_pct": 0.05}),
		Agent:         "alpha",
		FinalDecision: VerdictEscalate,
		Confidence:    0.55,
		Path:          PathFull,
		Levels: []LevelOutcome{
			{Level: 1, Name: LevelName(1), Triggered: true, Executed: true, Status: StatusExecuted},
			{Level: 2, Name: LevelName(2), Status: StatusSkipped, Reason: "not triggered"},
			{Level: 3, Name: LevelName(3), Triggered: true, Status: StatusFailed, Error: "boom"},
			{Level: 4, Name: LevelName(4), Triggered: true, Executed: true, Status: StatusExecuted},
			{Level: 5, Name: LevelName(5), Triggered: true, Executed: true, Status: StatusExecuted},
		},
		Warnings:      []string{"a", "b"},
		TotalDuration: 12 * time.Millisecond,
		Timestamp:     time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDecision_Accessors(t *testing.T) {
	d := sampleDecision()

	l3, ok := d.Level(3)
	if !ok || l3.Executed || l3.Status != StatusFailed {
		t.Errorf("Level(3) = %+v, %v", l3, ok)
	}
	if _, ok := d.Level(9); ok {
		t.Error("Level(9) reported present")
	}
	if got := d.ExecutedLevels(); !reflect.DeepEqual(got, []int{1, 4, 5}) {
		t.Errorf("ExecutedLevels() = %v", got)
	}
	if d.Allowed() {
		t.Error("Allowed() = true for escalate")
	}
	if d.ActionType() != "trade" {
		t.Errorf("ActionType() = %q", d.ActionType())
	}
	if d.RuleSetVersion() != "" {
		t.Errorf("RuleSetVersion() = %q without compliance report", d.RuleSetVersion())
	}
}

func TestDecision_Summarize(t *testing.T) {
	s := sampleDecision().Summarize()
	if s.ID != "d-1" || s.Agent != "alpha" || s.ActionType != "trade" {
		t.Errorf("Summary identity = %+v", s)
	}
	if s.DurationMs != 12 {
		t.Errorf("DurationMs = %v, want 12", s.DurationMs)
	}
	if s.Warnings != 2 {
		t.Errorf("Warnings = %d, want 2", s.Warnings)
	}
}

func TestDecision_JSONShape(t *testing.T) {
	data, err := json.Marshal(sampleDecision())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "action", "agent", "final_decision", "confidence", "path", "levels", "reasoning_path", "warnings", "total_duration", "timestamp"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}
	if m["final_decision"] != "escalate" || m["path"] != "full" {
		t.Errorf("final_decision/path = %v/%v", m["final_decision"], m["path"])
	}
}

func TestLevelName(t *testing.T) {
	want := map[int]string{1: "rule_validation", 2: "context", 3: "truth", 4: "risk", 5: "synthesis", 0: "unknown"}
	for level, name := range want {
		if got := LevelName(level); got != name {
			t.Errorf("LevelName(%d) = %q, want %q", level, got, name)
		}
	}
}
