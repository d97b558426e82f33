package recorder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/audit"
	"mercator-hq/gatekeeper/pkg/audit/storage"
	"mercator-hq/gatekeeper/pkg/decision"
	"mercator-hq/gatekeeper/pkg/validator"
)

func testDecision(id string) *decision.Decision {
	return &decision.Decision{
		ID: id,
		Action: action.New("transfer", map[string]any{
			"amount":   250.0,
			"password": "hunter2",
			"note":     strings.Repeat("x", 50),
			"nested":   map[string]any{"api_key": "sk-123", "memo": "ok"},
		}),
		Agent:         "alpha",
		FinalDecision: decision.VerdictApproved,
		Confidence:    0.8,
		Path:          decision.PathFull,
		Levels: []decision.LevelOutcome{
			{Level: 1, Executed: true}, {Level: 4, Executed: true}, {Level: 5, Executed: true},
		},
		Warnings:      []string{"near limit"},
		ReasoningPath: []string{"L1: approved"},
		Compliance: &validator.ComplianceReport{
			Approved:        true,
			ComplianceScore: 1,
			RulesChecked:    []string{"max_autonomous_transfer"},
			RuleSetVersion:  "1.0.0",
		},
		TotalDuration: 12 * time.Millisecond,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecorder_Build(t *testing.T) {
	r := NewRecorder(storage.NewMemoryStorage(), &Config{MaxFieldLength: 20})
	defer r.Close()

	record, err := r.Build(testDecision("dec-1"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if record.ID == "" || record.DecisionID != "dec-1" || record.RecordedAt.IsZero() {
		t.Errorf("identity = %+v", record)
	}
	if record.ActionType != "transfer" || record.RuleSetVersion != "1.0.0" {
		t.Errorf("ActionType = %q, RuleSetVersion = %q", record.ActionType, record.RuleSetVersion)
	}
	if got := record.ExecutedLevels; len(got) != 3 || got[1] != 4 {
		t.Errorf("ExecutedLevels = %v", got)
	}
	if record.DurationMs != 12 {
		t.Errorf("DurationMs = %v, want 12", record.DurationMs)
	}

	for _, secret := range []string{"hunter2", "sk-123"} {
		if strings.Contains(record.ActionJSON, secret) {
			t.Errorf("ActionJSON leaks %q: %s", secret, record.ActionJSON)
		}
	}
	if !strings.Contains(record.ActionJSON, RedactValue("hunter2")) {
		t.Errorf("ActionJSON missing redacted password: %s", record.ActionJSON)
	}
	if strings.Contains(record.ActionJSON, strings.Repeat("x", 50)) {
		t.Errorf("ActionJSON not truncated: %s", record.ActionJSON)
	}
	if !Verify(record) {
		t.Error("Verify() = false for a fresh record")
	}
}

func TestRecorder_RecordAndClose(t *testing.T) {
	store := storage.NewMemoryStorage()
	r := NewRecorder(store, nil)

	for _, id := range []string{"a", "b", "c"} {
		if err := r.Record(context.Background(), testDecision(id)); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if store.Size() != 3 {
		t.Errorf("stored %d records, want 3", store.Size())
	}
	stats := r.Stats()
	if stats.Enqueued != 3 || stats.Written != 3 || stats.Failed != 0 {
		t.Errorf("Stats() = %+v", stats)
	}

	err := r.Record(context.Background(), testDecision("late"))
	if !errors.Is(err, audit.ErrRecorderClosed) {
		t.Errorf("Record() after Close error = %v, want ErrRecorderClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// blockingStorage holds every Store call until release is closed.
type blockingStorage struct {
	*storage.MemoryStorage
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (b *blockingStorage) Store(ctx context.Context, r *audit.Record) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.MemoryStorage.Store(ctx, r)
}

func TestRecorder_BufferFull(t *testing.T) {
	store := &blockingStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		release:       make(chan struct{}),
		started:       make(chan struct{}),
	}
	r := NewRecorder(store, &Config{BufferSize: 1})

	// The worker takes the first record and blocks in Store.
	if err := r.Record(context.Background(), testDecision("1")); err != nil {
		t.Fatalf("Record(1) error = %v", err)
	}
	<-store.started

	if err := r.Record(context.Background(), testDecision("2")); err != nil {
		t.Fatalf("Record(2) error = %v", err)
	}
	err := r.Record(context.Background(), testDecision("3"))
	if !errors.Is(err, audit.ErrBufferFull) {
		t.Errorf("Record(3) error = %v, want ErrBufferFull", err)
	}
	var re *audit.RecorderError
	if !errors.As(err, &re) || re.DecisionID != "3" {
		t.Errorf("error = %#v, want RecorderError for decision 3", err)
	}

	close(store.release)
	r.Close()
	if got := r.Stats(); got.Written != 2 || got.Dropped != 1 {
		t.Errorf("Stats() = %+v, want 2 written, 1 dropped", got)
	}
}

type failingStorage struct{ *storage.MemoryStorage }

func (failingStorage) Store(context.Context, *audit.Record) error {
	return errors.New("disk full")
}

func TestRecorder_StoreFailureCounted(t *testing.T) {
	r := NewRecorder(failingStorage{storage.NewMemoryStorage()}, nil)
	if err := r.Record(context.Background(), testDecision("x")); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	r.Close()
	if got := r.Stats().Failed; got != 1 {
		t.Errorf("Failed = %d, want 1", got)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	r := NewRecorder(storage.NewMemoryStorage(), nil)
	defer r.Close()

	record, err := r.Build(testDecision("dec-1"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	record.FinalDecision = string(decision.VerdictDenied)
	if Verify(record) {
		t.Error("Verify() = true after tampering")
	}
	record.ContentHash = ""
	if Verify(record) {
		t.Error("Verify() = true without a hash")
	}
}

func TestRedactHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "empty redact", got: RedactValue(""), want: ""},
		{name: "short truncate", got: TruncateString("abc", 10), want: "abc"},
		{name: "truncate with ellipsis", got: TruncateString("abcdefghij", 6), want: "abc..."},
		{name: "tiny limit", got: TruncateString("abcdef", 2), want: "ab"},
		{name: "disabled", got: TruncateString("abcdef", 0), want: "abcdef"},
		{name: "hash empty", got: HashContent(nil), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if got := RedactValue("secret"); !strings.HasPrefix(got, "sha256:") || len(got) != len("sha256:")+64 {
		t.Errorf("RedactValue() = %q", got)
	}
}
