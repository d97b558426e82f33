package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/action"
	"mercator-hq/gatekeeper/pkg/audit/storage"
	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/decision"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Telemetry.Logging.Level = "error"
	return cfg
}

func counterValue(t *testing.T, a *app, name string) float64 {
	t.Helper()
	families, err := a.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			var sum float64
			for _, m := range mf.GetMetric() {
				sum += m.GetCounter().GetValue()
			}
			return sum
		}
	}
	return 0
}

func TestRuleSource(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RulesConfig
		wantNil  bool
		wantDesc string
		wantErr  bool
	}{
		{name: "builtin", cfg: config.RulesConfig{Source: "builtin"}, wantNil: true},
		{name: "empty", cfg: config.RulesConfig{}, wantNil: true},
		{name: "file", cfg: config.RulesConfig{Source: "file", Path: "/etc/rules.yaml"}, wantDesc: "file:/etc/rules.yaml"},
		{name: "git without repository", cfg: config.RulesConfig{Source: "git"}, wantErr: true},
		{name: "unknown", cfg: config.RulesConfig{Source: "consul"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := ruleSource(&tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ruleSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (src == nil) != tt.wantNil {
				t.Fatalf("ruleSource() = %v, wantNil %v", src, tt.wantNil)
			}
			if src != nil && src.Describe() != tt.wantDesc {
				t.Errorf("Describe() = %q, want %q", src.Describe(), tt.wantDesc)
			}
		})
	}
}

func TestOrchestratorConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Orchestrator.Synthesis.RiskWeight = 0.9
	cfg.Orchestrator.HistorySize = 42

	oc := orchestratorConfig(&cfg.Orchestrator)
	if err := oc.Validate(); err != nil {
		t.Fatalf("mapped config invalid: %v", err)
	}
	if oc.HistorySize != 42 || oc.Synthesis.Weights[decision.LevelRisk] != 0.9 {
		t.Errorf("mapped config = %+v", oc)
	}
	if oc.LevelTimeout != cfg.Orchestrator.LevelTimeout {
		t.Errorf("LevelTimeout = %v", oc.LevelTimeout)
	}
}

func TestOpenStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Backend = storage.BackendSQLitePure
	cfg.Audit.SQLite.Path = filepath.Join(t.TempDir(), "audit.db")

	store, err := openStorage(&cfg.Audit)
	if err != nil {
		t.Fatalf("openStorage() error = %v", err)
	}
	defer store.Close()

	cfg.Audit.Backend = storage.BackendPostgres
	cfg.Audit.Postgres = config.PostgresConfig{}
	if _, err := openStorage(&cfg.Audit); err == nil {
		t.Error("openStorage() without a postgres DSN should fail")
	}
}

func TestNewApp_Collaborators(t *testing.T) {
	risk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"risk_score": 0.1}`))
	}))
	defer risk.Close()

	cfg := testConfig(t)
	cfg.Collaborators.Risk = config.CollaboratorConfig{Enabled: true, Endpoint: risk.URL, Timeout: time.Second}

	a, err := newApp(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	if got := a.orchestrator.Registered(); len(got) != 1 || got[0] != decision.LevelRisk {
		t.Errorf("Registered() = %v, want [4]", got)
	}
	if len(a.collaborators) != 1 {
		t.Errorf("collaborators = %d, want 1", len(a.collaborators))
	}
	if a.storage != nil || a.recorder != nil {
		t.Error("audit components created while audit is disabled")
	}

	checks := a.health.ListChecks()
	if len(checks) != 2 {
		t.Errorf("health checks = %v, want rules and collaborator_risk", checks)
	}

	deps := serverDeps(a, nil)
	if deps.Decider == nil || deps.RuleSet == nil || deps.Storage != nil {
		t.Errorf("server deps = %+v", deps)
	}
	if deps.Metrics == nil || deps.MetricsPath != "/metrics" {
		t.Errorf("metrics deps = %v %q", deps.Metrics, deps.MetricsPath)
	}
}

func TestNewApp_AuditRecordsDecisions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.Backend = storage.BackendMemory

	a, err := newApp(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	store, ok := a.storage.(*storage.MemoryStorage)
	if !ok {
		t.Fatalf("storage = %T, want *MemoryStorage", a.storage)
	}
	if _, err := a.orchestrator.Decide(context.Background(), action.New("query", nil), "alpha"); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	// Close drains the recorder before the store is closed.
	a.recorder.Close()
	if store.Size() != 1 {
		t.Errorf("stored %d records, want 1", store.Size())
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewApp_HealthRateLimitDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Telemetry.Health.RequestsPerSecond = -1
	cfg.Telemetry.Metrics.Enabled = false

	a, err := newApp(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	deps := serverDeps(a, nil)
	if deps.HealthRateLimit != 0 || deps.Metrics != nil {
		t.Errorf("deps = rate %d metrics %v", deps.HealthRateLimit, deps.Metrics)
	}
}

func TestWatchRules_RecordsDrift(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watcher test in short mode")
	}
	path := defaultRulesFile(t)

	cfg := testConfig(t)
	cfg.Rules.Source = "file"
	cfg.Rules.Path = path
	cfg.Rules.Watch = true
	cfg.Rules.WatchDebounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	w, err := a.watchRules(ctx)
	if err != nil || w == nil {
		t.Fatalf("watchRules() = %v, %v", w, err)
	}
	version := a.rules.RuleSet.Version()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("version: edited\nrules: []\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for counterValue(t, a, "gatekeeper_rule_drift_total") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("rule drift was not recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if a.rules.RuleSet.Version() != version {
		t.Error("loaded rule set changed after drift")
	}
}

func TestWatchRules_NotConfigured(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.Close()

	w, err := a.watchRules(context.Background())
	if w != nil || err != nil {
		t.Errorf("watchRules() = %v, %v; want nil, nil", w, err)
	}
}
