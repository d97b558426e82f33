package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
  request_timeout: "2s"

rules:
  source: "file"
  path: "./policies/rules.yaml"
  watch: true

orchestrator:
  level_timeout: "100ms"
  simple_action_types: ["query"]
  synthesis:
    approve_threshold: 0.8

collaborators:
  risk:
    enabled: true
    endpoint: "http://risk.internal:8080/assess"

audit:
  enabled: true
  backend: "sqlite-pure"
  sqlite:
    path: "./test-audit.db"
  retention:
    days: 30
    prune_schedule: "30 2 * * *"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.RequestTimeout != 2*time.Second {
		t.Errorf("RequestTimeout = %v, want 2s", cfg.Server.RequestTimeout)
	}
	if cfg.Rules.Source != "file" || !cfg.Rules.Watch {
		t.Errorf("Rules = %+v", cfg.Rules)
	}
	if cfg.Orchestrator.LevelTimeout != 100*time.Millisecond {
		t.Errorf("LevelTimeout = %v", cfg.Orchestrator.LevelTimeout)
	}
	if got := cfg.Orchestrator.SimpleActionTypes; len(got) != 1 || got[0] != "query" {
		t.Errorf("SimpleActionTypes = %v, want [query]", got)
	}
	if cfg.Orchestrator.Synthesis.ApproveThreshold != 0.8 {
		t.Errorf("ApproveThreshold = %v", cfg.Orchestrator.Synthesis.ApproveThreshold)
	}
	if cfg.Orchestrator.Synthesis.EscalateThreshold != DefaultEscalateThreshold {
		t.Errorf("EscalateThreshold = %v, want default", cfg.Orchestrator.Synthesis.EscalateThreshold)
	}

	// Collaborator timeout inherits the level timeout from the file.
	if cfg.Collaborators.Risk.Timeout != 100*time.Millisecond {
		t.Errorf("Risk.Timeout = %v, want 100ms", cfg.Collaborators.Risk.Timeout)
	}
	if cfg.Collaborators.Context.Enabled {
		t.Error("Context collaborator should stay disabled")
	}

	if !cfg.Audit.Enabled || cfg.Audit.Backend != "sqlite-pure" {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if !cfg.Audit.SQLite.WALMode {
		t.Error("WALMode default lost when the sqlite section is present")
	}
	if cfg.Audit.Retention.Days != 30 || cfg.Audit.Retention.PruneSchedule != "30 2 * * *" {
		t.Errorf("Retention = %+v", cfg.Audit.Retention)
	}

	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
	}
	if !cfg.Telemetry.Logging.RedactPII || !cfg.Telemetry.Metrics.Enabled {
		t.Error("boolean telemetry defaults were lost")
	}
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error = %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Rules.Source != "builtin" {
		t.Errorf("Rules.Source = %q", cfg.Rules.Source)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		path      string
		wantField string
	}{
		{name: "missing file", path: "/nonexistent/gatekeeper.yaml"},
		{name: "malformed yaml", content: "server: [unclosed"},
		{name: "bad duration", content: "server:\n  read_timeout: \"soon\"\n"},
		{name: "validation", content: "rules:\n  source: \"database\"\n", wantField: "rules.source"},
		{name: "bad cron", content: "audit:\n  retention:\n    prune_schedule: \"every day\"\n", wantField: "audit.retention.prune_schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if path == "" {
				path = writeConfig(t, tt.content)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantField == "" {
				return
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ve.Errors[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Errors[0].Field, tt.wantField)
			}
		})
	}
}

func TestLoadConfig_ExpandsSecrets(t *testing.T) {
	t.Setenv("TEST_GIT_TOKEN", "ghp_secret")
	t.Setenv("TEST_RISK_KEY", "risk-key")

	path := writeConfig(t, `
rules:
  source: "git"
  git:
    repository: "https://github.com/example/rules.git"
    auth:
      type: "token"
      token: "${TEST_GIT_TOKEN}"
collaborators:
  risk:
    enabled: true
    endpoint: "https://risk.example.com/v1/assess"
    headers:
      X-Api-Key: "${TEST_RISK_KEY}"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Rules.Git.Auth.Token != "ghp_secret" {
		t.Errorf("Token = %q, want expanded", cfg.Rules.Git.Auth.Token)
	}
	if cfg.Collaborators.Risk.Headers["X-Api-Key"] != "risk-key" {
		t.Errorf("Headers = %v", cfg.Collaborators.Risk.Headers)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8090"
telemetry:
  logging:
    level: "info"
`)

	t.Setenv("GATEKEEPER_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("GATEKEEPER_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("GATEKEEPER_AUDIT_ENABLED", "true")
	t.Setenv("GATEKEEPER_AUDIT_BACKEND", "memory")
	t.Setenv("GATEKEEPER_AUDIT_RETENTION_DAYS", "7")
	t.Setenv("GATEKEEPER_ORCHESTRATOR_LEVEL_TIMEOUT", "75ms")
	t.Setenv("GATEKEEPER_COLLABORATORS_TRUTH_ENABLED", "true")
	t.Setenv("GATEKEEPER_COLLABORATORS_TRUTH_ENDPOINT", "http://truth:9000/verify")
	t.Setenv("GATEKEEPER_TELEMETRY_METRICS_ENABLED", "not-a-bool")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Audit.Enabled || cfg.Audit.Backend != "memory" || cfg.Audit.Retention.Days != 7 {
		t.Errorf("Audit = %+v", cfg.Audit)
	}
	if cfg.Orchestrator.LevelTimeout != 75*time.Millisecond {
		t.Errorf("LevelTimeout = %v", cfg.Orchestrator.LevelTimeout)
	}
	if !cfg.Collaborators.Truth.Enabled || cfg.Collaborators.Truth.Endpoint != "http://truth:9000/verify" {
		t.Errorf("Truth = %+v", cfg.Collaborators.Truth)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("unparsable override should be ignored")
	}
}

func TestLoadConfigWithEnvOverrides_InvalidResult(t *testing.T) {
	t.Setenv("GATEKEEPER_RULES_SOURCE", "git")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "rules.git.repository") {
		t.Errorf("error = %v, want rules.git.repository failure", err)
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("audit.sqlite.path"); got != "GATEKEEPER_AUDIT_SQLITE_PATH" {
		t.Errorf("EnvName() = %q", got)
	}
}
