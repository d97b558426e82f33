package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:       "bad listen address",
			mutate:     func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantFields: []string{"server.listen_address"},
		},
		{
			name: "request timeout within budget",
			mutate: func(c *Config) {
				c.Server.RequestTimeout = 300 * time.Millisecond
			},
			wantFields: []string{"server.request_timeout"},
		},
		{
			name: "rate limit enabled without rate",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = true
				c.Server.RateLimit.RequestsPerSecond = 0
			},
			wantFields: []string{"server.rate_limit.requests_per_second"},
		},
		{
			name:       "unknown rules source",
			mutate:     func(c *Config) { c.Rules.Source = "consul" },
			wantFields: []string{"rules.source"},
		},
		{
			name: "git token auth without token",
			mutate: func(c *Config) {
				c.Rules.Source = "git"
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Git.Auth.Type = "token"
			},
			wantFields: []string{"rules.git.auth.token"},
		},
		{
			name: "git unknown auth",
			mutate: func(c *Config) {
				c.Rules.Source = "git"
				c.Rules.Git.Repository = "https://example.com/rules.git"
				c.Rules.Git.Auth.Type = "kerberos"
			},
			wantFields: []string{"rules.git.auth.type"},
		},
		{
			name: "band inverted",
			mutate: func(c *Config) {
				c.Orchestrator.ReviewBandLow = 0.97
			},
			wantFields: []string{"orchestrator.review_band_low"},
		},
		{
			name: "thresholds out of range",
			mutate: func(c *Config) {
				c.Orchestrator.Synthesis.ApproveThreshold = 1.5
				c.Orchestrator.Synthesis.RiskWeight = -0.1
			},
			wantFields: []string{"orchestrator.synthesis.approve_threshold", "orchestrator.synthesis.risk_weight"},
		},
		{
			name: "escalate above approve",
			mutate: func(c *Config) {
				c.Orchestrator.Synthesis.EscalateThreshold = 0.8
			},
			wantFields: []string{"orchestrator.synthesis.escalate_threshold"},
		},
		{
			name: "enabled collaborator needs url",
			mutate: func(c *Config) {
				c.Collaborators.Truth.Enabled = true
				c.Collaborators.Risk.Enabled = true
				c.Collaborators.Risk.Endpoint = "risk-service"
			},
			wantFields: []string{"collaborators.risk.endpoint", "collaborators.truth.endpoint"},
		},
		{
			name:       "unknown audit backend",
			mutate:     func(c *Config) { c.Audit.Backend = "mongo" },
			wantFields: []string{"audit.backend"},
		},
		{
			name:       "postgres without target",
			mutate:     func(c *Config) { c.Audit.Backend = "postgres" },
			wantFields: []string{"audit.postgres"},
		},
		{
			name: "postgres bad ssl mode",
			mutate: func(c *Config) {
				c.Audit.Backend = "postgres"
				c.Audit.Postgres.DSN = "postgres://localhost/audit"
				c.Audit.Postgres.SSLMode = "sometimes"
			},
			wantFields: []string{"audit.postgres.ssl_mode"},
		},
		{
			name:       "invalid cron",
			mutate:     func(c *Config) { c.Audit.Retention.PruneSchedule = "61 * * * *" },
			wantFields: []string{"audit.retention.prune_schedule"},
		},
		{
			name:   "negative retention days keeps forever",
			mutate: func(c *Config) { c.Audit.Retention.Days = -1 },
		},
		{
			name: "bad logging",
			mutate: func(c *Config) {
				c.Telemetry.Logging.Level = "verbose"
				c.Telemetry.Logging.Format = "xml"
			},
			wantFields: []string{"telemetry.logging.level", "telemetry.logging.format"},
		},
		{
			name: "bad redact pattern",
			mutate: func(c *Config) {
				c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "broken", Pattern: "("}}
			},
			wantFields: []string{"telemetry.logging.redact_patterns[0].pattern"},
		},
		{
			name: "metrics buckets not increasing",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.DurationBuckets = []float64{0.1, 0.05}
			},
			wantFields: []string{"telemetry.metrics.duration_buckets"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			got := make([]string, len(ve.Errors))
			for i, fe := range ve.Errors {
				got[i] = fe.Field
			}
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if got := multi.Error(); !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi = %q", got)
	}

	if got := (ValidationError{}).Error(); got != "configuration validation failed" {
		t.Errorf("empty = %q", got)
	}
}
