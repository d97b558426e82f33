package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are collected
// and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateOrchestrator(&cfg.Orchestrator)...)
	errs = append(errs, validateCollaborators(&cfg.Collaborators)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Server.RequestTimeout > 0 && cfg.Orchestrator.FullPathBudget > 0 &&
		cfg.Server.RequestTimeout <= cfg.Orchestrator.FullPathBudget {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: fmt.Sprintf("must exceed orchestrator.full_path_budget (%s)", cfg.Orchestrator.FullPathBudget),
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid address: %v", err)})
	}

	durations := map[string]bool{
		"server.read_timeout":     cfg.ReadTimeout > 0,
		"server.write_timeout":    cfg.WriteTimeout > 0,
		"server.idle_timeout":     cfg.IdleTimeout > 0,
		"server.shutdown_timeout": cfg.ShutdownTimeout > 0,
		"server.request_timeout":  cfg.RequestTimeout > 0,
	}
	for _, field := range sortedKeys(durations) {
		if !durations[field] {
			errs = append(errs, FieldError{Field: field, Message: "must be positive"})
		}
	}

	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "must be positive"})
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{Field: "server.rate_limit.requests_per_second", Message: "must be positive"})
		}
		if cfg.RateLimit.Burst <= 0 {
			errs = append(errs, FieldError{Field: "server.rate_limit.burst", Message: "must be positive"})
		}
		if cfg.RateLimit.MaxAgents <= 0 {
			errs = append(errs, FieldError{Field: "server.rate_limit.max_agents", Message: "must be positive"})
		}
	}
	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case "builtin":
	case "file":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "rules.path", Message: "is required when source is \"file\""})
		}
	case "git":
		errs = append(errs, validateGit(&cfg.Git)...)
	default:
		errs = append(errs, FieldError{
			Field:   "rules.source",
			Message: fmt.Sprintf("must be one of builtin, file, git (got %q)", cfg.Source),
		})
	}

	if cfg.Watch && cfg.WatchDebounce <= 0 {
		errs = append(errs, FieldError{Field: "rules.watch_debounce", Message: "must be positive when watching"})
	}
	return errs
}

func validateGit(cfg *GitRulesConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "rules.git.repository", Message: "is required when source is \"git\""})
	}
	if cfg.File == "" {
		errs = append(errs, FieldError{Field: "rules.git.file", Message: "is required"})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.depth", Message: "must not be negative"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "rules.git.timeout", Message: "must be positive"})
	}

	switch cfg.Auth.Type {
	case "", "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "is required for token auth"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("must be one of none, token, ssh (got %q)", cfg.Auth.Type),
		})
	}
	return errs
}

func validateOrchestrator(cfg *OrchestratorConfig) []FieldError {
	var errs []FieldError

	if cfg.LevelTimeout <= 0 {
		errs = append(errs, FieldError{Field: "orchestrator.level_timeout", Message: "must be positive"})
	}
	if cfg.FullPathBudget <= 0 {
		errs = append(errs, FieldError{Field: "orchestrator.full_path_budget", Message: "must be positive"})
	}

	errs = append(errs, unitInterval("orchestrator.review_band_low", cfg.ReviewBandLow)...)
	errs = append(errs, unitInterval("orchestrator.review_band_high", cfg.ReviewBandHigh)...)
	if cfg.ReviewBandLow > cfg.ReviewBandHigh {
		errs = append(errs, FieldError{Field: "orchestrator.review_band_low", Message: "must not exceed review_band_high"})
	}

	if cfg.MaxRulesChecked <= 0 {
		errs = append(errs, FieldError{Field: "orchestrator.max_rules_checked", Message: "must be positive"})
	}
	if cfg.MaxParameters <= 0 {
		errs = append(errs, FieldError{Field: "orchestrator.max_parameters", Message: "must be positive"})
	}
	if cfg.HistorySize < 0 {
		errs = append(errs, FieldError{Field: "orchestrator.history_size", Message: "must not be negative"})
	}

	s := &cfg.Synthesis
	for field, v := range map[string]float64{
		"orchestrator.synthesis.context_weight":     s.ContextWeight,
		"orchestrator.synthesis.truth_weight":       s.TruthWeight,
		"orchestrator.synthesis.risk_weight":        s.RiskWeight,
		"orchestrator.synthesis.approve_threshold":  s.ApproveThreshold,
		"orchestrator.synthesis.escalate_threshold": s.EscalateThreshold,
		"orchestrator.synthesis.min_context_score":  s.MinContextScore,
		"orchestrator.synthesis.min_truth_score":    s.MinTruthScore,
		"orchestrator.synthesis.max_risk_score":     s.MaxRiskScore,
	} {
		errs = append(errs, unitInterval(field, v)...)
	}
	if s.EscalateThreshold > s.ApproveThreshold {
		errs = append(errs, FieldError{
			Field:   "orchestrator.synthesis.escalate_threshold",
			Message: "must not exceed approve_threshold",
		})
	}
	sortFieldErrors(errs)
	return errs
}

func validateCollaborators(cfg *CollaboratorsConfig) []FieldError {
	var errs []FieldError

	for name, c := range map[string]*CollaboratorConfig{
		"context": &cfg.Context,
		"truth":   &cfg.Truth,
		"risk":    &cfg.Risk,
	} {
		if !c.Enabled {
			continue
		}
		prefix := "collaborators." + name
		if c.Endpoint == "" {
			errs = append(errs, FieldError{Field: prefix + ".endpoint", Message: "is required when enabled"})
		} else if u, err := url.Parse(c.Endpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, FieldError{Field: prefix + ".endpoint", Message: "must be an absolute http(s) URL"})
		}
		if c.Timeout <= 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "must be positive"})
		}
	}
	sortFieldErrors(errs)
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite", "sqlite-pure":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "audit.sqlite.path", Message: "is required for sqlite backends"})
		}
		if cfg.SQLite.MaxOpenConns <= 0 {
			errs = append(errs, FieldError{Field: "audit.sqlite.max_open_conns", Message: "must be positive"})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "audit.sqlite.busy_timeout", Message: "must not be negative"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" && cfg.Postgres.Host == "" {
			errs = append(errs, FieldError{Field: "audit.postgres", Message: "dsn or host is required"})
		}
		if cfg.Postgres.DSN == "" && cfg.Postgres.Host != "" && cfg.Postgres.Database == "" {
			errs = append(errs, FieldError{Field: "audit.postgres.database", Message: "is required when host is set"})
		}
		if cfg.Postgres.Port <= 0 || cfg.Postgres.Port > 65535 {
			errs = append(errs, FieldError{Field: "audit.postgres.port", Message: "must be between 1 and 65535"})
		}
		switch cfg.Postgres.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			errs = append(errs, FieldError{Field: "audit.postgres.ssl_mode", Message: fmt.Sprintf("unsupported mode %q", cfg.Postgres.SSLMode)})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("must be one of memory, sqlite, sqlite-pure, postgres (got %q)", cfg.Backend),
		})
	}

	if cfg.Recorder.BufferSize <= 0 {
		errs = append(errs, FieldError{Field: "audit.recorder.buffer_size", Message: "must be positive"})
	}
	if cfg.Recorder.WriteTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.recorder.write_timeout", Message: "must be positive"})
	}
	if cfg.Recorder.MaxFieldLength < 0 {
		errs = append(errs, FieldError{Field: "audit.recorder.max_field_length", Message: "must not be negative"})
	}

	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "audit.retention.max_records", Message: "must not be negative"})
	}
	if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
		errs = append(errs, FieldError{Field: "audit.retention.archive_path", Message: "is required when archiving"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error (got %q)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be one of json, text, console (got %q)", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		field := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{Field: field + ".pattern", Message: fmt.Sprintf("invalid regex: %v", err)})
		}
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
		}
		for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
			if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
				errs = append(errs, FieldError{Field: "telemetry.metrics.duration_buckets", Message: "must be strictly increasing"})
				break
			}
		}
		if cfg.Metrics.MaxActionTypes <= 0 {
			errs = append(errs, FieldError{Field: "telemetry.metrics.max_action_types", Message: "must be positive"})
		}
	}

	if cfg.Health.CheckTimeout <= 0 {
		errs = append(errs, FieldError{Field: "telemetry.health.check_timeout", Message: "must be positive"})
	}
	return errs
}

func unitInterval(field string, v float64) []FieldError {
	if v < 0 || v > 1 {
		return []FieldError{{Field: field, Message: fmt.Sprintf("must be between 0 and 1 (got %g)", v)}}
	}
	return nil
}
