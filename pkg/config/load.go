package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GATEKEEPER_"

// LoadConfig loads configuration from a YAML file. Fields absent from the
// file keep their defaults. An empty path yields the defaults alone. The
// result is validated; environment variables are not consulted.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(cfg)
	expandSecrets(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies GATEKEEPER_*
// environment overrides, which take precedence over the file.
//
// The loading sequence is:
//  1. Defaults
//  2. YAML file
//  3. Environment variable overrides
//  4. Validation
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// expandSecrets resolves ${VAR} references in credential fields so secrets
// can stay out of the file.
func expandSecrets(cfg *Config) {
	cfg.Rules.Git.Auth.Token = os.ExpandEnv(cfg.Rules.Git.Auth.Token)
	cfg.Rules.Git.Auth.SSHKeyPassphrase = os.ExpandEnv(cfg.Rules.Git.Auth.SSHKeyPassphrase)
	cfg.Audit.Postgres.DSN = os.ExpandEnv(cfg.Audit.Postgres.DSN)
	cfg.Audit.Postgres.Password = os.ExpandEnv(cfg.Audit.Postgres.Password)
	for _, c := range []*CollaboratorConfig{&cfg.Collaborators.Context, &cfg.Collaborators.Truth, &cfg.Collaborators.Risk} {
		for k, v := range c.Headers {
			c.Headers[k] = os.ExpandEnv(v)
		}
	}
}

func envString(name string, target *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*target = val
	}
}

func envBool(name string, target *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = b
		}
	}
}

func envInt(name string, target *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func envFloat(name string, target *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
		}
	}
}

func envDuration(name string, target *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}

// applyEnvOverrides applies GATEKEEPER_SECTION_FIELD overrides. Values that
// fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	envBool("SERVER_RATE_LIMIT_ENABLED", &cfg.Server.RateLimit.Enabled)
	envFloat("SERVER_RATE_LIMIT_REQUESTS_PER_SECOND", &cfg.Server.RateLimit.RequestsPerSecond)
	envInt("SERVER_RATE_LIMIT_BURST", &cfg.Server.RateLimit.Burst)

	// Rules
	envString("RULES_SOURCE", &cfg.Rules.Source)
	envString("RULES_PATH", &cfg.Rules.Path)
	envBool("RULES_STRICT", &cfg.Rules.Strict)
	envBool("RULES_WATCH", &cfg.Rules.Watch)
	envString("RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	envString("RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	envString("RULES_GIT_FILE", &cfg.Rules.Git.File)
	envString("RULES_GIT_AUTH_TYPE", &cfg.Rules.Git.Auth.Type)
	envString("RULES_GIT_AUTH_TOKEN", &cfg.Rules.Git.Auth.Token)
	envString("RULES_GIT_AUTH_SSH_KEY_PATH", &cfg.Rules.Git.Auth.SSHKeyPath)

	// Orchestrator
	envDuration("ORCHESTRATOR_LEVEL_TIMEOUT", &cfg.Orchestrator.LevelTimeout)
	envDuration("ORCHESTRATOR_FULL_PATH_BUDGET", &cfg.Orchestrator.FullPathBudget)
	envInt("ORCHESTRATOR_HISTORY_SIZE", &cfg.Orchestrator.HistorySize)
	envFloat("ORCHESTRATOR_SYNTHESIS_APPROVE_THRESHOLD", &cfg.Orchestrator.Synthesis.ApproveThreshold)
	envFloat("ORCHESTRATOR_SYNTHESIS_ESCALATE_THRESHOLD", &cfg.Orchestrator.Synthesis.EscalateThreshold)

	// Collaborators
	collaborators := map[string]*CollaboratorConfig{
		"CONTEXT": &cfg.Collaborators.Context,
		"TRUTH":   &cfg.Collaborators.Truth,
		"RISK":    &cfg.Collaborators.Risk,
	}
	for name, c := range collaborators {
		prefix := "COLLABORATORS_" + name + "_"
		envBool(prefix+"ENABLED", &c.Enabled)
		envString(prefix+"ENDPOINT", &c.Endpoint)
		envDuration(prefix+"TIMEOUT", &c.Timeout)
	}

	// Audit
	envBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envString("AUDIT_POSTGRES_DSN", &cfg.Audit.Postgres.DSN)
	envString("AUDIT_POSTGRES_HOST", &cfg.Audit.Postgres.Host)
	envInt("AUDIT_POSTGRES_PORT", &cfg.Audit.Postgres.Port)
	envString("AUDIT_POSTGRES_DATABASE", &cfg.Audit.Postgres.Database)
	envString("AUDIT_POSTGRES_USER", &cfg.Audit.Postgres.User)
	envString("AUDIT_POSTGRES_PASSWORD", &cfg.Audit.Postgres.Password)
	envString("AUDIT_POSTGRES_SSL_MODE", &cfg.Audit.Postgres.SSLMode)
	envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	envString("AUDIT_RETENTION_PRUNE_SCHEDULE", &cfg.Audit.Retention.PruneSchedule)

	// Telemetry
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_PII", &cfg.Telemetry.Logging.RedactPII)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

// EnvName returns the environment variable for a dotted config field, for
// help text. For example "audit.sqlite.path" gives GATEKEEPER_AUDIT_SQLITE_PATH.
func EnvName(field string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
}
