package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the gatekeeper.
type Config struct {
	// Server contains HTTP API settings.
	Server ServerConfig `yaml:"server"`

	// Rules selects where the immutable rule set is loaded from.
	Rules RulesConfig `yaml:"rules"`

	// Orchestrator tunes the level pipeline and synthesis.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`

	// Collaborators configures the remote advisory services for levels 2-4.
	Collaborators CollaboratorsConfig `yaml:"collaborators"`

	// Audit configures the optional durable decision log.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics, and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the API binds to.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds each request handler. It must exceed the
	// orchestrator's full path budget.
	// Default: 5s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes limits request bodies.
	// Default: 1MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// RateLimit limits decision requests per agent.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-agent token bucket on the decide
// endpoint.
type RateLimitConfig struct {
	// Enabled turns rate limiting on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate per agent.
	// Default: 50
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket size per agent.
	// Default: 100
	Burst int `yaml:"burst"`

	// MaxAgents caps the number of tracked agents. The least recently seen
	// agent is evicted beyond this.
	// Default: 10000
	MaxAgents int `yaml:"max_agents"`
}

// RulesConfig selects the rule source.
type RulesConfig struct {
	// Source is "builtin", "file", or "git".
	// Default: "builtin"
	Source string `yaml:"source"`

	// Path is the rule document for the file source.
	// Default: "./rules.yaml"
	Path string `yaml:"path"`

	// Strict makes the engine fail closed when the source cannot be loaded,
	// instead of falling back to the compiled-in rules.
	// Default: false
	Strict bool `yaml:"strict"`

	// Watch reports edits to the rule file after start-up. Rules are never
	// reloaded; a restart is required.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces bursts of file events.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Git configures the git source.
	Git GitRulesConfig `yaml:"git"`
}

// GitRulesConfig configures loading the rule document from a Git repository.
type GitRulesConfig struct {
	// Repository URL (HTTPS, SSH, or a local path).
	// Example: "https://github.com/company/gatekeeper-rules.git"
	Repository string `yaml:"repository"`

	// Branch to check out.
	// Default: "main"
	Branch string `yaml:"branch"`

	// File is the rule document path within the repository.
	// Default: "rules.yaml"
	File string `yaml:"file"`

	// LocalPath is where the repository is cloned.
	// Default: "<tmp>/gatekeeper-rules"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. 0 is a full clone.
	// Default: 1
	Depth int `yaml:"depth"`

	// Timeout bounds the clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication. "${VAR}" references are expanded.
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication. Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys. "${VAR}" references are
	// expanded.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// OrchestratorConfig tunes the escalation heuristic and level execution.
type OrchestratorConfig struct {
	// LevelTimeout bounds each advisory collaborator call.
	// Default: 150ms
	LevelTimeout time.Duration `yaml:"level_timeout"`

	// FullPathBudget bounds the whole advisory fan-out.
	// Default: 400ms
	FullPathBudget time.Duration `yaml:"full_path_budget"`

	// ReviewBandLow and ReviewBandHigh bound the compliance score band that
	// marks an approved action as an edge case.
	// Default: 0.90 / 0.95
	ReviewBandLow  float64 `yaml:"review_band_low"`
	ReviewBandHigh float64 `yaml:"review_band_high"`

	// SimpleActionTypes may take the fast path.
	SimpleActionTypes []string `yaml:"simple_action_types"`

	// HighStakesActionTypes always take the full path.
	HighStakesActionTypes []string `yaml:"high_stakes_action_types"`

	// MaxRulesChecked above which an action is an edge case.
	// Default: 5
	MaxRulesChecked int `yaml:"max_rules_checked"`

	// MaxParameters above which Level 2 triggers.
	// Default: 6
	MaxParameters int `yaml:"max_parameters"`

	// ClaimKeywords trigger Level 3.
	ClaimKeywords []string `yaml:"claim_keywords"`

	// HistorySize caps the in-memory recent-decision buffer.
	// Default: 1000
	HistorySize int `yaml:"history_size"`

	// Synthesis holds Level 5 weights and thresholds.
	Synthesis SynthesisConfig `yaml:"synthesis"`
}

// SynthesisConfig holds Level 5 weights and thresholds.
type SynthesisConfig struct {
	// Default: 0.3 / 0.5 / 0.7
	ContextWeight float64 `yaml:"context_weight"`
	TruthWeight   float64 `yaml:"truth_weight"`
	RiskWeight    float64 `yaml:"risk_weight"`

	// Default: 0.7
	ApproveThreshold float64 `yaml:"approve_threshold"`

	// Default: 0.4
	EscalateThreshold float64 `yaml:"escalate_threshold"`

	// Warning limits. Default: 0.3 / 0.6 / 0.7
	MinContextScore float64 `yaml:"min_context_score"`
	MinTruthScore   float64 `yaml:"min_truth_score"`
	MaxRiskScore    float64 `yaml:"max_risk_score"`
}

// CollaboratorsConfig configures the advisory services.
type CollaboratorsConfig struct {
	Context CollaboratorConfig `yaml:"context"`
	Truth   CollaboratorConfig `yaml:"truth"`
	Risk    CollaboratorConfig `yaml:"risk"`
}

// CollaboratorConfig configures one HTTP collaborator. A disabled
// collaborator is unregistered and its level is skipped.
type CollaboratorConfig struct {
	// Enabled registers the collaborator.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint receives a POST with the JSON action.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds each HTTP request.
	// Default: the orchestrator level timeout
	Timeout time.Duration `yaml:"timeout"`

	// Headers are sent with every request. "${VAR}" references in values are
	// expanded.
	Headers map[string]string `yaml:"headers"`
}

// AuditConfig configures the durable decision log.
type AuditConfig struct {
	// Enabled attaches the audit recorder to the orchestrator.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend is "memory", "sqlite", "sqlite-pure", or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig configures the SQLite backends.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig configures the PostgreSQL backend. DSN wins over the
// individual fields when set.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Default: "require"
	SSLMode string `yaml:"ssl_mode"`

	// Default: 10 / 5
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// ConnectionString returns a lib/pq URL for the configured database.
func (p PostgresConfig) ConnectionString() string {
	if p.DSN != "" {
		return p.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RecorderConfig configures the async audit recorder.
type RecorderConfig struct {
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RedactKeys are action parameter names hashed before storage.
	// Default: password, secret, token, api_key, account_number, ...
	RedactKeys []string `yaml:"redact_keys"`

	// MaxFieldLength truncates long string parameters.
	// Default: 500
	MaxFieldLength int `yaml:"max_field_length"`
}

// RetentionConfig configures audit pruning.
type RetentionConfig struct {
	// Default: 90. A negative value keeps records forever.
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression. Empty disables scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned records to ArchivePath.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`

	// MaxRecords caps the store size. 0 is unlimited.
	// Default: 0 (unlimited)
	MaxRecords int64 `yaml:"max_records"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII hides sensitive keys and scrubs secrets from log values.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns are extra value patterns to scrub.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "gatekeeper"
	Namespace string `yaml:"namespace"`

	// Subsystem is an optional second prefix.
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are histogram buckets in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// MaxActionTypes caps distinct action_type label values.
	// Default: 100
	MaxActionTypes int `yaml:"max_action_types"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// RequestsPerSecond limits health endpoint traffic. A negative value disables
	// the limit.
	// Default: 20
	RequestsPerSecond int `yaml:"requests_per_second"`
}
