package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultMaxBodyBytes    = int64(1 << 20)
	DefaultRateLimitRPS    = 50.0
	DefaultRateLimitBurst  = 100
	DefaultRateLimitAgents = 10000

	// Rules defaults
	DefaultRulesSource        = "builtin"
	DefaultRulesPath          = "./rules.yaml"
	DefaultRulesWatchDebounce = 500 * time.Millisecond
	DefaultGitBranch          = "main"
	DefaultGitFile            = "rules.yaml"
	DefaultGitDepth           = 1
	DefaultGitTimeout         = 30 * time.Second
	DefaultGitAuthType        = "none"

	// Orchestrator defaults
	DefaultLevelTimeout      = 150 * time.Millisecond
	DefaultFullPathBudget    = 400 * time.Millisecond
	DefaultReviewBandLow     = 0.90
	DefaultReviewBandHigh    = 0.95
	DefaultMaxRulesChecked   = 5
	DefaultMaxParameters     = 6
	DefaultHistorySize       = 1000
	DefaultContextWeight     = 0.3
	DefaultTruthWeight       = 0.5
	DefaultRiskWeight        = 0.7
	DefaultApproveThreshold  = 0.7
	DefaultEscalateThreshold = 0.4
	DefaultMinContextScore   = 0.3
	DefaultMinTruthScore     = 0.6
	DefaultMaxRiskScore      = 0.7

	// Audit defaults
	DefaultAuditBackend           = "sqlite"
	DefaultSQLitePath             = "data/audit.db"
	DefaultSQLiteMaxOpenConns     = 10
	DefaultSQLiteMaxIdleConns     = 5
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultPostgresPort           = 5432
	DefaultPostgresSSLMode        = "require"
	DefaultPostgresMaxOpenConns   = 10
	DefaultPostgresMaxIdleConns   = 5
	DefaultRecorderBufferSize     = 1000
	DefaultRecorderWriteTimeout   = 5 * time.Second
	DefaultRecorderMaxFieldLength = 500
	DefaultRetentionDays          = 90
	DefaultRetentionSchedule      = "0 3 * * *"
	DefaultRetentionArchivePath   = "data/archives/"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "gatekeeper"
	DefaultMaxActionTypes     = 100
	DefaultHealthCheckTimeout = 2 * time.Second
	DefaultHealthRPS          = 20
)

var (
	// DefaultSimpleActionTypes may take the fast path.
	DefaultSimpleActionTypes = []string{"query", "read", "list", "get", "search", "status", "describe"}

	// DefaultHighStakesActionTypes always take the full path.
	DefaultHighStakesActionTypes = []string{"trade", "execute", "delete", "transfer", "modify"}

	// DefaultClaimKeywords trigger truth verification.
	DefaultClaimKeywords = []string{
		"guarantee", "guaranteed", "certain", "proven", "definitely", "risk-free",
		"always", "never", "100%", "verified", "studies show", "according to", "fact",
	}

	// DefaultRedactKeys are action parameters hashed in audit records.
	DefaultRedactKeys = []string{
		"password", "secret", "token", "api_key", "apikey", "private_key",
		"credentials", "ssn", "card_number", "authorization",
	}
)

// Default returns a configuration with every default applied, including the
// boolean defaults that ApplyDefaults cannot infer from zero values.
func Default() *Config {
	cfg := &Config{}
	cfg.Audit.SQLite.WALMode = true
	cfg.Telemetry.Logging.RedactPII = true
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values. It is
// idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyRulesDefaults(&cfg.Rules)
	applyOrchestratorDefaults(&cfg.Orchestrator)
	applyCollaboratorDefaults(&cfg.Collaborators, cfg.Orchestrator.LevelTimeout)
	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.RateLimit.RequestsPerSecond == 0 {
		s.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = DefaultRateLimitBurst
	}
	if s.RateLimit.MaxAgents == 0 {
		s.RateLimit.MaxAgents = DefaultRateLimitAgents
	}
}

func applyRulesDefaults(r *RulesConfig) {
	if r.Source == "" {
		r.Source = DefaultRulesSource
	}
	if r.Path == "" {
		r.Path = DefaultRulesPath
	}
	if r.WatchDebounce == 0 {
		r.WatchDebounce = DefaultRulesWatchDebounce
	}
	if r.Git.Branch == "" {
		r.Git.Branch = DefaultGitBranch
	}
	if r.Git.File == "" {
		r.Git.File = DefaultGitFile
	}
	if r.Git.Depth == 0 {
		r.Git.Depth = DefaultGitDepth
	}
	if r.Git.Timeout == 0 {
		r.Git.Timeout = DefaultGitTimeout
	}
	if r.Git.Auth.Type == "" {
		r.Git.Auth.Type = DefaultGitAuthType
	}
}

func applyOrchestratorDefaults(o *OrchestratorConfig) {
	if o.LevelTimeout == 0 {
		o.LevelTimeout = DefaultLevelTimeout
	}
	if o.FullPathBudget == 0 {
		o.FullPathBudget = DefaultFullPathBudget
	}
	if o.ReviewBandLow == 0 && o.ReviewBandHigh == 0 {
		o.ReviewBandLow = DefaultReviewBandLow
		o.ReviewBandHigh = DefaultReviewBandHigh
	}
	if o.SimpleActionTypes == nil {
		o.SimpleActionTypes = append([]string(nil), DefaultSimpleActionTypes...)
	}
	if o.HighStakesActionTypes == nil {
		o.HighStakesActionTypes = append([]string(nil), DefaultHighStakesActionTypes...)
	}
	if o.MaxRulesChecked == 0 {
		o.MaxRulesChecked = DefaultMaxRulesChecked
	}
	if o.MaxParameters == 0 {
		o.MaxParameters = DefaultMaxParameters
	}
	if o.ClaimKeywords == nil {
		o.ClaimKeywords = append([]string(nil), DefaultClaimKeywords...)
	}
	if o.HistorySize == 0 {
		o.HistorySize = DefaultHistorySize
	}

	s := &o.Synthesis
	if s.ContextWeight == 0 {
		s.ContextWeight = DefaultContextWeight
	}
	if s.TruthWeight == 0 {
		s.TruthWeight = DefaultTruthWeight
	}
	if s.RiskWeight == 0 {
		s.RiskWeight = DefaultRiskWeight
	}
	if s.ApproveThreshold == 0 && s.EscalateThreshold == 0 {
		s.ApproveThreshold = DefaultApproveThreshold
		s.EscalateThreshold = DefaultEscalateThreshold
	}
	if s.MinContextScore == 0 {
		s.MinContextScore = DefaultMinContextScore
	}
	if s.MinTruthScore == 0 {
		s.MinTruthScore = DefaultMinTruthScore
	}
	if s.MaxRiskScore == 0 {
		s.MaxRiskScore = DefaultMaxRiskScore
	}
}

func applyCollaboratorDefaults(c *CollaboratorsConfig, levelTimeout time.Duration) {
	for _, collab := range []*CollaboratorConfig{&c.Context, &c.Truth, &c.Risk} {
		if collab.Timeout == 0 {
			collab.Timeout = levelTimeout
		}
	}
}

func applyAuditDefaults(a *AuditConfig) {
	if a.Backend == "" {
		a.Backend = DefaultAuditBackend
	}
	if a.SQLite.Path == "" {
		a.SQLite.Path = DefaultSQLitePath
	}
	if a.SQLite.MaxOpenConns == 0 {
		a.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if a.SQLite.MaxIdleConns == 0 {
		a.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if a.SQLite.BusyTimeout == 0 {
		a.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if a.Postgres.Port == 0 {
		a.Postgres.Port = DefaultPostgresPort
	}
	if a.Postgres.SSLMode == "" {
		a.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if a.Postgres.MaxOpenConns == 0 {
		a.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if a.Postgres.MaxIdleConns == 0 {
		a.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}
	if a.Recorder.BufferSize == 0 {
		a.Recorder.BufferSize = DefaultRecorderBufferSize
	}
	if a.Recorder.WriteTimeout == 0 {
		a.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if a.Recorder.RedactKeys == nil {
		a.Recorder.RedactKeys = append([]string(nil), DefaultRedactKeys...)
	}
	if a.Recorder.MaxFieldLength == 0 {
		a.Recorder.MaxFieldLength = DefaultRecorderMaxFieldLength
	}
	if a.Retention.Days == 0 {
		a.Retention.Days = DefaultRetentionDays
	}
	if a.Retention.PruneSchedule == "" {
		a.Retention.PruneSchedule = DefaultRetentionSchedule
	}
	if a.Retention.ArchivePath == "" {
		a.Retention.ArchivePath = DefaultRetentionArchivePath
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.MaxActionTypes == 0 {
		t.Metrics.MaxActionTypes = DefaultMaxActionTypes
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
	if t.Health.RequestsPerSecond == 0 {
		t.Health.RequestsPerSecond = DefaultHealthRPS
	}
}
