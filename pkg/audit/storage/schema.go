package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the audit tables. Timestamps are stored as Unix nanoseconds
// so that ordering and range filters behave the same on every backend, and
// the column types are accepted by both SQLite and PostgreSQL.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL,
    action_id TEXT,

    -- Timestamps (Unix nanoseconds)
    decided_at BIGINT NOT NULL,
    recorded_at BIGINT NOT NULL,

    agent TEXT,
    action_type TEXT,

    -- Verdict
    final_decision TEXT NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    path TEXT NOT NULL,
    executed_levels TEXT,

    -- Rule validation
    approved BOOLEAN NOT NULL,
    compliance_score DOUBLE PRECISION NOT NULL,
    violations TEXT,
    rules_checked TEXT,
    rule_set_version TEXT,

    warnings TEXT,
    reasoning_path TEXT,
    duration_ms DOUBLE PRECISION,

    action_json TEXT,
    content_hash TEXT
)`,
	`CREATE TABLE IF NOT EXISTS audit_schema_version (
    version INTEGER PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_decided_at ON audit_records(decided_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_records(agent)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_action_type ON audit_records(action_type)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_final_decision ON audit_records(final_decision)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_decision_id ON audit_records(decision_id)`,
}

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT INTO audit_schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT (version) DO NOTHING`

// GetSchemaVersion returns the newest applied schema version.
const GetSchemaVersion = `
SELECT version FROM audit_schema_version ORDER BY version DESC LIMIT 1`

const recordColumns = `id, decision_id, action_id,
    decided_at, recorded_at,
    agent, action_type,
    final_decision, confidence, path, executed_levels,
    approved, compliance_score, violations, rules_checked, rule_set_version,
    warnings, reasoning_path, duration_ms,
    action_json, content_hash`
