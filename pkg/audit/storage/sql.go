package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver (cgo)
	_ "modernc.org/sqlite"          // SQLite driver (pure Go)

	"mercator-hq/gatekeeper/pkg/audit"
)

// Backend names.
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendSQLitePure = "sqlite-pure"
	BackendPostgres   = "postgres"
)

// Config contains configuration for the SQL storage backends.
type Config struct {
	// Backend selects the driver: "memory", "sqlite", "sqlite-pure", or
	// "postgres".
	Backend string

	// Path is the database file for the SQLite backends.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables SQLite write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendSQLite,
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Open creates the storage backend named by cfg.Backend.
func Open(cfg Config) (audit.Storage, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStorage(), nil
	case BackendSQLite, BackendSQLitePure, BackendPostgres:
		return NewSQLStorage(cfg)
	default:
		return nil, audit.NewStorageError(cfg.Backend, "open", fmt.Errorf("unknown backend %q", cfg.Backend))
	}
}

// dialect captures the differences between the SQL backends.
type dialect struct {
	driver      string
	dollarBinds bool
	pragmas     bool
}

var dialects = map[string]dialect{
	BackendSQLite:     {driver: "sqlite3", pragmas: true},
	BackendSQLitePure: {driver: "sqlite", pragmas: true},
	BackendPostgres:   {driver: "postgres", dollarBinds: true},
}

// SQLStorage implements audit.Storage on database/sql. The same schema and
// queries serve SQLite (cgo or pure Go) and PostgreSQL.
type SQLStorage struct {
	db      *sql.DB
	config  Config
	dialect dialect
	logger  *slog.Logger
}

// NewSQLStorage opens the database and applies the schema.
func NewSQLStorage(cfg Config) (*SQLStorage, error) {
	d, ok := dialects[cfg.Backend]
	if !ok {
		return nil, audit.NewStorageError(cfg.Backend, "open", fmt.Errorf("unknown backend %q", cfg.Backend))
	}

	source := cfg.Path
	if cfg.Backend == BackendPostgres {
		source = cfg.DSN
	}
	if source == "" {
		return nil, audit.NewStorageError(cfg.Backend, "open", fmt.Errorf("database path or DSN is required"))
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open(d.driver, source)
	if err != nil {
		return nil, audit.NewStorageError(cfg.Backend, "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLStorage{
		db:      db,
		config:  cfg,
		dialect: d,
		logger:  slog.Default().With("component", "audit.storage", "backend", cfg.Backend),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit storage initialized",
		"wal_mode", cfg.WALMode && d.pragmas,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLStorage) initialize() error {
	backend := s.config.Backend

	if s.dialect.pragmas {
		if s.config.WALMode {
			if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
				return audit.NewStorageError(backend, "enable_wal", err)
			}
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
			return audit.NewStorageError(backend, "set_busy_timeout", err)
		}
	}

	for _, stmt := range Schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return audit.NewStorageError(backend, "create_schema", err)
		}
	}

	if _, err := s.db.Exec(s.rebind(InsertSchemaVersion), SchemaVersion, time.Now().UnixNano()); err != nil {
		return audit.NewStorageError(backend, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return audit.NewStorageError(backend, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError(backend, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists a record.
func (s *SQLStorage) Store(ctx context.Context, r *audit.Record) error {
	executedLevels, _ := json.Marshal(r.ExecutedLevels)
	violations, _ := json.Marshal(r.Violations)
	rulesChecked, _ := json.Marshal(r.RulesChecked)
	warnings, _ := json.Marshal(r.Warnings)
	reasoning, _ := json.Marshal(r.ReasoningPath)

	query := `INSERT INTO audit_records (` + recordColumns + `) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
	)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		r.ID, r.DecisionID, r.ActionID,
		r.DecidedAt.UnixNano(), r.RecordedAt.UnixNano(),
		r.Agent, r.ActionType,
		r.FinalDecision, r.Confidence, r.Path, string(executedLevels),
		r.Approved, r.ComplianceScore, string(violations), string(rulesChecked), r.RuleSetVersion,
		string(warnings), string(reasoning), r.DurationMs,
		r.ActionJSON, r.ContentHash,
	)
	if err != nil {
		return audit.NewStorageError(s.config.Backend, "store", err)
	}
	return nil
}

// Query returns records matching q.
func (s *SQLStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	if err := audit.ValidateQuery(q); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)
	query := "SELECT " + recordColumns + " FROM audit_records"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + orderBy(q)

	limit := 100
	if q.Limit > 0 {
		limit = q.Limit
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, audit.NewStorageError(s.config.Backend, "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, audit.NewStorageError(s.config.Backend, "scan", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(s.config.Backend, "query", err)
	}
	return records, nil
}

// Count returns the number of records matching q. Pagination is ignored.
func (s *SQLStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if q == nil {
		q = &audit.Query{}
	}
	where, args := buildWhereClause(q)
	query := "SELECT COUNT(*) FROM audit_records"
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError(s.config.Backend, "count", err)
	}
	return count, nil
}

// Delete removes records matching q. Pagination is ignored.
func (s *SQLStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	if q == nil {
		q = &audit.Query{}
	}
	where, args := buildWhereClause(q)
	query := "DELETE FROM audit_records"
	if where != "" {
		query += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, audit.NewStorageError(s.config.Backend, "delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError(s.config.Backend, "delete", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError(s.config.Backend, "close", err)
	}
	s.logger.Info("audit storage closed")
	return nil
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if !s.dialect.dollarBinds {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var sortColumns = map[string]string{
	"":           "decided_at",
	"decided_at": "decided_at",
	"confidence": "confidence",
	"duration":   "duration_ms",
}

func orderBy(q *audit.Query) string {
	col := sortColumns[q.SortBy]
	if col == "" {
		col = "decided_at"
	}
	order := "DESC"
	if q.SortOrder == "asc" {
		order = "ASC"
	}
	return col + " " + order + ", id " + order
}

// buildWhereClause builds the WHERE clause (without the keyword) and its
// arguments.
func buildWhereClause(q *audit.Query) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if q.StartTime != nil {
		conditions = append(conditions, "decided_at >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "decided_at <= ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.Agent != "" {
		conditions = append(conditions, "agent = ?")
		args = append(args, q.Agent)
	}
	if q.ActionType != "" {
		conditions = append(conditions, "action_type = ?")
		args = append(args, q.ActionType)
	}
	if q.FinalDecision != "" {
		conditions = append(conditions, "final_decision = ?")
		args = append(args, q.FinalDecision)
	}
	if q.Path != "" {
		conditions = append(conditions, "path = ?")
		args = append(args, q.Path)
	}
	if q.DecisionID != "" {
		conditions = append(conditions, "decision_id = ?")
		args = append(args, q.DecisionID)
	}
	if q.MinConfidence != nil {
		conditions = append(conditions, "confidence >= ?")
		args = append(args, *q.MinConfidence)
	}
	if q.MaxConfidence != nil {
		conditions = append(conditions, "confidence <= ?")
		args = append(args, *q.MaxConfidence)
	}

	return strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*audit.Record, error) {
	var (
		r                     audit.Record
		decidedAt, recordedAt int64
		durationMs            sql.NullFloat64

		actionID, agent, actionType, ruleSetVersion  sql.NullString
		executedLevels, violations, rulesChecked     sql.NullString
		warnings, reasoning, actionJSON, contentHash sql.NullString
	)

	err := rows.Scan(
		&r.ID, &r.DecisionID, &actionID,
		&decidedAt, &recordedAt,
		&agent, &actionType,
		&r.FinalDecision, &r.Confidence, &r.Path, &executedLevels,
		&r.Approved, &r.ComplianceScore, &violations, &rulesChecked, &ruleSetVersion,
		&warnings, &reasoning, &durationMs,
		&actionJSON, &contentHash,
	)
	if err != nil {
		return nil, err
	}

	r.ActionID = actionID.String
	r.DecidedAt = time.Unix(0, decidedAt).UTC()
	r.RecordedAt = time.Unix(0, recordedAt).UTC()
	r.Agent = agent.String
	r.ActionType = actionType.String
	r.RuleSetVersion = ruleSetVersion.String
	r.DurationMs = durationMs.Float64
	r.ActionJSON = actionJSON.String
	r.ContentHash = contentHash.String

	for _, field := range []struct {
		raw  sql.NullString
		dest any
	}{
		{executedLevels, &r.ExecutedLevels},
		{violations, &r.Violations},
		{rulesChecked, &r.RulesChecked},
		{warnings, &r.Warnings},
		{reasoning, &r.ReasoningPath},
	} {
		if field.raw.Valid && field.raw.String != "" {
			if err := json.Unmarshal([]byte(field.raw.String), field.dest); err != nil {
				return nil, fmt.Errorf("decode column: %w", err)
			}
		}
	}

	return &r, nil
}
