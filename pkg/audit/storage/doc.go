// Package storage provides storage backends for audit records.
//
// # Backends
//
//   - sqlite: SQLite through github.com/mattn/go-sqlite3 (cgo)
//   - sqlite-pure: SQLite through modernc.org/sqlite, for cgo-free builds
//   - postgres: PostgreSQL through github.com/lib/pq
//   - memory: in-process map, lost on restart
//
// The SQL backends share one schema and one set of queries. Placeholders are
// written as '?' and rewritten to '$n' for PostgreSQL.
//
// # Basic Usage
//
//	s, err := storage.Open(storage.Config{
//	    Backend: storage.BackendSQLite,
//	    Path:    "data/audit.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	records, err := s.Query(ctx, &audit.Query{Agent: "alpha", Limit: 50})
package storage
