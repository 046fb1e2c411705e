// Package audit implements the execution audit trail (SPEC_FULL.md §C.4):
// a local sqlite database recording request metadata only. It never stores
// the guest program's return value or captured console output, respecting
// the "no persistent result storage" non-goal (spec.md §1) — this is a
// metadata log for operators, not a result cache.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the execution audit database.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens an audit database at path. An empty path disables
// the audit trail; the returned Store is a no-op.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cache_key TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		success INTEGER NOT NULL,
		used_cache INTEGER NOT NULL,
		install_ms INTEGER NOT NULL,
		execution_ms INTEGER NOT NULL,
		total_ms INTEGER NOT NULL,
		error_kind TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_executions_cache_key ON executions(cache_key);
	CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record is one logged execution's metadata. It deliberately excludes the
// guest program's data and console output.
type Record struct {
	CacheKey    string
	StartedAt   time.Time
	Success     bool
	UsedCache   bool
	InstallMs   int64
	ExecutionMs int64
	TotalMs     int64
	ErrorKind   string
}

// Insert appends one execution record. A no-op when the store was opened
// with an empty path.
func (s *Store) Insert(r Record) error {
	if s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO executions (cache_key, started_at, success, used_cache, install_ms, execution_ms, total_ms, error_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.CacheKey, r.StartedAt, r.Success, r.UsedCache, r.InstallMs, r.ExecutionMs, r.TotalMs, r.ErrorKind)
	return err
}

// RecentByCacheKey returns the most recent records for cacheKey, newest
// first, capped at limit.
func (s *Store) RecentByCacheKey(cacheKey string, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT cache_key, started_at, success, used_cache, install_ms, execution_ms, total_ms, error_kind
		FROM executions
		WHERE cache_key = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, cacheKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var errorKind sql.NullString
		if err := rows.Scan(&r.CacheKey, &r.StartedAt, &r.Success, &r.UsedCache, &r.InstallMs, &r.ExecutionMs, &r.TotalMs, &errorKind); err != nil {
			continue
		}
		r.ErrorKind = errorKind.String
		records = append(records, r)
	}
	return records, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
