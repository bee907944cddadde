package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// TimeLayout is the format for timestamps persisted as TEXT. The fraction is
// fixed-width (RFC3339Nano drops trailing zeros), so lexicographic comparison
// in SQL matches chronological order. Always format UTC values; parse with
// time.RFC3339Nano, which accepts this layout.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS execution_log (
  id             TEXT PRIMARY KEY,
  function       TEXT NOT NULL,
  params         JSON NOT NULL,
  caller_hash    TEXT NOT NULL,
  status         TEXT NOT NULL,
  error_details  TEXT,
  result_summary TEXT,
  duration_ms    INTEGER NOT NULL,
  created_at     TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS failed_requests (
  id            TEXT PRIMARY KEY,
  function      TEXT NOT NULL,
  caller_hash   TEXT NOT NULL,
  error_kind    TEXT NOT NULL,
  error_details TEXT,
  retry_count   INTEGER NOT NULL DEFAULT 0,
  next_retry_at TEXT NOT NULL,
  resolved      INTEGER NOT NULL DEFAULT 0,
  query_hash    TEXT,
  message_hash  TEXT,
  replay_params JSON,
  created_at    TEXT NOT NULL,
  updated_at    TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS threads (
  id         TEXT PRIMARY KEY,
  title      TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS messages (
  id         TEXT PRIMARY KEY,
  thread_id  TEXT NOT NULL REFERENCES threads(id),
  sender_id  TEXT NOT NULL,
  body       TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS thread_members (
  thread_id TEXT NOT NULL REFERENCES threads(id),
  user_id   TEXT NOT NULL,
  PRIMARY KEY (thread_id, user_id)
);`,
		`CREATE INDEX IF NOT EXISTS execution_log_function_created_at_idx ON execution_log(function, created_at);`,
		`CREATE INDEX IF NOT EXISTS execution_log_status_created_at_idx ON execution_log(status, created_at);`,
		`CREATE INDEX IF NOT EXISTS failed_requests_resolved_next_retry_idx ON failed_requests(resolved, next_retry_at);`,
		`CREATE INDEX IF NOT EXISTS messages_thread_created_at_idx ON messages(thread_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
