// Package db provides the local transaction store backed by embedded SQLite.
//
// The local store is the authoritative source of truth for everything the
// rest of the application reads. The remote store is only ever touched by
// the reconciliation protocol; nothing in this package talks to the network.
//
// The database runs in embedded mode (ncruces/go-sqlite3) with WAL enabled,
// so UI reads can proceed concurrently with the coordinator's small
// bookkeeping writes.
//
// Besides transaction rows the store keeps a pending_remote_deletes queue:
// deleting a transaction that has a remote counterpart enqueues the remote
// row id in the same local transaction, and push passes drain the queue
// until the remote delete eventually succeeds.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection holding the local ledger.
type Store struct {
	conn *sql.DB
	path string

	observers
}

// Status is the aggregate sync state of the local store, computed on demand
// by scanning the transactions table, never cached.
type Status struct {
	Total    int `json:"total"`
	Synced   int `json:"synced"`
	Unsynced int `json:"unsynced"`
}

// Open creates a new store at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the file doesn't exist it is created; call InitSchema before use.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, &StorageError{Op: "open", Err: fmt.Errorf("%s: %w", pragma, err)}
		}
	}

	return s, nil
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist.
// Idempotent; safe to call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		category_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		occurred_on TEXT NOT NULL,  -- YYYY-MM-DD, lexicographically ordered
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		remote_id INTEGER
	);

	-- Remote rows whose local counterpart was deleted while the remote
	-- delete had not succeeded yet. Drained by push passes.
	CREATE TABLE IF NOT EXISTS pending_remote_deletes (
		remote_id INTEGER PRIMARY KEY,
		queued_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_synced ON transactions(synced);
	CREATE INDEX IF NOT EXISTS idx_transactions_occurred ON transactions(occurred_on);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return &StorageError{Op: "init schema", Err: err}
	}
	return nil
}

// Status computes the aggregate sync counts by scanning the store.
func (s *Store) Status(ctx context.Context) (Status, error) {
	var st Status
	row := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(synced), 0) FROM transactions`)
	if err := row.Scan(&st.Total, &st.Synced); err != nil {
		return Status{}, &StorageError{Op: "status", Err: err}
	}
	st.Unsynced = st.Total - st.Synced
	return st, nil
}

// Reset deletes every transaction and queued remote delete. This is the
// diagnostics surface behind the debug flag; it is never called by sync.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return &StorageError{Op: "reset", Err: err}
	}
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM pending_remote_deletes`); err != nil {
		return &StorageError{Op: "reset", Err: err}
	}
	return nil
}
