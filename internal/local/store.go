// Package local provides the durable on-device store for stream data.
//
// The store is an embedded SQLite database (ncruces/go-sqlite3) holding one
// row per stream key with a JSON-serialized value. All access is synchronous
// and fast; the store is the source of truth for guests and the offline
// cache for authenticated users. It must survive process restart, so every
// write goes straight to disk.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection holding stream values.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store database at the given path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the store, checkpointing the WAL so all writes land in the
// main database file.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	s.conn = nil
	return nil
}

// initSchema creates the streams table. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS streams (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get returns the stored JSON value for key, or nil when the key is absent.
//
// Values that fail to parse as JSON are treated as absent: corrupt data in
// the local store must never crash a stream, it initializes empty instead.
func (s *Store) Get(key string) (json.RawMessage, error) {
	return s.GetContext(context.Background(), key)
}

// GetContext returns the stored value for key with context support.
func (s *Store) GetContext(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM streams WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	if !json.Valid([]byte(value)) {
		return nil, nil
	}
	return json.RawMessage(value), nil
}

// Put stores the JSON value under key, replacing any existing value.
func (s *Store) Put(key string, value json.RawMessage) error {
	return s.PutContext(context.Background(), key, value)
}

// PutContext stores a value with context support.
func (s *Store) PutContext(ctx context.Context, key string, value json.RawMessage) error {
	query := `
	INSERT INTO streams (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query, key, string(value), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Returns nil if the key doesn't exist (idempotent).
func (s *Store) Delete(key string) error {
	_, err := s.conn.Exec("DELETE FROM streams WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// UpdatedAt returns the last write time for key, or the zero time when the
// key is absent.
func (s *Store) UpdatedAt(key string) (time.Time, error) {
	var raw string
	err := s.conn.QueryRow("SELECT updated_at FROM streams WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read updated_at for %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

// Keys returns every stored key in lexical order.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.conn.Query("SELECT key FROM streams ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}

// PutRaw stores a value without JSON validation. Used by tests to simulate
// corrupt persisted data.
func (s *Store) PutRaw(key, value string) error {
	query := `
	INSERT INTO streams (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.Exec(query, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}
