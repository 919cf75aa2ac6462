// Package storage provides the local persistent key-value store backing the
// session store and the roster cache. Namespaces keep the two apart; all
// access is synchronous and single-writer by convention.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// NamespaceSession holds the serialized session credential/identity.
	NamespaceSession = "session"
	// NamespaceRoster holds the serialized roster array.
	NamespaceRoster = "roster"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite KV file at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous = NORMAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// migrate creates the kv table. Idempotent.
func (s *Store) migrate() error {
	const sqlStmt = `
CREATE TABLE IF NOT EXISTS kv (
  namespace TEXT NOT NULL,
  key TEXT NOT NULL,
  value BLOB NOT NULL,
  updated_at INTEGER NOT NULL, -- unix micro
  PRIMARY KEY (namespace, key)
);
`
	if _, err := s.db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("migrate kv: %w", err)
	}
	return nil
}

// Put writes value under (namespace, key), replacing any previous value.
func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	const q = `
INSERT OR REPLACE INTO kv (namespace, key, value, updated_at)
VALUES (?, ?, ?, ?);
`
	_, err := s.db.ExecContext(ctx, q, namespace, key, value, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get returns the value stored under (namespace, key) or ErrNoRows.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	const q = `
SELECT value FROM kv WHERE namespace = ? AND key = ? LIMIT 1;
`
	var value []byte
	if err := s.db.QueryRowContext(ctx, q, namespace, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

// Delete removes the value under (namespace, key). Deleting a missing key
// is not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	const q = `
DELETE FROM kv WHERE namespace = ? AND key = ?;
`
	if _, err := s.db.ExecContext(ctx, q, namespace, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}
