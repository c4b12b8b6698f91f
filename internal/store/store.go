// Package db implements the Store component: a single-writer
// embedded SQLite store accessed through typed accessors, with WAL journaling
// and additive-only migrations.
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the embedded database handle. All accessors in this package
// take the handle directly; single-writer discipline comes from SQLite's
// own WAL write lock (arbitrated by busy_timeout), not from an in-process
// lock, so reads on other pooled connections proceed in parallel with a
// write.
type Store struct {
	DB *sql.DB
}

// maxOpenConns bounds the read pool. WAL allows any number of readers
// alongside the single writer; a handful is plenty for a local hub.
const maxOpenConns = 8

// Open opens (creating if necessary) the SQLite store at path, applies the
// pragmatic defaults (foreign keys, WAL, busy timeout, relaxed synchronous),
// and runs schema initialization.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	// The pragmas ride the DSN so every pooled connection gets them;
	// per-connection state set via Exec would only reach the connection
	// that happened to run it.
	dsn := "file:" + path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxOpenConns)

	if err := InitSchema(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Store{DB: conn}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}
