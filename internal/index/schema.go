// Package index provides the SQLite-backed inverted index over notes,
// with FTS5 full-text search behind the sqlite_fts5 build tag.
package index

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

// schemaVersion is recorded in PRAGMA user_version. An index file written
// by a different schema is discarded and rebuilt by the next sync pass.
const schemaVersion = 1

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path     TEXT PRIMARY KEY,
	title    TEXT NOT NULL DEFAULT '',
	tags     TEXT NOT NULL DEFAULT '',
	body     TEXT NOT NULL DEFAULT '',
	mtime_ns INTEGER NOT NULL DEFAULT 0,
	size     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS note_tags (
	path TEXT NOT NULL,
	tag  TEXT NOT NULL,
	UNIQUE(path, tag)
);

CREATE INDEX IF NOT EXISTS idx_note_tags_tag ON note_tags(tag);
CREATE INDEX IF NOT EXISTS idx_notes_mtime ON notes(mtime_ns);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the index database at path and applies the schema.
// A file that fails the integrity check or carries a different schema
// version is deleted and recreated empty; the next sync pass rebuilds its
// contents from the notes directory, so corruption is never fatal.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: create dir: %w", err)
	}
	db, err := open(path)
	if err == nil {
		return db, nil
	}
	if !errors.Is(err, apperr.ErrIndexCorrupt) {
		return nil, err
	}
	slog.Warn("index: discarding unusable index file",
		slog.String("path", path),
		slog.String("error", err.Error()))
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return open(path)
}

func open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			conn.Close()
		}
	}()

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("index: ping: %v: %w", err, apperr.ErrIndexCorrupt)
	}

	var check string
	if err := conn.QueryRow(`PRAGMA quick_check`).Scan(&check); err != nil || check != "ok" {
		return nil, fmt.Errorf("index: quick_check = %q (%v): %w", check, err, apperr.ErrIndexCorrupt)
	}

	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return nil, fmt.Errorf("index: read user_version: %w", err)
	}
	if version != 0 && version != schemaVersion {
		return nil, fmt.Errorf("index: schema version %d, want %d: %w", version, schemaVersion, apperr.ErrIndexCorrupt)
	}

	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		return nil, fmt.Errorf("index: apply core schema: %v: %w", err, apperr.ErrIndexCorrupt)
	}
	if err := initFTS(conn); err != nil {
		return nil, fmt.Errorf("index: apply fts schema: %v: %w", err, apperr.ErrIndexCorrupt)
	}
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return nil, fmt.Errorf("index: set user_version: %w", err)
	}

	ok = true
	return &DB{conn: conn, path: path}, nil
}

// Commit forces all pending WAL content into the main database file.
// Completed transactions are already visible in-process before Commit;
// the checkpoint is the durability barrier across a crash.
func (db *DB) Commit() error {
	if _, err := db.conn.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("index: checkpoint: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
