package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// Entry is the indexed projection of one note, keyed by path. The signal is
// the freshness value observed when the entry was built; the sync engine
// compares it against the live file to detect drift.
type Entry struct {
	Path   string
	Title  string
	Tags   []string
	Signal models.Signal
}

// TagCount is one distinct tag with the number of notes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Upsert atomically replaces or inserts the entry for e.Path, including its
// tag rows and full-text record. A failed upsert leaves the previous entry
// untouched; readers never observe a half-written one.
func (db *DB) Upsert(e Entry, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Tags are stripped from title and body during parsing, so they are
	// carried as their own searchable field as well as filter rows.
	tagsText := strings.Join(e.Tags, " ")
	_, err = tx.Exec(`
		INSERT INTO notes (path, title, tags, body, mtime_ns, size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title    = excluded.title,
			tags     = excluded.tags,
			body     = excluded.body,
			mtime_ns = excluded.mtime_ns,
			size     = excluded.size
	`, e.Path, e.Title, tagsText, body, e.Signal.ModTime.UnixNano(), e.Signal.Size)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// Replace tags: delete old rows then bulk insert.
	if _, err := tx.Exec(`DELETE FROM note_tags WHERE path = ?`, e.Path); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if len(e.Tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO note_tags (path, tag) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range e.Tags {
			if _, err := stmt.Exec(e.Path, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	// FTS upsert (no-op when the sqlite_fts5 tag is absent).
	if err := ftsUpsert(tx, e.Path, e.Title, tagsText, body); err != nil {
		return err
	}

	return tx.Commit()
}

// Remove deletes the entry for path along with its tags and full-text
// record. Removing an absent path is a no-op, not an error.
func (db *DB) Remove(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM note_tags WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}

	return tx.Commit()
}

// AllSignals returns the freshness signal of every indexed entry, keyed by
// path. This is the index side of the sync engine's diff.
func (db *DB) AllSignals() (map[string]models.Signal, error) {
	rows, err := db.conn.Query(`SELECT path, mtime_ns, size FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all signals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.Signal)
	for rows.Next() {
		var (
			p     string
			mtime int64
			size  int64
		)
		if err := rows.Scan(&p, &mtime, &size); err != nil {
			return nil, err
		}
		out[p] = models.Signal{ModTime: time.Unix(0, mtime), Size: size}
	}
	return out, rows.Err()
}

// ListTags returns every distinct tag across current entries with its note
// count, sorted by tag. The tag vocabulary is derived entirely from entries;
// there is no separate tag table that can drift.
func (db *DB) ListTags() ([]TagCount, error) {
	rows, err := db.conn.Query(`SELECT tag, COUNT(*) FROM note_tags GROUP BY tag ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("index: list tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
