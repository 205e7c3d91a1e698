//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			path UNINDEXED,
			title,
			tags,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, tags, body string) error {
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts (path, title, tags, body) VALUES (?, ?, ?, ?)`,
		path, title, tags, body); err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM notes_fts WHERE path = ?`, path)
}

// matchExpr builds a safe FTS5 MATCH expression: every token is quoted so
// user input cannot inject FTS5 syntax; prefix tokens get the trailing star
// outside the quotes.
func matchExpr(tokens []token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		quoted := `"` + strings.ReplaceAll(t.text, `"`, `""`) + `"`
		if t.kind == tokenPrefix {
			quoted += "*"
		}
		parts = append(parts, quoted)
	}
	return strings.Join(parts, " ")
}

// Search runs a ranked full-text query. Title and tag matches outweigh body
// matches (bm25 column weights); ties break on most recent modification time.
func (db *DB) Search(q Query) ([]Hit, int, error) {
	tokens, inlineTags := parseQuery(q.Text)
	tags := normalizeTags(append(inlineTags, q.Tags...))
	limit, offset := pageBounds(q.Limit, q.Offset)

	if len(tokens) == 0 {
		return db.listByTags(tags, limit, offset)
	}

	expr := matchExpr(tokens)
	filter := ""
	var filterArgs []any
	if len(tags) > 0 {
		clause, args := tagFilterSQL("notes_fts.path", tags)
		filter = " AND " + clause
		filterArgs = args
	}

	var total int
	countArgs := append([]any{expr}, filterArgs...)
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM notes_fts WHERE notes_fts MATCH ?`+filter,
		countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("index: count matches: %w", err)
	}

	queryArgs := append([]any{titleBoost, titleBoost, expr}, filterArgs...)
	queryArgs = append(queryArgs, limit, offset)
	rows, err := db.conn.Query(`
		SELECT notes_fts.path,
		       n.title,
		       snippet(notes_fts, 3, '<mark>', '</mark>', '…', 16),
		       -bm25(notes_fts, 0, ?, ?, 1.0) AS score
		FROM notes_fts
		JOIN notes n ON n.path = notes_fts.path
		WHERE notes_fts MATCH ?`+filter+`
		ORDER BY score DESC, n.mtime_ns DESC
		LIMIT ? OFFSET ?
	`, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Title, &h.Snippet, &h.Score); err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}
