//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search scans the notes table and ranks in Go.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search is the portable fallback used when the sqlite_fts5 build tag is
// absent: candidate rows are fetched with the tag filter applied, then
// matched and ranked in Go. Matching is substring-based and
// case-insensitive over title, tags and body; ranking uses saturated term
// frequency with the same title boost as the FTS5 variant (tags weigh like
// the title), ties broken by most recent modification.
func (db *DB) Search(q Query) ([]Hit, int, error) {
	tokens, inlineTags := parseQuery(q.Text)
	tags := normalizeTags(append(inlineTags, q.Tags...))
	limit, offset := pageBounds(q.Limit, q.Offset)

	if len(tokens) == 0 {
		return db.listByTags(tags, limit, offset)
	}

	where := ""
	var args []any
	if len(tags) > 0 {
		clause, filterArgs := tagFilterSQL("path", tags)
		where = " WHERE " + clause
		args = filterArgs
	}

	rows, err := db.conn.Query(`SELECT path, title, tags, body, mtime_ns FROM notes`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: search scan: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		hit   Hit
		mtime int64
	}
	var matched []candidate
	for rows.Next() {
		var (
			path, title, noteTags, body string
			mtime                       int64
		)
		if err := rows.Scan(&path, &title, &noteTags, &body, &mtime); err != nil {
			return nil, 0, err
		}
		lowerTitle := strings.ToLower(title)
		lowerTags := strings.ToLower(noteTags)
		lowerBody := strings.ToLower(body)

		score := 0.0
		snippetTerm := ""
		ok := true
		for _, tok := range tokens {
			// Token kind is ignored here: phrase and prefix tokens degrade
			// to plain substring matching. Only the FTS5 build gives them
			// exact semantics.
			term := strings.ToLower(tok.text)
			titleTf := strings.Count(lowerTitle, term)
			tagTf := strings.Count(lowerTags, term)
			bodyTf := strings.Count(lowerBody, term)
			if titleTf == 0 && tagTf == 0 && bodyTf == 0 {
				ok = false
				break
			}
			if snippetTerm == "" && bodyTf > 0 {
				snippetTerm = term
			}
			score += titleBoost*saturate(titleTf) + titleBoost*saturate(tagTf) + saturate(bodyTf)
		}
		if !ok {
			continue
		}
		matched = append(matched, candidate{
			hit:   Hit{Path: path, Title: title, Snippet: makeSnippet(body, snippetTerm), Score: score},
			mtime: mtime,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].hit.Score != matched[j].hit.Score {
			return matched[i].hit.Score > matched[j].hit.Score
		}
		if matched[i].mtime != matched[j].mtime {
			return matched[i].mtime > matched[j].mtime
		}
		return matched[i].hit.Path < matched[j].hit.Path
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	out := make([]Hit, 0, end-offset)
	for _, c := range matched[offset:end] {
		out = append(out, c.hit)
	}
	return out, total, nil
}

// saturate maps a raw term count into [0,1) so that many repetitions in one
// field cannot drown out a single match in a boosted field.
func saturate(n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(n) / float64(n+1)
}

// makeSnippet returns a short window of body around the first occurrence of
// term, with the match wrapped in <mark> tags.
func makeSnippet(body, term string) string {
	const window = 60

	idx := -1
	if term != "" {
		idx = strings.Index(strings.ToLower(body), term)
	}
	if idx < 0 {
		if len(body) <= 2*window {
			return body
		}
		return body[:runeBoundaryBefore(body, 2*window)] + "…"
	}

	start := idx - window
	prefix := ""
	if start <= 0 {
		start = 0
	} else {
		start = runeBoundaryAfter(body, start)
		prefix = "…"
	}
	end := idx + len(term) + window
	suffix := ""
	if end >= len(body) {
		end = len(body)
	} else {
		end = runeBoundaryBefore(body, end)
		suffix = "…"
	}

	return prefix +
		body[start:idx] + "<mark>" + body[idx:idx+len(term)] + "</mark>" + body[idx+len(term):end] +
		suffix
}

func runeBoundaryBefore(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func runeBoundaryAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
