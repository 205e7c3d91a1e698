package index

import (
	"fmt"
	"strings"
)

const defaultLimit = 20

// titleBoost weights title matches above body matches when ranking.
const titleBoost = 4.0

// Query describes one search request against the index.
type Query struct {
	// Text is the full-text query: bare terms (implicit AND), "quoted
	// phrases", trailing-star prefixes (term*), and #tag tokens, which are
	// folded into Tags. Empty text (or "*") matches everything.
	Text string
	// Tags restricts results to notes carrying all of these tags.
	Tags   []string
	Limit  int
	Offset int
}

// Hit is one ranked search result.
type Hit struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score"`
}

type tokenKind int

const (
	tokenTerm tokenKind = iota
	tokenPrefix
	tokenPhrase
)

type token struct {
	kind tokenKind
	text string
}

// parseQuery splits raw query text into search tokens and #tag filters.
// "*" and the empty string yield no tokens: match everything.
func parseQuery(text string) (tokens []token, tags []string) {
	s := strings.TrimSpace(text)
	if s == "" || s == "*" {
		return nil, nil
	}
	i := 0
	for i < len(s) {
		switch {
		case s[i] == ' ' || s[i] == '\t':
			i++
		case s[i] == '"':
			end := strings.IndexByte(s[i+1:], '"')
			var phrase string
			if end < 0 {
				// Unbalanced quote: treat the remainder as the phrase.
				phrase = strings.TrimSpace(s[i+1:])
				i = len(s)
			} else {
				phrase = strings.TrimSpace(s[i+1 : i+1+end])
				i += end + 2
			}
			if phrase != "" {
				tokens = append(tokens, token{tokenPhrase, phrase})
			}
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '"' {
				j++
			}
			word := s[i:j]
			i = j
			switch {
			case len(word) > 1 && strings.HasPrefix(word, "#"):
				tags = append(tags, word[1:])
			case len(word) > 1 && strings.HasSuffix(word, "*"):
				tokens = append(tokens, token{tokenPrefix, strings.TrimSuffix(word, "*")})
			default:
				tokens = append(tokens, token{tokenTerm, word})
			}
		}
	}
	return tokens, tags
}

// normalizeTags lowercases, trims, and deduplicates a tag filter.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// tagFilterSQL builds an AND-semantics tag restriction: col must belong to
// a note carrying every tag in the filter.
func tagFilterSQL(col string, tags []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	clause := fmt.Sprintf(
		"%s IN (SELECT path FROM note_tags WHERE tag IN (%s) GROUP BY path HAVING COUNT(DISTINCT tag) = ?)",
		col, placeholders)
	args := make([]any, 0, len(tags)+1)
	for _, t := range tags {
		args = append(args, t)
	}
	args = append(args, len(tags))
	return clause, args
}

// listByTags serves text-less queries: all notes carrying the given tags
// (or every note when the filter is empty), most recently modified first.
// With no text there is no relevance signal to rank by.
func (db *DB) listByTags(tags []string, limit, offset int) ([]Hit, int, error) {
	where := ""
	var args []any
	if len(tags) > 0 {
		clause, filterArgs := tagFilterSQL("path", tags)
		where = " WHERE " + clause
		args = filterArgs
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM notes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	query := `SELECT path, title FROM notes` + where + ` ORDER BY mtime_ns DESC, path LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Title); err != nil {
			return nil, 0, err
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

// ListByTag returns notes carrying the given tag, most recently modified
// first, with the total match count for pagination.
func (db *DB) ListByTag(tag string, limit, offset int) ([]Hit, int, error) {
	limit, offset = pageBounds(limit, offset)
	tags := normalizeTags([]string{tag})
	if len(tags) == 0 {
		return nil, 0, nil
	}
	return db.listByTags(tags, limit, offset)
}
