// Package parser turns raw markdown into the searchable projection of a
// note: a title, a normalized tag set, and a prose body for indexing.
package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// tagTokenRe matches a whole whitespace-delimited token of the form #word.
// Tokens inside code spans and code blocks are never considered tags.
var tagTokenRe = regexp.MustCompile(`^#([\p{L}\p{N}_]+)$`)

var blankRunRe = regexp.MustCompile(`\n{2,}`)

var md = goldmark.New()

// Result holds the output of parsing one markdown file.
type Result struct {
	// Title is the text of the first heading, with tag markers removed.
	// Notes without a heading fall back to the name passed to Parse.
	Title string
	// Tags are the lowercased inline #tags, sorted, duplicates collapsed.
	Tags []string
	// Body is the markdown reduced to prose: heading/emphasis/link markup
	// stripped, link text and code content kept, tag markers removed.
	Body string
}

// Parse extracts title, tags, and an indexable body from raw markdown.
// It is deterministic and total: malformed markdown still yields a
// best-effort result. fallbackName (usually the filename stem) is used
// as the title when the note has no heading.
func Parse(data []byte, fallbackName string) (*Result, error) {
	doc := md.Parser().Parse(text.NewReader(data))

	var (
		body       strings.Builder
		tags       = make(map[string]struct{})
		title      string
		titleFound bool
	)

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Separate blocks so snippets do not run words together.
			if n.Type() == ast.TypeBlock && body.Len() > 0 {
				body.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if !titleFound {
				title = strings.TrimSpace(stripTags(string(node.Text(data)), tags))
				titleFound = true
			}
		case *ast.CodeSpan:
			// Inline code is indexable content but never a tag source.
			body.Write(node.Text(data))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			writeLines(&body, data, node.Lines())
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			writeLines(&body, data, node.Lines())
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			body.Write(node.URL(data))
		case *ast.Text:
			body.WriteString(stripTags(string(node.Segment.Value(data)), tags))
			if node.SoftLineBreak() || node.HardLineBreak() {
				body.WriteByte('\n')
			}
		case *ast.String:
			body.Write(node.Value)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = fallbackName
	}

	out := make([]string, 0, len(tags))
	for t := range tags {
		out = append(out, t)
	}
	sort.Strings(out)

	cleaned := blankRunRe.ReplaceAllString(strings.TrimSpace(body.String()), "\n")

	return &Result{
		Title: title,
		Tags:  out,
		Body:  cleaned,
	}, nil
}

// stripTags removes #tag tokens from s, recording the lowercased names in
// tags. A token only counts as a tag when the whole whitespace-delimited
// word is #word, matching the inline-marker rule; "a#b" and "#trailing."
// pass through untouched. Boundary whitespace survives the rewrite: a text
// segment split around inline markup must not glue to its neighbors.
func stripTags(s string, tags map[string]struct{}) string {
	if !strings.Contains(s, "#") {
		return s
	}
	lead := s[:len(s)-len(strings.TrimLeft(s, " \t\n"))]
	trail := s[len(strings.TrimRight(s, " \t\n")):]
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if m := tagTokenRe.FindStringSubmatch(f); m != nil {
			tags[strings.ToLower(m[1])] = struct{}{}
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return lead
	}
	return lead + strings.Join(kept, " ") + trail
}

func writeLines(b *strings.Builder, source []byte, lines *text.Segments) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
}
