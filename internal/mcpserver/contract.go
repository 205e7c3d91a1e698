package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Ansuz Note Format Contract

Every Markdown note stored in Ansuz SHOULD follow this structure.

## Structure

` + "```" + `markdown
# Human-readable title #optional_tag

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The first heading is the title.** Any heading level works; the first one
   wins. Notes without a heading fall back to the filename stem as title.
2. **Tags are inline hash-words.** A tag is a whole whitespace-delimited token
   of the form ` + "`" + `#word` + "`" + ` (letters, digits, underscore). Tags may appear anywhere
   in the note, including inside the title heading; they are stripped from the
   displayed title and lowercased for filtering, so ` + "`" + `#Work` + "`" + ` and ` + "`" + `#work` + "`" + ` are
   the same tag.
3. **Hash-words inside code are never tags.** ` + "`" + `#include` + "`" + ` in a fenced code
   block or inline code span stays literal text.
4. **File paths** end with ` + "`" + `.md` + "`" + `, use forward slashes, and stay inside the
   notes directory. Sub-folders are fine. Names starting with a dot are
   ignored by the indexer.
5. **Encoding** is UTF-8 with a trailing newline.
6. **No YAML frontmatter.** Metadata lives in the content itself: the title
   is the first heading, the tags are inline.

## Concurrency

When updating an existing note, first call ` + "`" + `read_note` + "`" + ` and keep the returned
` + "`" + `checksum` + "`" + `. Pass it as ` + "`" + `if_match` + "`" + ` to ` + "`" + `write_note` + "`" + `: the write is rejected if
the note changed in between, so concurrent edits are never silently lost.

## Example

` + "```" + `markdown
# Weekly standup 2026-01-20 #meetings #project_x

Attendees: Alice, Bob.

## Action items

- Alice to review the design doc
- Bob to update the roadmap
` + "```" + `

This note gets the title "Weekly standup 2026-01-20" and the tags
` + "`" + `meetings` + "`" + ` and ` + "`" + `project_x` + "`" + `.
`
