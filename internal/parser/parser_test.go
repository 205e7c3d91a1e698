package parser

import (
	"reflect"
	"strings"
	"testing"
)

func mustParse(t *testing.T, input, fallback string) *Result {
	t.Helper()
	r, err := Parse([]byte(input), fallback)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return r
}

func TestParse_TitleFromHeading(t *testing.T) {
	r := mustParse(t, "# Shopping #groceries\nmilk eggs\n", "a")
	if r.Title != "Shopping" {
		t.Errorf("title = %q, want %q", r.Title, "Shopping")
	}
	if !reflect.DeepEqual(r.Tags, []string{"groceries"}) {
		t.Errorf("tags = %v, want [groceries]", r.Tags)
	}
	if !strings.Contains(r.Body, "milk eggs") {
		t.Errorf("body = %q, want it to contain %q", r.Body, "milk eggs")
	}
	if strings.Contains(r.Body, "#groceries") {
		t.Errorf("body still carries tag marker: %q", r.Body)
	}
}

func TestParse_TitleFallbackToFilename(t *testing.T) {
	r := mustParse(t, "no heading here, just text\n", "meeting-notes")
	if r.Title != "meeting-notes" {
		t.Errorf("title = %q, want %q", r.Title, "meeting-notes")
	}
}

func TestParse_LaterHeadingStillCountsAsTitle(t *testing.T) {
	r := mustParse(t, "intro line\n\n## Section One\nmore\n", "f")
	if r.Title != "Section One" {
		t.Errorf("title = %q, want %q", r.Title, "Section One")
	}
}

func TestParse_TagsNormalized(t *testing.T) {
	r := mustParse(t, "#Work notes\n\nmore #WORK and #work done\n", "f")
	if !reflect.DeepEqual(r.Tags, []string{"work"}) {
		t.Errorf("tags = %v, want [work]", r.Tags)
	}
}

func TestParse_TagsSorted(t *testing.T) {
	r := mustParse(t, "#zeta then #alpha then #mid\n", "f")
	if !reflect.DeepEqual(r.Tags, []string{"alpha", "mid", "zeta"}) {
		t.Errorf("tags = %v", r.Tags)
	}
}

func TestParse_CodeSpanIsNotATagSource(t *testing.T) {
	r := mustParse(t, "use `#channel` in slack #ops\n", "f")
	if !reflect.DeepEqual(r.Tags, []string{"ops"}) {
		t.Errorf("tags = %v, want [ops]", r.Tags)
	}
	if !strings.Contains(r.Body, "#channel") {
		t.Errorf("body = %q, want inline code text kept", r.Body)
	}
}

func TestParse_FencedCodeBlockIsNotATagSource(t *testing.T) {
	input := "```sh\necho #comment\n```\n\nreal text #shell\n"
	r := mustParse(t, input, "f")
	if !reflect.DeepEqual(r.Tags, []string{"shell"}) {
		t.Errorf("tags = %v, want [shell]", r.Tags)
	}
	if !strings.Contains(r.Body, "echo #comment") {
		t.Errorf("body = %q, want code content kept", r.Body)
	}
}

func TestParse_TagTokenBoundaries(t *testing.T) {
	r := mustParse(t, "a#b is not a tag, neither is #trailing. but #yes is\n", "f")
	if !reflect.DeepEqual(r.Tags, []string{"yes"}) {
		t.Errorf("tags = %v, want [yes]", r.Tags)
	}
	if !strings.Contains(r.Body, "a#b") || !strings.Contains(r.Body, "#trailing.") {
		t.Errorf("body = %q, non-tag tokens must survive", r.Body)
	}
}

func TestParse_TagStrippingKeepsSegmentSpacing(t *testing.T) {
	// The text around the emphasis is parsed as separate segments; stripping
	// the tag from the first must not glue "alpha" to "beta".
	r := mustParse(t, "alpha #x *beta* gamma\n", "f")
	if !reflect.DeepEqual(r.Tags, []string{"x"}) {
		t.Errorf("tags = %v, want [x]", r.Tags)
	}
	if !strings.Contains(r.Body, "alpha beta gamma") {
		t.Errorf("body = %q, want %q", r.Body, "alpha beta gamma")
	}
}

func TestParse_LinkTextRetainedMarkupDropped(t *testing.T) {
	r := mustParse(t, "see [the groceries report](https://example.com/report) for details\n", "f")
	if !strings.Contains(r.Body, "the groceries report") {
		t.Errorf("body = %q, want link text kept", r.Body)
	}
	if strings.Contains(r.Body, "](") || strings.Contains(r.Body, "example.com") {
		t.Errorf("body = %q, want link syntax stripped", r.Body)
	}
}

func TestParse_EmphasisMarkersStripped(t *testing.T) {
	r := mustParse(t, "this is **bold** and _italic_ text\n", "f")
	if !strings.Contains(r.Body, "bold") || !strings.Contains(r.Body, "italic") {
		t.Errorf("body = %q", r.Body)
	}
	if strings.Contains(r.Body, "**") || strings.Contains(r.Body, "_italic_") {
		t.Errorf("body = %q, want emphasis markers stripped", r.Body)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	r := mustParse(t, "", "empty-note")
	if r.Title != "empty-note" || r.Body != "" || len(r.Tags) != 0 {
		t.Errorf("result = %+v", r)
	}
}

func TestParse_Deterministic(t *testing.T) {
	input := "# Title #a\nsome *text* with #b and [link](u)\n\n```\ncode #c\n```\n"
	first := mustParse(t, input, "f")
	for i := 0; i < 5; i++ {
		again := mustParse(t, input, "f")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("parse not deterministic: %+v vs %+v", first, again)
		}
	}
}
