package noteservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

// flakyStore fails List on demand, simulating an unreachable notes dir.
type flakyStore struct {
	storage.Provider
	broken atomic.Bool
}

func (f *flakyStore) List() ([]models.NoteMetadata, error) {
	if f.broken.Load() {
		return nil, apperr.ErrStorageUnavailable
	}
	return f.Provider.List()
}

func testService(t *testing.T) (string, *flakyStore, *Service) {
	t.Helper()
	dir, fs := testutil.TestNotesDir(t)
	store := &flakyStore{Provider: fs}
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	syncer := index.NewSyncer(db, store, logger)
	return dir, store, NewService(store, db, syncer, logger)
}

func writeFile(t *testing.T, dir, path, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSearchEndToEnd(t *testing.T) {
	dir, _, svc := testService(t)
	ctx := context.Background()
	writeFile(t, dir, "a.md", "# Shopping #groceries\n\nmilk eggs")
	writeFile(t, dir, "b.md", "# Todo #work\n\nfinish the groceries report")

	page, err := svc.Search(ctx, "groceries", nil, 1, 20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page.Total != 2 || len(page.Results) != 2 {
		t.Fatalf("page = %+v", page)
	}
	// a.md matches in the title (tag-derived), b.md only in the body.
	if page.Results[0].Path != "a.md" {
		t.Errorf("results[0] = %s, want a.md", page.Results[0].Path)
	}
	if page.Stale {
		t.Error("healthy search reported stale")
	}

	tags, err := svc.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	want := map[string]int{"groceries": 1, "work": 1}
	if len(tags.Tags) != len(want) {
		t.Fatalf("tags = %+v", tags.Tags)
	}
	for _, tc := range tags.Tags {
		if want[tc.Tag] != tc.Count {
			t.Errorf("tag %s count = %d, want %d", tc.Tag, tc.Count, want[tc.Tag])
		}
	}

	byTag, err := svc.NotesByTag(ctx, "work", 1, 20)
	if err != nil {
		t.Fatalf("NotesByTag: %v", err)
	}
	if byTag.Total != 1 || byTag.Results[0].Path != "b.md" {
		t.Errorf("byTag = %+v", byTag)
	}
}

func TestSearchSeesExternalEdits(t *testing.T) {
	dir, _, svc := testService(t)
	ctx := context.Background()

	writeFile(t, dir, "n.md", "# Note\n\nfirst draft")
	page, err := svc.Search(ctx, "draft", nil, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("initial search missed the note: %+v", page)
	}

	// An edit made behind the service's back is visible on the next query.
	writeFile(t, dir, "n.md", "# Note\n\nsecond draft, heavily revised")
	page, err = svc.Search(ctx, "revised", nil, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("external edit not picked up: %+v", page)
	}
}

func TestSearchDegradesToStaleResults(t *testing.T) {
	dir, store, svc := testService(t)
	ctx := context.Background()
	writeFile(t, dir, "a.md", "# Alpha\n\nstable content")
	if _, err := svc.Search(ctx, "stable", nil, 1, 20); err != nil {
		t.Fatal(err)
	}

	store.broken.Store(true)
	page, err := svc.Search(ctx, "stable", nil, 1, 20)
	if err != nil {
		t.Fatalf("degraded search should not fail: %v", err)
	}
	if !page.Stale {
		t.Error("degraded search not flagged stale")
	}
	if page.Total != 1 {
		t.Errorf("stale results lost: %+v", page)
	}
}

func TestCreateNote(t *testing.T) {
	_, _, svc := testService(t)
	ctx := context.Background()

	detail, err := svc.CreateNote(ctx, "new.md", []byte("# Created #fresh\n\nbody"))
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if detail.Title != "Created" {
		t.Errorf("title = %q", detail.Title)
	}
	if len(detail.Tags) != 1 || detail.Tags[0] != "fresh" {
		t.Errorf("tags = %v", detail.Tags)
	}
	if detail.Checksum == "" {
		t.Error("checksum empty")
	}

	// Indexed without an explicit sync.
	page, err := svc.Search(ctx, "created", nil, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Errorf("created note not searchable: %+v", page)
	}

	if _, err := svc.CreateNote(ctx, "new.md", []byte("other")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second create err = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateNoteOptimisticConcurrency(t *testing.T) {
	_, _, svc := testService(t)
	ctx := context.Background()
	original := []byte("# Doc\n\nversion one")
	if _, err := svc.CreateNote(ctx, "doc.md", original); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.UpdateNote(ctx, "doc.md", []byte("# Doc\n\nversion two"), "deadbeef"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale checksum err = %v, want ErrConflict", err)
	}
	detail, err := svc.GetNote(ctx, "doc.md")
	if err != nil {
		t.Fatal(err)
	}
	if detail.Content != string(original) {
		t.Error("rejected update modified the note")
	}

	updated, err := svc.UpdateNote(ctx, "doc.md", []byte("# Doc\n\nversion two"), checksum.Sum(original))
	if err != nil {
		t.Fatalf("matching checksum update: %v", err)
	}
	if updated.Content != "# Doc\n\nversion two" {
		t.Errorf("content = %q", updated.Content)
	}

	// Empty ifMatch skips the precondition.
	if _, err := svc.UpdateNote(ctx, "doc.md", []byte("# Doc\n\nversion three"), ""); err != nil {
		t.Errorf("unconditional update: %v", err)
	}

	if _, err := svc.UpdateNote(ctx, "missing.md", []byte("x"), ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update of missing note err = %v, want ErrNotFound", err)
	}
}

func TestDeleteNote(t *testing.T) {
	_, _, svc := testService(t)
	ctx := context.Background()
	if _, err := svc.CreateNote(ctx, "gone.md", []byte("# Gone #trash")); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteNote(ctx, "gone.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	page, err := svc.Search(ctx, "gone", nil, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("deleted note still searchable: %+v", page)
	}

	if err := svc.DeleteNote(ctx, "gone.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGetNote(t *testing.T) {
	dir, _, svc := testService(t)
	ctx := context.Background()
	writeFile(t, dir, "sub/note.md", "no heading, just text")

	detail, err := svc.GetNote(ctx, "sub/note.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if detail.Title != "note" {
		t.Errorf("title = %q, want filename stem", detail.Title)
	}
	if detail.Content != "no heading, just text" {
		t.Errorf("content = %q", detail.Content)
	}
	if detail.Signal.Size == 0 {
		t.Error("signal not populated")
	}

	if _, err := svc.GetNote(ctx, "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListNotesOrdersByRecency(t *testing.T) {
	dir, _, svc := testService(t)
	ctx := context.Background()
	writeFile(t, dir, "a.md", "# A")
	writeFile(t, dir, "b.md", "# B")

	page, err := svc.ListNotes(ctx, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Results) != 2 {
		t.Errorf("page = %+v", page)
	}
}
