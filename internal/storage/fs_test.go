package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
)

func tempNotes(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempNotes(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("note.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempNotes(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := tempNotes(t)
	_, err := s.Read("nope.md")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempNotes(t)
	_ = s.Write("del.md", []byte("bye"))
	if err := s.Delete("del.md"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}
	if err := s.Delete("del.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListReturnsSignals(t *testing.T) {
	s := tempNotes(t)
	_ = s.Write("a.md", []byte("alpha"))
	_ = s.Write("sub/b.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, m := range items {
		if m.Signal.ModTime.IsZero() {
			t.Errorf("%s: zero mod time", m.Path)
		}
		if m.Path == "a.md" && m.Signal.Size != int64(len("alpha")) {
			t.Errorf("a.md size = %d, want %d", m.Signal.Size, len("alpha"))
		}
	}
}

func TestListIsLive(t *testing.T) {
	s := tempNotes(t)
	_ = s.Write("a.md", []byte("a"))

	items, _ := s.List()
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}

	// Mutate the directory behind the provider's back.
	if err := os.WriteFile(filepath.Join(s.root, "external.md"), []byte("ext"), 0o644); err != nil {
		t.Fatal(err)
	}
	items, _ = s.List()
	if len(items) != 2 {
		t.Errorf("len = %d, want 2 after external write", len(items))
	}
}

func TestListSkipsHiddenDirs(t *testing.T) {
	s := tempNotes(t)
	_ = s.Write("a.md", []byte("a"))
	idxDir := filepath.Join(s.root, ".ansuz")
	if err := os.MkdirAll(idxDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(idxDir, "scratch.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "a.md" {
		t.Errorf("items = %+v, want only a.md", items)
	}
}

func TestStat(t *testing.T) {
	s := tempNotes(t)
	_ = s.Write("a.md", []byte("hello"))

	meta, err := s.Stat("a.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if meta.Path != "a.md" || meta.Signal.Size != 5 {
		t.Errorf("meta = %+v", meta)
	}
	if _, err := s.Stat("gone.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempNotes(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
		".",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicOverwrite(t *testing.T) {
	s := tempNotes(t)
	_ = s.Write("atomic.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != string(updated) {
		t.Errorf("content = %q", got)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(s.root)
	for _, e := range entries {
		if e.Name() != "atomic.md" {
			t.Errorf("stray file %s", e.Name())
		}
	}
}
