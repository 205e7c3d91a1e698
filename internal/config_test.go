package internal

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestNotesPathRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Notes.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty notes path should fail validation")
	}
}

func TestIndexPathDefaultsInsideNotesDir(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Notes.Path = "/data/notes"
	want := filepath.Join("/data/notes", ".ansuz", "index.db")
	if got := cfg.IndexPath(); got != want {
		t.Errorf("IndexPath() = %q, want %q", got, want)
	}

	cfg.Index.Path = "/var/lib/ansuz/index.db"
	if got := cfg.IndexPath(); got != "/var/lib/ansuz/index.db" {
		t.Errorf("explicit IndexPath() = %q", got)
	}
}

func TestSyncConfigBounds(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sync.Workers = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative workers should fail validation")
	}
}

func TestWaitTimeout(t *testing.T) {
	c := SyncConfig{WaitTimeoutSeconds: 5}
	if c.WaitTimeout() != 5*time.Second {
		t.Errorf("WaitTimeout() = %v", c.WaitTimeout())
	}
}
