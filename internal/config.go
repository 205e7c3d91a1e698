package internal

import (
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Notes NotesConfig       `yaml:"notes"`
	Index IndexConfig       `yaml:"index"`
	Sync  SyncConfig        `yaml:"sync"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// IndexPath resolves the index database location. When not configured it
// lives in a hidden directory inside the notes root, so the library and its
// index travel together.
func (c *Config) IndexPath() string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(c.Notes.Path, ".ansuz", "index.db")
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// NotesConfig holds the path to the Markdown notes directory.
type NotesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexConfig holds the index database configuration. An empty Path means
// the default location inside the notes directory.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// SyncConfig controls index synchronization.
type SyncConfig struct {
	// WaitTimeoutSeconds bounds how long a query waits for an in-flight
	// sync pass before being served stale.
	WaitTimeoutSeconds int `yaml:"wait_timeout_seconds"`
	// Workers is the read/parse concurrency of a sync pass; 0 means one
	// worker per CPU.
	Workers int `yaml:"workers"`
	// Watch enables the filesystem watcher in long-running mode.
	Watch bool `yaml:"watch"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WaitTimeoutSeconds, validation.Min(1)),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// WaitTimeout returns the wait bound as a duration.
func (c *SyncConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds) * time.Second
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Notes: NotesConfig{
			Path: "./notes",
		},
		Sync: SyncConfig{
			WaitTimeoutSeconds: 30,
			Watch:              false,
		},
	}
}
