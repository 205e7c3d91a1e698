package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// Syncer reconciles the index with the notes directory. It is the only
// writer of the index: entries are created, updated, and removed here,
// always as a reaction to an observed file-side change.
type Syncer struct {
	db      *DB
	store   storage.Provider
	logger  *slog.Logger
	wait    time.Duration
	workers int

	group singleflight.Group // collapses concurrent full passes
	mu    sync.Mutex         // serializes index mutations
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithWaitTimeout bounds how long a caller waits for an in-flight pass.
func WithWaitTimeout(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.wait = d
		}
	}
}

// WithWorkers sets how many notes are read and parsed concurrently.
func WithWorkers(n int) SyncerOption {
	return func(s *Syncer) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSyncer creates a Syncer over the given index and note store.
func NewSyncer(db *DB, store storage.Provider, logger *slog.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		db:      db,
		store:   store,
		logger:  logger,
		wait:    30 * time.Second,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one full reconciliation pass. Passes are mutually exclusive:
// a call made while another pass is in flight joins that pass and shares its
// result instead of starting a redundant one. Waiting is bounded; on timeout
// the caller gets apperr.ErrSyncTimeout and may retry, while the pass itself
// keeps running to completion.
func (s *Syncer) Run(ctx context.Context) error {
	ch := s.group.DoChan("full", func() (any, error) {
		return nil, s.pass(ctx)
	})

	timer := time.NewTimer(s.wait)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Err
	case <-timer.C:
		return fmt.Errorf("sync: waited %s for in-flight pass: %w", s.wait, apperr.ErrSyncTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pass diffs the live directory against the indexed signals and applies the
// minimal set of mutations: removals for orphaned entries, upserts for new
// or drifted notes. Cost is proportional to the number of changed notes;
// unchanged notes are never reread or reparsed.
func (s *Syncer) pass(ctx context.Context) error {
	metas, err := s.store.List()
	if err != nil {
		return fmt.Errorf("sync: list notes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	indexed, err := s.db.AllSignals()
	if err != nil {
		return fmt.Errorf("sync: read index state: %w", err)
	}

	disk := make(map[string]models.Signal, len(metas))
	var changed []models.NoteMetadata
	for _, m := range metas {
		disk[m.Path] = m.Signal
		if sig, ok := indexed[m.Path]; !ok || !sig.Equal(m.Signal) {
			changed = append(changed, m)
		}
	}

	removed := 0
	for p := range indexed {
		if _, ok := disk[p]; !ok {
			if err := s.db.Remove(p); err != nil {
				return fmt.Errorf("sync: remove %s: %w", p, err)
			}
			removed++
			s.logger.Debug("sync: removed stale entry", slog.String("path", p))
		}
	}

	upserted := 0
	if len(changed) > 0 {
		// Reads and parses fan out across workers; index mutations stay on
		// this goroutine under the sync lock.
		results := make([]*parsedNote, len(changed))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, m := range changed {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = s.load(m)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		for _, pn := range results {
			if pn == nil {
				continue // vanished or unparsable, reconciled on a later pass
			}
			if err := s.db.Upsert(pn.entry, pn.body); err != nil {
				return fmt.Errorf("sync: upsert %s: %w", pn.entry.Path, err)
			}
			upserted++
			s.logger.Debug("sync: indexed", slog.String("path", pn.entry.Path))
		}
	}

	if err := s.db.Commit(); err != nil {
		return err
	}
	if upserted > 0 || removed > 0 {
		s.logger.Info("sync: pass complete",
			slog.Int("upserted", upserted),
			slog.Int("removed", removed),
			slog.Int("total", len(metas)))
	}
	return nil
}

// NotifyChanged is the fast-path hook for the write path: it reconciles a
// single note without a full directory scan. A vanished file is treated as
// deleted.
func (s *Syncer) NotifyChanged(path string) error {
	meta, err := s.store.Stat(path)
	if errors.Is(err, apperr.ErrNotFound) {
		return s.NotifyDeleted(path)
	}
	if err != nil {
		return err
	}

	pn := s.load(meta)
	if pn == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Upsert(pn.entry, pn.body); err != nil {
		return err
	}
	return s.db.Commit()
}

// NotifyDeleted removes a single entry without a full directory scan.
func (s *Syncer) NotifyDeleted(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Remove(path); err != nil {
		return err
	}
	return s.db.Commit()
}

type parsedNote struct {
	entry Entry
	body  string
}

// load reads and parses one changed note. Per-note failures never abort a
// pass: they are logged and the note is skipped until the next attempt.
func (s *Syncer) load(m models.NoteMetadata) *parsedNote {
	data, err := s.store.Read(m.Path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.logger.Debug("sync: note vanished mid-pass", slog.String("path", m.Path))
		} else {
			s.logger.Warn("sync: read failed",
				slog.String("path", m.Path),
				slog.String("error", err.Error()))
		}
		return nil
	}
	res, err := parser.Parse(data, stemOf(m.Path))
	if err != nil {
		s.logger.Warn("sync: parse failed",
			slog.String("path", m.Path),
			slog.String("error", err.Error()))
		return nil
	}
	return &parsedNote{
		entry: Entry{Path: m.Path, Title: res.Title, Tags: res.Tags, Signal: m.Signal},
		body:  res.Body,
	}
}

// stemOf returns the filename without directory or extension, used as the
// fallback title for notes without a heading.
func stemOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
