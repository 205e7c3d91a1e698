package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch runs an fsnotify watcher over the notes root and feeds the syncer's
// single-note fast path until ctx is cancelled. The watcher is an optional
// shortcut: the pull sync performed before every query remains
// authoritative, watching only narrows the staleness window between queries.
func Watch(ctx context.Context, syncer *Syncer, root string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	// Renames surface as an event on the old path only; a debounced full
	// pass picks up whatever the per-event handling missed.
	var resyncTimer *time.Timer
	var resyncCh <-chan time.Time
	scheduleResync := func() {
		if resyncTimer == nil {
			resyncTimer = time.NewTimer(200 * time.Millisecond)
			resyncCh = resyncTimer.C
		} else {
			resyncTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if resyncTimer != nil {
				resyncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-resyncCh:
			if err := syncer.Run(ctx); err != nil {
				logger.Warn("watcher: resync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if strings.HasPrefix(filepath.Base(ev.Name), ".") {
						continue
					}
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// The new directory may already hold notes.
					scheduleResync()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if strings.HasPrefix(rel, ".") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := syncer.NotifyChanged(rel); err != nil {
					logger.Warn("watcher: update failed",
						slog.String("path", rel),
						slog.String("error", err.Error()))
				} else {
					logger.Debug("watcher: indexed", slog.String("path", rel))
				}

			case ev.Op&fsnotify.Remove != 0:
				if err := syncer.NotifyDeleted(rel); err != nil {
					logger.Warn("watcher: remove failed",
						slog.String("path", rel),
						slog.String("error", err.Error()))
				} else {
					logger.Debug("watcher: removed", slog.String("path", rel))
				}

			case ev.Op&fsnotify.Rename != 0:
				if err := syncer.NotifyDeleted(rel); err != nil {
					logger.Warn("watcher: rename cleanup failed",
						slog.String("path", rel),
						slog.String("error", err.Error()))
				}
				scheduleResync()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its visible subdirectories to the
// watch list. Hidden directories, including the index directory, are
// skipped.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
