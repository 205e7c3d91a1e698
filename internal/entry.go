// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/noteservice"
	"github.com/starford/ansuz/internal/storage"
)

// App wires the note store, the index, and the services on top of them.
// One-shot CLI commands use it directly; Run uses it for the long-running
// server mode.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   storage.Provider
	DB      *index.DB
	Syncer  *index.Syncer
	Service *noteservice.Service
}

// NewApp initializes the application from the given configuration.
func NewApp(cfg *Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Notes.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Notes.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	var syncOpts []index.SyncerOption
	if cfg.Sync.WaitTimeoutSeconds > 0 {
		syncOpts = append(syncOpts, index.WithWaitTimeout(cfg.Sync.WaitTimeout()))
	}
	if cfg.Sync.Workers > 0 {
		syncOpts = append(syncOpts, index.WithWorkers(cfg.Sync.Workers))
	}
	syncer := index.NewSyncer(db, store, logger, syncOpts...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		DB:      db,
		Syncer:  syncer,
		Service: noteservice.NewService(store, db, syncer, logger),
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() error {
	return a.DB.Close()
}

// Run starts the MCP stdio server with the given options and blocks until
// it exits or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	a, err := NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("configuration loaded",
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("index_path", cfg.IndexPath()),
		slog.Bool("watch", cfg.Sync.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Warm the index so the first query does not pay for a cold scan.
	if err := a.Syncer.Run(ctx); err != nil {
		a.Logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Sync.Watch {
		g.Go(func() error {
			return index.Watch(gCtx, a.Syncer, cfg.Notes.Path, a.Logger)
		})
	}

	g.Go(func() error {
		// Returns on stdin EOF; cancel unblocks the watcher and the
		// signal goroutine so Wait can return.
		defer cancel()
		a.Logger.Info("starting MCP server on stdio")
		return mcpserver.New(a.Service).ServeStdio()
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.Logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			// The stdio server only returns on stdin EOF, so a signal
			// shuts down directly after flushing the index.
			a.Close()
			os.Exit(0)
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	a.Logger.Info("server stopped")
	return nil
}
