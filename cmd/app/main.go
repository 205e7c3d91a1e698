package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/noteservice"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()

	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	if notes := cmd.String("notes"); notes != "" {
		cfg.Notes.Path = notes
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp loads config, builds the app, runs fn, and tears down.
func withApp(cmd *cli.Command, fn func(ctx context.Context, app *internal.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	app, err := internal.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(context.Background(), app)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func search(_ context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(ctx context.Context, app *internal.App) error {
		query := strings.Join(cmd.Args().Slice(), " ")
		page, err := app.Service.Search(ctx, query, cmd.StringSlice("tag"),
			int(cmd.Int("page")), int(cmd.Int("page-size")))
		if err != nil {
			return err
		}
		if page.Stale {
			fmt.Fprintln(os.Stderr, "warning: notes directory unreachable, results may be stale")
		}
		for _, hit := range page.Results {
			fmt.Printf("%s\t%s\n", hit.Path, hit.Title)
			if hit.Snippet != "" {
				fmt.Printf("\t%s\n", hit.Snippet)
			}
		}
		fmt.Printf("%d of %d results (page %d)\n", len(page.Results), page.Total, page.Page)
		return nil
	})
}

func tags(_ context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(ctx context.Context, app *internal.App) error {
		page, err := app.Service.ListTags(ctx)
		if err != nil {
			return err
		}
		for _, tc := range page.Tags {
			fmt.Printf("%s\t%d\n", tc.Tag, tc.Count)
		}
		return nil
	})
}

func list(_ context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(ctx context.Context, app *internal.App) error {
		var (
			page *noteservice.SearchPage
			err  error
		)
		if tag := cmd.String("tag"); tag != "" {
			page, err = app.Service.NotesByTag(ctx, tag, int(cmd.Int("page")), int(cmd.Int("page-size")))
		} else {
			page, err = app.Service.ListNotes(ctx, int(cmd.Int("page")), int(cmd.Int("page-size")))
		}
		if err != nil {
			return err
		}
		for _, hit := range page.Results {
			fmt.Printf("%s\t%s\n", hit.Path, hit.Title)
		}
		return nil
	})
}

func syncCmd(_ context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(ctx context.Context, app *internal.App) error {
		if err := app.Syncer.Run(ctx); err != nil {
			return err
		}
		fmt.Println("index up to date")
		return nil
	})
}

func newNote(_ context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(ctx context.Context, app *internal.App) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("usage: new <path.md> (content on stdin)")
		}
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		detail, err := app.Service.CreateNote(ctx, path, content)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return fmt.Errorf("note already exists: %s", path)
		}
		if err != nil {
			return err
		}
		fmt.Printf("created %s (%s)\n", detail.Path, detail.Title)
		return nil
	})
}

func rmNote(_ context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(ctx context.Context, app *internal.App) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("usage: rm <path.md>")
		}
		if err := app.Service.DeleteNote(ctx, path); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("no such note: %s", path)
			}
			return err
		}
		fmt.Printf("deleted %s\n", path)
		return nil
	})
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "1-based result page", Value: 1},
		&cli.IntFlag{Name: "page-size", Usage: "results per page", Value: 20},
	}
}

func main() {
	globalFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "notes",
			Usage:   "Path to the notes directory (overrides config)",
			Sources: cli.EnvVars("ANSUZ_NOTES_PATH"),
		},
	}

	cmd := &cli.Command{
		Name:  "ansuz",
		Usage: "Flat-file Markdown notes with tags and full-text search",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"mcp"},
				Usage:   "Run the MCP server on stdio",
				Action:  serve,
			},
			{
				Name:   "search",
				Usage:  "Search notes: bare terms, \"phrases\", prefix*, #tags",
				Action: search,
				Flags: append(pageFlags(),
					&cli.StringSliceFlag{Name: "tag", Usage: "restrict to notes carrying this tag (repeatable)"},
				),
			},
			{
				Name:   "tags",
				Usage:  "List all tags with note counts",
				Action: tags,
			},
			{
				Name:   "list",
				Usage:  "List notes, most recently modified first",
				Action: list,
				Flags: append(pageFlags(),
					&cli.StringFlag{Name: "tag", Usage: "only notes carrying this tag"},
				),
			},
			{
				Name:   "sync",
				Usage:  "Reconcile the index with the notes directory",
				Action: syncCmd,
			},
			{
				Name:   "new",
				Usage:  "Create a note from stdin content",
				Action: newNote,
			},
			{
				Name:   "rm",
				Usage:  "Delete a note",
				Action: rmNote,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
