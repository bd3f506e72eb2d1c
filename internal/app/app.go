// Package app wires configuration into the stores, locker and services
// shared by the server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/p-n-ai/pai-learn/internal/api"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// App holds the wired dependencies.
type App struct {
	Config   *config.Config
	Catalog  catalog.Store
	Editor   *catalog.Editor
	Progress *progress.Service
	DB       *database.DB // nil with the memory driver
	Cache    *cache.Cache // nil when no cache URL is configured

	checks map[string]api.HealthChecker
}

// NewLogger builds the process logger from the log settings.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// New connects the configured backends and builds the services. The
// caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, checks: map[string]api.HealthChecker{}}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	var (
		store  progress.Store
		events progress.EventLogger = progress.NopEventLogger{}
		locker progress.Locker      = progress.NewKeyedMutex()
	)

	switch {
	case cfg.UsesPostgres():
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting database: %w", err)
		}
		a.DB = db
		a.checks["database"] = db
		cat, err := catalog.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		a.Catalog = cat
		pstore, err := progress.NewPostgresStore(db.Pool)
		if err != nil {
			return err
		}
		store = pstore
		events = progress.NewPostgresEventLogger(db.Pool)
	default:
		a.Catalog = catalog.NewMemoryStore()
		store = progress.NewMemoryStore()
	}

	if cfg.Cache.URL != "" {
		c, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			return fmt.Errorf("connecting cache: %w", err)
		}
		a.Cache = c
		a.checks["cache"] = c
		locker = c.Locker(cfg.Progress.LockTTL)
	}

	if err := a.loadCatalog(ctx); err != nil {
		return err
	}
	a.Editor = catalog.NewEditor(a.Catalog)

	svc, err := progress.NewService(progress.Config{
		Catalog:       a.Catalog,
		Store:         store,
		Locker:        locker,
		Events:        events,
		PassThreshold: cfg.Progress.PassThreshold,
		MaxRetries:    cfg.Progress.MaxRetries,
	})
	if err != nil {
		return err
	}
	a.Progress = svc
	return nil
}

// loadCatalog imports the YAML course directory when it exists.
func (a *App) loadCatalog(ctx context.Context) error {
	path := a.Config.Catalog.Path
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		slog.Warn("catalog directory not found, starting with stored courses only", "path", path)
		return nil
	}
	loader, err := catalog.NewLoader(path)
	if err != nil {
		return err
	}
	if _, err := loader.LoadInto(ctx, a.Catalog); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	return nil
}

// Router returns the HTTP API over the wired services.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.Config{
		Progress: a.Progress,
		Catalog:  a.Catalog,
		Editor:   a.Editor,
		Checks:   a.checks,
	})
}

// Close releases the database and cache connections.
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
