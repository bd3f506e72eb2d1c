// Command progressctl runs maintenance tasks against stored progress.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/p-n-ai/pai-learn/internal/app"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	// Migrations are an explicit command here.
	cfg.Database.AutoMigrate = false

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	cli := commandLine{progress: a.Progress, out: os.Stdout}
	if a.DB != nil {
		cli.migrate = a.DB.RunMigrations
	}
	err = cli.run(ctx, os.Args)
	a.Close()
	if err != nil {
		if !errors.Is(err, errHelp) {
			slog.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}
