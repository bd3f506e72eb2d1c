package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return RunMigrations(ctx, pool, "up", io.Discard)
}

// Migrate applies every pending migration to this database.
func (db *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, db.Pool)
}

// RunMigrations runs a goose command (up, up-by-one, down, status,
// version) and writes its report to out.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, command string, out io.Writer) error {
	p, err := newProvider(pool)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		results, err := p.Up(ctx)
		report(out, results...)
		if err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		slog.Info("database schema up to date", "applied", len(results))
	case "up-by-one":
		res, err := p.UpByOne(ctx)
		if err != nil {
			return fmt.Errorf("migrate up-by-one: %w", err)
		}
		report(out, res)
	case "down":
		res, err := p.Down(ctx)
		if err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		report(out, res)
	case "status":
		statuses, err := p.Status(ctx)
		if err != nil {
			return fmt.Errorf("migrate status: %w", err)
		}
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%05d %-8s %-20s %s\n", st.Source.Version, st.State, applied, st.Source.Path)
		}
	case "version":
		v, err := p.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("migrate version: %w", err)
		}
		fmt.Fprintln(out, v)
	default:
		return fmt.Errorf("%q: no such command", command)
	}
	return nil
}

// RunMigrations runs a goose command against this database.
func (db *DB) RunMigrations(ctx context.Context, command string, out io.Writer) error {
	return RunMigrations(ctx, db.Pool, command, out)
}

// newProvider wraps the pool in a database/sql handle for goose. With no
// idle connections the handle hands every connection back to the pool, so
// it is never closed.
func newProvider(pool *pgxpool.Pool) (*goose.Provider, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	sqlDB.SetMaxIdleConns(0)
	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}
	return p, nil
}

func report(out io.Writer, results ...*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fmt.Fprintf(out, "%s %05d %s (%s)\n", r.Direction, r.Source.Version, r.Source.Path, r.Duration.Round(time.Millisecond))
	}
}
