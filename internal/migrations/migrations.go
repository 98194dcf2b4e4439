package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedded embed.FS

// Run applies all pending SQLite migrations against db and returns how many ran.
func Run(ctx context.Context, db *sql.DB) (int, error) {
	return run(ctx, goose.DialectSQLite3, "sqlite", db)
}

// RunPostgres is Run for a Postgres database opened through pgx's
// database/sql driver.
func RunPostgres(ctx context.Context, db *sql.DB) (int, error) {
	return run(ctx, goose.DialectPostgres, "postgres", db)
}

func run(ctx context.Context, dialect goose.Dialect, dir string, db *sql.DB) (int, error) {
	sub, err := fs.Sub(embedded, dir)
	if err != nil {
		return 0, fmt.Errorf("opening %s migrations: %w", dir, err)
	}
	p, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return 0, fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	return len(results), nil
}
