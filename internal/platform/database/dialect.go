package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect hides the differences between the supported SQL engines.
// Repository SQL is written Postgres-style ($1, $2, ...) and rebound at runtime.
type Dialect interface {
	Driver() string
	Rebind(query string) string
	Schema() []string
}

// Open connects to the engine named by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(ctx, dsn)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// EnsureSchema creates missing tables and indexes. It is idempotent and does
// not alter existing tables.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, stmt := range dialect.Schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", dialect.Driver(), err)
		}
	}
	return nil
}
