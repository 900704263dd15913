package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

type sqliteDialect struct{}

func (sqliteDialect) Driver() string { return "sqlite" }

// Rebind turns $N placeholders into ?. Queries never reuse or reorder a
// placeholder, so positional ? binding is equivalent.
func (sqliteDialect) Rebind(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

func (sqliteDialect) Schema() []string { return sqliteSchema }

// OpenSQLite opens a SQLite database, e.g. "file:users.db?mode=rwc" or ":memory:".
//
// The pool is capped at one connection: an in-memory database only exists on
// the connection that created it, and SQLite serializes writers anyway.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, sqliteDialect{}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL CHECK (password_hash <> ''),
		full_name VARCHAR(200) NOT NULL DEFAULT '',
		is_enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE,
		slug VARCHAR(50) NOT NULL UNIQUE,
		description VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		assigned_at DATETIME NOT NULL DEFAULT (datetime('now')),
		UNIQUE (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS auth_events (
		id VARCHAR(36) PRIMARY KEY,
		type VARCHAR(32) NOT NULL,
		user_id INTEGER,
		identifier VARCHAR(255) NOT NULL DEFAULT '',
		outcome VARCHAR(16) NOT NULL,
		reason VARCHAR(64) NOT NULL DEFAULT '',
		remote_addr VARCHAR(64) NOT NULL DEFAULT '',
		occurred_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_events_occurred_at ON auth_events (occurred_at DESC)`,
}
