package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

type postgresDialect struct{}

func (postgresDialect) Driver() string { return "postgres" }

func (postgresDialect) Rebind(query string) string { return query }

func (postgresDialect) Schema() []string { return postgresSchema }

// OpenPostgres opens a pgx-backed pool and verifies the connection.
func OpenPostgres(ctx context.Context, connStr string) (*sql.DB, Dialect, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	return db, postgresDialect{}, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL CHECK (password_hash <> ''),
		full_name VARCHAR(200) NOT NULL DEFAULT '',
		is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id INTEGER PRIMARY KEY,
		name VARCHAR(50) NOT NULL UNIQUE,
		slug VARCHAR(50) NOT NULL UNIQUE,
		description VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_roles (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS auth_events (
		id VARCHAR(36) PRIMARY KEY,
		type VARCHAR(32) NOT NULL,
		user_id BIGINT,
		identifier VARCHAR(255) NOT NULL DEFAULT '',
		outcome VARCHAR(16) NOT NULL,
		reason VARCHAR(64) NOT NULL DEFAULT '',
		remote_addr VARCHAR(64) NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_auth_events_occurred_at ON auth_events (occurred_at DESC)`,
}
