package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"academic_user_service/internal/platform/database"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CredentialStore is the persistence boundary of the auth core.
type CredentialStore interface {
	Users() UserRepository
	Roles() RoleRepository
	// WithTx runs fn against a store bound to a single transaction. fn must
	// only use the store it is given.
	WithTx(ctx context.Context, fn func(tx CredentialStore) error) error
}

type SQLStore struct {
	db      *sql.DB // nil when bound to a transaction
	q       DBTX
	dialect database.Dialect
}

func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect}
}

func (s *SQLStore) Users() UserRepository {
	return &sqlUserRepository{q: s.q, dialect: s.dialect}
}

func (s *SQLStore) Roles() RoleRepository {
	return &sqlRoleRepository{q: s.q, dialect: s.dialect}
}

func (s *SQLStore) AuthEvents() AuthEventRepository {
	return &sqlAuthEventRepository{q: s.q, dialect: s.dialect}
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(tx CredentialStore) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateError("begin transaction", err)
	}

	if err := fn(&SQLStore{q: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateError("commit transaction", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return translateError("ping", s.db.PingContext(ctx))
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
