package repository

import (
	"context"
	"database/sql"
	"fmt"

	"academic_user_service/internal/common"
	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/platform/database"
)

type UserRepository interface {
	Insert(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
}

type sqlUserRepository struct {
	q       DBTX
	dialect database.Dialect
}

const userColumns = `id, username, email, password_hash, full_name, is_enabled, created_at`

// Insert stores user and sets user.ID to the store-assigned id.
func (r *sqlUserRepository) Insert(ctx context.Context, user *model.User) error {
	query := r.dialect.Rebind(`INSERT INTO users (username, email, password_hash, full_name, is_enabled, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`)
	err := r.q.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.FullName, user.IsEnabled, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return translateError("userRepository.Insert", err)
	}
	return nil
}

func (r *sqlUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return r.findOne(ctx, "userRepository.FindByID", `WHERE id = $1`, id)
}

func (r *sqlUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "userRepository.FindByEmail", `WHERE email = $1`, email)
}

func (r *sqlUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "userRepository.FindByUsername", `WHERE username = $1`, username)
}

func (r *sqlUserRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.User, error) {
	query := r.dialect.Rebind(`SELECT ` + userColumns + ` FROM users ` + where)
	user, err := scanUser(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, translateError(op, err)
	}
	return user, nil
}

func (r *sqlUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query := r.dialect.Rebind(`SELECT COUNT(*) FROM users WHERE email = $1 OR username = $2`)
	var n int64
	if err := r.q.QueryRowContext(ctx, query, email, username).Scan(&n); err != nil {
		return false, translateError("userRepository.ExistsByEmailOrUsername", err)
	}
	return n > 0, nil
}

// Update writes the mutable profile fields: email, full name and enabled flag.
func (r *sqlUserRepository) Update(ctx context.Context, user *model.User) error {
	query := r.dialect.Rebind(`UPDATE users SET email = $1, full_name = $2, is_enabled = $3 WHERE id = $4`)
	res, err := r.q.ExecContext(ctx, query, user.Email, user.FullName, user.IsEnabled, user.ID)
	if err != nil {
		return translateError("userRepository.Update", err)
	}
	return requireAffected("userRepository.Update", res)
}

// Delete removes the user. Role edges go with it (ON DELETE CASCADE).
func (r *sqlUserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, r.dialect.Rebind(`DELETE FROM users WHERE id = $1`), id)
	if err != nil {
		return translateError("userRepository.Delete", err)
	}
	return requireAffected("userRepository.Delete", res)
}

func (r *sqlUserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, translateError("userRepository.List", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, translateError("userRepository.List", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("userRepository.List", err)
	}
	return users, nil
}

func (r *sqlUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, translateError("userRepository.Count", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName, &user.IsEnabled, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return translateError(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	return nil
}
