package repository

import (
	"context"
	"fmt"

	"academic_user_service/internal/common"
	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/platform/database"
)

type RoleRepository interface {
	FindRoleByID(ctx context.Context, id int64) (*model.Role, error)
	FindRoleByName(ctx context.Context, name string) (*model.Role, error)
	FindRoleBySlug(ctx context.Context, slug string) (*model.Role, error)
	ListAllRoles(ctx context.Context) ([]model.Role, error)
	// ListRolesForUser returns role names ordered by role id.
	ListRolesForUser(ctx context.Context, userID int64) ([]string, error)
	RoleEdgeExists(ctx context.Context, userID, roleID int64) (bool, error)
	InsertRoleEdge(ctx context.Context, edge *model.UserRoleAssignment) error
	DeleteRoleEdge(ctx context.Context, userID, roleID int64) error
	SeedRoles(ctx context.Context, roles []model.Role) error
}

type sqlRoleRepository struct {
	q       DBTX
	dialect database.Dialect
}

func (r *sqlRoleRepository) FindRoleByID(ctx context.Context, id int64) (*model.Role, error) {
	return r.findOne(ctx, "roleRepository.FindRoleByID", `WHERE id = $1`, id)
}

func (r *sqlRoleRepository) FindRoleByName(ctx context.Context, name string) (*model.Role, error) {
	return r.findOne(ctx, "roleRepository.FindRoleByName", `WHERE name = $1`, name)
}

func (r *sqlRoleRepository) FindRoleBySlug(ctx context.Context, slug string) (*model.Role, error) {
	return r.findOne(ctx, "roleRepository.FindRoleBySlug", `WHERE slug = $1`, slug)
}

func (r *sqlRoleRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.Role, error) {
	query := r.dialect.Rebind(`SELECT id, name, slug, description FROM roles ` + where)
	role := &model.Role{}
	err := r.q.QueryRowContext(ctx, query, arg).Scan(&role.ID, &role.Name, &role.Slug, &role.Description)
	if err != nil {
		return nil, translateError(op, err)
	}
	return role, nil
}

func (r *sqlRoleRepository) ListAllRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, slug, description FROM roles ORDER BY id`)
	if err != nil {
		return nil, translateError("roleRepository.ListAllRoles", err)
	}
	defer rows.Close()

	roles := []model.Role{}
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Slug, &role.Description); err != nil {
			return nil, translateError("roleRepository.ListAllRoles", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("roleRepository.ListAllRoles", err)
	}
	return roles, nil
}

func (r *sqlRoleRepository) ListRolesForUser(ctx context.Context, userID int64) ([]string, error) {
	query := r.dialect.Rebind(`SELECT r.name FROM user_roles ur
	          JOIN roles r ON r.id = ur.role_id
	          WHERE ur.user_id = $1 ORDER BY r.id`)
	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, translateError("roleRepository.ListRolesForUser", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, translateError("roleRepository.ListRolesForUser", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("roleRepository.ListRolesForUser", err)
	}
	return names, nil
}

func (r *sqlRoleRepository) RoleEdgeExists(ctx context.Context, userID, roleID int64) (bool, error) {
	query := r.dialect.Rebind(`SELECT COUNT(*) FROM user_roles WHERE user_id = $1 AND role_id = $2`)
	var n int64
	if err := r.q.QueryRowContext(ctx, query, userID, roleID).Scan(&n); err != nil {
		return false, translateError("roleRepository.RoleEdgeExists", err)
	}
	return n > 0, nil
}

// InsertRoleEdge stores edge and sets edge.ID. It returns common.ErrConflict
// when the edge already exists and common.ErrNotFound when the user or role
// does not.
func (r *sqlRoleRepository) InsertRoleEdge(ctx context.Context, edge *model.UserRoleAssignment) error {
	query := r.dialect.Rebind(`INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, $3) RETURNING id`)
	edge.AssignedAt = edge.AssignedAt.UTC()
	err := r.q.QueryRowContext(ctx, query, edge.UserID, edge.RoleID, edge.AssignedAt).Scan(&edge.ID)
	if err != nil {
		return translateError("roleRepository.InsertRoleEdge", err)
	}
	return nil
}

// DeleteRoleEdge returns common.ErrNotFound when there was no edge to delete.
func (r *sqlRoleRepository) DeleteRoleEdge(ctx context.Context, userID, roleID int64) error {
	query := r.dialect.Rebind(`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`)
	res, err := r.q.ExecContext(ctx, query, userID, roleID)
	if err != nil {
		return translateError("roleRepository.DeleteRoleEdge", err)
	}
	return requireAffected("roleRepository.DeleteRoleEdge", res)
}

// SeedRoles inserts any missing roles. Existing rows are left untouched.
func (r *sqlRoleRepository) SeedRoles(ctx context.Context, roles []model.Role) error {
	query := r.dialect.Rebind(`INSERT INTO roles (id, name, slug, description) VALUES ($1, $2, $3, $4)
	          ON CONFLICT DO NOTHING`)
	for _, role := range roles {
		if role.Name == "" || role.Slug == "" {
			return fmt.Errorf("seed role %d: name and slug required: %w", role.ID, common.ErrValidation)
		}
		if _, err := r.q.ExecContext(ctx, query, role.ID, role.Name, role.Slug, role.Description); err != nil {
			return translateError(fmt.Sprintf("roleRepository.SeedRoles(%s)", role.Name), err)
		}
	}
	return nil
}
