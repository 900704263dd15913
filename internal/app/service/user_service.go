package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"academic_user_service/internal/common"
	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/domain/repository"
	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"
)

const (
	roleOpAssign = "assign"
	roleOpRemove = "remove"
)

type UserService struct {
	store repository.CredentialStore
	options
}

func NewUserService(store repository.CredentialStore, opts ...Option) *UserService {
	return &UserService{store: store, options: buildOptions(opts)}
}

// UpdateUserRequest carries optional changes. Nil or empty values leave the
// field as it is.
type UpdateUserRequest struct {
	FullName  *string `json:"fullName,omitempty" validate:"omitempty,max=200"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	IsEnabled *bool   `json:"isEnabled,omitempty"`
}

type AssignRoleRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
	RoleID int64 `json:"roleId" validate:"required,gt=0"`
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.UserProfile, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return s.profile(ctx, user)
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	profiles := make([]model.UserProfile, 0, len(users))
	for i := range users {
		p, err := s.profile(ctx, &users[i])
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*model.UserProfile, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}

	if req.FullName != nil && strings.TrimSpace(*req.FullName) != "" {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email := normalizeEmail(*req.Email)
		if email != user.Email {
			other, err := s.store.Users().FindByEmail(ctx, email)
			switch {
			case err == nil && other.ID != user.ID:
				return nil, common.ErrDuplicateIdentity
			case err != nil && !errors.Is(err, common.ErrNotFound):
				return nil, fmt.Errorf("update user %d: %w", id, err)
			}
			user.Email = email
		}
	}
	if req.IsEnabled != nil {
		user.IsEnabled = *req.IsEnabled
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("update user %d: %w", id, common.ErrDuplicateIdentity)
		}
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}

	logging.WithContext(ctx, s.logger).Info("user updated", slog.Int64("user_id", id))
	return s.profile(ctx, user)
}

// DeleteUser removes the user and, through the store's cascade, its role
// assignments.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if err := s.store.Users().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	logging.WithContext(ctx, s.logger).Info("user deleted", slog.Int64("user_id", id))
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       model.AuthEventUserDeleted,
		UserID:     &id,
		Identifier: user.Username,
		Outcome:    model.AuthOutcomeSuccess,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// AssignRole grants roleID to userID. Assigning a role the user already holds
// returns common.ErrAlreadyAssigned and changes nothing.
func (s *UserService) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		return s.roleChangeFailed(ctx, roleOpAssign, userID, "", fmt.Errorf("assign role: user %d: %w", userID, err))
	}
	role, err := s.store.Roles().FindRoleByID(ctx, roleID)
	if err != nil {
		return s.roleChangeFailed(ctx, roleOpAssign, userID, "", fmt.Errorf("assign role: role %d: %w", roleID, err))
	}

	exists, err := s.store.Roles().RoleEdgeExists(ctx, userID, roleID)
	if err != nil {
		return s.roleChangeFailed(ctx, roleOpAssign, userID, role.Name, fmt.Errorf("assign role: %w", err))
	}
	if exists {
		return s.roleChangeFailed(ctx, roleOpAssign, userID, role.Name, common.ErrAlreadyAssigned)
	}

	edge := &model.UserRoleAssignment{UserID: userID, RoleID: roleID, AssignedAt: s.now().UTC()}
	if err := s.store.Roles().InsertRoleEdge(ctx, edge); err != nil {
		if errors.Is(err, common.ErrConflict) {
			err = fmt.Errorf("assign role: %w", common.ErrAlreadyAssigned)
		}
		return s.roleChangeFailed(ctx, roleOpAssign, userID, role.Name, err)
	}

	s.roleChanged(ctx, roleOpAssign, userID, role.Name)
	return nil
}

// RemoveRole revokes roleID from userID. Removing a role the user does not
// hold returns common.ErrNotAssigned.
func (s *UserService) RemoveRole(ctx context.Context, userID, roleID int64) error {
	roleName := ""
	if role, err := s.store.Roles().FindRoleByID(ctx, roleID); err == nil {
		roleName = role.Name
	}

	if err := s.store.Roles().DeleteRoleEdge(ctx, userID, roleID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			err = common.ErrNotAssigned
		}
		return s.roleChangeFailed(ctx, roleOpRemove, userID, roleName, err)
	}

	s.roleChanged(ctx, roleOpRemove, userID, roleName)
	return nil
}

func (s *UserService) ListRoles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.store.Roles().ListAllRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

func (s *UserService) GetRoleBySlug(ctx context.Context, slug string) (*model.Role, error) {
	role, err := s.store.Roles().FindRoleBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, fmt.Errorf("get role %q: %w", slug, err)
	}
	return role, nil
}

func (s *UserService) profile(ctx context.Context, user *model.User) (*model.UserProfile, error) {
	roles, err := s.store.Roles().ListRolesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles for user %d: %w", user.ID, err)
	}
	p := user.ToProfile(roles)
	return &p, nil
}

func roleEventType(op string) string {
	if op == roleOpAssign {
		return model.AuthEventRoleAssigned
	}
	return model.AuthEventRoleRemoved
}

func (s *UserService) roleChanged(ctx context.Context, op string, userID int64, roleName string) {
	logging.WithContext(ctx, s.logger).Info(roleEventType(op),
		slog.Int64("user_id", userID),
		slog.String("role", roleName),
	)
	s.metrics.ObserveRoleChange(op, metrics.OutcomeSuccess)
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       roleEventType(op),
		UserID:     &userID,
		Identifier: roleName,
		Outcome:    model.AuthOutcomeSuccess,
		OccurredAt: s.now().UTC(),
	})
}

func (s *UserService) roleChangeFailed(ctx context.Context, op string, userID int64, roleName string, err error) error {
	logging.WithContext(ctx, s.logger).Warn(roleEventType(op)+" failed",
		slog.Int64("user_id", userID),
		slog.String("role", roleName),
		slog.Any("error", err),
	)
	s.metrics.ObserveRoleChange(op, metrics.OutcomeFailure)
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       roleEventType(op),
		UserID:     &userID,
		Identifier: roleName,
		Outcome:    model.AuthOutcomeFailure,
		Reason:     failureReason(err),
		OccurredAt: s.now().UTC(),
	})
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, common.ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, common.ErrNotAssigned):
		return "not_assigned"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	default:
		return "storage_error"
	}
}
