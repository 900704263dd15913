package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"academic_user_service/internal/common"
	"academic_user_service/internal/common/security"
	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/domain/repository"
	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"
)

// Login failure reasons. They are logged and audited, never returned.
const (
	reasonUnknownIdentifier = "unknown_identifier"
	reasonBadPassword       = "bad_password"
	reasonAccountDisabled   = "account_disabled"
	reasonThrottled         = "throttled"
	reasonDuplicateIdentity = "duplicate_identity"
)

type TokenIssuer interface {
	Issue(userID int64, email string, roles []string) (string, error)
}

type AuthService struct {
	store  repository.CredentialStore
	hasher security.PasswordHasher
	tokens TokenIssuer
	options
}

func NewAuthService(store repository.CredentialStore, hasher security.PasswordHasher, tokens TokenIssuer, opts ...Option) *AuthService {
	return &AuthService{store: store, hasher: hasher, tokens: tokens, options: buildOptions(opts)}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	FullName string `json:"fullName" validate:"max=200"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required,max=255"`
	Password        string `json:"password" validate:"required,max=72"`
}

type AuthResponse struct {
	Token string            `json:"token"`
	User  model.UserProfile `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user holding only the default role and returns a token
// for it.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	logger := logging.WithContext(ctx, s.logger)

	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &common.ValidationError{Fields: missing}
	}

	exists, err := s.store.Users().ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, s.registrationFailed(ctx, username, "storage_error", err)
	}
	if exists {
		return nil, s.registrationFailed(ctx, username, reasonDuplicateIdentity, common.ErrDuplicateIdentity)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, s.registrationFailed(ctx, username, "hash_failed", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		IsEnabled:    true,
		CreatedAt:    s.now().UTC(),
	}

	err = s.store.WithTx(ctx, func(tx repository.CredentialStore) error {
		role, err := tx.Roles().FindRoleByName(ctx, model.DefaultRoleName)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("default role %q missing: %w", model.DefaultRoleName, common.ErrInternalConsistency)
			}
			return err
		}
		if err := tx.Users().Insert(ctx, user); err != nil {
			// Lost a race with a concurrent registration after the pre-check.
			if errors.Is(err, common.ErrConflict) {
				return fmt.Errorf("insert user: %w", common.ErrDuplicateIdentity)
			}
			return err
		}
		return tx.Roles().InsertRoleEdge(ctx, &model.UserRoleAssignment{
			UserID:     user.ID,
			RoleID:     role.ID,
			AssignedAt: user.CreatedAt,
		})
	})
	if err != nil {
		reason := "storage_error"
		if errors.Is(err, common.ErrDuplicateIdentity) {
			reason = reasonDuplicateIdentity
		}
		return nil, s.registrationFailed(ctx, username, reason, err)
	}

	stored, err := s.store.Users().FindByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			err = fmt.Errorf("user %d missing after insert: %w", user.ID, common.ErrInternalConsistency)
		}
		return nil, s.registrationFailed(ctx, username, "reread_failed", err)
	}

	resp, err := s.issue(ctx, stored)
	if err != nil {
		return nil, s.registrationFailed(ctx, username, "token_failed", err)
	}

	logger.Info("user registered", slog.Int64("user_id", stored.ID))
	s.metrics.ObserveRegistration(metrics.OutcomeSuccess)
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       model.AuthEventRegister,
		UserID:     &stored.ID,
		Identifier: stored.Username,
		Outcome:    model.AuthOutcomeSuccess,
		OccurredAt: s.now().UTC(),
	})
	return resp, nil
}

func (s *AuthService) registrationFailed(ctx context.Context, username, reason string, err error) error {
	logging.WithContext(ctx, s.logger).Warn("registration failed",
		slog.String("username", username),
		slog.String("reason", reason),
		slog.Any("error", err),
	)
	s.metrics.ObserveRegistration(metrics.OutcomeFailure)
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       model.AuthEventRegister,
		Identifier: username,
		Outcome:    model.AuthOutcomeFailure,
		Reason:     reason,
		OccurredAt: s.now().UTC(),
	})
	return err
}

// Login authenticates by email (identifier contains "@") or username. Unknown
// identifiers, wrong passwords and disabled accounts all yield
// common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	identifier := strings.TrimSpace(req.EmailOrUsername)
	var missing []string
	if identifier == "" {
		missing = append(missing, "emailOrUsername")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, &common.ValidationError{Fields: missing}
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.store.Users().FindByEmail(ctx, normalizeEmail(identifier))
	} else {
		user, err = s.store.Users().FindByUsername(ctx, identifier)
	}
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("login lookup: %w", err)
		}
		user = nil
	}

	subject := identifierSubject(identifier)
	var userID *int64
	if user != nil {
		subject = accountSubject(user.ID)
		userID = &user.ID
	}
	if !s.throttle.Acquire(ctx, subject) {
		s.loginFailed(ctx, identifier, userID, reasonThrottled)
		return nil, common.ErrTooManyAttempts
	}

	if user == nil {
		s.hasher.SimulateVerify(req.Password)
		return nil, s.rejectLogin(ctx, identifier, nil, reasonUnknownIdentifier)
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, s.rejectLogin(ctx, identifier, userID, reasonBadPassword)
	}
	if !user.IsEnabled {
		return nil, s.rejectLogin(ctx, identifier, userID, reasonAccountDisabled)
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.throttle.Reset(ctx, subject)
	logging.WithContext(ctx, s.logger).Info("login succeeded", slog.Int64("user_id", user.ID))
	s.metrics.ObserveLogin(metrics.OutcomeSuccess)
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       model.AuthEventLogin,
		UserID:     &user.ID,
		Identifier: identifier,
		Outcome:    model.AuthOutcomeSuccess,
		OccurredAt: s.now().UTC(),
	})
	return resp, nil
}

// rejectLogin returns the one error every rejected login gets. The attempt
// was already counted by the throttle.
func (s *AuthService) rejectLogin(ctx context.Context, identifier string, userID *int64, reason string) error {
	s.loginFailed(ctx, identifier, userID, reason)
	return common.ErrInvalidCredentials
}

func (s *AuthService) loginFailed(ctx context.Context, identifier string, userID *int64, reason string) {
	logging.WithContext(ctx, s.logger).Warn("login failed", slog.String("reason", reason))
	s.metrics.ObserveLogin(metrics.OutcomeFailure)
	s.audit.Publish(ctx, model.AuthEvent{
		Type:       model.AuthEventLogin,
		UserID:     userID,
		Identifier: identifier,
		Outcome:    model.AuthOutcomeFailure,
		Reason:     reason,
		OccurredAt: s.now().UTC(),
	})
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*AuthResponse, error) {
	roles, err := s.store.Roles().ListRolesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles for user %d: %w", user.ID, err)
	}
	token, err := s.tokens.Issue(user.ID, user.Email, roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{Token: token, User: user.ToProfile(roles)}, nil
}
