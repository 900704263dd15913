package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"academic_user_service/internal/common"
	"academic_user_service/internal/common/security"
	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/domain/repository"
	"academic_user_service/internal/platform/database"
	"academic_user_service/internal/platform/logging"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testTokenConfig = security.TokenConfig{
	SigningKey: []byte("service-test-signing-key-0123456789abcdef"),
	Issuer:     "UserServiceAPI",
	Audience:   "UserServiceClient",
}

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, seed bool) *repository.SQLStore {
	t.Helper()
	ctx := context.Background()
	db, dialect, err := database.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.EnsureSchema(ctx, db, dialect))
	store := repository.NewSQLStore(db, dialect)
	if seed {
		require.NoError(t, store.Roles().SeedRoles(ctx, model.DefaultRoles()))
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestHasher(t *testing.T) *countingHasher {
	t.Helper()
	h, err := security.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return &countingHasher{PasswordHasher: h}
}

func newTestIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()
	ti, err := security.NewTokenIssuer(testTokenConfig, security.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return ti
}

// countingHasher records how many bcrypt comparisons each login made.
type countingHasher struct {
	security.PasswordHasher
	mu       sync.Mutex
	compares int
}

func (h *countingHasher) Verify(plain, hash string) bool {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.PasswordHasher.Verify(plain, hash)
}

func (h *countingHasher) SimulateVerify(plain string) {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	h.PasswordHasher.SimulateVerify(plain)
}

func (h *countingHasher) takeCompares() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.compares
	h.compares = 0
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.AuthEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.AuthEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) last() model.AuthEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return model.AuthEvent{}
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	store  *repository.SQLStore
	hasher *countingHasher
	tokens *security.TokenIssuer
	audit  *recordingPublisher
	logs   *bytes.Buffer
	auth   *AuthService
	users  *UserService
}

func newFixture(t *testing.T, extra ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  newTestStore(t, true),
		hasher: newTestHasher(t),
		tokens: newTestIssuer(t),
		audit:  &recordingPublisher{},
		logs:   &bytes.Buffer{},
	}
	logger := logging.NewWithWriter(logging.Config{Level: "debug", Format: "json"}, f.logs)
	opts := append([]Option{
		WithLogger(logger),
		WithAuditPublisher(f.audit),
		WithClock(func() time.Time { return testNow }),
	}, extra...)
	f.auth = NewAuthService(f.store, f.hasher, f.tokens, opts...)
	f.users = NewUserService(f.store, opts...)
	return f
}

func (f *fixture) register(t *testing.T, username, email, password string) *AuthResponse {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), RegisterRequest{
		Username: username, Email: email, Password: password, FullName: "Test " + username,
	})
	require.NoError(t, err)
	return resp
}

// lyingStore reports that no identity exists, forcing registration onto the
// store's unique constraint.
type lyingStore struct{ *repository.SQLStore }

func (s lyingStore) Users() repository.UserRepository { return lyingUsers{s.SQLStore.Users()} }

type lyingUsers struct{ repository.UserRepository }

func (lyingUsers) ExistsByEmailOrUsername(context.Context, string, string) (bool, error) {
	return false, nil
}

// vanishingStore loses users between insert and re-read.
type vanishingStore struct{ *repository.SQLStore }

func (s vanishingStore) Users() repository.UserRepository { return vanishingUsers{s.SQLStore.Users()} }

type vanishingUsers struct{ repository.UserRepository }

func (vanishingUsers) FindByID(context.Context, int64) (*model.User, error) {
	return nil, common.ErrNotFound
}

// blindRolesStore never sees an existing role edge, forcing AssignRole onto
// the store's unique constraint.
type blindRolesStore struct{ *repository.SQLStore }

func (s blindRolesStore) Roles() repository.RoleRepository { return blindRoles{s.SQLStore.Roles()} }

type blindRoles struct{ repository.RoleRepository }

func (blindRoles) RoleEdgeExists(context.Context, int64, int64) (bool, error) {
	return false, nil
}
