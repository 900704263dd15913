package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"academic_user_service/internal/common"
	"academic_user_service/internal/domain/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.auth.Register(ctx, RegisterRequest{
		Username: "alice", Email: "alice@x.com", Password: "pw123", FullName: "Alice A",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, []string{"Student"}, reg.User.Roles)
	assert.Equal(t, "alice", reg.User.Username)
	assert.Equal(t, "Alice A", reg.User.FullName)
	assert.True(t, reg.User.IsEnabled)

	login, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "alice@x.com", Password: "pw123"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, []string{"Student"}, login.User.Roles)
	assert.Equal(t, reg.User.ID, login.User.ID)

	bad, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "alice@x.com", Password: "wrong"})
	assert.Nil(t, bad)
	assert.True(t, errors.Is(err, common.ErrInvalidCredentials))
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t)

	resp := f.register(t, "bob", "Bob@X.io", "hunter22")
	assert.Equal(t, "bob@x.io", resp.User.Email, "email is stored lowercased")

	claims, err := f.tokens.Verify(resp.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id)
	assert.Equal(t, "bob@x.io", claims.Email)
	assert.True(t, claims.HasRole(model.RoleStudent))
	assert.True(t, claims.ExpiresAt.Time.Equal(testNow.Add(24*time.Hour)))
}

func TestRegisterNeverStoresPlaintext(t *testing.T) {
	f := newFixture(t)
	resp := f.register(t, "carol", "carol@x.io", "plain-secret")

	user, err := f.store.Users().FindByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "plain-secret", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
	assert.NotContains(t, f.logs.String(), "plain-secret")
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dave", "dave@x.io", "pw")
	ctx := context.Background()

	for _, ident := range []string{"dave", "dave@x.io", "  DAVE@x.io "} {
		resp, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: ident, Password: "pw"})
		require.NoError(t, err, ident)
		assert.Equal(t, "dave", resp.User.Username)
	}

	_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "DAVE", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials, "usernames are case-sensitive")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "erin", "erin@x.io", "pw")

	_, err := f.auth.Register(ctx, RegisterRequest{Username: "erin2", Email: "ERIN@x.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	_, err = f.auth.Register(ctx, RegisterRequest{Username: "erin", Email: "other@x.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)

	n, err := f.store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ev := f.audit.last()
	assert.Equal(t, model.AuthEventRegister, ev.Type)
	assert.Equal(t, model.AuthOutcomeFailure, ev.Outcome)
	assert.Equal(t, "duplicate_identity", ev.Reason)
}

func TestRegisterTranslatesConstraintRace(t *testing.T) {
	store := newTestStore(t, true)
	auth := NewAuthService(lyingStore{store}, newTestHasher(t), newTestIssuer(t))
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterRequest{Username: "frank", Email: "frank@x.io", Password: "pw"})
	require.NoError(t, err)

	_, err = auth.Register(ctx, RegisterRequest{Username: "frank2", Email: "frank@x.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrDuplicateIdentity)
	assert.NotErrorIs(t, err, common.ErrStorageUnavailable)

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRegisterMissingAfterInsertIsInternalConsistency(t *testing.T) {
	store := newTestStore(t, true)
	auth := NewAuthService(vanishingStore{store}, newTestHasher(t), newTestIssuer(t))

	resp, err := auth.Register(context.Background(), RegisterRequest{Username: "gina", Email: "gina@x.io", Password: "pw"})
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, common.ErrInternalConsistency)
}

func TestRegisterWithoutDefaultRoleRollsBack(t *testing.T) {
	store := newTestStore(t, false)
	auth := NewAuthService(store, newTestHasher(t), newTestIssuer(t))
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterRequest{Username: "hank", Email: "hank@x.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrInternalConsistency)

	n, err := store.Users().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.Register(context.Background(), RegisterRequest{Username: "  ", Email: "", Password: ""})
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"username", "email", "password"}, verr.Fields)
}

func TestLoginFailuresAreUndifferentiated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp := f.register(t, "ivan", "ivan@x.io", "pw")

	disabled := false
	_, err := f.users.UpdateUser(ctx, resp.User.ID, UpdateUserRequest{IsEnabled: &disabled})
	require.NoError(t, err)
	f.hasher.takeCompares()

	cases := []struct {
		name   string
		req    LoginRequest
		reason string
	}{
		{"unknown user", LoginRequest{EmailOrUsername: "nobody@x.io", Password: "pw"}, "unknown_identifier"},
		{"bad password", LoginRequest{EmailOrUsername: "ivan", Password: "nope"}, "bad_password"},
		{"disabled", LoginRequest{EmailOrUsername: "ivan", Password: "pw"}, "account_disabled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := f.auth.Login(ctx, tc.req)
			assert.Nil(t, resp)
			assert.Equal(t, common.ErrInvalidCredentials, err)
			assert.Equal(t, "invalid credentials", common.ClientMessage(err))
			assert.Equal(t, 1, f.hasher.takeCompares(), "each path costs one bcrypt comparison")

			ev := f.audit.last()
			assert.Equal(t, model.AuthEventLogin, ev.Type)
			assert.Equal(t, model.AuthOutcomeFailure, ev.Outcome)
			assert.Equal(t, tc.reason, ev.Reason)
		})
	}

	assert.Contains(t, f.logs.String(), `"reason":"account_disabled"`)
	assert.NotContains(t, f.logs.String(), "nope")
}

func TestLoginThrottleLocksIdentifier(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t, WithLoginThrottle(NewRedisLoginThrottle(rdb, 3, 15*time.Minute, nil)))
	ctx := context.Background()
	f.register(t, "judy", "judy@x.io", "pw")

	for i := 0; i < 3; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "judy", Password: "bad"})
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
	}

	_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "judy", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)

	mr.FastForward(16 * time.Minute)
	_, err = f.auth.Login(ctx, LoginRequest{EmailOrUsername: "judy", Password: "pw"})
	assert.NoError(t, err)
}

func TestLoginSuccessResetsThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t, WithLoginThrottle(NewRedisLoginThrottle(rdb, 3, time.Minute, nil)))
	ctx := context.Background()
	kate := f.register(t, "kate", "kate@x.io", "pw").User
	key := "login_attempts:" + accountSubject(kate.ID)

	_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "Kate@x.io", Password: "bad"})
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.True(t, mr.Exists(key))

	_, err = f.auth.Login(ctx, LoginRequest{EmailOrUsername: "kate@x.io", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

func TestLoginThrottleSharesBudgetAcrossIdentifiers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t, WithLoginThrottle(NewRedisLoginThrottle(rdb, 3, 15*time.Minute, nil)))
	ctx := context.Background()
	f.register(t, "liam", "liam@x.io", "pw")

	for _, ident := range []string{"liam", "liam@x.io", "LIAM@x.io"} {
		_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: ident, Password: "bad"})
		require.ErrorIs(t, err, common.ErrInvalidCredentials, ident)
	}

	_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "liam", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)
	_, err = f.auth.Login(ctx, LoginRequest{EmailOrUsername: "liam@x.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)

	ev := f.audit.last()
	assert.Equal(t, reasonThrottled, ev.Reason)
	require.NotNil(t, ev.UserID)
}

func TestLoginThrottleCountsUnknownIdentifiers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(t, WithLoginThrottle(NewRedisLoginThrottle(rdb, 2, 15*time.Minute, nil)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "Ghost@x.io", Password: "pw"})
		require.ErrorIs(t, err, common.ErrInvalidCredentials)
	}
	_, err := f.auth.Login(ctx, LoginRequest{EmailOrUsername: "ghost@X.io", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)
	assert.True(t, mr.Exists("login_attempts:ident:ghost@x.io"))

	_, err = f.auth.Login(ctx, LoginRequest{EmailOrUsername: "Ghost", Password: "pw"})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials, "usernames keep their case")
}
