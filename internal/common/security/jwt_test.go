package security

import (
	"errors"
	"testing"
	"time"

	"academic_user_service/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTokenConfig = TokenConfig{
	SigningKey: []byte("test-signing-key-that-is-at-least-32-bytes"),
	Issuer:     "UserServiceAPI",
	Audience:   "UserServiceClient",
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newIssuerAt(t *testing.T, cfg TokenConfig, at time.Time) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer(cfg, WithClock(fixedClock(at)))
	require.NoError(t, err)
	return ti
}

func TestIssueAndVerify(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ti := newIssuerAt(t, testTokenConfig, issuedAt)

	token, err := ti.Issue(42, "alice@x.io", []string{"Student", "Professor"})
	require.NoError(t, err)

	verifier := newIssuerAt(t, testTokenConfig, issuedAt.Add(time.Minute))
	claims, err := verifier.Verify(token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice@x.io", claims.Email)
	assert.Equal(t, jwt.ClaimStrings{"Student", "Professor"}, claims.Roles)
	assert.True(t, claims.HasRole("Professor"))
	assert.False(t, claims.HasRole("Admin"))
	assert.Equal(t, "UserServiceAPI", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"UserServiceClient"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)

	assert.True(t, claims.IssuedAt.Time.Equal(issuedAt))
	assert.True(t, claims.ExpiresAt.Time.Equal(issuedAt.Add(24*time.Hour)))
}

func TestIssueEncodesRolesAsArray(t *testing.T) {
	ti := newIssuerAt(t, testTokenConfig, time.Now())

	token, err := ti.Issue(7, "bob@x.io", []string{"Student"})
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	raw := parsed.Claims.(jwt.MapClaims)

	assert.Equal(t, []interface{}{"Student"}, raw["role"])
	assert.Equal(t, "7", raw["sub"])
	assert.Equal(t, "HS256", parsed.Header["alg"])
}

func TestIssueUsesFreshTokenID(t *testing.T) {
	ti := newIssuerAt(t, testTokenConfig, time.Now())

	a, err := ti.Issue(1, "a@x.io", nil)
	require.NoError(t, err)
	b, err := ti.Issue(1, "a@x.io", nil)
	require.NoError(t, err)

	ca, err := ti.Verify(a)
	require.NoError(t, err)
	cb, err := ti.Verify(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
	assert.Empty(t, ca.Roles)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token, err := newIssuerAt(t, testTokenConfig, issuedAt).Issue(1, "a@x.io", []string{"Student"})
	require.NoError(t, err)

	later := newIssuerAt(t, testTokenConfig, issuedAt.Add(24*time.Hour+time.Second))
	_, err = later.Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenExpired))
	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	now := time.Now()
	token, err := newIssuerAt(t, testTokenConfig, now).Issue(1, "a@x.io", nil)
	require.NoError(t, err)

	otherKey := testTokenConfig
	otherKey.SigningKey = []byte("another-signing-key-that-is-32-bytes-long")
	otherIssuer := testTokenConfig
	otherIssuer.Issuer = "SomeoneElse"
	otherAudience := testTokenConfig
	otherAudience.Audience = "OtherClient"

	for name, cfg := range map[string]TokenConfig{
		"signature": otherKey,
		"issuer":    otherIssuer,
		"audience":  otherAudience,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := newIssuerAt(t, cfg, now).Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.NotErrorIs(t, err, ErrTokenExpired)
		})
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    testTokenConfig.Issuer,
		Audience:  jwt.ClaimStrings{testTokenConfig.Audience},
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testTokenConfig.SigningKey)
	require.NoError(t, err)

	ti := newIssuerAt(t, testTokenConfig, now)
	for _, token := range []string{none, hs512, "not-a-token", ""} {
		_, err := ti.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestNewTokenIssuerRequiresConfig(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{Issuer: "i", Audience: "a"})
	assert.Error(t, err)

	_, err = NewTokenIssuer(TokenConfig{SigningKey: []byte("k")})
	assert.Error(t, err)
}

func TestClaimsUserIDRejectsGarbageSubject(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}}
	_, err := c.UserID()
	assert.ErrorIs(t, err, ErrInvalidToken)
}
