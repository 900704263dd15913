package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"academic_user_service/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is fixed: every token expires exactly 24h after issuance.
const TokenTTL = 24 * time.Hour

var (
	ErrInvalidToken = fmt.Errorf("invalid token: %w", common.ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("token expired: %w", ErrInvalidToken)
)

type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
}

// Claims is the token payload. Role holds one entry per role name and is
// always encoded as a JSON array.
type Claims struct {
	jwt.RegisteredClaims
	Email string           `json:"email"`
	Roles jwt.ClaimStrings `json:"role,omitempty"`
}

func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subject %q is not a user id: %w", c.Subject, ErrInvalidToken)
	}
	return id, nil
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type TokenIssuer struct {
	cfg   TokenConfig
	now   func() time.Time
	newID func() string
}

type Option func(*TokenIssuer)

func WithClock(now func() time.Time) Option {
	return func(ti *TokenIssuer) { ti.now = now }
}

func NewTokenIssuer(cfg TokenConfig, opts ...Option) (*TokenIssuer, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("token signing key is empty")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token issuer and audience are required")
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	cfg.SigningKey = key

	ti := &TokenIssuer{cfg: cfg, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(ti)
	}
	return ti, nil
}

func (ti *TokenIssuer) Issue(userID int64, email string, roles []string) (string, error) {
	now := ti.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{ti.cfg.Audience},
			ID:        ti.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		Email: email,
		Roles: append(jwt.ClaimStrings(nil), roles...),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry, issuer and audience.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.cfg.SigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.cfg.Issuer),
		jwt.WithAudience(ti.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
