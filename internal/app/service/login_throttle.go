package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"academic_user_service/internal/platform/logging"

	"github.com/redis/go-redis/v9"
)

const loginAttemptsKeyPrefix = "login_attempts:"

// LoginThrottle limits login attempts per subject. Implementations fail open:
// a broken throttle store never blocks a login.
type LoginThrottle interface {
	// Acquire counts one attempt and reports whether it is within budget.
	Acquire(ctx context.Context, subject string) bool
	Reset(ctx context.Context, subject string)
}

type NopLoginThrottle struct{}

func (NopLoginThrottle) Acquire(context.Context, string) bool { return true }

func (NopLoginThrottle) Reset(context.Context, string) {}

// accountSubject keys the budget of a known account, so its username and
// email share one counter.
func accountSubject(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// identifierSubject keys the budget of an identifier that matched no account.
// Emails are case-insensitive, usernames are not.
func identifierSubject(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		identifier = normalizeEmail(identifier)
	}
	return "ident:" + identifier
}

// incrWithWindow starts the window on the first attempt in the same round
// trip as the increment.
var incrWithWindow = redis.NewScript(`
	local n = redis.call("incr", KEYS[1])
	if n == 1 then
		redis.call("pexpire", KEYS[1], ARGV[1])
	end
	return n
`)

// RedisLoginThrottle counts attempts in a key that expires window after the
// first attempt. Attempts past maxAttempts are refused until it expires or a
// login succeeds.
type RedisLoginThrottle struct {
	rdb         redis.Cmdable
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

func NewRedisLoginThrottle(rdb redis.Cmdable, maxAttempts int, window time.Duration, logger *slog.Logger) *RedisLoginThrottle {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RedisLoginThrottle{rdb: rdb, maxAttempts: maxAttempts, window: window, logger: logger}
}

func (t *RedisLoginThrottle) Acquire(ctx context.Context, subject string) bool {
	n, err := incrWithWindow.Run(ctx, t.rdb, []string{loginAttemptsKeyPrefix + subject}, t.window.Milliseconds()).Int64()
	if err != nil {
		t.logger.Warn("login throttle unavailable, allowing attempt", slog.Any("error", err))
		return true
	}
	return n <= int64(t.maxAttempts)
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, subject string) {
	if err := t.rdb.Del(ctx, loginAttemptsKeyPrefix+subject).Err(); err != nil {
		t.logger.Warn("failed to reset login throttle", slog.Any("error", err))
	}
}
