package service

import (
	"log/slog"
	"time"

	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"
)

// Option configures the optional collaborators shared by AuthService and
// UserService. Unset collaborators fall back to no-ops.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    AuditPublisher
	throttle LoginThrottle
	now      func() time.Time
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(o *options) { o.audit = p }
}

func WithLoginThrottle(t LoginThrottle) Option {
	return func(o *options) { o.throttle = t }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   logging.Discard(),
		audit:    NopAuditPublisher{},
		throttle: NopLoginThrottle{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
