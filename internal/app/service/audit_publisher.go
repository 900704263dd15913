package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// AuditPublisher hands auth events to the audit trail. Publishing never fails
// the calling operation.
type AuditPublisher interface {
	Publish(ctx context.Context, event model.AuthEvent)
}

type NopAuditPublisher struct{}

func (NopAuditPublisher) Publish(context.Context, model.AuthEvent) {}

// RedisAuditPublisher pushes events onto a Redis list consumed by the audit
// worker.
type RedisAuditPublisher struct {
	rdb     redis.Cmdable
	queue   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRedisAuditPublisher(rdb redis.Cmdable, queue string, logger *slog.Logger, m *metrics.Metrics) *RedisAuditPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RedisAuditPublisher{rdb: rdb, queue: queue, logger: logger, metrics: m}
}

func (p *RedisAuditPublisher) Publish(ctx context.Context, event model.AuthEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.RemoteAddr == "" {
		event.RemoteAddr = ClientIPFromContext(ctx)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode audit event", slog.String("event_type", event.Type), slog.Any("error", err))
		p.metrics.ObserveAuditEvent("publish_failed")
		return
	}

	// The request may already be finishing; the push gets its own deadline.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.rdb.LPush(pushCtx, p.queue, payload).Err(); err != nil {
		p.logger.Warn("failed to publish audit event",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID),
			slog.Any("error", err),
		)
		p.metrics.ObserveAuditEvent("publish_failed")
		return
	}
	p.metrics.ObserveAuditEvent("published")
}

type clientIPKey struct{}

// ContextWithClientIP records the caller address for audit events.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
