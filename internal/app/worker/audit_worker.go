package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/domain/repository"
	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// MaxAuditAttempts is how many inserts an event gets before it is dropped.
	MaxAuditAttempts = 3

	defaultPopTimeout = 2 * time.Second
	storeTimeout      = 5 * time.Second
	errorBackoff      = 5 * time.Second
)

// AuditWorker drains the audit queue into the auth_events table.
type AuditWorker struct {
	rdb        redis.Cmdable
	events     repository.AuthEventRepository
	queue      string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	popTimeout time.Duration
}

func NewAuditWorker(rdb redis.Cmdable, events repository.AuthEventRepository, queue string, logger *slog.Logger, m *metrics.Metrics) *AuditWorker {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuditWorker{
		rdb:        rdb,
		events:     events,
		queue:      queue,
		logger:     logger.With(slog.String("queue", queue)),
		metrics:    m,
		popTimeout: defaultPopTimeout,
	}
}

// Start blocks until ctx is cancelled.
func (w *AuditWorker) Start(ctx context.Context) {
	w.logger.Info("audit worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("audit worker stopping")
			return
		default:
		}

		if _, err := w.ProcessNext(ctx, w.popTimeout); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("failed to pop from audit queue", slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// ProcessNext waits up to timeout for one event and stores it. It reports
// false when the queue stayed empty.
func (w *AuditWorker) ProcessNext(ctx context.Context, timeout time.Duration) (bool, error) {
	res, err := w.rdb.BRPop(ctx, timeout, w.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("brpop %s: %w", w.queue, err)
	}

	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		w.logger.Warn("audit queue returned an empty item")
		return true, nil
	}

	// An event already popped is finished even during shutdown.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	w.handle(storeCtx, res[1])
	return true, nil
}

func (w *AuditWorker) handle(ctx context.Context, raw string) {
	var event model.AuthEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		w.logger.Error("dropping malformed audit event", slog.Any("error", err))
		w.metrics.ObserveAuditEvent("dropped")
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if err := w.events.Insert(ctx, &event); err != nil {
		w.requeue(ctx, event, err)
		return
	}
	w.metrics.ObserveAuditEvent("stored")
}

// requeue puts a failed event back behind newer ones until it has used up
// MaxAuditAttempts.
func (w *AuditWorker) requeue(ctx context.Context, event model.AuthEvent, cause error) {
	event.Attempts++
	logger := w.logger.With(
		slog.String("event_id", event.ID),
		slog.Int("attempts", event.Attempts),
		slog.Any("error", cause),
	)
	if event.Attempts >= MaxAuditAttempts {
		logger.Error("dropping audit event after repeated failures")
		w.metrics.ObserveAuditEvent("dropped")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to encode audit event for requeue", slog.Any("encode_error", err))
		w.metrics.ObserveAuditEvent("dropped")
		return
	}
	if err := w.rdb.LPush(ctx, w.queue, payload).Err(); err != nil {
		logger.Error("failed to requeue audit event", slog.Any("requeue_error", err))
		w.metrics.ObserveAuditEvent("dropped")
		return
	}
	logger.Warn("audit event requeued")
	w.metrics.ObserveAuditEvent("requeued")
}
