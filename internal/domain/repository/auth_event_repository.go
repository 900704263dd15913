package repository

import (
	"context"
	"database/sql"

	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/platform/database"
)

type AuthEventRepository interface {
	Insert(ctx context.Context, event *model.AuthEvent) error
	ListRecent(ctx context.Context, limit int) ([]model.AuthEvent, error)
}

type sqlAuthEventRepository struct {
	q       DBTX
	dialect database.Dialect
}

// Insert is idempotent on event id so a redelivered event is stored once.
func (r *sqlAuthEventRepository) Insert(ctx context.Context, event *model.AuthEvent) error {
	query := r.dialect.Rebind(`INSERT INTO auth_events (id, type, user_id, identifier, outcome, reason, remote_addr, occurred_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT DO NOTHING`)
	_, err := r.q.ExecContext(ctx, query,
		event.ID, event.Type, event.UserID, event.Identifier, event.Outcome, event.Reason, event.RemoteAddr, event.OccurredAt.UTC(),
	)
	if err != nil {
		return translateError("authEventRepository.Insert", err)
	}
	return nil
}

// ListRecent returns events newest first.
func (r *sqlAuthEventRepository) ListRecent(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	query := r.dialect.Rebind(`SELECT id, type, user_id, identifier, outcome, reason, remote_addr, occurred_at
	          FROM auth_events ORDER BY occurred_at DESC, id LIMIT $1`)
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, translateError("authEventRepository.ListRecent", err)
	}
	defer rows.Close()

	events := []model.AuthEvent{}
	for rows.Next() {
		var (
			ev     model.AuthEvent
			userID sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &userID, &ev.Identifier, &ev.Outcome, &ev.Reason, &ev.RemoteAddr, &ev.OccurredAt); err != nil {
			return nil, translateError("authEventRepository.ListRecent", err)
		}
		if userID.Valid {
			id := userID.Int64
			ev.UserID = &id
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("authEventRepository.ListRecent", err)
	}
	return events, nil
}
