package service

import (
	"context"
	"fmt"

	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/domain/repository"
)

const (
	DefaultAuditListLimit = 50
	MaxAuditListLimit     = 500
)

// AuditService reads back the audit trail written by the audit worker.
type AuditService struct {
	events repository.AuthEventRepository
}

func NewAuditService(events repository.AuthEventRepository) *AuditService {
	return &AuditService{events: events}
}

// ListAuthEvents returns the newest events first. limit is clamped to
// [1, MaxAuditListLimit]; zero or less means DefaultAuditListLimit.
func (s *AuditService) ListAuthEvents(ctx context.Context, limit int) ([]model.AuthEvent, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditListLimit
	case limit > MaxAuditListLimit:
		limit = MaxAuditListLimit
	}
	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	return events, nil
}
