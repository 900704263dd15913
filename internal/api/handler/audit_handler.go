package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"academic_user_service/internal/app/service"
	"academic_user_service/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuditHandler struct {
	auditService *service.AuditService
	logger       *slog.Logger
}

func NewAuditHandler(auditService *service.AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, logger: logger}
}

// RegisterRoutes expects admin authorization to be applied by the caller.
func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events", h.listEvents) // GET /api/audit/events?limit=20
}

func (h *AuditHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithServiceError(w, r, h.logger, &common.ValidationError{Fields: []string{"limit"}})
			return
		}
		limit = n
	}

	events, err := h.auditService.ListAuthEvents(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "", events)
}
