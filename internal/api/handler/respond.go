package handler

import (
	"log/slog"
	"net/http"

	"academic_user_service/internal/common"
	"academic_user_service/internal/platform/logging"
)

// respondWithServiceError maps err to a status and a fixed client message.
// The full error is only logged, and only for server-side failures.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := common.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), logger).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	common.RespondWithError(w, status, common.ClientMessage(err))
}
