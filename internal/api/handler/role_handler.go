package handler

import (
	"log/slog"
	"net/http"

	"academic_user_service/internal/app/service"
	"academic_user_service/internal/common"

	"github.com/go-chi/chi/v5"
)

type RoleHandler struct {
	userService *service.UserService
	logger      *slog.Logger
}

func NewRoleHandler(userService *service.UserService, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{userService: userService, logger: logger}
}

func (h *RoleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listRoles)         // GET /api/roles
	r.Get("/{roleSlug}", h.getRole) // GET /api/roles/professor
}

func (h *RoleHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.userService.ListRoles(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "", roles)
}

func (h *RoleHandler) getRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.userService.GetRoleBySlug(r.Context(), chi.URLParam(r, "roleSlug"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "", role)
}
