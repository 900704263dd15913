package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"academic_user_service/internal/api/middleware"
	"academic_user_service/internal/app/service"
	"academic_user_service/internal/common"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	userService *service.UserService
	validator   *RequestValidator
	logger      *slog.Logger
}

func NewUserHandler(userService *service.UserService, validator *RequestValidator, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, validator: validator, logger: logger}
}

// RegisterRoutes expects authentication to be applied by the caller.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listUsers)      // GET /api/users
	r.Get("/{id}", h.getUser)    // GET /api/users/42
	r.Put("/{id}", h.updateUser) // PUT /api/users/42 (self or admin)

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/assign-role", h.assignRole)           // POST /api/users/assign-role
		adminRouter.Delete("/{id}", h.deleteUser)                // DELETE /api/users/42
		adminRouter.Delete("/{id}/roles/{roleId}", h.removeRole) // DELETE /api/users/42/roles/2
	})
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, &common.ValidationError{Fields: []string{param}}
	}
	return id, nil
}

func (h *UserHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "", users)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "", user)
}

func (h *UserHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	callerID, _ := middleware.GetUserIDFromContext(r.Context())
	isAdmin := middleware.IsAdmin(r.Context())
	if callerID != id && !isAdmin {
		common.RespondWithError(w, http.StatusForbidden, "Cannot modify another user")
		return
	}

	var req service.UpdateUserRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if req.IsEnabled != nil && !isAdmin {
		common.RespondWithError(w, http.StatusForbidden, "Admin access required to change account status")
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), id, req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "User updated successfully", user)
}

func (h *UserHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if err := h.userService.DeleteUser(r.Context(), id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "User deleted successfully", nil)
}

func (h *UserHandler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req service.AssignRoleRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if err := h.userService.AssignRole(r.Context(), req.UserID, req.RoleID); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "Role assigned successfully", nil)
}

func (h *UserHandler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r, "id")
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	roleID, err := parseID(r, "roleId")
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if err := h.userService.RemoveRole(r.Context(), userID, roleID); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "Role removed successfully", nil)
}
