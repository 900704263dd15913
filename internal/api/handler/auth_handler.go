package handler

import (
	"log/slog"
	"net/http"
	"time"

	"academic_user_service/internal/api/middleware"
	"academic_user_service/internal/app/service"
	"academic_user_service/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *RequestValidator
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, validator *RequestValidator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, validator: validator, logger: logger}
}

// RegisterRoutes mounts the public auth routes plus /me behind authn.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.With(authn).Get("/me", h.me)
}

type MeResponse struct {
	UserID    int64     `json:"userId"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusCreated, "User registered successfully", resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := h.validator.DecodeAndValidate(w, r, &req); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	common.RespondWithData(w, http.StatusOK, "Login successful", resp)
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	resp := MeResponse{UserID: userID, Email: claims.Email, Roles: []string(claims.Roles)}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	common.RespondWithData(w, http.StatusOK, "", resp)
}
