package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"academic_user_service/internal/api/handler"
	"academic_user_service/internal/api/middleware"
	"academic_user_service/internal/app/service"
	"academic_user_service/internal/common"
	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	AuthService  *service.AuthService
	UserService  *service.UserService
	AuditService *service.AuditService
	Tokens       middleware.TokenVerifier

	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
	AllowedOrigins []string
	HealthChecks   map[string]HealthCheck
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger, cfg.Metrics))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.ClientIP)

	r.Get("/health", healthHandler(cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	validator := handler.NewRequestValidator()
	authn := middleware.Authenticator(cfg.Tokens)

	r.Route("/api", func(api chi.Router) {
		authHandler := handler.NewAuthHandler(cfg.AuthService, validator, logger)
		api.Route("/auth", func(auth chi.Router) {
			authHandler.RegisterRoutes(auth, authn)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(authn)

			userHandler := handler.NewUserHandler(cfg.UserService, validator, logger)
			protected.Route("/users", userHandler.RegisterRoutes)

			roleHandler := handler.NewRoleHandler(cfg.UserService, logger)
			protected.Route("/roles", roleHandler.RegisterRoutes)

			if cfg.AuditService != nil {
				auditHandler := handler.NewAuditHandler(cfg.AuditService, logger)
				protected.Route("/audit", func(audit chi.Router) {
					audit.Use(middleware.AdminOnly)
					auditHandler.RegisterRoutes(audit)
				})
			}
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		status := make(map[string]string, len(names))
		healthy := true
		for _, name := range names {
			if err := checks[name](r.Context()); err != nil {
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}

		if !healthy {
			common.RespondWithJSON(w, http.StatusServiceUnavailable, common.APIResponse{
				Success: false, Message: "degraded", Data: status,
			})
			return
		}
		common.RespondWithData(w, http.StatusOK, "OK", status)
	}
}
