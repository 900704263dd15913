package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"academic_user_service/internal/api"
	"academic_user_service/internal/app/service"
	"academic_user_service/internal/app/worker"
	"academic_user_service/internal/common/security"
	"academic_user_service/internal/domain/model"
	"academic_user_service/internal/domain/repository"
	"academic_user_service/internal/platform/config"
	"academic_user_service/internal/platform/database"
	"academic_user_service/internal/platform/logging"
	"academic_user_service/internal/platform/metrics"
	"academic_user_service/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Component: "user-service"})
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.AppEnv), slog.String("db_driver", cfg.DBDriver))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// 2. Initialize Security
	if cfg.UsingDevKey {
		logger.Warn("JWT_SECRET not set, using the development signing key")
	}
	hasher, err := security.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := security.NewTokenIssuer(security.TokenConfig{
		SigningKey: cfg.JWTKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})
	if err != nil {
		return err
	}

	// 3. Initialize Database
	dsn := cfg.DBConnStr
	if cfg.DBDriver == config.DriverSQLite {
		dsn = cfg.SQLitePath
	}
	db, dialect, err := database.Open(ctx, cfg.DBDriver, dsn)
	if err != nil {
		return err
	}
	store := repository.NewSQLStore(db, dialect)
	defer store.Close()

	if err := database.EnsureSchema(ctx, db, dialect); err != nil {
		return err
	}
	if err := store.Roles().SeedRoles(ctx, model.DefaultRoles()); err != nil {
		return err
	}
	logger.Info("database ready", slog.String("driver", dialect.Driver()))

	// 4. Initialize Redis
	rdb, err := queue.ConnectRedis(ctx, queue.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))

	// 5. Initialize Services
	m := metrics.New()
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithAuditPublisher(service.NewRedisAuditPublisher(rdb, cfg.AuditQueueName, logger, m)),
		service.WithLoginThrottle(service.NewRedisLoginThrottle(rdb, cfg.LoginMaxAttempts, cfg.LoginLockoutWindow, logger)),
	}
	authService := service.NewAuthService(store, hasher, tokens, opts...)
	userService := service.NewUserService(store, opts...)
	auditService := service.NewAuditService(store.AuthEvents())

	// 6. Initialize Audit Worker (as a goroutine)
	auditWorker := worker.NewAuditWorker(rdb, store.AuthEvents(), cfg.AuditQueueName, logger, m)
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		auditWorker.Start(workerCtx)
	}()

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(api.RouterConfig{
		AuthService:    authService,
		UserService:    userService,
		AuditService:   auditService,
		Tokens:         tokens,
		Logger:         logger,
		Metrics:        m,
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		HealthChecks: map[string]api.HealthCheck{
			"database": store.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return err
	}

	logger.Info("shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("audit worker did not stop before the shutdown deadline")
	}
	logger.Info("server and worker stopped gracefully")
	return nil
}
