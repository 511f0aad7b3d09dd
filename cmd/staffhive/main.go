package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/staffhive/staffhive/internal/app"
	"github.com/staffhive/staffhive/internal/audit"
	"github.com/staffhive/staffhive/internal/auth"
	"github.com/staffhive/staffhive/internal/authz"
	"github.com/staffhive/staffhive/internal/observability"
	"github.com/staffhive/staffhive/internal/permissions"
	"github.com/staffhive/staffhive/internal/platform/cache"
	"github.com/staffhive/staffhive/internal/platform/db"
	"github.com/staffhive/staffhive/internal/reporting"
	"github.com/staffhive/staffhive/internal/roles"
	"github.com/staffhive/staffhive/internal/shared"
	"github.com/staffhive/staffhive/internal/users"
	"github.com/staffhive/staffhive/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL)
	authzService := authz.NewService(authz.NewStore(pool), authzCache)
	guard := authz.Middleware{Service: authzService, Logger: logger, Audit: auditLogger, Metrics: metrics}

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	invalidator := jobs.NewQueueInvalidator(jobClient, authzCache, logger)

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	permissionService := permissions.NewService(permissions.NewRepository(pool), auditLogger, invalidator)
	permissionsHandler := permissions.NewHandler(logger, permissionService, guard)

	roleService := roles.NewService(roles.NewRepository(pool), auditLogger, invalidator)
	rolesHandler := roles.NewHandler(logger, roleService, guard)

	userService := users.NewService(users.NewRepository(pool), auditLogger, invalidator)
	usersHandler := users.NewHandler(logger, userService, roleService, authzService, guard)

	reportingService := reporting.NewService(reporting.NewRepository(pool), auditLogger)
	reportingHandler := reporting.NewHandler(logger, reportingService, guard)

	auditService := audit.NewService(audit.NewRepository(pool))
	auditHandler := audit.NewHandler(logger, auditService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		UsersHandler:       usersHandler,
		ReportingHandler:   reportingHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
