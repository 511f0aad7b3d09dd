package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/staffhive/staffhive/internal/app"
	"github.com/staffhive/staffhive/internal/authz"
	jobmetrics "github.com/staffhive/staffhive/internal/jobs"
	"github.com/staffhive/staffhive/internal/platform/cache"
	"github.com/staffhive/staffhive/internal/platform/db"
	"github.com/staffhive/staffhive/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(nil)
	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL)

	invalidateJob := jobs.NewAuthzInvalidateJob(authzCache, logger, metrics)
	sweepJob := jobs.NewAuditSweepJob(pool, logger, metrics)

	sweepTask, err := jobs.NewAuditSweepTask(jobs.AuditSweepPayload{RetentionDays: cfg.AuditRetentionDays})
	if err != nil {
		logger.Error("build audit sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthzInvalidateUser, Handler: invalidateJob.HandleUser},
			{Type: jobs.TaskAuthzInvalidateAll, Handler: invalidateJob.HandleAll},
			{Type: jobs.TaskAuditSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
