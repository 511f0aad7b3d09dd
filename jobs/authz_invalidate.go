package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/staffhive/staffhive/internal/authz"
	jobmetrics "github.com/staffhive/staffhive/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuthzInvalidateJob drops cached permission aggregates out of band, so the
// mutation path that enqueued it stays a single database transaction.
type AuthzInvalidateJob struct {
	Cache   *authz.Cache
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuthzInvalidateJob wires dependencies for the invalidation handlers.
func NewAuthzInvalidateJob(cache *authz.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuthzInvalidateJob {
	return &AuthzInvalidateJob{Cache: cache, Logger: logger, Metrics: metrics}
}

// HandleUser processes TaskAuthzInvalidateUser tasks.
func (j *AuthzInvalidateJob) HandleUser(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("authz invalidate: handler not configured")
	}
	var payload InvalidateUserPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuthzInvalidateUser)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Cache.InvalidateUser(ctx, payload.UserID); err != nil {
		resultErr = err
		j.logger().Error("invalidate user aggregate", slog.Int64("user_id", payload.UserID), slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("invalidated user aggregate", slog.Int64("user_id", payload.UserID))
	return resultErr
}

// HandleAll processes TaskAuthzInvalidateAll tasks.
func (j *AuthzInvalidateJob) HandleAll(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("authz invalidate: handler not configured")
	}

	tracker := j.metrics().Track(TaskAuthzInvalidateAll)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Cache.InvalidateAll(ctx); err != nil {
		resultErr = err
		j.logger().Error("invalidate all aggregates", slog.Any("error", err))
		return resultErr
	}
	j.logger().Info("invalidated all aggregates")
	return resultErr
}

func (j *AuthzInvalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", "authz_invalidate"))
	}
	return slog.Default().With(slog.String("job", "authz_invalidate"))
}

func (j *AuthzInvalidateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
