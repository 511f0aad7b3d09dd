package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/staffhive/staffhive/internal/jobs"
)

// DefaultAuditRetentionDays bounds how long audit rows are kept when the
// payload does not say otherwise.
const DefaultAuditRetentionDays = 365

// AuditSweepJob prunes audit log rows past the retention window. Runs
// nightly via the scheduler.
type AuditSweepJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditSweepJob wires dependencies for the sweep handler.
func NewAuditSweepJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditSweepJob {
	return &AuditSweepJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuditSweep tasks.
func (j *AuditSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("audit sweep: handler not configured")
	}
	var payload AuditSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.RetentionDays <= 0 {
		payload.RetentionDays = DefaultAuditRetentionDays
	}

	tracker := j.metrics().Track(TaskAuditSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tag, err := j.Pool.Exec(ctx, `
		DELETE FROM audit_logs
		WHERE occurred_at < NOW() - make_interval(days => $1)`, payload.RetentionDays)
	if err != nil {
		resultErr = err
		j.logger().Error("prune audit logs", slog.Any("error", err))
		return resultErr
	}

	j.logger().Info("pruned audit logs",
		slog.Int64("rows", tag.RowsAffected()),
		slog.Int("retention_days", payload.RetentionDays))
	return resultErr
}

func (j *AuditSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditSweep))
	}
	return slog.Default().With(slog.String("job", TaskAuditSweep))
}

func (j *AuditSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
