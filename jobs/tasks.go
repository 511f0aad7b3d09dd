package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzInvalidateUser flushes one user's cached permission aggregate.
	TaskAuthzInvalidateUser = "authz:invalidate_user"
	// TaskAuthzInvalidateAll orphans every cached permission aggregate.
	TaskAuthzInvalidateAll = "authz:invalidate_all"
	// TaskAuditSweep prunes audit log rows past the retention window.
	TaskAuditSweep = "audit:sweep"
)

// InvalidateUserPayload names the user whose aggregate is dropped.
type InvalidateUserPayload struct {
	UserID int64 `json:"user_id"`
}

// AuditSweepPayload bounds the sweep. Zero RetentionDays means the handler's
// configured default.
type AuditSweepPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewInvalidateUserTask constructs an Asynq task.
func NewInvalidateUserTask(payload InvalidateUserPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzInvalidateUser, data), nil
}

// NewInvalidateAllTask constructs an Asynq task. The payload is empty; the
// generation bump carries no parameters.
func NewInvalidateAllTask() *asynq.Task {
	return asynq.NewTask(TaskAuthzInvalidateAll, nil)
}

// NewAuditSweepTask constructs an Asynq task.
func NewAuditSweepTask(payload AuditSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditSweep, data), nil
}
