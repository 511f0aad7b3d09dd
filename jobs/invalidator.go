package jobs

import (
	"context"
	"log/slog"

	"github.com/staffhive/staffhive/internal/authz"
)

// QueueInvalidator satisfies the services' Invalidator contract. The cache
// flush runs inline so a revocation is visible on the caller's next check;
// the enqueued task is a retry backstop that re-runs the flush from the
// worker in case the inline write was lost. Enqueue failures only log: the
// cache is already flushed by then.
type QueueInvalidator struct {
	Client *Client
	Cache  *authz.Cache
	Logger *slog.Logger
}

// NewQueueInvalidator constructs a QueueInvalidator.
func NewQueueInvalidator(client *Client, cache *authz.Cache, logger *slog.Logger) *QueueInvalidator {
	return &QueueInvalidator{Client: client, Cache: cache, Logger: logger}
}

// InvalidateUser flushes one user's cached aggregate.
func (q *QueueInvalidator) InvalidateUser(ctx context.Context, userID int64) error {
	if err := q.Cache.InvalidateUser(ctx, userID); err != nil {
		return err
	}
	if q.Client != nil {
		if _, err := q.Client.EnqueueInvalidateUser(ctx, userID); err != nil && q.Logger != nil {
			q.Logger.Warn("enqueue invalidate user", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

// InvalidateAll orphans every cached aggregate.
func (q *QueueInvalidator) InvalidateAll(ctx context.Context) error {
	if err := q.Cache.InvalidateAll(ctx); err != nil {
		return err
	}
	if q.Client != nil {
		if _, err := q.Client.EnqueueInvalidateAll(ctx); err != nil && q.Logger != nil {
			q.Logger.Warn("enqueue invalidate all", slog.Any("error", err))
		}
	}
	return nil
}
