package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines read access to the audit trail. Writes go through
// shared.AuditLogger; this side only queries.
type Repository interface {
	Timeline(ctx context.Context, req TimelineRequest) ([]Event, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Timeline returns one page of events, newest first, plus the total count
// for the active filters.
func (r *PGRepository) Timeline(ctx context.Context, req TimelineRequest) ([]Event, int, error) {
	where := ""
	var args []interface{}
	argPos := 1

	add := func(clause string, value interface{}) {
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, argPos)
		args = append(args, value)
		argPos++
	}

	if req.Entity != "" {
		add("entity = $%d", req.Entity)
	}
	if req.Action != "" {
		add("action = $%d", req.Action)
	}
	if req.ActorID != nil {
		add("actor_id = $%d", *req.ActorID)
	}
	if req.From != nil {
		add("occurred_at >= $%d", *req.From)
	}
	if req.To != nil {
		add("occurred_at < $%d", *req.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, actor_id, action, entity, entity_id, meta, occurred_at FROM audit_logs` + where +
		fmt.Sprintf(" ORDER BY occurred_at DESC, id LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, req.PerPage, (req.Page-1)*req.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &metaJSON, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, 0, fmt.Errorf("decode meta for event %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
