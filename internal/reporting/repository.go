package reporting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhive/staffhive/internal/platform/db"
	"github.com/staffhive/staffhive/internal/shared"
)

// Repository defines persistence operations for the reporting graph.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetUser(ctx context.Context, id int64) (*OrgUser, error)
	GetManager(ctx context.Context, userID int64) (*OrgUser, error)
	ManagerID(ctx context.Context, userID int64) (int64, bool, error)
	ListDirectReportees(ctx context.Context, managerID int64) ([]OrgUser, error)

	DeactivateEdges(ctx context.Context, userID int64) error
	InsertEdge(ctx context.Context, userID, managerID int64) (*ReportingEdge, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, pool: pool}
}

// WithTx runs fn against a transaction-bound copy of the repository.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{db: tx, pool: r.pool})
	})
}

const userColumns = `id, email, name, is_active`

func scanUser(row pgx.Row) (*OrgUser, error) {
	var u OrgUser
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user projection by ID.
func (r *PGRepository) GetUser(ctx context.Context, id int64) (*OrgUser, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetManager returns the user's single active manager, or ErrNotFound when
// the user has none.
func (r *PGRepository) GetManager(ctx context.Context, userID int64) (*OrgUser, error) {
	return scanUser(r.db.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.is_active
		FROM user_reporting ur
		JOIN users u ON u.id = ur.manager_id
		WHERE ur.user_id = $1 AND ur.is_active = TRUE`, userID))
}

// ManagerID resolves just the active manager's ID; the bool reports presence.
func (r *PGRepository) ManagerID(ctx context.Context, userID int64) (int64, bool, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		SELECT manager_id FROM user_reporting
		WHERE user_id = $1 AND is_active = TRUE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}

// ListDirectReportees returns users whose active reporting edge points at
// the manager.
func (r *PGRepository) ListDirectReportees(ctx context.Context, managerID int64) ([]OrgUser, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.email, u.name, u.is_active
		FROM user_reporting ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.manager_id = $1 AND ur.is_active = TRUE
		ORDER BY u.id`, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OrgUser
	for rows.Next() {
		var u OrgUser
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// DeactivateEdges retires the user's active reporting edges. Rows stay in
// place as history.
func (r *PGRepository) DeactivateEdges(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_reporting SET is_active = FALSE
		WHERE user_id = $1 AND is_active = TRUE`, userID)
	return err
}

// InsertEdge records a new active manager assignment.
func (r *PGRepository) InsertEdge(ctx context.Context, userID, managerID int64) (*ReportingEdge, error) {
	var edge ReportingEdge
	err := r.db.QueryRow(ctx, `
		INSERT INTO user_reporting (user_id, manager_id, is_active, created_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING id, user_id, manager_id, is_active, created_at`,
		userID, managerID).Scan(&edge.ID, &edge.UserID, &edge.ManagerID, &edge.IsActive, &edge.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

var _ Repository = (*PGRepository)(nil)
