package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhive/staffhive/internal/platform/db"
	"github.com/staffhive/staffhive/internal/shared"
)

const uniqueViolation = "23505"

// Repository defines persistence operations for the permission catalog.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Permission, error)
	GetByName(ctx context.Context, name string) (*Permission, error)
	List(ctx context.Context, req ListPermissionsRequest) ([]Permission, error)
	Create(ctx context.Context, p Permission) (*Permission, error)
	Update(ctx context.Context, id int64, description *string, isActive *bool) (*Permission, error)
	Delete(ctx context.Context, id int64) error
	CountRoleReferences(ctx context.Context, id int64) (int, error)
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

const permissionColumns = `id, name, resource, action, description, is_active, created_at, updated_at`

func scanPermission(row pgx.Row) (*Permission, error) {
	var p Permission
	if err := row.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Get fetches a permission by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Permission, error) {
	row := r.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	return scanPermission(row)
}

// GetByName fetches a permission by its unique name.
func (r *PGRepository) GetByName(ctx context.Context, name string) (*Permission, error) {
	row := r.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE name = $1`, name)
	return scanPermission(row)
}

// List returns catalog entries matching the filters, ordered by name.
func (r *PGRepository) List(ctx context.Context, req ListPermissionsRequest) ([]Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions`
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Resource != nil && *req.Resource != "" {
		conditions = append(conditions, fmt.Sprintf("resource = $%d", argPos))
		args = append(args, *req.Resource)
		argPos++
	}
	if req.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			query += " AND " + conditions[i]
		}
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// Create inserts a new permission row.
func (r *PGRepository) Create(ctx context.Context, p Permission) (*Permission, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO permissions (name, resource, action, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING `+permissionColumns,
		p.Name, p.Resource, p.Action, p.Description)
	created, err := scanPermission(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: permission %q already exists", shared.ErrConflict, p.Name)
		}
		return nil, err
	}
	return created, nil
}

// Update applies partial changes to a permission.
func (r *PGRepository) Update(ctx context.Context, id int64, description *string, isActive *bool) (*Permission, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE permissions
		SET description = COALESCE($2, description),
		    is_active = COALESCE($3, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+permissionColumns,
		id, description, isActive)
	return scanPermission(row)
}

// Delete removes a permission row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountRoleReferences reports how many roles still hold the permission.
func (r *PGRepository) CountRoleReferences(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1`, id).Scan(&count)
	return count, err
}

var _ Repository = (*PGRepository)(nil)
