package roles

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

// Repository defines persistence operations for the role graph and its
// assignment tables.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	Get(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context, req ListRolesRequest) ([]Role, error)
	Create(ctx context.Context, role Role) (*Role, error)
	Update(ctx context.Context, id int64, req UpdateRoleRequest) (*Role, error)
	SetParent(ctx context.Context, id int64, parentID *int64) error
	Delete(ctx context.Context, id int64) error

	ChildIDs(ctx context.Context, id int64) ([]int64, error)
	CountChildren(ctx context.Context, id int64) (int, error)
	CountUserAssignments(ctx context.Context, roleID int64) (int, error)

	ListPermissions(ctx context.Context, roleID int64) ([]PermissionGrant, error)
	AssignPermission(ctx context.Context, roleID, permissionID int64) error
	RemovePermission(ctx context.Context, roleID, permissionID int64) error
	DeletePermissionAssignments(ctx context.Context, roleID int64) error
	PermissionExists(ctx context.Context, permissionID int64) (bool, error)

	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	AssignUser(ctx context.Context, userID, roleID int64) error
	RemoveUser(ctx context.Context, userID, roleID int64) error
	DeleteUserAssignments(ctx context.Context, userID int64) error
	UserExists(ctx context.Context, userID int64) (bool, error)
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

const roleColumns = `id, name, description, hierarchy_level, department, parent_id, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.HierarchyLevel, &role.Department, &role.ParentID, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// Get fetches a role by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Role, error) {
	return scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetByName fetches a role by its unique name.
func (r *PGRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	return scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// List returns roles matching the filters, most privileged first.
func (r *PGRepository) List(ctx context.Context, req ListRolesRequest) ([]Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles`
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.Department != nil && *req.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", argPos))
		args = append(args, *req.Department)
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
	query += " ORDER BY hierarchy_level, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.HierarchyLevel, &role.Department, &role.ParentID, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

// Create inserts a new role.
func (r *PGRepository) Create(ctx context.Context, role Role) (*Role, error) {
	created, err := scanRole(r.db.QueryRow(ctx, `
		INSERT INTO roles (name, description, hierarchy_level, department, parent_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW())
		RETURNING `+roleColumns,
		role.Name, role.Description, role.HierarchyLevel, role.Department, role.ParentID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: role %q already exists", shared.ErrConflict, role.Name)
		}
		return nil, err
	}
	return created, nil
}

// Update applies partial changes to a role.
func (r *PGRepository) Update(ctx context.Context, id int64, req UpdateRoleRequest) (*Role, error) {
	updated, err := scanRole(r.db.QueryRow(ctx, `
		UPDATE roles
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    hierarchy_level = COALESCE($4, hierarchy_level),
		    department = COALESCE($5, department),
		    is_active = COALESCE($6, is_active),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		id, req.Name, req.Description, req.HierarchyLevel, req.Department, req.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: role name already in use", shared.ErrConflict)
		}
		return nil, err
	}
	return updated, nil
}

// SetParent repoints the lineage edge. The cycle check happens in the
// service before this is called.
func (r *PGRepository) SetParent(ctx context.Context, id int64, parentID *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE roles SET parent_id = $2, updated_at = NOW() WHERE id = $1`, id, parentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a role row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ChildIDs returns the IDs of roles whose parent is the given role.
func (r *PGRepository) ChildIDs(ctx context.Context, id int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM roles WHERE parent_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var child int64
		if err := rows.Scan(&child); err != nil {
			return nil, err
		}
		ids = append(ids, child)
	}
	return ids, rows.Err()
}

// CountChildren reports how many roles point at the given role as parent.
func (r *PGRepository) CountChildren(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE parent_id = $1`, id).Scan(&count)
	return count, err
}

// CountUserAssignments reports how many users currently hold the role.
func (r *PGRepository) CountUserAssignments(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// ListPermissions returns permissions attached to the role, ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context, roleID int64) ([]PermissionGrant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []PermissionGrant
	for rows.Next() {
		var g PermissionGrant
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// AssignPermission links a permission to a role. At most one row per pair.
func (r *PGRepository) AssignPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, NOW())`, roleID, permissionID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: permission already assigned to role", shared.ErrConflict)
		}
		return err
	}
	return nil
}

// RemovePermission detaches a permission from a role.
func (r *PGRepository) RemovePermission(ctx context.Context, roleID, permissionID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission not assigned to role", shared.ErrNotFound)
	}
	return nil
}

// DeletePermissionAssignments removes every grant of a role. Used by role
// deletion, which cascades to role_permissions only.
func (r *PGRepository) DeletePermissionAssignments(ctx context.Context, roleID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID)
	return err
}

// PermissionExists reports whether the catalog entry exists.
func (r *PGRepository) PermissionExists(ctx context.Context, permissionID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM permissions WHERE id = $1)`, permissionID).Scan(&exists)
	return exists, err
}

// RolesForUser returns every role currently assigned to the user.
func (r *PGRepository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name, r.description, r.hierarchy_level, r.department, r.parent_id, r.is_active, r.created_at, r.updated_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY r.hierarchy_level, r.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.HierarchyLevel, &role.Department, &role.ParentID, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

// AssignUser grants a role to a user. At most one row per pair.
func (r *PGRepository) AssignUser(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, created_at)
		VALUES ($1, $2, NOW())`, userID, roleID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already holds role", shared.ErrConflict)
		}
		return err
	}
	return nil
}

// RemoveUser revokes a role from a user.
func (r *PGRepository) RemoveUser(ctx context.Context, userID, roleID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user does not hold role", shared.ErrNotFound)
	}
	return nil
}

// DeleteUserAssignments clears a user's role set. Only called inside the
// replace-roles transaction so no zero-role window is ever visible.
func (r *PGRepository) DeleteUserAssignments(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID)
	return err
}

// UserExists reports whether the user row exists.
func (r *PGRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Repository = (*PGRepository)(nil)
