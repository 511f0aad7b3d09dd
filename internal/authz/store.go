package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhive/staffhive/internal/shared"
)

// Store supplies the decision engine with current role and permission state.
// Every call re-reads the source of truth; a permission revoked mid-session
// is gone on the caller's next checked operation.
type Store interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
	ActiveRoles(ctx context.Context, userID int64) ([]RoleGrant, error)
	RoleLevelByName(ctx context.Context, name string) (int, error)
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL-backed store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// EffectivePermissions returns the deduplicated union of permission names
// across every active role the user holds, restricted to active permissions.
// An inactive user, or one with no assignments, gets an empty set.
func (s *PGStore) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.name
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id AND u.is_active
		JOIN roles r ON r.id = ur.role_id AND r.is_active
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id AND p.is_active
		WHERE ur.user_id = $1
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: effective permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}

// ActiveRoles returns the active roles the user holds, most privileged
// first with role id as the deterministic tie break.
func (s *PGStore) ActiveRoles(ctx context.Context, userID int64) ([]RoleGrant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, r.hierarchy_level
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id AND u.is_active
		JOIN roles r ON r.id = ur.role_id AND r.is_active
		WHERE ur.user_id = $1
		ORDER BY r.hierarchy_level, r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: active roles: %w", err)
	}
	defer rows.Close()

	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.Name, &g.HierarchyLevel); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// RoleLevelByName resolves the hierarchy level of an active role.
func (s *PGStore) RoleLevelByName(ctx context.Context, name string) (int, error) {
	var level int
	err := s.pool.QueryRow(ctx, `SELECT hierarchy_level FROM roles WHERE name = $1 AND is_active`, name).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: role %q", shared.ErrNotFound, name)
		}
		return 0, err
	}
	return level, nil
}

var _ Store = (*PGStore)(nil)
