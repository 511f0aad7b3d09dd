package authz

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/staffhive/staffhive/internal/shared"
)

// Service evaluates access-control decisions over the current role,
// permission and assignment state. All three primitives are side-effect-free
// reads; nothing is retried here because a caller can simply retry the whole
// guarded operation.
type Service struct {
	store Store
	cache *Cache
	sf    singleflight.Group
}

// NewService constructs a Service. The cache may be nil; decisions then
// always read from source.
func NewService(store Store, cache *Cache) *Service {
	return &Service{store: store, cache: cache}
}

// EffectivePermissions returns the union of permission names across every
// active role the user holds. Concurrent loads for the same user collapse
// into one source read.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if perms, ok := s.cache.Get(ctx, userID); ok {
		return perms, nil
	}

	v, err, _ := s.sf.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		perms, err := s.store.EffectivePermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, userID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// HasPermission reports whether the permission name is in the user's
// effective set. Names match literally: holding "candidate.manage" does not
// satisfy a check for "candidate.update".
func (s *Service) HasPermission(ctx context.Context, userID int64, permission string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether the user actively holds a role of that name.
func (s *Service) HasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	grants, err := s.store.ActiveRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if g.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyRole reports whether the user actively holds any of the names.
func (s *Service) HasAnyRole(ctx context.Context, userID int64, roleNames ...string) (bool, error) {
	grants, err := s.store.ActiveRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		for _, name := range roleNames {
			if g.Name == name {
				return true, nil
			}
		}
	}
	return false, nil
}

// CanAccessResource compares the user's highest-privilege active role
// against the required role's hierarchy level. The highest-privilege role is
// the one with the numerically lowest level, ties broken by smallest role
// id. A user with no active roles is denied.
func (s *Service) CanAccessResource(ctx context.Context, userID int64, requiredRoleName string) (bool, error) {
	required, err := s.store.RoleLevelByName(ctx, requiredRoleName)
	if err != nil {
		return false, err
	}

	best, ok, err := s.HighestPrivilegeRole(ctx, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return best.HierarchyLevel <= required, nil
}

// HighestPrivilegeRole resolves the user's most privileged active role.
func (s *Service) HighestPrivilegeRole(ctx context.Context, userID int64) (RoleGrant, bool, error) {
	grants, err := s.store.ActiveRoles(ctx, userID)
	if err != nil {
		return RoleGrant{}, false, err
	}
	if len(grants) == 0 {
		return RoleGrant{}, false, nil
	}

	best := grants[0]
	for _, g := range grants[1:] {
		if g.HierarchyLevel < best.HierarchyLevel ||
			(g.HierarchyLevel == best.HierarchyLevel && g.RoleID < best.RoleID) {
			best = g
		}
	}
	return best, true, nil
}

// RequireAccess is the non-HTTP form of the minimum-role guard, for callers
// outside the middleware (escalation routing, CLI tooling).
func (s *Service) RequireAccess(ctx context.Context, userID int64, requiredRoleName string) error {
	ok, err := s.CanAccessResource(ctx, userID, requiredRoleName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: insufficient role", shared.ErrForbidden)
	}
	return nil
}
