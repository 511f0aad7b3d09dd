package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/staffhive/staffhive/internal/shared"
)

// Invalidator flushes cached per-user permission aggregates after mutations.
// Role-wide changes invalidate every user because the affected set is not
// tracked; per-user changes invalidate that user only. The cache is never
// authoritative, so a nil Invalidator is acceptable.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
	InvalidateAll(ctx context.Context) error
}

// Service wraps role-graph business rules.
type Service struct {
	repo       Repository
	audit      *shared.AuditLogger
	invalidate Invalidator
}

var departmentCaser = cases.Title(language.English)

// NewService constructs a new Service.
func NewService(repo Repository, audit *shared.AuditLogger, invalidate Invalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate}
}

// Create inserts a new role. The parent, when given, must already exist;
// acyclicity holds by construction since a new role has no descendants.
func (s *Service) Create(ctx context.Context, req CreateRoleRequest, actorID int64) (*Role, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name required", shared.ErrConflict)
	}

	if req.ParentID != nil {
		if _, err := s.repo.Get(ctx, *req.ParentID); err != nil {
			return nil, fmt.Errorf("parent role %d: %w", *req.ParentID, err)
		}
	}

	role := Role{
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		HierarchyLevel: *req.HierarchyLevel,
		Department:     normalizeDepartment(req.Department),
		ParentID:       req.ParentID,
	}
	created, err := s.repo.Create(ctx, role)
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.create",
		Entity:   "role",
		EntityID: created.Name,
		Meta:     map[string]any{"hierarchy_level": created.HierarchyLevel},
	})
	return created, nil
}

// Get fetches a role by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// List returns roles matching the filters.
func (s *Service) List(ctx context.Context, req ListRolesRequest) ([]Role, error) {
	return s.repo.List(ctx, req)
}

// Update applies partial changes. Level or active-flag changes affect every
// holder's decisions, so the whole aggregate cache is flushed.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRoleRequest, actorID int64) (*Role, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: role name required", shared.ErrConflict)
		}
		req.Name = &trimmed
	}
	req.Department = normalizeDepartment(req.Department)

	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	if affectsDecisions(existing, updated) {
		s.flushAll(ctx)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.update",
		Entity:   "role",
		EntityID: existing.Name,
	})
	return updated, nil
}

// ReassignParent moves a role under a new parent, refusing any edit that
// would make the role its own ancestor. The subtree walk and the write share
// one transaction so a concurrent edit cannot slip a cycle in between.
func (s *Service) ReassignParent(ctx context.Context, roleID int64, newParentID *int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		role, err := repo.Get(ctx, roleID)
		if err != nil {
			return fmt.Errorf("get role: %w", err)
		}

		if newParentID != nil {
			if *newParentID == roleID {
				return fmt.Errorf("%w: role %q cannot be its own parent", shared.ErrCycle, role.Name)
			}
			if _, err := repo.Get(ctx, *newParentID); err != nil {
				return fmt.Errorf("parent role %d: %w", *newParentID, err)
			}
			inSubtree, err := subtreeContains(ctx, repo, roleID, *newParentID)
			if err != nil {
				return err
			}
			if inSubtree {
				return fmt.Errorf("%w: new parent %d is a descendant of role %q", shared.ErrCycle, *newParentID, role.Name)
			}
		}

		return repo.SetParent(ctx, roleID, newParentID)
	})
	if err != nil {
		return err
	}

	// Lineage is display-only; no cache flush needed.
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.reassign_parent",
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
	})
	return nil
}

// Delete removes a role. Refused while any child role or user assignment
// still references it; the role's own permission grants are cascaded.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		children, err := repo.CountChildren(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("%w: role %q still has %d child role(s)", shared.ErrConflict, existing.Name, children)
		}

		holders, err := repo.CountUserAssignments(ctx, id)
		if err != nil {
			return err
		}
		if holders > 0 {
			return fmt.Errorf("%w: role %q still held by %d user(s)", shared.ErrConflict, existing.Name, holders)
		}

		if err := repo.DeletePermissionAssignments(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.delete",
		Entity:   "role",
		EntityID: existing.Name,
	})
	return nil
}

// HierarchyChain returns the role's ancestors ordered from immediate parent
// up to the root. Empty for a root role. A visited guard stops the walk on
// corrupt lineage data instead of looping.
func (s *Service) HierarchyChain(ctx context.Context, roleID int64) ([]Role, error) {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}

	var chain []Role
	visited := map[int64]struct{}{role.ID: {}}
	for role.ParentID != nil {
		parent, err := s.repo.Get(ctx, *role.ParentID)
		if err != nil {
			return nil, fmt.Errorf("get parent role %d: %w", *role.ParentID, err)
		}
		if _, seen := visited[parent.ID]; seen {
			break
		}
		visited[parent.ID] = struct{}{}
		chain = append(chain, *parent)
		role = parent
	}
	return chain, nil
}

// AssignPermission attaches a catalog permission to a role. Re-assigning an
// already-assigned pair is a conflict.
func (s *Service) AssignPermission(ctx context.Context, roleID, permissionID int64, actorID int64) error {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}
	exists, err := s.repo.PermissionExists(ctx, permissionID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: permission %d", shared.ErrNotFound, permissionID)
	}

	if err := s.repo.AssignPermission(ctx, roleID, permissionID); err != nil {
		return err
	}

	s.flushAll(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.assign_permission",
		Entity:   "role",
		EntityID: role.Name,
		Meta:     map[string]any{"permission_id": permissionID},
	})
	return nil
}

// RemovePermission detaches a permission. Removing a pair that was never
// assigned is not found.
func (s *Service) RemovePermission(ctx context.Context, roleID, permissionID int64, actorID int64) error {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}

	if err := s.repo.RemovePermission(ctx, roleID, permissionID); err != nil {
		return err
	}

	s.flushAll(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "role.remove_permission",
		Entity:   "role",
		EntityID: role.Name,
		Meta:     map[string]any{"permission_id": permissionID},
	})
	return nil
}

// ListPermissions returns the grants attached to a role.
func (s *Service) ListPermissions(ctx context.Context, roleID int64) ([]PermissionGrant, error) {
	if _, err := s.repo.Get(ctx, roleID); err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return s.repo.ListPermissions(ctx, roleID)
}

// RolesForUser returns every role a user currently holds.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.RolesForUser(ctx, userID)
}

// AssignUser grants a role to a user.
func (s *Service) AssignUser(ctx context.Context, userID, roleID int64, actorID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}

	if err := s.repo.AssignUser(ctx, userID, roleID); err != nil {
		return err
	}

	s.flushUser(ctx, userID)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "user.assign_role",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role": role.Name},
	})
	return nil
}

// RemoveUser revokes a role from a user. Removal requires the assignment to
// exist.
func (s *Service) RemoveUser(ctx context.Context, userID, roleID int64, actorID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		return fmt.Errorf("get role: %w", err)
	}

	if err := s.repo.RemoveUser(ctx, userID, roleID); err != nil {
		return err
	}

	s.flushUser(ctx, userID)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "user.remove_role",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role": role.Name},
	})
	return nil
}

// ReplaceUserRoles swaps the user's entire role set in one transaction, so a
// concurrent permission check never observes the user with zero roles
// mid-swap.
func (s *Service) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64, actorID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(roleIDs))
	for _, roleID := range roleIDs {
		if _, dup := seen[roleID]; dup {
			return fmt.Errorf("%w: duplicate role %d in replacement set", shared.ErrConflict, roleID)
		}
		seen[roleID] = struct{}{}
		if _, err := s.repo.Get(ctx, roleID); err != nil {
			return fmt.Errorf("role %d: %w", roleID, err)
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteUserAssignments(ctx, userID); err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if err := repo.AssignUser(ctx, userID, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.flushUser(ctx, userID)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "user.replace_roles",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role_ids": roleIDs},
	})
	return nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user %d", shared.ErrNotFound, userID)
	}
	return nil
}

// subtreeContains walks the role's descendants breadth-first looking for the
// target. Iterative with a visited set; corrupt data cannot loop it.
func subtreeContains(ctx context.Context, repo Repository, rootID, targetID int64) (bool, error) {
	queue := []int64{rootID}
	visited := map[int64]struct{}{rootID: {}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := repo.ChildIDs(ctx, current)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			if child == targetID {
				return true, nil
			}
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return false, nil
}

func affectsDecisions(before, after *Role) bool {
	return before.HierarchyLevel != after.HierarchyLevel ||
		before.IsActive != after.IsActive ||
		before.Name != after.Name
}

func (s *Service) flushAll(ctx context.Context) {
	if s.invalidate != nil {
		_ = s.invalidate.InvalidateAll(ctx)
	}
}

func (s *Service) flushUser(ctx context.Context, userID int64) {
	if s.invalidate != nil {
		_ = s.invalidate.InvalidateUser(ctx, userID)
	}
}

func normalizeDepartment(dept *string) *string {
	if dept == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*dept)
	if trimmed == "" {
		return nil
	}
	titled := departmentCaser.String(strings.ToLower(trimmed))
	return &titled
}
