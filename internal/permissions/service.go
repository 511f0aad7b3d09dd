package permissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/staffhive/staffhive/internal/shared"
)

// Invalidator flushes cached permission aggregates after catalog mutations.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Service wraps catalog business rules.
type Service struct {
	repo       Repository
	audit      *shared.AuditLogger
	invalidate Invalidator
}

// NewService constructs a new Service. invalidate may be nil.
func NewService(repo Repository, audit *shared.AuditLogger, invalidate Invalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate}
}

// Create registers a new permission named "<resource>.<action>".
func (s *Service) Create(ctx context.Context, req CreatePermissionRequest, actorID int64) (*Permission, error) {
	resource := normalizeToken(req.Resource)
	action := normalizeToken(req.Action)
	if resource == "" || action == "" {
		return nil, fmt.Errorf("%w: resource and action required", shared.ErrConflict)
	}
	name := resource + "." + action

	created, err := s.repo.Create(ctx, Permission{
		Name:        name,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "permission.create",
		Entity:   "permission",
		EntityID: created.Name,
	})
	return created, nil
}

// Get fetches a permission by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Permission, error) {
	return s.repo.Get(ctx, id)
}

// List returns catalog entries matching the filters.
func (s *Service) List(ctx context.Context, req ListPermissionsRequest) ([]Permission, error) {
	return s.repo.List(ctx, req)
}

// Update applies description or active-flag changes. Flipping the active
// flag changes every holder's effective set, so cached aggregates are
// flushed globally.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePermissionRequest, actorID int64) (*Permission, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get permission: %w", err)
	}

	updated, err := s.repo.Update(ctx, id, req.Description, req.IsActive)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if req.IsActive != nil && *req.IsActive != existing.IsActive {
		meta["is_active"] = *req.IsActive
		s.flushAll(ctx)
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "permission.update",
		Entity:   "permission",
		EntityID: existing.Name,
		Meta:     meta,
	})
	return updated, nil
}

// Delete retires a permission. Refused while any role still references it;
// the reference count and the delete share one transaction so a concurrent
// grant cannot land in between.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get permission: %w", err)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		refs, err := repo.CountRoleReferences(ctx, id)
		if err != nil {
			return fmt.Errorf("count references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("%w: permission %q still assigned to %d role(s)", shared.ErrConflict, existing.Name, refs)
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "permission.delete",
		Entity:   "permission",
		EntityID: existing.Name,
	})
	return nil
}

func (s *Service) flushAll(ctx context.Context) {
	if s.invalidate != nil {
		_ = s.invalidate.InvalidateAll(ctx)
	}
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
