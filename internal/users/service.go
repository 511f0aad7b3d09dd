package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/staffhive/staffhive/internal/shared"
)

// Invalidator flushes one user's cached permission aggregate.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

// Service wraps directory business rules.
type Service struct {
	repo       Repository
	audit      *shared.AuditLogger
	invalidate Invalidator
}

// NewService constructs a new Service. invalidate may be nil.
func NewService(repo Repository, audit *shared.AuditLogger, invalidate Invalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate}
}

// Get fetches a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns a directory page with pagination metadata.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, shared.Pagination, error) {
	list, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(req.Page, req.PerPage, total), nil
}

// Update applies name or active-flag changes. Deactivating a user empties
// their effective permission set, so their cached aggregate is flushed.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest, actorID int64) (*User, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: user name required", shared.ErrConflict)
		}
		req.Name = &trimmed
	}

	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{}
	if req.IsActive != nil && *req.IsActive != existing.IsActive {
		meta["is_active"] = *req.IsActive
		if s.invalidate != nil {
			_ = s.invalidate.InvalidateUser(ctx, id)
		}
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "user.update",
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	return updated, nil
}
