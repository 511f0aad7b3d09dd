package audit

import (
	"context"

	"github.com/staffhive/staffhive/internal/shared"
)

const maxPageSize = 50

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of events with pagination metadata. Page size is
// clamped to keep timeline scans bounded.
func (s *Service) Timeline(ctx context.Context, req TimelineRequest) ([]Event, shared.Pagination, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PerPage <= 0 || req.PerPage > maxPageSize {
		req.PerPage = maxPageSize
	}

	events, total, err := s.repo.Timeline(ctx, req)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return events, shared.NewPagination(req.Page, req.PerPage, total), nil
}
