package reporting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/staffhive/staffhive/internal/shared"
)

// Service owns the reporting graph. Manager edges are independent of the
// role graph's parent pointers; the two never read each other.
type Service struct {
	repo  Repository
	audit *shared.AuditLogger
}

// NewService constructs a new Service.
func NewService(repo Repository, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, audit: audit}
}

// AssignManager sets the user's single active manager, replacing any
// previous one. The whole operation runs in one transaction: the upward-chain
// cycle check, the deactivation of the old edge and the insert of the new one
// all see the same graph.
func (s *Service) AssignManager(ctx context.Context, userID, managerID int64, actorID int64) (*ReportingEdge, error) {
	if userID == managerID {
		return nil, fmt.Errorf("%w: user cannot manage themselves", shared.ErrCycle)
	}

	var edge *ReportingEdge
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return fmt.Errorf("user %d: %w", userID, err)
		}
		if _, err := tx.GetUser(ctx, managerID); err != nil {
			return fmt.Errorf("manager %d: %w", managerID, err)
		}

		inChain, err := s.upwardChainContains(ctx, tx, managerID, userID)
		if err != nil {
			return err
		}
		if inChain {
			return fmt.Errorf("%w: user %d is in manager %d's upward chain", shared.ErrCycle, userID, managerID)
		}

		if err := tx.DeactivateEdges(ctx, userID); err != nil {
			return err
		}
		edge, err = tx.InsertEdge(ctx, userID, managerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "reporting.assign_manager",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"manager_id": managerID},
	})
	return edge, nil
}

// RemoveManager retires the user's active manager edge, if any.
func (s *Service) RemoveManager(ctx context.Context, userID int64, actorID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	if err := s.repo.DeactivateEdges(ctx, userID); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "reporting.remove_manager",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
	})
	return nil
}

// Manager returns the user's active manager, or nil when the user has none.
func (s *Service) Manager(ctx context.Context, userID int64) (*OrgUser, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	manager, err := s.repo.GetManager(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return manager, nil
}

// DirectReportees returns users whose active edge points at the manager.
func (s *Service) DirectReportees(ctx context.Context, managerID int64) ([]OrgUser, error) {
	if _, err := s.repo.GetUser(ctx, managerID); err != nil {
		return nil, err
	}
	return s.repo.ListDirectReportees(ctx, managerID)
}

// AllReportees returns the full downward closure under the manager. The walk
// is an explicit queue with a visited set: an already-seen user is a stop
// condition, so a corrupt graph terminates instead of recursing forever, and
// diamond-shaped histories never produce duplicates.
func (s *Service) AllReportees(ctx context.Context, managerID int64) ([]OrgUser, error) {
	if _, err := s.repo.GetUser(ctx, managerID); err != nil {
		return nil, err
	}

	var result []OrgUser
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var walkErr error
		result, walkErr = collectReportees(ctx, tx, managerID)
		return walkErr
	})
	return result, err
}

// OrganizationalHierarchy is the composed read: manager, direct reportees
// and the full closure for one user, plus counts. Read-only.
func (s *Service) OrganizationalHierarchy(ctx context.Context, userID int64) (*Hierarchy, error) {
	var h Hierarchy
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		h.User = *user

		manager, err := tx.GetManager(ctx, userID)
		if err != nil && !shared.IsNotFound(err) {
			return err
		}
		h.Manager = manager

		h.DirectReportees, err = tx.ListDirectReportees(ctx, userID)
		if err != nil {
			return err
		}
		h.AllReportees, err = collectReportees(ctx, tx, userID)
		if err != nil {
			return err
		}

		h.DirectCount = len(h.DirectReportees)
		h.TotalCount = len(h.AllReportees)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func collectReportees(ctx context.Context, repo Repository, rootID int64) ([]OrgUser, error) {
	visited := map[int64]bool{rootID: true}
	queue := []int64{rootID}
	var result []OrgUser

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		reportees, err := repo.ListDirectReportees(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, u := range reportees {
			if visited[u.ID] {
				continue
			}
			visited[u.ID] = true
			result = append(result, u)
			queue = append(queue, u.ID)
		}
	}
	return result, nil
}

// upwardChainContains walks manager pointers from startID and reports
// whether targetID appears. The visited set bounds the walk even if the
// stored graph already contains a cycle.
func (s *Service) upwardChainContains(ctx context.Context, repo Repository, startID, targetID int64) (bool, error) {
	visited := map[int64]bool{}
	current := startID
	for {
		if visited[current] {
			return false, nil
		}
		visited[current] = true

		managerID, ok, err := repo.ManagerID(ctx, current)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if managerID == targetID {
			return true, nil
		}
		current = managerID
	}
}
