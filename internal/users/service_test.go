package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhive/staffhive/internal/shared"
)

type memoryRepo struct {
	users map[int64]*User
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryRepo) List(_ context.Context, req ListUsersRequest) ([]User, int, error) {
	var result []User
	for _, u := range m.users {
		if req.Search != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(req.Search)) {
			continue
		}
		if req.IsActive != nil && u.IsActive != *req.IsActive {
			continue
		}
		result = append(result, *u)
	}
	return result, len(result), nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, req UpdateUserRequest) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	copied := *u
	return &copied, nil
}

type recordingInvalidator struct {
	userFlushes []int64
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID int64) error {
	r.userFlushes = append(r.userFlushes, userID)
	return nil
}

func seedUser(id int64, email string, active bool) *User {
	return &User{ID: id, Email: email, Name: email, IsActive: active, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func TestUpdateDeactivationFlushesAggregate(t *testing.T) {
	repo := &memoryRepo{users: map[int64]*User{7: seedUser(7, "lead@staffhive.local", true)}}
	inv := &recordingInvalidator{}
	svc := NewService(repo, nil, inv)
	ctx := context.Background()

	// Name-only edits do not touch the cache.
	name := "Recruitment Lead"
	_, err := svc.Update(ctx, 7, UpdateUserRequest{Name: &name}, 1)
	require.NoError(t, err)
	assert.Empty(t, inv.userFlushes)

	inactive := false
	updated, err := svc.Update(ctx, 7, UpdateUserRequest{IsActive: &inactive}, 1)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, []int64{7}, inv.userFlushes)

	// Same value again is not a flip.
	_, err = svc.Update(ctx, 7, UpdateUserRequest{IsActive: &inactive}, 1)
	require.NoError(t, err)
	assert.Len(t, inv.userFlushes, 1)
}

func TestUpdateRejectsBlankName(t *testing.T) {
	repo := &memoryRepo{users: map[int64]*User{7: seedUser(7, "lead@staffhive.local", true)}}
	svc := NewService(repo, nil, nil)

	blank := "   "
	_, err := svc.Update(context.Background(), 7, UpdateUserRequest{Name: &blank}, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateUnknownUser(t *testing.T) {
	svc := NewService(&memoryRepo{users: map[int64]*User{}}, nil, nil)

	name := "Ghost"
	_, err := svc.Update(context.Background(), 404, UpdateUserRequest{Name: &name}, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListBuildsPagination(t *testing.T) {
	repo := &memoryRepo{users: map[int64]*User{
		1: seedUser(1, "admin@staffhive.local", true),
		2: seedUser(2, "finance.lead@staffhive.local", true),
	}}
	svc := NewService(repo, nil, nil)

	list, page, err := svc.List(context.Background(), ListUsersRequest{Search: "finance", Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, page.Total)
}
