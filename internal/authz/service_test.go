package authz

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhive/staffhive/internal/shared"
)

type fakeStore struct {
	perms      map[int64][]string
	roles      map[int64][]RoleGrant
	levels     map[string]int
	permsErr   error
	permsCalls atomic.Int64
}

func (f *fakeStore) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	f.permsCalls.Add(1)
	if f.permsErr != nil {
		return nil, f.permsErr
	}
	return f.perms[userID], nil
}

func (f *fakeStore) ActiveRoles(_ context.Context, userID int64) ([]RoleGrant, error) {
	return f.roles[userID], nil
}

func (f *fakeStore) RoleLevelByName(_ context.Context, name string) (int, error) {
	level, ok := f.levels[name]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return level, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute)
}

func TestEffectivePermissionsEmptyForUnassignedUser(t *testing.T) {
	store := &fakeStore{perms: map[int64][]string{}}
	svc := NewService(store, nil)

	perms, err := svc.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestEffectivePermissionsCachesAggregate(t *testing.T) {
	store := &fakeStore{perms: map[int64][]string{1: {"candidate.view", "job.view"}}}
	svc := NewService(store, newTestCache(t))
	ctx := context.Background()

	first, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"candidate.view", "job.view"}, first)

	second, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), store.permsCalls.Load())
}

func TestHasPermissionLiteralMatchOnly(t *testing.T) {
	store := &fakeStore{perms: map[int64][]string{1: {"candidate.manage", "job.view"}}}
	svc := NewService(store, nil)
	ctx := context.Background()

	ok, err := svc.HasPermission(ctx, 1, "candidate.manage")
	require.NoError(t, err)
	assert.True(t, ok)

	// Holding the manage grant never implies the narrower action.
	ok, err = svc.HasPermission(ctx, 1, "candidate.update")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionPropagatesStoreError(t *testing.T) {
	store := &fakeStore{permsErr: errors.New("connection refused")}
	svc := NewService(store, nil)

	_, err := svc.HasPermission(context.Background(), 1, "candidate.view")
	assert.Error(t, err)
}

func TestHasRole(t *testing.T) {
	store := &fakeStore{roles: map[int64][]RoleGrant{
		1: {{RoleID: 3, Name: "Recruitment Manager", HierarchyLevel: 3}},
	}}
	svc := NewService(store, nil)
	ctx := context.Background()

	ok, err := svc.HasRole(ctx, 1, "Recruitment Manager")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasRole(ctx, 1, "Finance Manager")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasAnyRole(t *testing.T) {
	store := &fakeStore{roles: map[int64][]RoleGrant{
		1: {{RoleID: 3, Name: "Recruitment Lead", HierarchyLevel: 4}},
	}}
	svc := NewService(store, nil)
	ctx := context.Background()

	ok, err := svc.HasAnyRole(ctx, 1, "Finance Manager", "Recruitment Lead")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasAnyRole(ctx, 1, "Finance Manager", "Business VP")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessResource(t *testing.T) {
	store := &fakeStore{
		roles: map[int64][]RoleGrant{
			1: {{RoleID: 10, Name: "Recruitment Manager", HierarchyLevel: 3}},
			2: {{RoleID: 11, Name: "Recruitment Associate", HierarchyLevel: 5}},
			3: {},
		},
		levels: map[string]int{"Recruitment Manager": 3},
	}
	svc := NewService(store, nil)
	ctx := context.Background()

	// Equal level passes.
	ok, err := svc.CanAccessResource(ctx, 1, "Recruitment Manager")
	require.NoError(t, err)
	assert.True(t, ok)

	// Numerically higher level is less privileged.
	ok, err = svc.CanAccessResource(ctx, 2, "Recruitment Manager")
	require.NoError(t, err)
	assert.False(t, ok)

	// No active roles denies.
	ok, err = svc.CanAccessResource(ctx, 3, "Recruitment Manager")
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown required role is an error, not a deny.
	_, err = svc.CanAccessResource(ctx, 1, "Ghost Role")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHighestPrivilegeRoleTieBreaksOnRoleID(t *testing.T) {
	store := &fakeStore{roles: map[int64][]RoleGrant{
		1: {
			{RoleID: 7, Name: "Finance Lead", HierarchyLevel: 4},
			{RoleID: 2, Name: "Business Manager", HierarchyLevel: 3},
			{RoleID: 5, Name: "Recruitment Manager", HierarchyLevel: 3},
		},
	}}
	svc := NewService(store, nil)

	best, ok, err := svc.HighestPrivilegeRole(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), best.RoleID)
	assert.Equal(t, "Business Manager", best.Name)
}

func TestRequireAccess(t *testing.T) {
	store := &fakeStore{
		roles:  map[int64][]RoleGrant{1: {{RoleID: 1, Name: "Finance Associate", HierarchyLevel: 5}}},
		levels: map[string]int{"Finance Manager": 3},
	}
	svc := NewService(store, nil)

	err := svc.RequireAccess(context.Background(), 1, "Finance Manager")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
