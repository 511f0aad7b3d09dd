package roles

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffhive/staffhive/internal/shared"
)

type memoryRepo struct {
	roles      map[int64]*Role
	rolePerms  map[int64]map[int64]bool
	userRoles  map[int64]map[int64]bool
	perms      map[int64]bool
	users      map[int64]bool
	nextRoleID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		roles:      map[int64]*Role{},
		rolePerms:  map[int64]map[int64]bool{},
		userRoles:  map[int64]map[int64]bool{},
		perms:      map[int64]bool{},
		users:      map[int64]bool{},
		nextRoleID: 1,
	}
}

func (m *memoryRepo) addRole(name string, level int, parentID *int64) *Role {
	role := &Role{
		ID:             m.nextRoleID,
		Name:           name,
		HierarchyLevel: level,
		ParentID:       parentID,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.nextRoleID++
	m.roles[role.ID] = role
	return role
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *role
	return &copied, nil
}

func (m *memoryRepo) GetByName(_ context.Context, name string) (*Role, error) {
	for _, role := range m.roles {
		if role.Name == name {
			copied := *role
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, _ ListRolesRequest) ([]Role, error) {
	var result []Role
	for _, role := range m.roles {
		result = append(result, *role)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memoryRepo) Create(_ context.Context, role Role) (*Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return nil, fmt.Errorf("%w: role %q already exists", shared.ErrConflict, role.Name)
		}
	}
	role.ID = m.nextRoleID
	m.nextRoleID++
	role.IsActive = true
	m.roles[role.ID] = &role
	copied := role
	return &copied, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, req UpdateRoleRequest) (*Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.HierarchyLevel != nil {
		role.HierarchyLevel = *req.HierarchyLevel
	}
	if req.Department != nil {
		role.Department = req.Department
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	copied := *role
	return &copied, nil
}

func (m *memoryRepo) SetParent(_ context.Context, id int64, parentID *int64) error {
	role, ok := m.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	role.ParentID = parentID
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memoryRepo) ChildIDs(_ context.Context, id int64) ([]int64, error) {
	var ids []int64
	for _, role := range m.roles {
		if role.ParentID != nil && *role.ParentID == id {
			ids = append(ids, role.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryRepo) CountChildren(ctx context.Context, id int64) (int, error) {
	ids, _ := m.ChildIDs(ctx, id)
	return len(ids), nil
}

func (m *memoryRepo) CountUserAssignments(_ context.Context, roleID int64) (int, error) {
	count := 0
	for _, roleSet := range m.userRoles {
		if roleSet[roleID] {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) ListPermissions(_ context.Context, roleID int64) ([]PermissionGrant, error) {
	var grants []PermissionGrant
	for permID := range m.rolePerms[roleID] {
		grants = append(grants, PermissionGrant{ID: permID})
	}
	return grants, nil
}

func (m *memoryRepo) AssignPermission(_ context.Context, roleID, permissionID int64) error {
	if m.rolePerms[roleID] == nil {
		m.rolePerms[roleID] = map[int64]bool{}
	}
	if m.rolePerms[roleID][permissionID] {
		return fmt.Errorf("%w: permission already assigned to role", shared.ErrConflict)
	}
	m.rolePerms[roleID][permissionID] = true
	return nil
}

func (m *memoryRepo) RemovePermission(_ context.Context, roleID, permissionID int64) error {
	if !m.rolePerms[roleID][permissionID] {
		return fmt.Errorf("%w: permission not assigned to role", shared.ErrNotFound)
	}
	delete(m.rolePerms[roleID], permissionID)
	return nil
}

func (m *memoryRepo) DeletePermissionAssignments(_ context.Context, roleID int64) error {
	delete(m.rolePerms, roleID)
	return nil
}

func (m *memoryRepo) PermissionExists(_ context.Context, permissionID int64) (bool, error) {
	return m.perms[permissionID], nil
}

func (m *memoryRepo) RolesForUser(_ context.Context, userID int64) ([]Role, error) {
	var result []Role
	for roleID := range m.userRoles[userID] {
		if role, ok := m.roles[roleID]; ok {
			result = append(result, *role)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *memoryRepo) AssignUser(_ context.Context, userID, roleID int64) error {
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = map[int64]bool{}
	}
	if m.userRoles[userID][roleID] {
		return fmt.Errorf("%w: user already holds role", shared.ErrConflict)
	}
	m.userRoles[userID][roleID] = true
	return nil
}

func (m *memoryRepo) RemoveUser(_ context.Context, userID, roleID int64) error {
	if !m.userRoles[userID][roleID] {
		return fmt.Errorf("%w: user does not hold role", shared.ErrNotFound)
	}
	delete(m.userRoles[userID], roleID)
	return nil
}

func (m *memoryRepo) DeleteUserAssignments(_ context.Context, userID int64) error {
	delete(m.userRoles, userID)
	return nil
}

func (m *memoryRepo) UserExists(_ context.Context, userID int64) (bool, error) {
	return m.users[userID], nil
}

type recordingInvalidator struct {
	userFlushes []int64
	allFlushes  int
}

func (r *recordingInvalidator) InvalidateUser(_ context.Context, userID int64) error {
	r.userFlushes = append(r.userFlushes, userID)
	return nil
}

func (r *recordingInvalidator) InvalidateAll(_ context.Context) error {
	r.allFlushes++
	return nil
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestCreateRoleRequiresExistingParent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRoleRequest{Name: "Orphan", HierarchyLevel: intPtr(3), ParentID: int64Ptr(99)}, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	parent := repo.addRole("Recruitment Director", 2, nil)
	created, err := svc.Create(ctx, CreateRoleRequest{Name: "Recruitment Manager", HierarchyLevel: intPtr(3), ParentID: &parent.ID}, 1)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, *created.ParentID)
}

func TestCreateRoleDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	repo.addRole("Recruitment Manager", 3, nil)
	svc := NewService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateRoleRequest{Name: "Recruitment Manager", HierarchyLevel: intPtr(3)}, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateFlushesOnlyWhenDecisionsChange(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.addRole("Recruitment Manager", 3, nil)
	inv := &recordingInvalidator{}
	svc := NewService(repo, nil, inv)
	ctx := context.Background()

	desc := "runs the recruitment desk"
	_, err := svc.Update(ctx, role.ID, UpdateRoleRequest{Description: &desc}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.allFlushes)

	_, err = svc.Update(ctx, role.ID, UpdateRoleRequest{HierarchyLevel: intPtr(2)}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.allFlushes)
}

func TestReassignParentRefusesCycles(t *testing.T) {
	repo := newMemoryRepo()
	director := repo.addRole("Recruitment Director", 2, nil)
	manager := repo.addRole("Recruitment Manager", 3, &director.ID)
	lead := repo.addRole("Recruitment Lead", 4, &manager.ID)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	// Self-parent.
	err := svc.ReassignParent(ctx, director.ID, &director.ID, 1)
	assert.ErrorIs(t, err, shared.ErrCycle)

	// Descendant as parent.
	err = svc.ReassignParent(ctx, director.ID, &lead.ID, 1)
	assert.ErrorIs(t, err, shared.ErrCycle)

	// Detaching to a root is always legal.
	require.NoError(t, svc.ReassignParent(ctx, manager.ID, nil, 1))
	updated, err := svc.Get(ctx, manager.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.ParentID)
}

func TestReassignParentLeavesDecisionsAlone(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.addRole("Business Director", 2, nil)
	b := repo.addRole("Business Manager", 3, nil)
	inv := &recordingInvalidator{}
	svc := NewService(repo, nil, inv)

	require.NoError(t, svc.ReassignParent(context.Background(), b.ID, &a.ID, 1))
	assert.Equal(t, 0, inv.allFlushes)
	assert.Empty(t, inv.userFlushes)
}

func TestDeleteRefusedWhileReferenced(t *testing.T) {
	repo := newMemoryRepo()
	director := repo.addRole("Finance Director", 2, nil)
	repo.addRole("Finance Manager", 3, &director.ID)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	err := svc.Delete(ctx, director.ID, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)

	held := repo.addRole("Finance Lead", 4, nil)
	repo.users[7] = true
	require.NoError(t, repo.AssignUser(ctx, 7, held.ID))
	err = svc.Delete(ctx, held.ID, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestDeleteCascadesPermissionGrants(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.addRole("Research Lead", 4, nil)
	repo.perms[5] = true
	require.NoError(t, repo.AssignPermission(context.Background(), role.ID, 5))
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), role.ID, 1))
	assert.Empty(t, repo.rolePerms[role.ID])
	_, err := svc.Get(context.Background(), role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHierarchyChainWalksToRoot(t *testing.T) {
	repo := newMemoryRepo()
	admin := repo.addRole("Administrator", 0, nil)
	director := repo.addRole("Recruitment Director", 2, &admin.ID)
	manager := repo.addRole("Recruitment Manager", 3, &director.ID)
	svc := NewService(repo, nil, nil)

	chain, err := svc.HierarchyChain(context.Background(), manager.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "Recruitment Director", chain[0].Name)
	assert.Equal(t, "Administrator", chain[1].Name)
}

func TestAssignPermissionIdempotencyChecks(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.addRole("Research Manager", 3, nil)
	repo.perms[9] = true
	inv := &recordingInvalidator{}
	svc := NewService(repo, nil, inv)
	ctx := context.Background()

	require.NoError(t, svc.AssignPermission(ctx, role.ID, 9, 1))
	assert.Equal(t, 1, inv.allFlushes)

	err := svc.AssignPermission(ctx, role.ID, 9, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)

	require.NoError(t, svc.RemovePermission(ctx, role.ID, 9, 1))
	err = svc.RemovePermission(ctx, role.ID, 9, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.AssignPermission(ctx, role.ID, 404, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUserRoleAssignments(t *testing.T) {
	repo := newMemoryRepo()
	role := repo.addRole("Business Lead", 4, nil)
	repo.users[7] = true
	inv := &recordingInvalidator{}
	svc := NewService(repo, nil, inv)
	ctx := context.Background()

	require.NoError(t, svc.AssignUser(ctx, 7, role.ID, 1))
	assert.Equal(t, []int64{7}, inv.userFlushes)

	err := svc.AssignUser(ctx, 7, role.ID, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)

	err = svc.AssignUser(ctx, 99, role.ID, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, svc.RemoveUser(ctx, 7, role.ID, 1))
	err = svc.RemoveUser(ctx, 7, role.ID, 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReplaceUserRoles(t *testing.T) {
	repo := newMemoryRepo()
	a := repo.addRole("Business Lead", 4, nil)
	b := repo.addRole("Business Associate", 5, nil)
	repo.users[7] = true
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.AssignUser(ctx, 7, a.ID, 1))

	err := svc.ReplaceUserRoles(ctx, 7, []int64{b.ID, b.ID}, 1)
	assert.ErrorIs(t, err, shared.ErrConflict)

	require.NoError(t, svc.ReplaceUserRoles(ctx, 7, []int64{b.ID}, 1))
	current, err := svc.RolesForUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, b.ID, current[0].ID)
}

func TestNormalizeDepartment(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	dept := "  recruitment  "
	created, err := svc.Create(context.Background(), CreateRoleRequest{Name: "Recruitment VP", HierarchyLevel: intPtr(1), Department: &dept}, 1)
	require.NoError(t, err)
	require.NotNil(t, created.Department)
	assert.Equal(t, "Recruitment", *created.Department)
}
