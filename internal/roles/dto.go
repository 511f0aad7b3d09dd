package roles

// CreateRoleRequest describes a new role.
type CreateRoleRequest struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Description    string  `json:"description" validate:"max=500"`
	HierarchyLevel *int    `json:"hierarchy_level" validate:"required,gte=0"`
	Department     *string `json:"department,omitempty" validate:"omitempty,max=100"`
	ParentID       *int64  `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateRoleRequest carries partial role updates. Parent changes go through
// the dedicated reassign-parent operation so the cycle check cannot be
// skipped.
type UpdateRoleRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description    *string `json:"description,omitempty" validate:"omitempty,max=500"`
	HierarchyLevel *int    `json:"hierarchy_level,omitempty" validate:"omitempty,gte=0"`
	Department     *string `json:"department,omitempty" validate:"omitempty,max=100"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// ReassignParentRequest moves a role under a new parent. A nil parent
// detaches the role to a root.
type ReassignParentRequest struct {
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

// AssignPermissionRequest attaches a catalog permission to a role.
type AssignPermissionRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

// AssignRoleRequest grants a role to the user named in the route.
type AssignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

// ReplaceUserRolesRequest swaps a user's role set atomically.
type ReplaceUserRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"required,dive,gt=0"`
}

// ListRolesRequest filters role listings.
type ListRolesRequest struct {
	Department *string `json:"department,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}
