package permissions

// CreatePermissionRequest describes a new catalog entry. The stored name is
// always derived as "<resource>.<action>".
type CreatePermissionRequest struct {
	Resource    string `json:"resource" validate:"required,max=100"`
	Action      string `json:"action" validate:"required,max=50"`
	Description string `json:"description" validate:"max=500"`
}

// UpdatePermissionRequest carries partial catalog updates. Resource and
// action are immutable once created; only the description and active flag
// may change.
type UpdatePermissionRequest struct {
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ListPermissionsRequest filters the catalog listing.
type ListPermissionsRequest struct {
	Resource *string `json:"resource,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
