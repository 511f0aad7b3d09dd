package roles

import "time"

// Role is a named bundle of permissions with a numeric hierarchy level and
// organizational lineage. The hierarchy level (0 = most privileged) is
// authoritative for privilege comparison; the parent pointer only encodes
// lineage for display and is never consulted by access decisions. Changing
// parentage therefore has no effect on authorization unless the level also
// changes.
type Role struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	HierarchyLevel int       `json:"hierarchy_level"`
	Department     *string   `json:"department,omitempty"`
	ParentID       *int64    `json:"parent_id,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PermissionGrant is a permission attached to a role.
type PermissionGrant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
