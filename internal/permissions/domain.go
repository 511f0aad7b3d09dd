package permissions

import "time"

// Permission represents an atomic capability named "<resource>.<action>".
// A "manage" action is a literal permission row like any other; it is never
// expanded into the granular create/read/update/delete set, either at
// assignment or at check time.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
