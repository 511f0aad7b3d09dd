package users

// ListUsersRequest carries directory listing filters.
type ListUsersRequest struct {
	Search   string
	IsActive *bool
	Page     int
	PerPage  int
}

// UpdateUserRequest applies partial changes to a directory entry.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	IsActive *bool   `json:"is_active"`
}
