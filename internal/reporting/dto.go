package reporting

// AssignManagerRequest sets or replaces a user's active manager.
type AssignManagerRequest struct {
	ManagerID int64 `json:"manager_id" validate:"required,gt=0"`
}
