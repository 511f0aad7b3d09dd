package reporting

import "time"

// OrgUser is the projection of a user exposed by reporting queries. Business
// fields beyond identity live elsewhere.
type OrgUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// ReportingEdge is one manager assignment. Edges are never deleted;
// reassignment deactivates the old edge and inserts a new one, so the table
// doubles as history.
type ReportingEdge struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ManagerID int64     `json:"manager_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Hierarchy is the composed org-chart read for one user.
type Hierarchy struct {
	User            OrgUser   `json:"user"`
	Manager         *OrgUser  `json:"manager,omitempty"`
	DirectReportees []OrgUser `json:"direct_reportees"`
	AllReportees    []OrgUser `json:"all_reportees"`
	DirectCount     int       `json:"direct_count"`
	TotalCount      int       `json:"total_count"`
}
