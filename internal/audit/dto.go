package audit

import "time"

// TimelineRequest filters the audit timeline. Paging is clamped in the
// service, so oversized page sizes never reach the database.
type TimelineRequest struct {
	Entity  string
	Action  string
	ActorID *int64
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}
