package audit

import "time"

// Event is one persisted audit record. Mutations on roles, permissions,
// assignments and reporting edges each write one event; entity "authz" marks
// recorded access denials.
type Event struct {
	ID         string         `json:"id"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
