package auth

import "time"

// User represents an authenticated user account. This is the only place the
// password hash is visible.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
