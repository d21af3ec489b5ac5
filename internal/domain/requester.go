package domain

import "time"

// Requester is the domain model for end-users who file tickets.
type Requester struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
