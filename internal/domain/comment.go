package domain

import "time"

// Comment is an append-only work note on a ticket. Comments are never
// mutated or deleted.
type Comment struct {
	ID           string
	TicketID     string
	TechnicianID string
	Body         string
	CreatedAt    time.Time
}
