package domain

import "time"

// Role is the closed set of acting roles consumed by guarded operations.
type Role string

const (
	RoleRequester  Role = "REQUESTER"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

// CanWorkTickets reports whether the role may claim and transition tickets.
func (r Role) CanWorkTickets() bool {
	return r == RoleTechnician || r == RoleAdmin
}

// Technician models a helpdesk operator, including the roster availability
// flag consumed by auto-assignment. Availability is shared mutable state and
// is only ever flipped through conditional updates at the storage layer.
type Technician struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Available    bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
