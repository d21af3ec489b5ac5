package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// TicketType classifies the nature of the request.
type TicketType string

const (
	TicketTypeIncident       TicketType = "INCIDENT"
	TicketTypeServiceRequest TicketType = "SERVICE_REQUEST"
	TicketTypeProblem        TicketType = "PROBLEM"
	TicketTypeChange         TicketType = "CHANGE"
)

// TicketCategory classifies the affected area.
type TicketCategory string

const (
	TicketCategorySoftware TicketCategory = "SOFTWARE"
	TicketCategoryHardware TicketCategory = "HARDWARE"
	TicketCategoryNetwork  TicketCategory = "NETWORK"
	TicketCategoryAccess   TicketCategory = "ACCESS"
	TicketCategoryOther    TicketCategory = "OTHER"
)

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID                string
	ExternalKey       string
	RequesterID       string
	AssigneeID        *string
	Type              TicketType
	Category          TicketCategory
	Title             string
	Description       string
	Status            TicketStatus
	Priority          TicketPriority
	AttachmentURL     *string
	SLADeadline       time.Time
	Escalated         bool
	ApprovalRequested bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}
