package events

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketClaimed           EventType = "ticket_claimed"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventTicketEscalated         EventType = "ticket_escalated"
	EventTicketApprovalRequested EventType = "ticket_approval_requested"
	EventFieldReportSubmitted    EventType = "field_report_submitted"
	EventCommentAdded            EventType = "comment_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role domain.Role `json:"role"`
	ID   *string     `json:"id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	RequesterID string                `json:"requester_id"`
	Priority    domain.TicketPriority `json:"priority"`
	SLADeadline time.Time             `json:"sla_deadline"`
	Title       string                `json:"title"`
}

// TicketClaimedPayload payload.
type TicketClaimedPayload struct {
	TechnicianID string `json:"technician_id"`
	AutoAssigned bool   `json:"auto_assigned"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	RequesterID string              `json:"requester_id"`
}

// TicketFlagPayload covers escalation and approval-request flags.
type TicketFlagPayload struct {
	Flag string `json:"flag"`
}

// FieldReportSubmittedPayload payload.
type FieldReportSubmittedPayload struct {
	ReportID     string                 `json:"report_id"`
	TechnicianID string                 `json:"technician_id"`
	ReportType   domain.FieldReportType `json:"report_type"`
	Reopened     bool                   `json:"reopened"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID    string `json:"comment_id"`
	TechnicianID string `json:"technician_id"`
	BodyPreview  string `json:"body_preview"`
}
