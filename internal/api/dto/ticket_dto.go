package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterID   string                `json:"requester_id,omitempty"`
	AssigneeID    *string               `json:"assignee_id,omitempty"`
	Type          domain.TicketType     `json:"type"`
	Category      domain.TicketCategory `json:"category"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	AttachmentURL *string               `json:"attachment_url,omitempty"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                string                `json:"id"`
	ExternalKey       string                `json:"external_key"`
	RequesterID       string                `json:"requester_id"`
	AssigneeID        *string               `json:"assignee_id"`
	Type              domain.TicketType     `json:"type"`
	Category          domain.TicketCategory `json:"category"`
	Title             string                `json:"title"`
	Status            domain.TicketStatus   `json:"status"`
	Priority          domain.TicketPriority `json:"priority"`
	SLADeadline       time.Time             `json:"sla_deadline"`
	Escalated         bool                  `json:"escalated"`
	ApprovalRequested bool                  `json:"approval_requested"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description   string            `json:"description"`
	AttachmentURL *string           `json:"attachment_url"`
	ClosedAt      *time.Time        `json:"closed_at"`
	Comments      []CommentResponse `json:"comments,omitempty"`
}

// CommentResponse represents a work note.
type CommentResponse struct {
	ID           string    `json:"id"`
	TechnicianID string    `json:"technician_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// HistoryEntryResponse represents an audit entry.
type HistoryEntryResponse struct {
	ID          string         `json:"id"`
	ChangedBy   *string        `json:"changed_by"`
	ChangedRole domain.Role    `json:"changed_role"`
	ChangeType  string         `json:"change_type"`
	OldValue    map[string]any `json:"old_value"`
	NewValue    map[string]any `json:"new_value"`
	CreatedAt   time.Time      `json:"created_at"`
}
