package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// SubmitReportRequest payload.
type SubmitReportRequest struct {
	TicketID            *string                `json:"ticket_id,omitempty"`
	Type                domain.FieldReportType `json:"type"`
	WorkPerformed       string                 `json:"work_performed"`
	Findings            string                 `json:"findings"`
	Recommendations     string                 `json:"recommendations,omitempty"`
	PartsUsed           string                 `json:"parts_used,omitempty"`
	InstallationDetails string                 `json:"installation_details,omitempty"`
	CannotResolve       bool                   `json:"cannot_resolve,omitempty"`
}

// FieldReportResponse represents a submitted report.
type FieldReportResponse struct {
	ID                  string                 `json:"id"`
	TicketID            *string                `json:"ticket_id"`
	TechnicianID        string                 `json:"technician_id"`
	Type                domain.FieldReportType `json:"type"`
	WorkPerformed       string                 `json:"work_performed"`
	Findings            string                 `json:"findings"`
	Recommendations     string                 `json:"recommendations,omitempty"`
	PartsUsed           string                 `json:"parts_used,omitempty"`
	InstallationDetails string                 `json:"installation_details,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
}
