package dto

import "github.com/spec-kit/servicedesk/internal/domain"

func TicketSummaryFrom(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:                t.ID,
		ExternalKey:       t.ExternalKey,
		RequesterID:       t.RequesterID,
		AssigneeID:        t.AssigneeID,
		Type:              t.Type,
		Category:          t.Category,
		Title:             t.Title,
		Status:            t.Status,
		Priority:          t.Priority,
		SLADeadline:       t.SLADeadline,
		Escalated:         t.Escalated,
		ApprovalRequested: t.ApprovalRequested,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

func TicketSummariesFrom(tickets []domain.Ticket) []TicketSummary {
	out := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		out = append(out, TicketSummaryFrom(&tickets[i]))
	}
	return out
}

func TicketDetailFrom(t *domain.Ticket, comments []domain.Comment) TicketDetailResponse {
	resp := TicketDetailResponse{
		TicketSummary: TicketSummaryFrom(t),
		Description:   t.Description,
		AttachmentURL: t.AttachmentURL,
		ClosedAt:      t.ClosedAt,
	}
	for i := range comments {
		resp.Comments = append(resp.Comments, CommentFrom(&comments[i]))
	}
	return resp
}

func CommentFrom(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:           c.ID,
		TechnicianID: c.TechnicianID,
		Body:         c.Body,
		CreatedAt:    c.CreatedAt,
	}
}

func HistoryEntriesFrom(entries []domain.TicketHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			ID:          e.ID,
			ChangedBy:   e.ChangedBy,
			ChangedRole: e.ChangedRole,
			ChangeType:  string(e.ChangeType),
			OldValue:    e.OldValue,
			NewValue:    e.NewValue,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

func FieldReportFrom(r *domain.FieldReport) FieldReportResponse {
	return FieldReportResponse{
		ID:                  r.ID,
		TicketID:            r.TicketID,
		TechnicianID:        r.TechnicianID,
		Type:                r.Type,
		WorkPerformed:       r.WorkPerformed,
		Findings:            r.Findings,
		Recommendations:     r.Recommendations,
		PartsUsed:           r.PartsUsed,
		InstallationDetails: r.InstallationDetails,
		CreatedAt:           r.CreatedAt,
	}
}

func FieldReportsFrom(reports []domain.FieldReport) []FieldReportResponse {
	out := make([]FieldReportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, FieldReportFrom(&reports[i]))
	}
	return out
}
