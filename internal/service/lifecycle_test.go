package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/sla"
)

// TestTicketLifecycleEndToEnd walks a ticket through create, claim, a failed
// on-site visit that reopens it, a second claim by the same technician, and
// finally resolve and close, asserting the state and audit trail at each step.
func TestTicketLifecycleEndToEnd(t *testing.T) {
	tickets := newMemTicketRepo()
	comments := &memCommentRepo{}
	history := &memHistoryRepo{}
	dispatcher := &recordingDispatcher{}
	reports := newMemReportRepo(tickets)
	policy := sla.NewPolicy(4*time.Hour, 8*time.Hour, 24*time.Hour, 72*time.Hour)

	ticketSvc := NewTicketService(TicketDependencies{
		TicketRepo:  tickets,
		CommentRepo: comments,
		HistoryRepo: history,
		Policy:      policy,
		Dispatcher:  dispatcher,
	})
	claimSvc := NewClaimService(ClaimDependencies{
		TicketRepo:  tickets,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
	})
	reportSvc := NewReportService(ReportDependencies{
		ReportRepo:  reports,
		TicketRepo:  tickets,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
	})

	now := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	ticketSvc.now = func() time.Time { return now }

	ctx := context.Background()
	requester := requesterActor("req-1")
	tech := technicianActor("tech-1")

	ticket, err := ticketSvc.CreateTicket(ctx, requester, TicketCreateInput{
		RequesterID: requester.ID,
		Type:        domain.TicketTypeIncident,
		Category:    domain.TicketCategoryHardware,
		Title:       "Projector in room 4B will not power on",
		Description: "No standby light even after swapping the power cable.",
		Priority:    domain.TicketPriorityHigh,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, now.Add(8*time.Hour), ticket.SLADeadline)

	claimed, err := claimSvc.Claim(ctx, tech, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, claimed.Status)
	require.Equal(t, tech.ID, *claimed.AssigneeID)

	// first visit fails, ticket goes back to the queue with assignee kept
	report, err := reportSvc.SubmitReport(ctx, tech, ReportSubmitInput{
		TicketID:      &ticket.ID,
		Type:          domain.ReportTypeRepair,
		WorkPerformed: "Tested power supply and lamp ballast on site",
		Findings:      "Internal PSU dead, replacement part not in van stock",
		CannotResolve: true,
	})
	require.NoError(t, err)
	require.Equal(t, ticket.ID, *report.TicketID)

	reopened, err := tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, reopened.Status)
	require.Equal(t, tech.ID, *reopened.AssigneeID)

	// same technician picks it back up once the part arrives
	reclaimed, err := claimSvc.Claim(ctx, tech, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, reclaimed.Status)

	_, err = ticketSvc.AddComment(ctx, tech, ticket.ID, "PSU replaced, projector back online.")
	require.NoError(t, err)

	resolved, err := ticketSvc.Resolve(ctx, tech, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusResolved, resolved.Status)

	closed, err := ticketSvc.Close(ctx, tech, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// audit trail covers both assignments and every status hop
	require.Len(t, history.byType(domain.ChangeTypeAssignee), 2)
	statusChanges := history.byType(domain.ChangeTypeStatus)
	require.Len(t, statusChanges, 3) // reopen, resolve, close

	require.Len(t, dispatcher.byType(events.EventTicketCreated), 1)
	require.Len(t, dispatcher.byType(events.EventTicketClaimed), 2)
	require.Len(t, dispatcher.byType(events.EventFieldReportSubmitted), 1)
	// the reopen is reported through the field-report event, not a status event
	require.Len(t, dispatcher.byType(events.EventTicketStatusChanged), 2)
}
