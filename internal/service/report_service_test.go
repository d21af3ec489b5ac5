package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

func newReportFixture() (*ReportService, *memTicketRepo, *memReportRepo, *memHistoryRepo, *recordingDispatcher) {
	tickets := newMemTicketRepo()
	reports := newMemReportRepo(tickets)
	history := &memHistoryRepo{}
	dispatcher := &recordingDispatcher{}
	svc := NewReportService(ReportDependencies{
		ReportRepo:  reports,
		TicketRepo:  tickets,
		HistoryRepo: history,
		Dispatcher:  dispatcher,
	})
	return svc, tickets, reports, history, dispatcher
}

func validReportInput() ReportSubmitInput {
	return ReportSubmitInput{
		Type:          domain.ReportTypeRepair,
		WorkPerformed: "swapped the faulty switch port",
		Findings:      "port 12 link errors",
	}
}

func TestSubmitReportStandalone(t *testing.T) {
	svc, _, _, _, dispatcher := newReportFixture()

	report, err := svc.SubmitReport(context.Background(), technicianActor("tech-1"), validReportInput())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.Nil(t, report.TicketID)
	assert.Equal(t, "tech-1", report.TechnicianID)

	submitted := dispatcher.byType(events.EventFieldReportSubmitted)
	require.Len(t, submitted, 1)
	payload, ok := submitted[0].Payload.(events.FieldReportSubmittedPayload)
	require.True(t, ok)
	assert.False(t, payload.Reopened)
}

func TestSubmitReportValidation(t *testing.T) {
	svc, _, reports, _, _ := newReportFixture()
	actor := technicianActor("tech-1")

	cases := []struct {
		name  string
		input ReportSubmitInput
	}{
		{"missing work performed", ReportSubmitInput{Type: domain.ReportTypeRepair, Findings: "f"}},
		{"missing findings", ReportSubmitInput{Type: domain.ReportTypeRepair, WorkPerformed: "w"}},
		{"installation without details", ReportSubmitInput{Type: domain.ReportTypeInstallation, WorkPerformed: "w", Findings: "f"}},
		{"unknown type", ReportSubmitInput{Type: "DEMOLITION", WorkPerformed: "w", Findings: "f"}},
		{"cannot resolve without ticket", func() ReportSubmitInput {
			in := validReportInput()
			in.CannotResolve = true
			return in
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitReport(context.Background(), actor, tc.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
		})
	}

	// nothing was persisted by the rejected submissions
	assert.Empty(t, reports.reports)
}

func TestSubmitReportRequiresTechnician(t *testing.T) {
	svc, _, _, _, _ := newReportFixture()
	_, err := svc.SubmitReport(context.Background(), requesterActor("req-1"), validReportInput())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestSubmitReportLinkedRecordKeeping(t *testing.T) {
	svc, tickets, _, _, _ := newReportFixture()
	assignee := "tech-1"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusResolved,
		AssigneeID:  &assignee,
	})

	input := validReportInput()
	input.TicketID = &seeded.ID
	report, err := svc.SubmitReport(context.Background(), technicianActor("tech-2"), input)
	require.NoError(t, err)
	require.NotNil(t, report.TicketID)

	// record-keeping never touches ticket status
	ticket, err := tickets.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
}

func TestSubmitReportCannotResolveReopens(t *testing.T) {
	svc, tickets, _, history, dispatcher := newReportFixture()
	assignee := "tech-1"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusInProgress,
		AssigneeID:  &assignee,
	})

	input := validReportInput()
	input.TicketID = &seeded.ID
	input.CannotResolve = true
	report, err := svc.SubmitReport(context.Background(), technicianActor("tech-1"), input)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)

	ticket, err := tickets.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	// the assignee stays on the reopened ticket
	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "tech-1", *ticket.AssigneeID)

	entries := history.byType(domain.ChangeTypeStatus)
	require.Len(t, entries, 1)
	assert.Equal(t, "cannot_resolve", entries[0].NewValue["reason"])

	submitted := dispatcher.byType(events.EventFieldReportSubmitted)
	require.Len(t, submitted, 1)
	payload, ok := submitted[0].Payload.(events.FieldReportSubmittedPayload)
	require.True(t, ok)
	assert.True(t, payload.Reopened)
}

func TestSubmitReportCannotResolveRequiresAssignee(t *testing.T) {
	svc, tickets, reports, _, _ := newReportFixture()
	assignee := "tech-1"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusInProgress,
		AssigneeID:  &assignee,
	})

	input := validReportInput()
	input.TicketID = &seeded.ID
	input.CannotResolve = true
	_, err := svc.SubmitReport(context.Background(), technicianActor("tech-2"), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	// no partial write: neither report nor status change persisted
	assert.Empty(t, reports.reports)
	ticket, err := tickets.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
}

func TestSubmitReportCannotResolveOnClosedTicket(t *testing.T) {
	svc, tickets, reports, _, _ := newReportFixture()
	assignee := "tech-1"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusClosed,
		AssigneeID:  &assignee,
	})

	input := validReportInput()
	input.TicketID = &seeded.ID
	input.CannotResolve = true
	_, err := svc.SubmitReport(context.Background(), technicianActor("tech-1"), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "TICKET_CLOSED"))
	assert.Empty(t, reports.reports)
}

func TestSubmitReportCannotResolveFromOpenRejected(t *testing.T) {
	svc, tickets, _, _, _ := newReportFixture()
	assignee := "tech-1"
	seeded := tickets.seed(domain.Ticket{
		RequesterID: "req-1",
		Status:      domain.TicketStatusOpen,
		AssigneeID:  &assignee,
	})

	input := validReportInput()
	input.TicketID = &seeded.ID
	input.CannotResolve = true
	_, err := svc.SubmitReport(context.Background(), technicianActor("tech-1"), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestListOwnReports(t *testing.T) {
	svc, _, _, _, _ := newReportFixture()
	actor := technicianActor("tech-1")

	_, err := svc.SubmitReport(context.Background(), actor, validReportInput())
	require.NoError(t, err)
	_, err = svc.SubmitReport(context.Background(), technicianActor("tech-2"), validReportInput())
	require.NoError(t, err)

	mine, err := svc.ListOwnReports(context.Background(), actor, 10, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "tech-1", mine[0].TechnicianID)
}
