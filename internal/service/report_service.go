package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// ReportService handles field-report submission and its one coupling to the
// ticket state machine: a "cannot resolve" report forces the linked ticket
// back to OPEN. Record-keeping reports never touch ticket status.
type ReportService struct {
	reports    repository.FieldReportRepository
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	now        func() time.Time
}

// ReportDependencies bundles collaborators.
type ReportDependencies struct {
	ReportRepo  repository.FieldReportRepository
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
}

// ReportSubmitInput describes a field report submission.
type ReportSubmitInput struct {
	TicketID            *string
	Type                domain.FieldReportType
	WorkPerformed       string
	Findings            string
	Recommendations     string
	PartsUsed           string
	InstallationDetails string

	// CannotResolve marks the submission as the "cannot resolve on the spot"
	// path, which reopens the linked ticket.
	CannotResolve bool
}

// NewReportService creates the service.
func NewReportService(deps ReportDependencies) *ReportService {
	return &ReportService{
		reports:    deps.ReportRepo,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// SubmitReport validates and persists a field report. When the cannot-resolve
// path is taken, the report insert and the forced reopen commit or fail
// together; no partial write survives.
func (s *ReportService) SubmitReport(ctx context.Context, actor Actor, input ReportSubmitInput) (*domain.FieldReport, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required to file reports")
	}
	if err := validateReport(input); err != nil {
		return nil, err
	}

	report := &domain.FieldReport{
		TicketID:            input.TicketID,
		TechnicianID:        actor.ID,
		Type:                input.Type,
		WorkPerformed:       strings.TrimSpace(input.WorkPerformed),
		Findings:            strings.TrimSpace(input.Findings),
		Recommendations:     strings.TrimSpace(input.Recommendations),
		PartsUsed:           strings.TrimSpace(input.PartsUsed),
		InstallationDetails: strings.TrimSpace(input.InstallationDetails),
	}

	reopened := false
	if input.TicketID != nil {
		ticket, err := s.fetchTicket(ctx, *input.TicketID)
		if err != nil {
			return nil, err
		}
		if input.CannotResolve {
			if ticket.IsClosed() {
				return nil, apperrors.NewTicketClosed(ticket.ID)
			}
			if !domain.CanReopen(ticket.Status) {
				return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusOpen))
			}
			if ticket.AssigneeID == nil || *ticket.AssigneeID != actor.ID {
				return nil, apperrors.NewPermissionDenied("only the assigned technician may report the ticket unresolved")
			}
			if err := s.reports.CreateWithReopen(ctx, report, ticket.Status); err != nil {
				if errors.Is(err, repository.ErrClaimLost) {
					current, ferr := s.fetchTicket(ctx, ticket.ID)
					if ferr != nil {
						return nil, ferr
					}
					if current.IsClosed() {
						return nil, apperrors.NewTicketClosed(ticket.ID)
					}
					return nil, apperrors.NewInvalidTransition(string(current.Status), string(domain.TicketStatusOpen))
				}
				return nil, apperrors.MapError(err)
			}
			reopened = true
			s.recordReopen(ctx, actor, ticket)
		} else if err := s.reports.Create(ctx, report); err != nil {
			return nil, apperrors.MapError(err)
		}
	} else if err := s.reports.Create(ctx, report); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishReport(ctx, actor, report, reopened)
	return report, nil
}

// GetReport fetches a single report.
func (s *ReportService) GetReport(ctx context.Context, actor Actor, reportID string) (*domain.FieldReport, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("field report", map[string]any{"report_id": reportID})
		}
		return nil, apperrors.MapError(err)
	}
	return report, nil
}

// ListTicketReports returns the reports linked to a ticket.
func (s *ReportService) ListTicketReports(ctx context.Context, actor Actor, ticketID string) ([]domain.FieldReport, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	if _, err := s.fetchTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	reports, err := s.reports.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return reports, nil
}

// ListOwnReports returns the acting technician's reports.
func (s *ReportService) ListOwnReports(ctx context.Context, actor Actor, limit, offset int) ([]domain.FieldReport, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	reports, err := s.reports.ListByTechnician(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return reports, nil
}

var validReportTypes = map[domain.FieldReportType]struct{}{
	domain.ReportTypeRepair:       {},
	domain.ReportTypeMaintenance:  {},
	domain.ReportTypeInstallation: {},
	domain.ReportTypeInspection:   {},
}

func validateReport(input ReportSubmitInput) error {
	var missing []string
	if strings.TrimSpace(input.WorkPerformed) == "" {
		missing = append(missing, "work_performed")
	}
	if strings.TrimSpace(input.Findings) == "" {
		missing = append(missing, "findings")
	}
	if input.Type == domain.ReportTypeInstallation && strings.TrimSpace(input.InstallationDetails) == "" {
		missing = append(missing, "installation_details")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required report fields", map[string]any{"missing": missing})
	}
	if _, ok := validReportTypes[input.Type]; !ok {
		return apperrors.NewValidationError("unknown report type", map[string]any{"report_type": input.Type})
	}
	if input.CannotResolve && input.TicketID == nil {
		return apperrors.NewValidationError("cannot_resolve requires a linked ticket", nil)
	}
	return nil
}

func (s *ReportService) fetchTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *ReportService) recordReopen(ctx context.Context, actor Actor, ticket *domain.Ticket) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticket.ID,
		ChangedBy:   &actorID,
		ChangedRole: actor.Role,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": ticket.Status},
		NewValue:    map[string]any{"status": domain.TicketStatusOpen, "reason": "cannot_resolve"},
	})
}

func (s *ReportService) publishReport(ctx context.Context, actor Actor, report *domain.FieldReport, reopened bool) {
	if s.dispatcher == nil {
		return
	}
	ticketID := ""
	if report.TicketID != nil {
		ticketID = *report.TicketID
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventFieldReportSubmitted,
		TicketID:  ticketID,
		Actor:     actor.eventActor(),
		Timestamp: s.now(),
		Payload: events.FieldReportSubmittedPayload{
			ReportID:     report.ID,
			TechnicianID: report.TechnicianID,
			ReportType:   report.Type,
			Reopened:     reopened,
		},
	})
}
