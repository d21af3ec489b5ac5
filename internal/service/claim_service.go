package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// ClaimService performs the concurrency-safe "take an unassigned ticket"
// operation. Correctness rests on the repository's conditional updates, not
// on in-memory locking: the service never assumes it is the only writer.
type ClaimService struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	history     repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	now         func() time.Time
}

// ClaimDependencies bundles collaborators.
type ClaimDependencies struct {
	TicketRepo     repository.TicketRepository
	TechnicianRepo repository.TechnicianRepository
	HistoryRepo    repository.TicketHistoryRepository
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
}

// NewClaimService creates the service.
func NewClaimService(deps ClaimDependencies) *ClaimService {
	return &ClaimService{
		tickets:     deps.TicketRepo,
		technicians: deps.TechnicianRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// Claim assigns an open, unassigned ticket to the acting technician. Exactly
// one of any number of racing claims succeeds; losers get ALREADY_CLAIMED and
// should refetch, not retry. Claiming a ticket one already holds is a no-op
// success.
func (s *ClaimService) Claim(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required to claim tickets")
	}

	claimed, err := s.tickets.Claim(ctx, ticketID, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !claimed {
		ticket, err := s.fetch(ctx, ticketID)
		if err != nil {
			return nil, err
		}
		if ticket.IsClosed() {
			return nil, apperrors.NewTicketClosed(ticketID)
		}
		if ticket.AssigneeID != nil && *ticket.AssigneeID == actor.ID && ticket.Status == domain.TicketStatusInProgress {
			// retry by the holder
			return ticket, nil
		}
		s.metrics.RecordClaim(false)
		return nil, apperrors.NewAlreadyClaimed(ticketID)
	}

	s.metrics.RecordClaim(true)
	s.recordAssignment(ctx, actor, ticketID, actor.ID)
	s.publishClaim(ctx, actor, ticketID, actor.ID, false)
	return s.fetch(ctx, ticketID)
}

// AutoAssign picks the first available technician from the roster, claims the
// ticket on their behalf and marks them unavailable, all in one storage
// transaction. Losing the claim race leaves the roster untouched.
func (s *ClaimService) AutoAssign(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewPermissionDenied("admin role required for auto-assignment")
	}

	technicianID, err := s.tickets.ClaimNextAvailable(ctx, ticketID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoAvailableTechnician):
			return nil, apperrors.NewConflict("no technician available", nil)
		case errors.Is(err, repository.ErrClaimLost):
			ticket, ferr := s.fetch(ctx, ticketID)
			if ferr != nil {
				return nil, ferr
			}
			if ticket.IsClosed() {
				return nil, apperrors.NewTicketClosed(ticketID)
			}
			s.metrics.RecordClaim(false)
			return nil, apperrors.NewAlreadyClaimed(ticketID)
		default:
			return nil, apperrors.MapError(err)
		}
	}

	s.metrics.RecordClaim(true)
	s.recordAssignment(ctx, actor, ticketID, technicianID)
	s.publishClaim(ctx, actor, ticketID, technicianID, true)
	return s.fetch(ctx, ticketID)
}

// SetAvailability flips the acting technician's roster availability.
// Idempotent: requesting the state the flag already holds is a success.
func (s *ClaimService) SetAvailability(ctx context.Context, actor Actor, available bool) (*domain.Technician, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	if _, err := s.technicians.SetAvailability(ctx, actor.ID, !available, available); err != nil {
		return nil, apperrors.MapError(err)
	}
	technician, err := s.technicians.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": actor.ID})
		}
		return nil, apperrors.MapError(err)
	}
	return technician, nil
}

func (s *ClaimService) fetch(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *ClaimService) recordAssignment(ctx context.Context, actor Actor, ticketID, technicianID string) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedBy:   &actorID,
		ChangedRole: actor.Role,
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue:    map[string]any{"assignee_technician_id": nil},
		NewValue:    map[string]any{"assignee_technician_id": technicianID},
	})
}

func (s *ClaimService) publishClaim(ctx context.Context, actor Actor, ticketID, technicianID string, auto bool) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketClaimed,
		TicketID:  ticketID,
		Actor:     actor.eventActor(),
		Timestamp: s.now(),
		Payload: events.TicketClaimedPayload{
			TechnicianID: technicianID,
			AutoAssigned: auto,
		},
	})
}
