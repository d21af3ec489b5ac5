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
	"github.com/spec-kit/servicedesk/internal/sla"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// TicketService coordinates the ticket lifecycle: creation, status
// transitions, advisory flags and work notes. Status transitions are applied
// as conditional updates compared against the expected prior status, so a
// concurrent writer can never be silently overwritten.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	history    repository.TicketHistoryRepository
	policy     sla.Policy
	dispatcher events.Dispatcher
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	HistoryRepo repository.TicketHistoryRepository
	Policy      sla.Policy
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterID   string
	AssigneeID    *string
	Type          domain.TicketType
	Category      domain.TicketCategory
	Title         string
	Description   string
	Priority      domain.TicketPriority
	AttachmentURL *string
}

// TicketListFilter describes listing filters shared by requester and
// technician views.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Unassigned  bool
	AssigneeID  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		history:    deps.HistoryRepo,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
	}
}

// CreateTicket files a ticket. Requesters file for themselves; technicians
// and admins may file on a requester's behalf, and admins may pre-assign.
// The SLA deadline is computed exactly once, here, and never recomputed.
func (s *TicketService) CreateTicket(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	requesterID := input.RequesterID
	if actor.Role == domain.RoleRequester {
		requesterID = actor.ID
	}
	if requesterID == "" {
		return nil, apperrors.NewValidationError("requester_id required", nil)
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	if input.AssigneeID != nil && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewPermissionDenied("only admins may pre-assign tickets")
	}

	// defaults must land before the deadline is derived, the stored
	// priority and the SLA clock have to agree
	ticketType := input.Type
	if ticketType == "" {
		ticketType = domain.TicketTypeIncident
	}
	category := input.Category
	if category == "" {
		category = domain.TicketCategoryOther
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	createdAt := s.now().UTC()
	ticket := &domain.Ticket{
		ExternalKey:   generateTicketKey(),
		RequesterID:   requesterID,
		AssigneeID:    input.AssigneeID,
		Type:          ticketType,
		Category:      category,
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		Status:        domain.TicketStatusOpen,
		Priority:      priority,
		AttachmentURL: input.AttachmentURL,
		SLADeadline:   s.policy.Deadline(priority, createdAt),
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actor.eventActor(),
		Payload: events.TicketCreatedPayload{
			RequesterID: ticket.RequesterID,
			Priority:    ticket.Priority,
			SLADeadline: ticket.SLADeadline,
			Title:       ticket.Title,
		},
	})
	return ticket, nil
}

// GetTicketForRequester fetches a ticket ensuring ownership.
func (s *TicketService) GetTicketForRequester(ctx context.Context, requesterID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.RequesterID != requesterID {
		return nil, apperrors.NewPermissionDenied("ticket belongs to another requester")
	}
	return ticket, nil
}

// ListRequesterTickets returns paginated tickets for a requester.
func (s *TicketService) ListRequesterTickets(ctx context.Context, requesterID string, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		RequesterID: &requesterID,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListTickets returns tickets for a technician view, including the shared
// unassigned queue when filter.Unassigned is set.
func (s *TicketService) ListTickets(ctx context.Context, actor Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	repoFilter := repository.TicketFilter{
		AssigneeID:  filter.AssigneeID,
		Unassigned:  filter.Unassigned,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if filter.Unassigned {
		repoFilter.Statuses = []domain.TicketStatus{domain.TicketStatusOpen}
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a ticket with its comment thread for a technician.
func (s *TicketService) GetTicket(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, []domain.Comment, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, comments, nil
}

// Resolve marks an in-progress ticket resolved. Only the assignee may resolve.
func (s *TicketService) Resolve(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewTicketClosed(ticket.ID)
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusResolved))
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != actor.ID {
		return nil, apperrors.NewPermissionDenied("only the assigned technician may resolve this ticket")
	}
	return s.applyTransition(ctx, actor, ticket, domain.TicketStatusInProgress, domain.TicketStatusResolved, nil)
}

// Close closes a resolved ticket. Any technician or admin may close; the
// transition is one-way terminal.
func (s *TicketService) Close(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewTicketClosed(ticket.ID)
	}
	if ticket.Status != domain.TicketStatusResolved {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(domain.TicketStatusClosed))
	}
	closedAt := s.now().UTC()
	return s.applyTransition(ctx, actor, ticket, domain.TicketStatusResolved, domain.TicketStatusClosed, &closedAt)
}

// Escalate sets the advisory escalation flag. Idempotent: escalating an
// already-escalated ticket is a no-op success.
func (s *TicketService) Escalate(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	return s.setFlag(ctx, actor, ticketID, "escalated",
		func(t *domain.Ticket) bool { return t.Escalated },
		s.tickets.SetEscalated,
		events.EventTicketEscalated)
}

// RequestApproval sets the advisory approval-requested flag. Idempotent.
func (s *TicketService) RequestApproval(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	return s.setFlag(ctx, actor, ticketID, "approval_requested",
		func(t *domain.Ticket) bool { return t.ApprovalRequested },
		s.tickets.SetApprovalRequested,
		events.EventTicketApprovalRequested)
}

// AddComment appends a work note to a non-closed ticket.
func (s *TicketService) AddComment(ctx context.Context, actor Actor, ticketID, body string) (*domain.Comment, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("body required", map[string]any{"missing": []string{"body"}})
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewTicketClosed(ticket.ID)
	}
	comment := &domain.Comment{
		TicketID:     ticket.ID,
		TechnicianID: actor.ID,
		Body:         strings.TrimSpace(body),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		Actor:    actor.eventActor(),
		Payload: events.CommentAddedPayload{
			CommentID:    comment.ID,
			TechnicianID: comment.TechnicianID,
			BodyPreview:  stringPreview(comment.Body, 120),
		},
	})
	return comment, nil
}

// ListHistory returns audit entries for a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor Actor, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// applyTransition performs the conditional status update and maps a failed
// compare to the precise caller-facing condition by re-reading the row.
func (s *TicketService) applyTransition(ctx context.Context, actor Actor, ticket *domain.Ticket, from, to domain.TicketStatus, closedAt *time.Time) (*domain.Ticket, error) {
	ok, err := s.tickets.UpdateStatus(ctx, ticket.ID, from, to, closedAt)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		current, err := s.getTicket(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		if current.IsClosed() {
			return nil, apperrors.NewTicketClosed(ticket.ID)
		}
		return nil, apperrors.NewInvalidTransition(string(current.Status), string(to))
	}

	s.recordStatusChange(ctx, actor, ticket.ID, from, to)
	updated, err := s.getTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actor.eventActor(),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:   from,
			NewStatus:   to,
			RequesterID: ticket.RequesterID,
		},
	})
	return updated, nil
}

func (s *TicketService) setFlag(ctx context.Context, actor Actor, ticketID, flag string, isSet func(*domain.Ticket) bool, set func(context.Context, string) (bool, error), eventType events.EventType) (*domain.Ticket, error) {
	if !actor.Role.CanWorkTickets() {
		return nil, apperrors.NewPermissionDenied("technician or admin role required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.IsClosed() {
		return nil, apperrors.NewTicketClosed(ticket.ID)
	}
	if isSet(ticket) {
		return ticket, nil
	}
	ok, err := set(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		// guard failed between read and update: the ticket closed underneath us
		return nil, apperrors.NewTicketClosed(ticketID)
	}
	s.recordFlagChange(ctx, actor, ticketID, flag)
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticketID,
		Actor:    actor.eventActor(),
		Payload:  events.TicketFlagPayload{Flag: flag},
	})
	return s.getTicket(ctx, ticketID)
}

func (s *TicketService) recordStatusChange(ctx context.Context, actor Actor, ticketID string, oldStatus, newStatus domain.TicketStatus) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedBy:   &actorID,
		ChangedRole: actor.Role,
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": oldStatus},
		NewValue:    map[string]any{"status": newStatus},
	})
}

func (s *TicketService) recordFlagChange(ctx context.Context, actor Actor, ticketID, flag string) {
	if s.history == nil {
		return
	}
	actorID := actor.ID
	_ = s.history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedBy:   &actorID,
		ChangedRole: actor.Role,
		ChangeType:  domain.ChangeTypeFlag,
		OldValue:    map[string]any{flag: false},
		NewValue:    map[string]any{flag: true},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
