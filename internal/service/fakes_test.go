package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// memTicketRepo reproduces the conditional-update semantics of the Postgres
// repository under a mutex, so race behavior can be exercised in-process.
type memTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket

	// technicians backs ClaimNextAvailable when wired.
	technicians *memTechnicianRepo
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if filter.Unassigned && ticket.AssigneeID != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		out = append(out, *ticket)
	}
	return out, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memTicketRepo) Claim(_ context.Context, ticketID, technicianID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return false, nil
	}
	if ticket.Status != domain.TicketStatusOpen {
		return false, nil
	}
	if ticket.AssigneeID != nil && *ticket.AssigneeID != technicianID {
		return false, nil
	}
	ticket.AssigneeID = &technicianID
	ticket.Status = domain.TicketStatusInProgress
	ticket.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memTicketRepo) ClaimNextAvailable(_ context.Context, ticketID string) (string, error) {
	if r.technicians == nil {
		return "", repository.ErrNoAvailableTechnician
	}
	r.technicians.mu.Lock()
	var picked *domain.Technician
	for _, tech := range r.technicians.ordered() {
		if tech.Available && tech.Active {
			picked = tech
			break
		}
	}
	if picked == nil {
		r.technicians.mu.Unlock()
		return "", repository.ErrNoAvailableTechnician
	}

	r.mu.Lock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusOpen || ticket.AssigneeID != nil {
		// claim condition failed: the availability flip rolls back
		r.mu.Unlock()
		r.technicians.mu.Unlock()
		return "", repository.ErrClaimLost
	}
	picked.Available = false
	id := picked.ID
	ticket.AssigneeID = &id
	ticket.Status = domain.TicketStatusInProgress
	ticket.UpdatedAt = time.Now().UTC()
	r.mu.Unlock()
	r.technicians.mu.Unlock()
	return id, nil
}

func (r *memTicketRepo) UpdateStatus(_ context.Context, ticketID string, from, to domain.TicketStatus, closedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status != from {
		return false, nil
	}
	ticket.Status = to
	ticket.ClosedAt = closedAt
	ticket.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memTicketRepo) SetEscalated(_ context.Context, ticketID string) (bool, error) {
	return r.setFlag(ticketID, func(t *domain.Ticket) { t.Escalated = true })
}

func (r *memTicketRepo) SetApprovalRequested(_ context.Context, ticketID string) (bool, error) {
	return r.setFlag(ticketID, func(t *domain.Ticket) { t.ApprovalRequested = true })
}

func (r *memTicketRepo) setFlag(ticketID string, apply func(*domain.Ticket)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status == domain.TicketStatusClosed {
		return false, nil
	}
	apply(ticket)
	ticket.UpdatedAt = time.Now().UTC()
	return true, nil
}

// seed inserts a ticket directly, bypassing Create defaults.
func (r *memTicketRepo) seed(ticket domain.Ticket) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		r.seq++
		ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	}
	clone := ticket
	r.tickets[ticket.ID] = &clone
	return &clone
}

type memRequesterRepo struct {
	mu         sync.Mutex
	seq        int
	requesters map[string]*domain.Requester

	// createErr, when set, is returned by the next Create call. Simulates
	// the insert losing to a concurrent registration.
	createErr error
}

func newMemRequesterRepo() *memRequesterRepo {
	return &memRequesterRepo{requesters: map[string]*domain.Requester{}}
}

func (r *memRequesterRepo) Create(_ context.Context, requester *domain.Requester) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	r.seq++
	requester.ID = fmt.Sprintf("req-%d", r.seq)
	requester.CreatedAt = time.Now().UTC()
	requester.UpdatedAt = requester.CreatedAt
	clone := *requester
	r.requesters[requester.ID] = &clone
	return nil
}

func (r *memRequesterRepo) GetByID(_ context.Context, id string) (*domain.Requester, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	requester, ok := r.requesters[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *requester
	return &clone, nil
}

func (r *memRequesterRepo) GetByEmail(_ context.Context, email string) (*domain.Requester, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, requester := range r.requesters {
		if requester.Email == email {
			clone := *requester
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memTechnicianRepo struct {
	mu          sync.Mutex
	order       []string
	technicians map[string]*domain.Technician
}

func newMemTechnicianRepo() *memTechnicianRepo {
	return &memTechnicianRepo{technicians: map[string]*domain.Technician{}}
}

func (r *memTechnicianRepo) ordered() []*domain.Technician {
	out := make([]*domain.Technician, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.technicians[id])
	}
	return out
}

func (r *memTechnicianRepo) seed(tech domain.Technician) *domain.Technician {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := tech
	r.technicians[tech.ID] = &clone
	r.order = append(r.order, tech.ID)
	return &clone
}

func (r *memTechnicianRepo) Create(_ context.Context, tech *domain.Technician) error {
	r.seed(*tech)
	return nil
}

func (r *memTechnicianRepo) GetByID(_ context.Context, id string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tech, ok := r.technicians[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *tech
	return &clone, nil
}

func (r *memTechnicianRepo) GetByEmail(_ context.Context, email string) (*domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tech := range r.technicians {
		if tech.Email == email {
			clone := *tech
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTechnicianRepo) List(_ context.Context, _ repository.TechnicianFilter) ([]domain.Technician, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Technician
	for _, tech := range r.ordered() {
		out = append(out, *tech)
	}
	return out, nil
}

func (r *memTechnicianRepo) SetAvailability(_ context.Context, id string, from, to bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tech, ok := r.technicians[id]
	if !ok || tech.Available != from {
		return false, nil
	}
	tech.Available = to
	return true, nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	seq      int
	comments []domain.Comment
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	comment.ID = fmt.Sprintf("comment-%d", r.seq)
	comment.CreatedAt = time.Now().UTC()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Comment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memHistoryRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.TicketHistory
}

func (r *memHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = fmt.Sprintf("history-%d", r.seq)
	entry.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memHistoryRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memHistoryRepo) byType(changeType domain.TicketChangeType) []domain.TicketHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.ChangeType == changeType {
			out = append(out, e)
		}
	}
	return out
}

// memReportRepo couples report persistence to the ticket repo for the
// transactional cannot-resolve path.
type memReportRepo struct {
	mu      sync.Mutex
	seq     int
	reports map[string]*domain.FieldReport
	tickets *memTicketRepo
}

func newMemReportRepo(tickets *memTicketRepo) *memReportRepo {
	return &memReportRepo{reports: map[string]*domain.FieldReport{}, tickets: tickets}
}

func (r *memReportRepo) Create(_ context.Context, report *domain.FieldReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	report.ID = fmt.Sprintf("report-%d", r.seq)
	report.CreatedAt = time.Now().UTC()
	clone := *report
	r.reports[report.ID] = &clone
	return nil
}

func (r *memReportRepo) CreateWithReopen(ctx context.Context, report *domain.FieldReport, expectedStatus domain.TicketStatus) error {
	if report.TicketID == nil {
		return repository.ErrClaimLost
	}
	// reopen first; a failed compare discards the report entirely
	ok, err := r.tickets.UpdateStatus(ctx, *report.TicketID, expectedStatus, domain.TicketStatusOpen, nil)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrClaimLost
	}
	return r.Create(ctx, report)
}

func (r *memReportRepo) GetByID(_ context.Context, id string) (*domain.FieldReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *report
	return &clone, nil
}

func (r *memReportRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.FieldReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FieldReport
	for _, report := range r.reports {
		if report.TicketID != nil && *report.TicketID == ticketID {
			out = append(out, *report)
		}
	}
	return out, nil
}

func (r *memReportRepo) ListByTechnician(_ context.Context, technicianID string, _, _ int) ([]domain.FieldReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.FieldReport
	for _, report := range r.reports {
		if report.TechnicianID == technicianID {
			out = append(out, *report)
		}
	}
	return out, nil
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
