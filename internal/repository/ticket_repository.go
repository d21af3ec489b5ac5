package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// Sentinel errors for conditional updates. Services translate these into the
// caller-facing taxonomy after re-reading the row.
var (
	ErrClaimLost             = errors.New("claim condition not met")
	ErrNoAvailableTechnician = errors.New("no available technician")
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID *string
	AssigneeID  *string
	Unassigned  bool
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence. All status and assignee
// mutations are conditional updates against the stored row; the repository
// never read-modify-writes those columns in application memory.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)

	// Claim conditionally assigns an open ticket to a technician. The update
	// only fires while the ticket is OPEN and unassigned (or already assigned
	// to the same technician, covering the pre-assignment and retry paths).
	// Returns false when the condition did not hold at the moment of update.
	Claim(ctx context.Context, ticketID, technicianID string) (bool, error)

	// ClaimNextAvailable atomically picks the first available technician,
	// flips their availability off, and claims the ticket for them in one
	// transaction. A lost claim race rolls back the availability flip.
	ClaimNextAvailable(ctx context.Context, ticketID string) (string, error)

	// UpdateStatus applies a status transition compared against the expected
	// prior status. Returns false when the row no longer holds that status.
	UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, closedAt *time.Time) (bool, error)

	// SetEscalated and SetApprovalRequested set advisory flags guarded on the
	// ticket not being closed. Returns false when the guard failed.
	SetEscalated(ctx context.Context, ticketID string) (bool, error)
	SetApprovalRequested(ctx context.Context, ticketID string) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_id, assignee_technician_id, ticket_type, category,
               title, description, status, priority, attachment_url, sla_deadline,
               escalated_flag, approval_requested_flag, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, requester_id, assignee_technician_id, ticket_type, category,
                             title, description, status, priority, attachment_url, sla_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.Type,
		ticket.Category,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AttachmentURL,
		ticket.SLADeadline,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) Claim(ctx context.Context, ticketID, technicianID string) (bool, error) {
	const query = `
        UPDATE tickets SET assignee_technician_id=$2, status='IN_PROGRESS', updated_at=NOW()
        WHERE id=$1 AND status='OPEN'
          AND (assignee_technician_id IS NULL OR assignee_technician_id=$2)`
	cmd, err := r.pool.Exec(ctx, query, ticketID, technicianID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ClaimNextAvailable(ctx context.Context, ticketID string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const pick = `
        UPDATE technicians SET available_flag=FALSE, updated_at=NOW()
        WHERE id = (
            SELECT id FROM technicians
            WHERE available_flag AND active_flag
            ORDER BY created_at
            LIMIT 1
            FOR UPDATE SKIP LOCKED)
        RETURNING id`
	var technicianID string
	if err := tx.QueryRow(ctx, pick).Scan(&technicianID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoAvailableTechnician
		}
		return "", err
	}

	const claim = `
        UPDATE tickets SET assignee_technician_id=$2, status='IN_PROGRESS', updated_at=NOW()
        WHERE id=$1 AND status='OPEN' AND assignee_technician_id IS NULL`
	cmd, err := tx.Exec(ctx, claim, ticketID, technicianID)
	if err != nil {
		return "", err
	}
	if cmd.RowsAffected() == 0 {
		// rollback restores the technician's availability
		return "", ErrClaimLost
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return technicianID, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticketID string, from, to domain.TicketStatus, closedAt *time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status=$3, closed_at=$4, updated_at=NOW()
        WHERE id=$1 AND status=$2`
	cmd, err := r.pool.Exec(ctx, query, ticketID, from, to, closedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) SetEscalated(ctx context.Context, ticketID string) (bool, error) {
	const query = `
        UPDATE tickets SET escalated_flag=TRUE, updated_at=NOW()
        WHERE id=$1 AND status <> 'CLOSED'`
	cmd, err := r.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) SetApprovalRequested(ctx context.Context, ticketID string) (bool, error) {
	const query = `
        UPDATE tickets SET approval_requested_flag=TRUE, updated_at=NOW()
        WHERE id=$1 AND status <> 'CLOSED'`
	cmd, err := r.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_technician_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assignee_technician_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.Type,
		&ticket.Category,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AttachmentURL,
		&ticket.SLADeadline,
		&ticket.Escalated,
		&ticket.ApprovalRequested,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
