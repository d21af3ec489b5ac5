package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// FieldReportRepository stores append-only field reports. CreateWithReopen
// couples the insert with the forced ticket reopen in one transaction so the
// linkage rule is enforceable independent of any interface.
type FieldReportRepository interface {
	Create(ctx context.Context, report *domain.FieldReport) error
	CreateWithReopen(ctx context.Context, report *domain.FieldReport, expectedStatus domain.TicketStatus) error
	GetByID(ctx context.Context, id string) (*domain.FieldReport, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.FieldReport, error)
	ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.FieldReport, error)
}

type fieldReportRepository struct {
	pool *pgxpool.Pool
}

// NewFieldReportRepository builds repository.
func NewFieldReportRepository(pool *pgxpool.Pool) FieldReportRepository {
	return &fieldReportRepository{pool: pool}
}

const reportColumns = `id, ticket_id, technician_id, report_type, work_performed, findings,
               recommendations, parts_used, installation_details, created_at`

const insertReport = `
        INSERT INTO field_reports (ticket_id, technician_id, report_type, work_performed, findings,
                                   recommendations, parts_used, installation_details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`

func (r *fieldReportRepository) Create(ctx context.Context, report *domain.FieldReport) error {
	return r.pool.QueryRow(ctx, insertReport,
		report.TicketID,
		report.TechnicianID,
		report.Type,
		report.WorkPerformed,
		report.Findings,
		report.Recommendations,
		report.PartsUsed,
		report.InstallationDetails,
	).Scan(&report.ID, &report.CreatedAt)
}

func (r *fieldReportRepository) CreateWithReopen(ctx context.Context, report *domain.FieldReport, expectedStatus domain.TicketStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.QueryRow(ctx, insertReport,
		report.TicketID,
		report.TechnicianID,
		report.Type,
		report.WorkPerformed,
		report.Findings,
		report.Recommendations,
		report.PartsUsed,
		report.InstallationDetails,
	).Scan(&report.ID, &report.CreatedAt); err != nil {
		return err
	}

	// reopen keeps the assignee; the ticket returns to the pool flagged as
	// unfinished, not as unassigned
	const reopen = `
        UPDATE tickets SET status='OPEN', updated_at=NOW()
        WHERE id=$1 AND status=$2`
	cmd, err := tx.Exec(ctx, reopen, report.TicketID, expectedStatus)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// rollback discards the report; no partial write survives
		return ErrClaimLost
	}

	return tx.Commit(ctx)
}

func (r *fieldReportRepository) GetByID(ctx context.Context, id string) (*domain.FieldReport, error) {
	query := `SELECT ` + reportColumns + ` FROM field_reports WHERE id=$1`
	var report domain.FieldReport
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.TicketID,
		&report.TechnicianID,
		&report.Type,
		&report.WorkPerformed,
		&report.Findings,
		&report.Recommendations,
		&report.PartsUsed,
		&report.InstallationDetails,
		&report.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *fieldReportRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.FieldReport, error) {
	query := `SELECT ` + reportColumns + ` FROM field_reports WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

func (r *fieldReportRepository) ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.FieldReport, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + reportColumns + ` FROM field_reports WHERE technician_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, technicianID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReports(rows)
}

func scanReports(rows pgx.Rows) ([]domain.FieldReport, error) {
	var result []domain.FieldReport
	for rows.Next() {
		var report domain.FieldReport
		if err := rows.Scan(
			&report.ID,
			&report.TicketID,
			&report.TechnicianID,
			&report.Type,
			&report.WorkPerformed,
			&report.Findings,
			&report.Recommendations,
			&report.PartsUsed,
			&report.InstallationDetails,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, report)
	}
	return result, rows.Err()
}
