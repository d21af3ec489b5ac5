package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TechnicianRepository handles persistence for technicians, including the
// roster availability flag. Availability is mutated with conditional updates
// only; it is shared state between auto-assignment and manual toggles.
type TechnicianRepository interface {
	Create(ctx context.Context, technician *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	GetByEmail(ctx context.Context, email string) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)

	// SetAvailability flips the availability flag compared against its
	// expected current value. Returns false when the row already changed.
	SetAvailability(ctx context.Context, id string, from, to bool) (bool, error)
}

// TechnicianFilter defines query params for roster listing.
type TechnicianFilter struct {
	Role      *domain.Role
	Available *bool
	Active    *bool
	Limit     int
	Offset    int
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

const technicianColumns = `id, name, email, password_hash, role, available_flag, active_flag, created_at, updated_at`

func (r *technicianRepository) Create(ctx context.Context, technician *domain.Technician) error {
	const query = `
        INSERT INTO technicians (name, email, password_hash, role, available_flag, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		technician.Name,
		technician.Email,
		technician.PasswordHash,
		technician.Role,
		technician.Available,
		technician.Active,
	).Scan(&technician.ID, &technician.CreatedAt, &technician.UpdatedAt)
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *technicianRepository) GetByEmail(ctx context.Context, email string) (*domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *technicianRepository) SetAvailability(ctx context.Context, id string, from, to bool) (bool, error) {
	const query = `
        UPDATE technicians SET available_flag=$3, updated_at=NOW()
        WHERE id=$1 AND available_flag=$2`
	cmd, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `SELECT ` + technicianColumns + ` FROM technicians WHERE 1=1`
	args := []any{}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		query += placeholderClause(" AND role=", len(args))
	}
	if filter.Available != nil {
		args = append(args, *filter.Available)
		query += placeholderClause(" AND available_flag=", len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += placeholderClause(" AND active_flag=", len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += ` ORDER BY created_at ASC`
	args = append(args, limit)
	query += placeholderClause(" LIMIT ", len(args))
	args = append(args, offset)
	query += placeholderClause(" OFFSET ", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var technician domain.Technician
		if err := rows.Scan(
			&technician.ID,
			&technician.Name,
			&technician.Email,
			&technician.PasswordHash,
			&technician.Role,
			&technician.Available,
			&technician.Active,
			&technician.CreatedAt,
			&technician.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, technician)
	}
	return result, rows.Err()
}

func placeholderClause(prefix string, n int) string {
	return fmt.Sprintf("%s$%d", prefix, n)
}

func (r *technicianRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Technician, error) {
	var technician domain.Technician
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&technician.ID,
		&technician.Name,
		&technician.Email,
		&technician.PasswordHash,
		&technician.Role,
		&technician.Available,
		&technician.Active,
		&technician.CreatedAt,
		&technician.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &technician, nil
}
