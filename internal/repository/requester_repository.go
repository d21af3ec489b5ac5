package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// RequesterRepository handles persistence for end-users.
type RequesterRepository interface {
	Create(ctx context.Context, requester *domain.Requester) error
	GetByID(ctx context.Context, id string) (*domain.Requester, error)
	GetByEmail(ctx context.Context, email string) (*domain.Requester, error)
}

type requesterRepository struct {
	pool *pgxpool.Pool
}

// NewRequesterRepository instantiates the repository.
func NewRequesterRepository(pool *pgxpool.Pool) RequesterRepository {
	return &requesterRepository{pool: pool}
}

func (r *requesterRepository) Create(ctx context.Context, requester *domain.Requester) error {
	const query = `
        INSERT INTO requesters (name, email, password_hash, active_flag)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		requester.Name,
		requester.Email,
		requester.PasswordHash,
		requester.Active,
	).Scan(&requester.ID, &requester.CreatedAt, &requester.UpdatedAt)
}

func (r *requesterRepository) GetByID(ctx context.Context, id string) (*domain.Requester, error) {
	const query = `
        SELECT id, name, email, password_hash, active_flag, created_at, updated_at
        FROM requesters WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *requesterRepository) GetByEmail(ctx context.Context, email string) (*domain.Requester, error) {
	const query = `
        SELECT id, name, email, password_hash, active_flag, created_at, updated_at
        FROM requesters WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *requesterRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Requester, error) {
	var requester domain.Requester
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&requester.ID,
		&requester.Name,
		&requester.Email,
		&requester.PasswordHash,
		&requester.Active,
		&requester.CreatedAt,
		&requester.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &requester, nil
}
