package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// AuthService handles registration and login for both principal kinds.
type AuthService struct {
	cfg         config.AuthConfig
	requesters  repository.RequesterRepository
	technicians repository.TechnicianRepository
	tokens      *auth.TokenManager
}

// AuthDependencies bundles repositories for auth.
type AuthDependencies struct {
	RequesterRepo  repository.RequesterRepository
	TechnicianRepo repository.TechnicianRepository
}

// LoginResult carries a signed token and its expiry.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	SubjectID string
	Role      domain.Role
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		cfg:         cfg,
		requesters:  deps.RequesterRepo,
		technicians: deps.TechnicianRepo,
		tokens:      auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// RegisterRequester creates an end-user account.
func (s *AuthService) RegisterRequester(ctx context.Context, name, email, password string) (*domain.Requester, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || len(password) < 8 {
		return nil, apperrors.NewValidationError("name, email and a password of at least 8 characters are required", nil)
	}
	if existing, err := s.requesters.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	requester := &domain.Requester{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.requesters.Create(ctx, requester); err != nil {
		// two concurrent registrations can both pass the email check; the
		// unique index decides, and the loser gets the same conflict answer
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return requester, nil
}

// LoginRequester authenticates an end-user and issues a token.
func (s *AuthService) LoginRequester(ctx context.Context, email, password string) (*LoginResult, error) {
	requester, err := s.requesters.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !requester.Active {
		return nil, apperrors.NewUnauthorized("account suspended")
	}
	if err := auth.VerifyPassword(requester.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	token, expiresAt, err := s.tokens.GenerateToken(requester.ID, domain.RoleRequester)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, SubjectID: requester.ID, Role: domain.RoleRequester}, nil
}

// LoginTechnician authenticates a technician or admin and issues a token.
func (s *AuthService) LoginTechnician(ctx context.Context, email, password string) (*LoginResult, error) {
	technician, err := s.technicians.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !technician.Active {
		return nil, apperrors.NewUnauthorized("account suspended")
	}
	if err := auth.VerifyPassword(technician.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	token, expiresAt, err := s.tokens.GenerateToken(technician.ID, technician.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, SubjectID: technician.ID, Role: technician.Role}, nil
}
