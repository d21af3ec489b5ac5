package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller resolved to {id, role}.
type Principal struct {
	ID         string
	Role       domain.Role
	Requester  *domain.Requester
	Technician *domain.Technician
}

// Middleware validates bearer tokens and loads principals.
type Middleware struct {
	tokens      *TokenManager
	requesters  repository.RequesterRepository
	technicians repository.TechnicianRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, requesters repository.RequesterRepository, technicians repository.TechnicianRepository) *Middleware {
	return &Middleware{tokens: tokens, requesters: requesters, technicians: technicians}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{ID: claims.SubjectID, Role: claims.Role}

	switch claims.Role {
	case domain.RoleRequester:
		requester, err := m.requesters.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("requester not found")
			}
			return apperrors.MapError(err)
		}
		principal.Requester = requester
	case domain.RoleTechnician, domain.RoleAdmin:
		technician, err := m.technicians.GetByID(c.Context(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("technician not found")
			}
			return apperrors.MapError(err)
		}
		principal.Technician = technician
		principal.Role = technician.Role
	default:
		return apperrors.NewUnauthorized("unknown role")
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
