package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// AuthHandler exposes registration and login endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// RegisterRequester handles POST /auth/requesters/register.
func (h *AuthHandler) RegisterRequester(c *fiber.Ctx) error {
	var req dto.RegisterRequesterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	requester, err := h.auth.RegisterRequester(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	result, err := h.auth.LoginRequester(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"requester": fiber.Map{
				"id":    requester.ID,
				"name":  requester.Name,
				"email": requester.Email,
			},
			"auth": authResponse(result),
		},
	})
}

// LoginRequester handles POST /auth/requesters/login.
func (h *AuthHandler) LoginRequester(c *fiber.Ctx) error {
	result, err := h.login(c, h.auth.LoginRequester)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

// LoginTechnician handles POST /auth/technicians/login.
func (h *AuthHandler) LoginTechnician(c *fiber.Ctx) error {
	result, err := h.login(c, h.auth.LoginTechnician)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(result)})
}

func (h *AuthHandler) login(c *fiber.Ctx, fn func(ctx context.Context, email, password string) (*service.LoginResult, error)) (*service.LoginResult, error) {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, apperrors.NewValidationError("email and password required", nil)
	}
	return fn(c.Context(), req.Email, req.Password)
}

func authResponse(result *service.LoginResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		SubjectID: result.SubjectID,
		Role:      result.Role,
	}
}
