package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// RegisterRequesterRequest payload.
type RegisterRequesterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload, shared by requester and technician login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	SubjectID string      `json:"subject_id"`
	Role      domain.Role `json:"role"`
}

// AvailabilityRequest toggles a technician's roster flag.
type AvailabilityRequest struct {
	Available bool `json:"available"`
}
