package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// QueueHandler handles technician-facing ticket endpoints: the shared
// queue, claiming, transitions, flags, comments and history.
type QueueHandler struct {
	tickets *service.TicketService
	claims  *service.ClaimService
}

// NewQueueHandler constructs handler.
func NewQueueHandler(ticketService *service.TicketService, claimService *service.ClaimService) *QueueHandler {
	return &QueueHandler{tickets: ticketService, claims: claimService}
}

// List handles GET /queue/tickets.
func (h *QueueHandler) List(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.Context(), actor, parseTicketFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummariesFrom(tickets)})
}

// Get handles GET /queue/tickets/:id.
func (h *QueueHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, comments, err := h.tickets.GetTicket(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailFrom(ticket, comments)})
}

// Claim handles POST /queue/tickets/:id/claim.
func (h *QueueHandler) Claim(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.claims.Claim(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// AutoAssign handles POST /queue/tickets/:id/auto-assign.
func (h *QueueHandler) AutoAssign(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.claims.AutoAssign(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// Resolve handles POST /queue/tickets/:id/resolve.
func (h *QueueHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Resolve)
}

// Close handles POST /queue/tickets/:id/close.
func (h *QueueHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Close)
}

// Escalate handles POST /queue/tickets/:id/escalate.
func (h *QueueHandler) Escalate(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Escalate)
}

// RequestApproval handles POST /queue/tickets/:id/request-approval.
func (h *QueueHandler) RequestApproval(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.RequestApproval)
}

// AddComment handles POST /queue/tickets/:id/comments.
func (h *QueueHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	comment, err := h.tickets.AddComment(c.Context(), actor, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CommentFrom(comment)})
}

// ListHistory handles GET /queue/tickets/:id/history.
func (h *QueueHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	entries, err := h.tickets.ListHistory(c.Context(), actor, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.HistoryEntriesFrom(entries)})
}

// SetAvailability handles PUT /queue/availability.
func (h *QueueHandler) SetAvailability(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	technician, err := h.claims.SetAvailability(c.Context(), actor, req.Available)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"technician_id": technician.ID,
		"available":     technician.Available,
	}})
}

func (h *QueueHandler) transition(c *fiber.Ctx, fn func(ctx context.Context, actor service.Actor, ticketID string) (*domain.Ticket, error)) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := fn(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}
