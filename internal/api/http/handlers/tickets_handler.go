package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// TicketsHandler handles requester-facing ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("title required", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.Context(), actor, service.TicketCreateInput{
		RequesterID:   req.RequesterID,
		AssigneeID:    req.AssigneeID,
		Type:          req.Type,
		Category:      req.Category,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketSummaryFrom(ticket)})
}

// List handles GET /tickets for the authenticated requester.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	requester, err := requesterFromContext(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListRequesterTickets(c.Context(), requester.ID, parseTicketFilter(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketSummariesFrom(tickets)})
}

// Get handles GET /tickets/:id for the authenticated requester.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	requester, err := requesterFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicketForRequester(c.Context(), requester.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailFrom(ticket, nil)})
}
