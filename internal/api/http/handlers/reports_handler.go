package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util"
)

// ReportsHandler handles field report endpoints.
type ReportsHandler struct {
	reports *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{reports: reportService}
}

// Submit handles POST /reports.
func (h *ReportsHandler) Submit(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.SubmitReportRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	report, err := h.reports.SubmitReport(c.Context(), actor, service.ReportSubmitInput{
		TicketID:            req.TicketID,
		Type:                req.Type,
		WorkPerformed:       req.WorkPerformed,
		Findings:            req.Findings,
		Recommendations:     req.Recommendations,
		PartsUsed:           req.PartsUsed,
		InstallationDetails: req.InstallationDetails,
		CannotResolve:       req.CannotResolve,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FieldReportFrom(report)})
}

// Get handles GET /reports/:id.
func (h *ReportsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	report, err := h.reports.GetReport(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FieldReportFrom(report)})
}

// ListMine handles GET /reports.
func (h *ReportsHandler) ListMine(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	reports, err := h.reports.ListOwnReports(c.Context(), actor, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FieldReportsFrom(reports)})
}

// ListForTicket handles GET /queue/tickets/:id/reports.
func (h *ReportsHandler) ListForTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	reports, err := h.reports.ListTicketReports(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FieldReportsFrom(reports)})
}
