package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// HistoryHandler exposes the audit ledger, read-only.
type HistoryHandler struct {
	service *service.TicketService
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(ticketService *service.TicketService) *HistoryHandler {
	return &HistoryHandler{service: ticketService}
}

// ListForTicket GET /tickets/:id/history.
func (h *HistoryHandler) ListForTicket(c *fiber.Ctx) error {
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)
	entries, err := h.service.ListHistory(c.UserContext(), ticketID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetEntry GET /history/:id.
func (h *HistoryHandler) GetEntry(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entry, err := h.service.GetHistoryEntry(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponse(entry)})
}
