package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// HistoryResponse is one audit ledger entry.
type HistoryResponse struct {
	ID             int64                `json:"id"`
	TicketID       int64                `json:"ticket_id"`
	UserID         int64                `json:"user_id"`
	Action         string               `json:"action"`
	Description    string               `json:"description"`
	PreviousStatus *domain.TicketStatus `json:"previous_status"`
	NewStatus      *domain.TicketStatus `json:"new_status"`
	CreatedAt      time.Time            `json:"created_at"`
}

// NewHistoryResponse maps a domain history entry.
func NewHistoryResponse(e *domain.HistoryEntry) HistoryResponse {
	return HistoryResponse{
		ID:             e.ID,
		TicketID:       e.TicketID,
		UserID:         e.UserID,
		Action:         e.Action,
		Description:    e.Description,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		CreatedAt:      e.CreatedAt,
	}
}
