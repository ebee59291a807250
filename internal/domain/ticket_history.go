package domain

import "time"

// History action labels. Free text by contract; these are the labels the
// lifecycle engine writes.
const (
	HistoryActionOpened        = "ticket opened"
	HistoryActionStatusChanged = "status changed"
	HistoryActionCancelled     = "ticket cancelled"
	HistoryActionArchived      = "ticket archived"
	HistoryActionUnarchived    = "ticket unarchived"
)

// HistoryEntry is an immutable audit trail record. Entries are written in
// the same transaction as the ticket mutation they describe and are never
// updated or deleted, except by cascade when the ticket itself is deleted.
type HistoryEntry struct {
	ID             int64
	TicketID       int64
	UserID         int64
	Action         string
	Description    string
	PreviousStatus *TicketStatus
	NewStatus      *TicketStatus
	CreatedAt      time.Time
}
