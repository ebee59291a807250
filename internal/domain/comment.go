package domain

import "time"

// Comment is a discussion entry on a ticket. Internal comments are only
// meant for technicians; visibility filtering is a caller concern.
type Comment struct {
	ID        int64
	TicketID  int64
	UserID    int64
	Body      string
	Internal  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
