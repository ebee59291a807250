package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCancelled     EventType = "ticket_cancelled"
	EventTicketArchived      EventType = "ticket_archived"
	EventTicketUnarchived    EventType = "ticket_unarchived"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
)

// Event represents a domain event emitted by services. Events are
// published after the enclosing transaction commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	ActorID   int64       `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Protocol string                `json:"protocol"`
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	PreviousStatus domain.TicketStatus `json:"previous_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Protocol     string `json:"protocol"`
	Title        string `json:"title"`
	TechnicianID int64  `json:"technician_id"`
}

// TicketFlagChangedPayload covers cancel/archive/unarchive events.
type TicketFlagChangedPayload struct {
	Protocol string `json:"protocol"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID int64 `json:"comment_id"`
	Internal  bool  `json:"internal"`
}
