package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusWaiting    TicketStatus = "WAITING"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusWaiting,
		TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether entering this status stamps resolution time.
// Terminal does not mean final: tickets may leave these states again.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates requester-set triage levels.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether the priority is a known level.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketUrgency enumerates technician-set urgency levels.
type TicketUrgency string

const (
	TicketUrgencyNotUrgent  TicketUrgency = "NOT_URGENT"
	TicketUrgencyNormal     TicketUrgency = "NORMAL"
	TicketUrgencyUrgent     TicketUrgency = "URGENT"
	TicketUrgencyVeryUrgent TicketUrgency = "VERY_URGENT"
)

// Valid reports whether the urgency is a known level.
func (u TicketUrgency) Valid() bool {
	switch u {
	case TicketUrgencyNotUrgent, TicketUrgencyNormal, TicketUrgencyUrgent, TicketUrgencyVeryUrgent:
		return true
	}
	return false
}

// RatingMin and RatingMax bound the requester satisfaction rating.
const (
	RatingMin = 1
	RatingMax = 5
)

// Ticket is the aggregate for support requests. The protocol is assigned
// once at creation and never changes; cancelled and archived are soft-state
// flags orthogonal to status.
type Ticket struct {
	ID                int64
	Protocol          string
	RequesterID       int64
	TechnicianID      *int64
	CategoryID        *int64
	Title             string
	Description       string
	Priority          TicketPriority
	Urgency           *TicketUrgency
	Status            TicketStatus
	Solution          *string
	Observations      *string
	Rating            *int
	Cancelled         bool
	Archived          bool
	OpenedAt          time.Time
	UpdatedAt         time.Time
	ResolvedAt        *time.Time
	ResolutionMinutes *int
}
