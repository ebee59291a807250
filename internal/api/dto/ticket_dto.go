package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterID int64                 `json:"requester_id"`
	CategoryID  *int64                `json:"category_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateTicketRequest is a sparse update. Optional fields record whether
// the key was present at all, so an explicit null clears the column while
// an absent key leaves it untouched.
type UpdateTicketRequest struct {
	Title        *string                             `json:"title"`
	Description  *string                             `json:"description"`
	CategoryID   util.Optional[int64]                `json:"category_id"`
	Priority     *domain.TicketPriority              `json:"priority"`
	Urgency      util.Optional[domain.TicketUrgency] `json:"urgency"`
	Status       *domain.TicketStatus                `json:"status"`
	TechnicianID util.Optional[int64]                `json:"technician_id"`
	Solution     util.Optional[string]               `json:"solution"`
	Observations util.Optional[string]               `json:"observations"`
	Rating       util.Optional[int]                  `json:"rating"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID                int64                 `json:"id"`
	Protocol          string                `json:"protocol"`
	RequesterID       int64                 `json:"requester_id"`
	TechnicianID      *int64                `json:"technician_id"`
	CategoryID        *int64                `json:"category_id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	Priority          domain.TicketPriority `json:"priority"`
	Urgency           *domain.TicketUrgency `json:"urgency"`
	Status            domain.TicketStatus   `json:"status"`
	Solution          *string               `json:"solution"`
	Observations      *string               `json:"observations"`
	Rating            *int                  `json:"rating"`
	Cancelled         bool                  `json:"cancelled"`
	Archived          bool                  `json:"archived"`
	OpenedAt          time.Time             `json:"opened_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	ResolvedAt        *time.Time            `json:"resolved_at"`
	ResolutionMinutes *int                  `json:"resolution_minutes"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                t.ID,
		Protocol:          t.Protocol,
		RequesterID:       t.RequesterID,
		TechnicianID:      t.TechnicianID,
		CategoryID:        t.CategoryID,
		Title:             t.Title,
		Description:       t.Description,
		Priority:          t.Priority,
		Urgency:           t.Urgency,
		Status:            t.Status,
		Solution:          t.Solution,
		Observations:      t.Observations,
		Rating:            t.Rating,
		Cancelled:         t.Cancelled,
		Archived:          t.Archived,
		OpenedAt:          t.OpenedAt,
		UpdatedAt:         t.UpdatedAt,
		ResolvedAt:        t.ResolvedAt,
		ResolutionMinutes: t.ResolutionMinutes,
	}
}

// AttachmentRequest registers attachment metadata.
type AttachmentRequest struct {
	FileName    string  `json:"file_name"`
	StoragePath string  `json:"storage_path"`
	SizeKB      *int    `json:"size_kb"`
	MimeType    *string `json:"mime_type"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID          int64     `json:"id"`
	TicketID    int64     `json:"ticket_id"`
	FileName    string    `json:"file_name"`
	StoragePath string    `json:"storage_path"`
	SizeKB      *int      `json:"size_kb"`
	MimeType    *string   `json:"mime_type"`
	UploadedBy  *int64    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAttachmentResponse maps a domain attachment.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		FileName:    a.FileName,
		StoragePath: a.StoragePath,
		SizeKB:      a.SizeKB,
		MimeType:    a.MimeType,
		UploadedBy:  a.UploadedBy,
		CreatedAt:   a.CreatedAt,
	}
}
