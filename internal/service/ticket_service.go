package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/pkg/util"
)

// TxManager runs a unit of work inside a single transaction. Satisfied by
// persistence.TxManager.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransitionPolicy can veto a status transition. The lifecycle graph is
// deliberately permissive (any status may move to any other, including
// reopening resolved tickets); a policy installs a stricter rule set
// without touching the engine. A nil policy allows everything.
type TransitionPolicy func(from, to domain.TicketStatus) error

// TicketService owns the ticket lifecycle: protocol issuance, the status
// state machine, soft-state flags, resolution stamping, and the audit
// ledger that must stay consistent with every mutation.
type TicketService struct {
	tickets     repository.TicketRepository
	history     repository.HistoryRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	tx          TxManager
	allocator   *ProtocolAllocator
	clock       *ResolutionClock
	dispatcher  events.Dispatcher
	policy      TransitionPolicy

	protocolRetries int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	HistoryRepo     repository.HistoryRepository
	CommentRepo     repository.CommentRepository
	AttachmentRepo  repository.AttachmentRepository
	Tx              TxManager
	Allocator       *ProtocolAllocator
	Clock           *ResolutionClock
	Dispatcher      events.Dispatcher
	Policy          TransitionPolicy
	ProtocolRetries int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	retries := deps.ProtocolRetries
	if retries <= 0 {
		retries = 3
	}
	return &TicketService{
		tickets:         deps.TicketRepo,
		history:         deps.HistoryRepo,
		comments:        deps.CommentRepo,
		attachments:     deps.AttachmentRepo,
		tx:              deps.Tx,
		allocator:       deps.Allocator,
		clock:           deps.Clock,
		dispatcher:      deps.Dispatcher,
		policy:          deps.Policy,
		protocolRetries: retries,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterID int64
	CategoryID  *int64
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput is a sparse change set. Plain pointers mean "absent
// when nil"; Optional fields additionally distinguish an explicit null,
// which clears the column.
type TicketUpdateInput struct {
	Title        *string
	Description  *string
	CategoryID   util.Optional[int64]
	Priority     *domain.TicketPriority
	Urgency      util.Optional[domain.TicketUrgency]
	Status       *domain.TicketStatus
	TechnicianID util.Optional[int64]
	Solution     util.Optional[string]
	Observations util.Optional[string]
	Rating       util.Optional[int]
}

// CreateTicket allocates a protocol, persists the ticket, and writes the
// opening ledger entry, all in one transaction. The creation notification
// fires after commit and cannot roll the ticket back.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if input.RequesterID <= 0 {
		return nil, util.NewValidationError("requester_id required", nil)
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, util.NewValidationError("title and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, util.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	var (
		ticket  *domain.Ticket
		lastErr error
	)
	for attempt := 0; attempt < s.protocolRetries; attempt++ {
		candidate := &domain.Ticket{
			RequesterID: input.RequesterID,
			CategoryID:  input.CategoryID,
			Title:       title,
			Description: description,
			Priority:    priority,
			Status:      domain.TicketStatusOpen,
		}
		lastErr = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			protocol, err := s.allocator.Allocate(txCtx, s.clock.Now().Year())
			if err != nil {
				return err
			}
			candidate.Protocol = protocol
			if err := s.tickets.Create(txCtx, candidate); err != nil {
				return err
			}
			openStatus := domain.TicketStatusOpen
			return s.history.Create(txCtx, &domain.HistoryEntry{
				TicketID:    candidate.ID,
				UserID:      input.RequesterID,
				Action:      domain.HistoryActionOpened,
				Description: fmt.Sprintf("ticket opened with protocol %s", protocol),
				NewStatus:   &openStatus,
			})
		})
		if lastErr == nil {
			ticket = candidate
			break
		}
		if !isProtocolConflict(lastErr) {
			return nil, lastErr
		}
	}
	if ticket == nil {
		return nil, util.NewUnavailable("protocol allocation retries exhausted", lastErr)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  input.RequesterID,
		Payload: events.TicketCreatedPayload{
			Protocol: ticket.Protocol,
			Title:    ticket.Title,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return s.getTicket(ctx, id)
}

// GetTicketByProtocol fetches a ticket by its protocol.
func (s *TicketService) GetTicketByProtocol(ctx context.Context, protocol string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByProtocol(ctx, protocol)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("ticket", map[string]any{"protocol": protocol})
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter. Cancelled and archived
// tickets stay hidden unless the filter opts in.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// UpdateTicket applies a sparse change set. The first transition into a
// terminal status stamps resolution time exactly once; later status churn
// leaves the stamp untouched. Status changes and technician reassignment
// are observed against the pre-update state captured in the same
// transaction.
func (s *TicketService) UpdateTicket(ctx context.Context, actorID, ticketID int64, input TicketUpdateInput) (*domain.Ticket, error) {
	if actorID <= 0 {
		return nil, util.NewValidationError("acting user required", nil)
	}
	if err := validateUpdate(input); err != nil {
		return nil, err
	}

	var (
		ticket        *domain.Ticket
		prevStatus    domain.TicketStatus
		prevTech      *int64
		statusChanged bool
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.getTicket(txCtx, ticketID)
		if err != nil {
			return err
		}
		prevStatus = t.Status
		prevTech = t.TechnicianID

		if input.Status != nil && *input.Status != t.Status && s.policy != nil {
			if err := s.policy(t.Status, *input.Status); err != nil {
				return err
			}
		}

		applyUpdate(t, input)
		statusChanged = t.Status != prevStatus

		if statusChanged && t.Status.Terminal() && t.ResolvedAt == nil {
			now := s.clock.Now()
			minutes := s.clock.Minutes(t.OpenedAt, now)
			t.ResolvedAt = &now
			t.ResolutionMinutes = &minutes
		}

		if err := s.tickets.Update(txCtx, t); err != nil {
			return err
		}
		if statusChanged {
			newStatus := t.Status
			previous := prevStatus
			if err := s.history.Create(txCtx, &domain.HistoryEntry{
				TicketID:       t.ID,
				UserID:         actorID,
				Action:         domain.HistoryActionStatusChanged,
				Description:    fmt.Sprintf("status changed from %s to %s", prevStatus, t.Status),
				PreviousStatus: &previous,
				NewStatus:      &newStatus,
			}); err != nil {
				return err
			}
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if statusChanged {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.TicketStatusChangedPayload{
				PreviousStatus: prevStatus,
				NewStatus:      ticket.Status,
			},
		})
	}
	if assignmentChanged(prevTech, ticket.TechnicianID) {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  actorID,
			Payload: events.TicketAssignedPayload{
				Protocol:     ticket.Protocol,
				Title:        ticket.Title,
				TechnicianID: *ticket.TechnicianID,
			},
		})
	}
	return ticket, nil
}

// CancelTicket sets the cancelled flag. Cancelling an already-cancelled
// ticket is an invalid-state error, not a no-op; un-cancellation is not
// exposed.
func (s *TicketService) CancelTicket(ctx context.Context, actorID, ticketID int64) (*domain.Ticket, error) {
	if actorID <= 0 {
		return nil, util.NewValidationError("acting user required", nil)
	}
	var ticket *domain.Ticket
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.getTicket(txCtx, ticketID)
		if err != nil {
			return err
		}
		if t.Cancelled {
			return util.NewInvalidState("ticket already cancelled", map[string]any{"id": ticketID})
		}
		t.Cancelled = true
		if err := s.tickets.Update(txCtx, t); err != nil {
			return err
		}
		if err := s.history.Create(txCtx, &domain.HistoryEntry{
			TicketID:    t.ID,
			UserID:      actorID,
			Action:      domain.HistoryActionCancelled,
			Description: fmt.Sprintf("ticket %s cancelled", t.Protocol),
		}); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCancelled,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.TicketFlagChangedPayload{Protocol: ticket.Protocol},
	})
	return ticket, nil
}

// ArchiveTicket sets the archived flag.
func (s *TicketService) ArchiveTicket(ctx context.Context, actorID, ticketID int64) (*domain.Ticket, error) {
	return s.setArchived(ctx, actorID, ticketID, true)
}

// UnarchiveTicket clears the archived flag.
func (s *TicketService) UnarchiveTicket(ctx context.Context, actorID, ticketID int64) (*domain.Ticket, error) {
	return s.setArchived(ctx, actorID, ticketID, false)
}

func (s *TicketService) setArchived(ctx context.Context, actorID, ticketID int64, archived bool) (*domain.Ticket, error) {
	if actorID <= 0 {
		return nil, util.NewValidationError("acting user required", nil)
	}
	action := domain.HistoryActionArchived
	eventType := events.EventTicketArchived
	verb := "archived"
	if !archived {
		action = domain.HistoryActionUnarchived
		eventType = events.EventTicketUnarchived
		verb = "unarchived"
	}
	var ticket *domain.Ticket
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		t, err := s.getTicket(txCtx, ticketID)
		if err != nil {
			return err
		}
		if t.Archived == archived {
			if archived {
				return util.NewInvalidState("ticket already archived", map[string]any{"id": ticketID})
			}
			return util.NewInvalidState("ticket not archived", map[string]any{"id": ticketID})
		}
		t.Archived = archived
		if err := s.tickets.Update(txCtx, t); err != nil {
			return err
		}
		if err := s.history.Create(txCtx, &domain.HistoryEntry{
			TicketID:    t.ID,
			UserID:      actorID,
			Action:      action,
			Description: fmt.Sprintf("ticket %s %s", t.Protocol, verb),
		}); err != nil {
			return err
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.TicketFlagChangedPayload{Protocol: ticket.Protocol},
	})
	return ticket, nil
}

// DeleteTicket hard-deletes a ticket; history, comments and attachments
// go with it through the cascade. Administrative escape hatch only.
func (s *TicketService) DeleteTicket(ctx context.Context, ticketID int64) error {
	err := s.tickets.Delete(ctx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return util.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return err
}

// ListHistory returns ledger entries for a ticket, newest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64, limit, offset int) ([]domain.HistoryEntry, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID, limit, offset)
}

// GetHistoryEntry fetches a single ledger entry.
func (s *TicketService) GetHistoryEntry(ctx context.Context, id int64) (*domain.HistoryEntry, error) {
	entry, err := s.history.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("history entry", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AddComment appends a comment to a ticket.
func (s *TicketService) AddComment(ctx context.Context, actorID, ticketID int64, body string, internal bool) (*domain.Comment, error) {
	if actorID <= 0 {
		return nil, util.NewValidationError("acting user required", nil)
	}
	if strings.TrimSpace(body) == "" {
		return nil, util.NewValidationError("comment body required", nil)
	}
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	comment := &domain.Comment{
		TicketID: ticketID,
		UserID:   actorID,
		Body:     strings.TrimSpace(body),
		Internal: internal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticketID,
		ActorID:  actorID,
		Payload: events.TicketCommentAddedPayload{
			CommentID: comment.ID,
			Internal:  comment.Internal,
		},
	})
	return comment, nil
}

// ListComments returns a ticket's comments, oldest first.
func (s *TicketService) ListComments(ctx context.Context, ticketID int64, limit, offset int) ([]domain.Comment, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.comments.ListByTicket(ctx, ticketID, limit, offset)
}

// UpdateComment replaces a comment's body.
func (s *TicketService) UpdateComment(ctx context.Context, commentID int64, body string, internal *bool) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, util.NewValidationError("comment body required", nil)
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("comment", map[string]any{"id": commentID})
	}
	if err != nil {
		return nil, err
	}
	comment.Body = strings.TrimSpace(body)
	if internal != nil {
		comment.Internal = *internal
	}
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment.
func (s *TicketService) DeleteComment(ctx context.Context, commentID int64) error {
	err := s.comments.Delete(ctx, commentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return util.NewNotFound("comment", map[string]any{"id": commentID})
	}
	return err
}

// AttachmentInput describes attachment metadata registration.
type AttachmentInput struct {
	FileName    string
	StoragePath string
	SizeKB      *int
	MimeType    *string
}

// AddAttachment registers attachment metadata on a ticket.
func (s *TicketService) AddAttachment(ctx context.Context, actorID, ticketID int64, input AttachmentInput) (*domain.Attachment, error) {
	if strings.TrimSpace(input.FileName) == "" || strings.TrimSpace(input.StoragePath) == "" {
		return nil, util.NewValidationError("file_name and storage_path required", nil)
	}
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	attachment := &domain.Attachment{
		TicketID:    ticketID,
		FileName:    input.FileName,
		StoragePath: input.StoragePath,
		SizeKB:      input.SizeKB,
		MimeType:    input.MimeType,
	}
	if actorID > 0 {
		attachment.UploadedBy = &actorID
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, err
	}
	return attachment, nil
}

// ListAttachments returns a ticket's attachment metadata.
func (s *TicketService) ListAttachments(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.attachments.ListByTicket(ctx, ticketID)
}

func (s *TicketService) getTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewNotFound("ticket", map[string]any{"id": id})
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateUpdate(input TicketUpdateInput) error {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return util.NewValidationError("title cannot be empty", nil)
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		return util.NewValidationError("description cannot be empty", nil)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return util.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}
	if input.Urgency.Valid && !input.Urgency.Value.Valid() {
		return util.NewValidationError("unknown urgency", map[string]any{"urgency": input.Urgency.Value})
	}
	if input.Status != nil && !input.Status.Valid() {
		return util.NewValidationError("unknown status", map[string]any{"status": *input.Status})
	}
	if input.Rating.Valid && (input.Rating.Value < domain.RatingMin || input.Rating.Value > domain.RatingMax) {
		return util.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": input.Rating.Value})
	}
	return nil
}

func applyUpdate(t *domain.Ticket, input TicketUpdateInput) {
	if input.Title != nil {
		t.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		t.Description = strings.TrimSpace(*input.Description)
	}
	if input.CategoryID.Set {
		t.CategoryID = input.CategoryID.Ptr()
	}
	if input.Priority != nil {
		t.Priority = *input.Priority
	}
	if input.Urgency.Set {
		t.Urgency = input.Urgency.Ptr()
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	if input.TechnicianID.Set {
		t.TechnicianID = input.TechnicianID.Ptr()
	}
	if input.Solution.Set {
		t.Solution = input.Solution.Ptr()
	}
	if input.Observations.Set {
		t.Observations = input.Observations.Ptr()
	}
	if input.Rating.Set {
		t.Rating = input.Rating.Ptr()
	}
}

// assignmentChanged reports whether the technician changed to a new
// non-nil value. Re-assigning the same technician or clearing the
// assignment fires no notification.
func assignmentChanged(prev, next *int64) bool {
	if next == nil {
		return false
	}
	return prev == nil || *prev != *next
}

func isProtocolConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "protocol")
	}
	return false
}
