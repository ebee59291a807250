package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// memStore is a single in-memory backing store implementing the
// repository interfaces the ticket service needs.
type memStore struct {
	mu       sync.Mutex
	ticketID int64
	ledgerID int64
	comment  int64
	attach   int64

	tickets     map[int64]domain.Ticket
	ledger      []domain.HistoryEntry
	comments    map[int64]domain.Comment
	attachments []domain.Attachment
}

func newMemStore() *memStore {
	return &memStore{
		tickets:  map[int64]domain.Ticket{},
		comments: map[int64]domain.Comment{},
	}
}

func (s *memStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticketID++
	ticket.ID = s.ticketID
	ticket.OpenedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.OpenedAt
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *memStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (s *memStore) GetByProtocol(ctx context.Context, protocol string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range s.tickets {
		if ticket.Protocol == protocol {
			t := ticket
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memStore) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.Cancelled && !filter.IncludeCancelled {
			continue
		}
		if ticket.Archived && !filter.IncludeArchived {
			continue
		}
		result = append(result, ticket)
	}
	return result, nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.tickets, id)
	return nil
}

func (s *memStore) LatestProtocol(ctx context.Context, prefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest string
	var latestID int64
	for id, ticket := range s.tickets {
		if strings.HasPrefix(ticket.Protocol, prefix) && id > latestID {
			latest = ticket.Protocol
			latestID = id
		}
	}
	return latest, nil
}

func (s *memStore) AcquireProtocolLock(ctx context.Context, year int) error { return nil }

type memLedger struct{ store *memStore }

func (l memLedger) Create(ctx context.Context, entry *domain.HistoryEntry) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.ledgerID++
	entry.ID = l.store.ledgerID
	entry.CreatedAt = time.Now().UTC()
	l.store.ledger = append(l.store.ledger, *entry)
	return nil
}

func (l memLedger) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.HistoryEntry, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	var result []domain.HistoryEntry
	for _, entry := range l.store.ledger {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (l memLedger) GetByID(ctx context.Context, id int64) (*domain.HistoryEntry, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	for _, entry := range l.store.ledger {
		if entry.ID == id {
			e := entry
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memComments struct{ store *memStore }

func (m memComments) Create(ctx context.Context, comment *domain.Comment) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.comment++
	comment.ID = m.store.comment
	comment.CreatedAt = time.Now().UTC()
	comment.UpdatedAt = comment.CreatedAt
	m.store.comments[comment.ID] = *comment
	return nil
}

func (m memComments) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	comment, ok := m.store.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &comment, nil
}

func (m memComments) ListByTicket(ctx context.Context, ticketID int64, limit, offset int) ([]domain.Comment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []domain.Comment
	for _, comment := range m.store.comments {
		if comment.TicketID == ticketID {
			result = append(result, comment)
		}
	}
	return result, nil
}

func (m memComments) Update(ctx context.Context, comment *domain.Comment) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.comments[comment.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.store.comments[comment.ID] = *comment
	return nil
}

func (m memComments) Delete(ctx context.Context, id int64) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.store.comments, id)
	return nil
}

type memAttachments struct{ store *memStore }

func (m memAttachments) Create(ctx context.Context, attachment *domain.Attachment) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.attach++
	attachment.ID = m.store.attach
	attachment.CreatedAt = time.Now().UTC()
	m.store.attachments = append(m.store.attachments, *attachment)
	return nil
}

func (m memAttachments) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Attachment, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []domain.Attachment
	for _, attachment := range m.store.attachments {
		if attachment.TicketID == ticketID {
			result = append(result, attachment)
		}
	}
	return result, nil
}

type directTx struct{ mu sync.Mutex }

func (t *directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := newMemStore()
	clock, err := service.NewResolutionClock("UTC")
	require.NoError(t, err)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     store,
		HistoryRepo:    memLedger{store},
		CommentRepo:    memComments{store},
		AttachmentRepo: memAttachments{store},
		Tx:             &directTx{},
		Allocator:      service.NewProtocolAllocator(store),
		Clock:          clock,
		Dispatcher:     events.NewInMemoryDispatcher(),
	})

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler("helpdesk-test", "test", nil, nil),
		Tickets:  handlers.NewTicketsHandler(ticketService),
		Comments: handlers.NewCommentsHandler(ticketService),
		History:  handlers.NewHistoryHandler(ticketService),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, userID string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusNoContent && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func createTicketViaAPI(t *testing.T, app *fiber.App) map[string]any {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/tickets", map[string]any{
		"requester_id": 1,
		"title":        "monitor flickering",
		"description":  "screen flickers after the last update",
		"priority":     "HIGH",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	return data
}

func TestAPI_createAndFetchTicket(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)

	assert.Equal(t, "OPEN", data["status"])
	protocol, _ := data["protocol"].(string)
	assert.True(t, strings.HasPrefix(protocol, "TICK-"), "protocol %q", protocol)

	id := int64(data["id"].(float64))
	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := body["data"].(map[string]any)
	assert.Equal(t, protocol, fetched["protocol"])

	resp, body = doJSON(t, app, http.MethodGet, "/tickets/protocol/"+protocol, nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, data["id"], body["data"].(map[string]any)["id"])
}

func TestAPI_notFoundEnvelope(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/tickets/999", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestAPI_updateRequiresActor(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))

	resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/tickets/%d", id), map[string]any{
		"status": "IN_PROGRESS",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestAPI_resolveStampsResolution(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))

	resp, body := doJSON(t, app, http.MethodPut, fmt.Sprintf("/tickets/%d", id), map[string]any{
		"status":   "RESOLVED",
		"solution": "replaced the cable",
	}, "7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := body["data"].(map[string]any)
	assert.Equal(t, "RESOLVED", updated["status"])
	assert.NotNil(t, updated["resolved_at"])
	assert.NotNil(t, updated["resolution_minutes"])
	assert.Equal(t, "replaced the cable", updated["solution"])
}

func TestAPI_cancelConflictOnSecondCall(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))
	path := fmt.Sprintf("/tickets/%d/cancel", id)

	resp, body := doJSON(t, app, http.MethodPost, path, nil, "3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["data"].(map[string]any)["cancelled"])

	resp, body = doJSON(t, app, http.MethodPost, path, nil, "3")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", body["error"].(map[string]any)["code"])
}

func TestAPI_historyLedger(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))

	resp, _ := doJSON(t, app, http.MethodPut, fmt.Sprintf("/tickets/%d", id), map[string]any{
		"status": "IN_PROGRESS",
	}, "7")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, app, http.MethodGet, fmt.Sprintf("/tickets/%d/history", id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := body["data"].([]any)
	require.Len(t, entries, 2)

	first := entries[0].(map[string]any)
	assert.Equal(t, "ticket opened", first["action"])
	second := entries[1].(map[string]any)
	assert.Equal(t, "status changed", second["action"])
	assert.Equal(t, "OPEN", second["previous_status"])
	assert.Equal(t, "IN_PROGRESS", second["new_status"])
}

func TestAPI_comments(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/tickets/%d/comments", id), map[string]any{
		"body":     "ordered a replacement cable",
		"internal": true,
	}, "4")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	comment := body["data"].(map[string]any)
	assert.Equal(t, true, comment["internal"])
	commentID := int64(comment["id"].(float64))

	resp, body = doJSON(t, app, http.MethodPut, fmt.Sprintf("/comments/%d", commentID), map[string]any{
		"body": "cable arrived",
	}, "4")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cable arrived", body["data"].(map[string]any)["body"])

	resp, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/comments/%d", commentID), nil, "4")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_attachments(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))

	resp, body := doJSON(t, app, http.MethodPost, fmt.Sprintf("/tickets/%d/attachments", id), map[string]any{
		"file_name":    "flicker.mp4",
		"storage_path": "tickets/1/flicker.mp4",
		"size_kb":      2048,
	}, "4")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attachment := body["data"].(map[string]any)
	assert.Equal(t, "flicker.mp4", attachment["file_name"])

	resp, body = doJSON(t, app, http.MethodGet, fmt.Sprintf("/tickets/%d/attachments", id), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"].([]any), 1)
}

func TestAPI_deleteTicket(t *testing.T) {
	app := newTestApp(t)
	data := createTicketViaAPI(t, app)
	id := int64(data["id"].(float64))

	resp, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/tickets/%d", id), nil, "1")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/tickets/%d", id), nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
