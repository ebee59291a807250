package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

type fakeUserRepo struct {
	users map[int64]domain.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []webhookPayload
	server   *httptest.Server
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	rec := &webhookRecorder{}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode webhook payload: %v", err)
		}
		rec.mu.Lock()
		rec.payloads = append(rec.payloads, payload)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func (r *webhookRecorder) received() []webhookPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]webhookPayload{}, r.payloads...)
}

func newNotificationFixture(t *testing.T, webhookURL string, users map[int64]domain.User) (*NotificationService, events.Dispatcher) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	service := NewNotificationService(dispatcher, &fakeUserRepo{users: users}, nil, zap.NewNop(), config.NotificationConfig{
		WebhookURL:     webhookURL,
		TimeoutSeconds: 2,
	})
	service.RegisterHandlers()
	return service, dispatcher
}

func TestNotification_ticketCreated(t *testing.T) {
	rec := newWebhookRecorder(t)
	_, dispatcher := newNotificationFixture(t, rec.server.URL, nil)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{
			Protocol: "TICK-2025-0001",
			Title:    "printer jammed",
			Priority: domain.TicketPriorityHigh,
		},
	})
	require.NoError(t, err)

	payloads := rec.received()
	require.Len(t, payloads, 1)
	assert.Equal(t, "created", payloads[0].Action)
	assert.Equal(t, "TICK-2025-0001", payloads[0].Protocol)
	assert.Equal(t, UnassignedTechnician, payloads[0].Technician)
}

func TestNotification_ticketAssigned(t *testing.T) {
	rec := newWebhookRecorder(t)
	users := map[int64]domain.User{
		7: {ID: 7, Name: "Dana Reis", Active: true},
	}
	_, dispatcher := newNotificationFixture(t, rec.server.URL, users)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventTicketAssigned,
		Payload: events.TicketAssignedPayload{
			Protocol:     "TICK-2025-0002",
			Title:        "vpn down",
			TechnicianID: 7,
		},
	})
	require.NoError(t, err)

	payloads := rec.received()
	require.Len(t, payloads, 1)
	assert.Equal(t, "assigned", payloads[0].Action)
	assert.Equal(t, "Dana Reis", payloads[0].Technician)
}

func TestNotification_lookupFailureDegradesToUnassigned(t *testing.T) {
	rec := newWebhookRecorder(t)
	_, dispatcher := newNotificationFixture(t, rec.server.URL, nil)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type: events.EventTicketAssigned,
		Payload: events.TicketAssignedPayload{
			Protocol:     "TICK-2025-0003",
			Title:        "lost badge",
			TechnicianID: 404,
		},
	})
	require.NoError(t, err)

	payloads := rec.received()
	require.Len(t, payloads, 1)
	assert.Equal(t, UnassignedTechnician, payloads[0].Technician)
}

func TestNotification_noWebhookConfigured(t *testing.T) {
	_, dispatcher := newNotificationFixture(t, "", nil)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{Protocol: "TICK-2025-0004"},
	})
	assert.NoError(t, err)
}

func TestNotification_deliveryFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	_, dispatcher := newNotificationFixture(t, server.URL, nil)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{Protocol: "TICK-2025-0005"},
	})
	assert.NoError(t, err)
}
