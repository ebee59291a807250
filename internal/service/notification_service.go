package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// UnassignedTechnician is the name sent when no technician is set or the
// lookup fails.
const UnassignedTechnician = "unassigned"

// NotificationService forwards assignment events to the external webhook
// collaborator. Delivery is best effort: failures are logged and
// swallowed, never surfaced to the lifecycle operation that triggered
// them, and the bounded client timeout keeps a slow collaborator from
// holding requests.
type NotificationService struct {
	dispatcher events.Dispatcher
	users      repository.UserRepository
	cache      *redis.Client
	client     *http.Client
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. cache may be nil when Redis
// is not configured; name lookups then always hit the user repository.
func NewNotificationService(dispatcher events.Dispatcher, users repository.UserRepository, cache *redis.Client, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		users:      users,
		cache:      cache,
		client:     &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to the events that notify the collaborator.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
}

type webhookPayload struct {
	Protocol   string `json:"protocol"`
	Title      string `json:"title"`
	Technician string `json:"technician"`
	Action     string `json:"action"`
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, webhookPayload{
		Protocol:   payload.Protocol,
		Title:      payload.Title,
		Technician: UnassignedTechnician,
		Action:     "created",
	})
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, webhookPayload{
		Protocol:   payload.Protocol,
		Title:      payload.Title,
		Technician: n.technicianName(ctx, payload.TechnicianID),
		Action:     "assigned",
	})
	return nil
}

// technicianName resolves a display name, consulting the Redis cache
// first. Any lookup failure degrades to "unassigned" rather than blocking
// the notification.
func (n *NotificationService) technicianName(ctx context.Context, technicianID int64) string {
	key := fmt.Sprintf("technician:name:%d", technicianID)
	if n.cache != nil {
		if name, err := n.cache.Get(ctx, key).Result(); err == nil && name != "" {
			return name
		}
	}
	user, err := n.users.GetByID(ctx, technicianID)
	if err != nil {
		n.logger.Warn("technician lookup failed",
			zap.Int64("technician_id", technicianID),
			zap.Error(err))
		return UnassignedTechnician
	}
	if n.cache != nil {
		if err := n.cache.Set(ctx, key, user.Name, n.cfg.NameCacheTTL).Err(); err != nil {
			n.logger.Debug("technician name cache write failed", zap.Error(err))
		}
	}
	return user.Name
}

func (n *NotificationService) send(ctx context.Context, payload webhookPayload) {
	if n.cfg.WebhookURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("marshal webhook payload", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("protocol", payload.Protocol),
			zap.String("action", payload.Action),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("webhook returned non-success status",
			zap.String("protocol", payload.Protocol),
			zap.String("action", payload.Action),
			zap.Int("status", resp.StatusCode))
		return
	}
	n.logger.Info("webhook delivered",
		zap.String("protocol", payload.Protocol),
		zap.String("action", payload.Action))
}
