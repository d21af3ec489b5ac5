package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
)

// NotificationService is the notify-on-event boundary: it observes domain
// events and hands them to external delivery (in-app + email stubs).
// Fire-and-forget; delivery is never retried and never fails the operation
// that produced the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	redis      *redis.Client
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service. The redis client is optional;
// without it event de-duplication is skipped.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, redisClient *redis.Client, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		redis:      redisClient,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketClaimed, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketApprovalRequested, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventFieldReportSubmitted, n.handleTicketEvent)
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	if !n.firstDelivery(ctx, event) {
		return nil
	}
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	if !n.firstDelivery(ctx, event) {
		return nil
	}
	n.logger.Info("ticket status changed",
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	// a resolution notifies the requester directly
	if payload, ok := event.Payload.(events.TicketStatusChangedPayload); ok && payload.NewStatus == domain.TicketStatusResolved {
		n.sendEmailNotificationStub(ctx, event, payload.RequesterID)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

// firstDelivery reports whether this event id has not been delivered yet,
// using a redis SETNX with TTL as the de-duplication record.
func (n *NotificationService) firstDelivery(ctx context.Context, event events.Event) bool {
	if n.redis == nil || event.ID == "" {
		return true
	}
	ttl := time.Duration(n.cfg.DedupTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ok, err := n.redis.SetNX(ctx, "notify:"+event.ID, 1, ttl).Result()
	if err != nil {
		n.logger.Warn("notification dedup unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, recipientID string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("recipient_id", recipientID),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
