package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vibecodezero/subscriber-service/internal/config"
	"github.com/vibecodezero/subscriber-service/internal/events"
	"github.com/vibecodezero/subscriber-service/internal/observability"
)

// AnalyticsService consumes subscription lifecycle events: it records
// per-event counters, writes structured analytics logs, and forwards each
// event to an external webhook when one is configured.
type AnalyticsService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.AnalyticsConfig
	client     *http.Client
}

// NewAnalyticsService creates the service.
func NewAnalyticsService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.AnalyticsConfig) *AnalyticsService {
	return &AnalyticsService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes to all lifecycle events.
func (a *AnalyticsService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSubscriberCreated, a.handleEvent)
	a.dispatcher.Subscribe(events.EventSubscriberReactivated, a.handleEvent)
	a.dispatcher.Subscribe(events.EventSubscriberUnsubscribed, a.handleEvent)
}

func (a *AnalyticsService) handleEvent(ctx context.Context, event events.Event) error {
	a.metrics.RecordEvent(string(event.Type))
	a.logger.Info("analytics event",
		zap.String("event_type", string(event.Type)),
		zap.String("subscriber_id", event.SubscriberID),
		zap.Time("timestamp", event.Timestamp))
	a.forwardWebhook(ctx, event)
	return nil
}

func (a *AnalyticsService) forwardWebhook(ctx context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		a.logger.Warn("marshal analytics event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		a.logger.Warn("build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("deliver analytics webhook", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		a.logger.Warn("analytics webhook rejected", zap.Int("status", resp.StatusCode))
	}
}
