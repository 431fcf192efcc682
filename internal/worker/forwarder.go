// Package worker forwards notification events from Kafka to the external
// notification webhook.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/messaging"
)

const (
	HeaderEventType  = "X-Event-Type"
	HeaderPlatformID = "X-Platform-ID"
)

type Forwarder struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewForwarder(webhookURL string, client *http.Client, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		webhookURL: webhookURL,
		httpClient: client,
		logger:     logger,
	}
}

// Handle posts one event to the webhook. Undecodable records and 4xx
// rejections are logged and skipped; transport errors and 5xx responses
// are returned so the record is redelivered.
func (f *Forwarder) Handle(ctx context.Context, msg messaging.Message) error {
	var event domain.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		f.logger.Error("dropping undecodable notification", "error", err, "key", msg.Key)
		return nil
	}
	if event.EventType == "" {
		event.EventType = msg.EventType
	}

	f.logger.Info("forwarding notification",
		"event_type", event.EventType,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
	)

	status, err := f.post(ctx, event)
	if err != nil {
		return fmt.Errorf("post %s for %s: %w", event.EventType, event.EntityID, err)
	}

	if status >= http.StatusInternalServerError {
		return fmt.Errorf("webhook returned status %d for %s", status, event.EntityID)
	}
	if status >= http.StatusBadRequest {
		f.logger.Warn("webhook rejected notification", "status", status, "event_type", event.EventType, "entity_id", event.EntityID)
	}
	return nil
}

func (f *Forwarder) post(ctx context.Context, event domain.NotificationEvent) (int, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventType, event.EventType)
	req.Header.Set(HeaderPlatformID, event.PlatformID)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}
