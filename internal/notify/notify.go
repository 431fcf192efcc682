// Package notify hands engine events to the notification pipeline. Delivery
// is fire-and-forget: failures are logged and never reach the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.NotificationEvent)
}

// Publisher is the subset of messaging.Producer the Kafka dispatcher uses.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

const publishTimeout = 5 * time.Second

type KafkaDispatcher struct {
	pub    Publisher
	logger *slog.Logger
}

func NewKafkaDispatcher(pub Publisher, logger *slog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{pub: pub, logger: logger}
}

// Dispatch publishes event keyed by its entity id. The request context's
// cancellation is dropped so a finished request does not abort delivery.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, event domain.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := d.pub.Publish(ctx, event.EntityID, event.EventType, event); err != nil {
		d.logger.Error("failed to publish notification",
			"error", err,
			"event_type", event.EventType,
			"entity_id", event.EntityID,
		)
		return
	}
	d.logger.Debug("notification published", "event_type", event.EventType, "entity_id", event.EntityID)
}

// LogDispatcher only logs events. It is used when no broker is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event domain.NotificationEvent) {
	d.logger.Info("notification",
		"event_type", event.EventType,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
	)
}

// Recorder keeps dispatched events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (r *Recorder) Dispatch(_ context.Context, event domain.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []domain.NotificationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.NotificationEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types recorded so far, in order.
func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}
