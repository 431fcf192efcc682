package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/messaging"
)

type webhook struct {
	mu      sync.Mutex
	headers []http.Header
	events  []domain.NotificationEvent
}

func (w *webhook) received() ([]http.Header, []domain.NotificationEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.headers, w.events
}

func newForwarder(t *testing.T, status int) (*Forwarder, *webhook) {
	t.Helper()
	hook := &webhook{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e domain.NotificationEvent
		_ = json.NewDecoder(r.Body).Decode(&e)
		hook.mu.Lock()
		hook.headers = append(hook.headers, r.Header.Clone())
		hook.events = append(hook.events, e)
		hook.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewForwarder(srv.URL, srv.Client(), logger), hook
}

func message(t *testing.T, e domain.NotificationEvent) messaging.Message {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	return messaging.Message{Key: e.EntityID, EventType: e.EventType, Value: data}
}

var cancelled = domain.NotificationEvent{
	EventType:  "order.cancelled",
	PlatformID: "p1",
	EntityType: "order",
	EntityID:   "o1",
	Payload:    map[string]any{"reason": "client_requested"},
	Timestamp:  time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
}

func TestForwarderPostsEvent(t *testing.T) {
	f, hook := newForwarder(t, http.StatusAccepted)

	require.NoError(t, f.Handle(context.Background(), message(t, cancelled)))

	headers, events := hook.received()
	require.Len(t, headers, 1)
	assert.Equal(t, "order.cancelled", headers[0].Get(HeaderEventType))
	assert.Equal(t, "p1", headers[0].Get(HeaderPlatformID))
	assert.Equal(t, "application/json", headers[0].Get("Content-Type"))
	assert.Equal(t, "o1", events[0].EntityID)
	assert.Equal(t, "client_requested", events[0].Payload["reason"])
}

func TestForwarderFallsBackToHeaderEventType(t *testing.T) {
	f, hook := newForwarder(t, http.StatusOK)
	e := cancelled
	e.EventType = ""
	msg := message(t, e)
	msg.EventType = "order.status_changed"

	require.NoError(t, f.Handle(context.Background(), msg))
	headers, _ := hook.received()
	require.Len(t, headers, 1)
	assert.Equal(t, "order.status_changed", headers[0].Get(HeaderEventType))
}

func TestForwarderErrors(t *testing.T) {
	t.Run("server error is retried", func(t *testing.T) {
		f, _ := newForwarder(t, http.StatusBadGateway)
		assert.Error(t, f.Handle(context.Background(), message(t, cancelled)))
	})

	t.Run("client error is skipped", func(t *testing.T) {
		f, hook := newForwarder(t, http.StatusUnprocessableEntity)
		assert.NoError(t, f.Handle(context.Background(), message(t, cancelled)))
		headers, _ := hook.received()
		assert.Len(t, headers, 1)
	})

	t.Run("garbage is skipped", func(t *testing.T) {
		f, hook := newForwarder(t, http.StatusOK)
		assert.NoError(t, f.Handle(context.Background(), messaging.Message{Key: "o1", Value: []byte("{")}))
		headers, _ := hook.received()
		assert.Empty(t, headers)
	})

	t.Run("unreachable webhook", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		f := NewForwarder("http://127.0.0.1:1", &http.Client{Timeout: time.Second}, logger)
		assert.Error(t, f.Handle(context.Background(), message(t, cancelled)))
	})
}
