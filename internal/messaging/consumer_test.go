package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverRetries(t *testing.T) {
	c := &Consumer{topic: "notifications", groupID: "g", retry: Retry{Attempts: 3, Backoff: time.Millisecond}}
	msg := kafka.Message{
		Key:     []byte("o1"),
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte("order.submitted")}},
	}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := c.deliver(context.Background(), msg, func(_ context.Context, m Message) error {
			calls++
			assert.Equal(t, "order.submitted", m.EventType)
			assert.Equal(t, "o1", m.Key)
			if calls < 3 {
				return errors.New("webhook down")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		boom := errors.New("webhook down")
		err := c.deliver(context.Background(), msg, func(context.Context, Message) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops waiting when cancelled", func(t *testing.T) {
		slow := &Consumer{topic: "notifications", retry: Retry{Attempts: 5, Backoff: time.Hour}}
		ctx, cancel := context.WithCancel(context.Background())
		err := slow.deliver(ctx, msg, func(context.Context, Message) error {
			cancel()
			return errors.New("webhook down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewConsumerOptions(t *testing.T) {
	c := NewConsumer([]string{"localhost:9092"}, "notifications", "g", WithRetry(0, time.Second), WithStartOffset(kafka.FirstOffset))
	defer func() { _ = c.Close() }()

	assert.Equal(t, 1, c.retry.Attempts)
	assert.Equal(t, kafka.FirstOffset, c.reader.Config().StartOffset)
}
