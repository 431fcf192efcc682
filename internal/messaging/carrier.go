// Package messaging moves notification events over Kafka with trace context
// carried in record headers.
package messaging

import (
	"slices"

	"github.com/segmentio/kafka-go"
)

// MessageCarrier adapts Kafka headers to propagation.TextMapCarrier and
// exposes the notification event type header next to the trace context.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

func (c *MessageCarrier) index(key string) int {
	return slices.IndexFunc(c.msg.Headers, func(h kafka.Header) bool { return h.Key == key })
}

func (c *MessageCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string(c.msg.Headers[i].Value)
	}
	return ""
}

func (c *MessageCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		c.msg.Headers[i].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

// EventType returns the notification type the record was published as.
func (c *MessageCarrier) EventType() string {
	return c.Get(HeaderEventType)
}

func (c *MessageCarrier) SetEventType(eventType string) {
	c.Set(HeaderEventType, eventType)
}

func (c *MessageCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
