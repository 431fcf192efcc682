package messaging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var consumerTracer = otel.Tracer("messaging/consumer")

// Message is the part of a Kafka record handlers need.
type Message struct {
	Key       string
	EventType string
	Value     []byte
}

type Handler func(ctx context.Context, msg Message) error

// Retry bounds how often a failing record is handed back to the handler
// before Consume gives up on it.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

type Consumer struct {
	reader  *kafka.Reader
	topic   string
	groupID string
	retry   Retry
}

type ConsumerOption func(*Consumer, *kafka.ReaderConfig)

func WithStartOffset(offset int64) ConsumerOption {
	return func(_ *Consumer, cfg *kafka.ReaderConfig) {
		cfg.StartOffset = offset
	}
}

// WithRetry makes Consume retry a failing record attempts times, doubling
// backoff between tries.
func WithRetry(attempts int, backoff time.Duration) ConsumerOption {
	return func(c *Consumer, _ *kafka.ReaderConfig) {
		c.retry = Retry{Attempts: attempts, Backoff: backoff}
	}
}

func NewConsumer(brokers []string, topic, groupID string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		topic:   topic,
		groupID: groupID,
		retry:   Retry{Attempts: 1},
	}
	cfg := kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	}
	for _, opt := range opts {
		opt(c, &cfg)
	}
	if c.retry.Attempts < 1 {
		c.retry.Attempts = 1
	}

	c.reader = kafka.NewReader(cfg)
	return c
}

// Consume hands each record to handler and commits it once handled. When
// every attempt fails consumption stops without committing, so the record
// is redelivered on restart.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.deliver(ctx, msg, handler); err != nil {
			return fmt.Errorf("offset %d: %w", msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handler Handler) error {
	wait := c.retry.Backoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = c.processMessage(ctx, msg, attempt, handler); err == nil {
			return nil
		}
		if attempt >= c.retry.Attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, attempt int, handler Handler) error {
	carrier := NewMessageCarrier(&msg)
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, carrier)

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
			attribute.Int("messaging.delivery_attempt", attempt),
		),
	)
	defer span.End()

	err := handler(spanCtx, Message{
		Key:       string(msg.Key),
		EventType: carrier.EventType(),
		Value:     msg.Value,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
