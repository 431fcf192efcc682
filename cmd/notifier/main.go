package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/assetflow/internal/config"
	"github.com/joao-fontenele/assetflow/internal/messaging"
	"github.com/joao-fontenele/assetflow/internal/telemetry"
	"github.com/joao-fontenele/assetflow/internal/worker"
)

const (
	serviceName    = "assetflow-notifier"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	if err := cfg.RequireKafka(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.WebhookURL == "" {
		logger.Error("NOTIFY_WEBHOOK_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.NotificationTopic, cfg.ConsumerGroup,
		messaging.WithRetry(cfg.WebhookRetries, time.Second),
	)
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   cfg.WebhookTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	forwarder := worker.NewForwarder(cfg.WebhookURL, httpClient, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notifier", "brokers", cfg.KafkaBrokers, "topic", cfg.NotificationTopic)

	if err := consumer.Consume(ctx, forwarder.Handle); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
