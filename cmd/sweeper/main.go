package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/assetflow/internal/config"
	"github.com/joao-fontenele/assetflow/internal/feasibility"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/messaging"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/orders"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/storage/postgres"
	"github.com/joao-fontenele/assetflow/internal/telemetry"
)

const (
	serviceName    = "assetflow-sweeper"
	serviceVersion = "0.1.0"
)

// The sweeper runs once and exits unless SWEEP_INTERVAL (or -interval) is
// set, in which case it repeats until signalled.
func main() {
	interval := flag.Duration("interval", 0, "repeat the sweep on this interval")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	if *interval == 0 {
		*interval = cfg.SweepInterval
	}

	if err := cfg.RequirePostgres(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	db, err := telemetry.OpenDB("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var notifier notify.Dispatcher = notify.NewLogDispatcher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.NotificationTopic)
		defer func() { _ = producer.Close() }()
		notifier = notify.NewKafkaDispatcher(producer, logger)
	}

	metrics, err := telemetry.NewEngineMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create engine metrics", "error", err)
		os.Exit(1)
	}

	store := postgres.New(db)
	calc := pricing.NewCalculator(store, nil, nil)
	ledger := lineitems.NewLedger(store, logger)
	svc := orders.NewService(orders.Deps{
		Store:       store,
		Calculator:  calc,
		Inventory:   inventory.NewService(store, logger),
		Feasibility: feasibility.NewChecker(store, calc.Resolver(), nil),
		Ledger:      ledger,
		Notifier:    notifier,
		Metrics:     metrics,
		Logger:      logger,
	})
	ledger.UseRepricer(svc)

	if err := sweep(ctx, svc); err != nil {
		logger.Error("sweep failed", "error", err)
		os.Exit(1)
	}
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	logger.Info("sweeper scheduled", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			if err := sweep(ctx, svc); err != nil {
				logger.Error("sweep failed", "error", err)
			}
		}
	}
}

func sweep(ctx context.Context, svc *orders.Service) error {
	_, err := svc.AdvanceEndedEvents(ctx)
	return err
}
