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
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/assetflow/internal/config"
	"github.com/joao-fontenele/assetflow/internal/feasibility"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/media"
	"github.com/joao-fontenele/assetflow/internal/messaging"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/orders"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/reskin"
	"github.com/joao-fontenele/assetflow/internal/scanning"
	"github.com/joao-fontenele/assetflow/internal/storage/postgres"
	"github.com/joao-fontenele/assetflow/internal/telemetry"
)

const (
	serviceName    = "assetflow-api"
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

	if err := cfg.RequirePostgres(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	engineMetrics, err := telemetry.NewEngineMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create engine metrics", "error", err)
		os.Exit(1)
	}

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

	var photos *media.S3Verifier
	if cfg.MediaEnabled() {
		client, err := media.NewS3Client(ctx, media.Options{
			Bucket:          cfg.MediaBucket,
			Region:          cfg.MediaRegion,
			Endpoint:        cfg.MediaEndpoint,
			AccessKeyID:     cfg.MediaAccessKey,
			SecretAccessKey: cfg.MediaSecretKey,
		})
		if err != nil {
			logger.Error("failed to create media client", "error", err)
			os.Exit(1)
		}
		photos = media.NewS3Verifier(client, cfg.MediaBucket)
	}

	store := postgres.New(db)
	calc := pricing.NewCalculator(store, nil, nil)
	checker := feasibility.NewChecker(store, calc.Resolver(), nil)
	inventorySvc := inventory.NewService(store, logger)
	ledger := lineitems.NewLedger(store, logger)

	ordersSvc := orders.NewService(orders.Deps{
		Store:       store,
		Calculator:  calc,
		Inventory:   inventorySvc,
		Feasibility: checker,
		Ledger:      ledger,
		Notifier:    notifier,
		Metrics:     engineMetrics,
		Logger:      logger,
	})
	ledger.UseRepricer(ordersSvc)

	reskinDeps := reskin.Deps{
		Store:    store,
		Orders:   ordersSvc,
		Ledger:   ledger,
		Notifier: notifier,
		Metrics:  engineMetrics,
		Logger:   logger,
	}
	scanDeps := scanning.Deps{
		Store:    store,
		Orders:   ordersSvc,
		Notifier: notifier,
		Metrics:  engineMetrics,
		Logger:   logger,
	}
	// A nil *S3Verifier must not reach the services as a non-nil interface.
	if photos != nil {
		reskinDeps.Photos = photos
		scanDeps.Photos = photos
	}
	reskinSvc := reskin.NewService(reskinDeps)
	scanSvc := scanning.NewService(scanDeps)

	mux := http.NewServeMux()
	orders.NewHandler(ordersSvc, logger).Register(mux)
	inventory.NewHandler(inventorySvc, logger).Register(mux)
	feasibility.NewHandler(checker, logger).Register(mux)
	lineitems.NewHandler(ledger, logger).Register(mux)
	reskin.NewHandler(reskinSvc, ordersSvc, logger).Register(mux)
	scanning.NewHandler(scanSvc, logger).Register(mux)
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(telemetry.WithHTTPRoute(mux), serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api", "port", cfg.Port, "kafka", len(cfg.KafkaBrokers) > 0, "media", cfg.MediaEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
