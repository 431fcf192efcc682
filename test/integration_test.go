//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/feasibility"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/messaging"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/orders"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/scanning"
	"github.com/joao-fontenele/assetflow/internal/storage"
	"github.com/joao-fontenele/assetflow/internal/storage/postgres"
	"github.com/joao-fontenele/assetflow/internal/worker"
)

var (
	client = domain.Actor{ID: "client-1", PlatformID: "p1", Role: domain.RoleClient, CompanyID: "c1"}
	staff  = domain.Actor{ID: "ops-1", PlatformID: "p1", Role: domain.RoleLogistics}
)

type engine struct {
	store    *postgres.Store
	orders   *orders.Service
	ledger   *lineitems.Ledger
	scanning *scanning.Service
}

func newEngine(t *testing.T, store *postgres.Store, notifier notify.Dispatcher) *engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }

	calc := pricing.NewCalculator(store, nil, now)
	ledger := lineitems.NewLedger(store, logger)
	svc := orders.NewService(orders.Deps{
		Store:       store,
		Calculator:  calc,
		Inventory:   inventory.NewService(store, logger),
		Feasibility: feasibility.NewChecker(store, calc.Resolver(), now),
		Ledger:      ledger,
		Notifier:    notifier,
		Logger:      logger,
		Now:         now,
	})
	ledger.UseRepricer(svc)

	return &engine{
		store:  store,
		orders: svc,
		ledger: ledger,
		scanning: scanning.NewService(scanning.Deps{
			Store:    store,
			Orders:   svc,
			Notifier: notifier,
			Logger:   logger,
			Now:      now,
		}),
	}
}

func seedPlatform(ctx context.Context, t *testing.T) *postgres.Store {
	t.Helper()
	db := StartPostgres(ctx, t)
	Seed(ctx, t, db,
		`INSERT INTO platform_settings (platform_id, margin_percent, system_user_id) VALUES ('p1', 15, 'sys-p1')`,
		`INSERT INTO pricing_configs (id, platform_id, warehouse_ops_rate) VALUES ('pc-1', 'p1', 50)`,
		`INSERT INTO transport_rates (id, platform_id, emirate, trip_type, vehicle_type, rate)
			VALUES ('tr-1', 'p1', 'Dubai', 'ONE_WAY', 'STANDARD', 300)`,
		`INSERT INTO service_types (id, platform_id, name, category, unit, default_rate)
			VALUES ('st-assembly', 'p1', 'Assembly crew', 'ASSEMBLY', 'hour', 100)`,
	)

	store := postgres.New(db)
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateAsset(ctx, &domain.Asset{
		ID: "chair", PlatformID: "p1", Name: "Ghost chair", QRCode: "QR-CHAIR",
		TrackingMethod: domain.TrackingBatch, TotalQuantity: 10, AvailableQuantity: 10,
		Condition: domain.ConditionGreen, Status: domain.AssetAvailable,
		Volume: decimal.RequireFromString("0.5"), Weight: decimal.RequireFromString("4"),
		CreatedAt: created, UpdatedAt: created,
	}))
	return store
}

func chairs(qty int) orders.SubmitInput {
	return orders.SubmitInput{
		Contact:    domain.Contact{Name: "Dana", Email: "dana@example.com"},
		EventStart: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		EventEnd:   time.Date(2026, 5, 22, 0, 0, 0, 0, time.UTC),
		Venue:      domain.Venue{Name: "Expo hall", CityID: "dubai"},
		TripType:   domain.TripOneWay,
		Items:      []orders.ItemInput{{AssetID: "chair", Quantity: qty}},
	}
}

func move(ctx context.Context, t *testing.T, e *engine, actor domain.Actor, id string, to ...domain.OrderStatus) *domain.Order {
	t.Helper()
	var order *domain.Order
	for _, s := range to {
		var err error
		order, err = e.orders.Transition(ctx, actor, id, s, "")
		require.NoError(t, err, "transition to %s", s)
	}
	return order
}

func TestOrderLifecycleOnPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := seedPlatform(ctx, t)
	e := newEngine(t, store, &notify.Recorder{})

	order, err := e.orders.Submit(ctx, client, chairs(6))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260504-001", order.OrderCode)
	assert.Equal(t, domain.OrderStatusPricingReview, order.Status)

	item, err := e.ledger.AddCatalog(ctx, staff, lineitems.CatalogInput{
		OrderID: order.ID, ServiceTypeID: "st-assembly", Quantity: decimal.RequireFromString("2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "K-000001", item.Code)

	move(ctx, t, e, staff, order.ID, domain.OrderStatusQuoted)
	confirmed := move(ctx, t, e, client, order.ID, domain.OrderStatusConfirmed)
	assert.Equal(t, domain.FinancialQuoteAccepted, confirmed.FinancialStatus)

	bookings, err := store.ListOrderBookings(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, 6, bookings[0].Quantity)

	t.Run("overlapping order cannot take the booked units", func(t *testing.T) {
		_, err := e.orders.Submit(ctx, client, chairs(5))
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	res, err := e.orders.Cancel(ctx, staff, order.ID, orders.CancelInput{Reason: domain.CancelClientRequested})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReleasedBookings)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, stored.Status)
	assert.Equal(t, domain.FinancialCancelled, stored.FinancialStatus)
	assert.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), stored.EventStart)

	history, err := e.orders.History(ctx, staff, order.ID)
	require.NoError(t, err)
	assert.Len(t, history.Status, 4)

	second, err := e.orders.Submit(ctx, client, chairs(5))
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260504-002", second.OrderCode)
}

func TestScanningClosesReturnedOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := seedPlatform(ctx, t)
	e := newEngine(t, store, &notify.Recorder{})

	order, err := e.orders.Submit(ctx, client, chairs(3))
	require.NoError(t, err)
	move(ctx, t, e, staff, order.ID, domain.OrderStatusQuoted)
	move(ctx, t, e, client, order.ID, domain.OrderStatusConfirmed)
	move(ctx, t, e, staff, order.ID, domain.OrderStatusInPreparation)

	three := 3
	out, err := e.scanning.Outbound(ctx, staff, order.ID, scanning.ScanInput{QRCode: "QR-CHAIR", Condition: domain.ConditionGreen, Quantity: &three})
	require.NoError(t, err)
	assert.True(t, out.Progress.Complete)
	assert.Equal(t, 7, out.Asset.AvailableQuantity)

	move(ctx, t, e, staff, order.ID,
		domain.OrderStatusReadyForDelivery,
		domain.OrderStatusInTransit,
		domain.OrderStatusDelivered,
		domain.OrderStatusInUse,
		domain.OrderStatusAwaitingReturn,
	)

	two, one := 2, 1
	_, err = e.scanning.Inbound(ctx, staff, order.ID, scanning.ScanInput{QRCode: "QR-CHAIR", Condition: domain.ConditionGreen, Quantity: &two})
	require.NoError(t, err)

	_, err = e.scanning.Inbound(ctx, staff, order.ID, scanning.ScanInput{QRCode: "QR-CHAIR", Condition: domain.ConditionGreen, Quantity: &three})
	assert.ErrorIs(t, err, domain.ErrConflict)

	in, err := e.scanning.Inbound(ctx, staff, order.ID, scanning.ScanInput{QRCode: "QR-CHAIR", Condition: domain.ConditionGreen, Quantity: &one})
	require.NoError(t, err)
	assert.True(t, in.OrderClosed)
	assert.Equal(t, 10, in.Asset.AvailableQuantity)

	bookings, err := store.ListOrderBookings(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	events, err := store.ListScanEvents(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestStoreConstraints(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := seedPlatform(ctx, t)

	t.Run("duplicate qr code", func(t *testing.T) {
		now := time.Now().UTC()
		err := store.CreateAsset(ctx, &domain.Asset{
			ID: "chair-2", PlatformID: "p1", Name: "Ghost chair", QRCode: "QR-CHAIR",
			TrackingMethod: domain.TrackingIndividual, TotalQuantity: 1, AvailableQuantity: 1,
			Condition: domain.ConditionGreen, Status: domain.AssetAvailable, CreatedAt: now, UpdatedAt: now,
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("failed transaction leaves no writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithinTx(ctx, func(tx storage.Store) error {
			asset, err := tx.GetAsset(ctx, "chair")
			if err != nil {
				return err
			}
			asset.AvailableQuantity = 1
			if err := tx.UpdateAsset(ctx, asset); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		asset, err := store.GetAsset(ctx, "chair")
		require.NoError(t, err)
		assert.Equal(t, 10, asset.AvailableQuantity)
	})

	t.Run("missing rows", func(t *testing.T) {
		order, err := store.GetOrder(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, order)

		settings, err := store.GetPlatformSettings(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, settings)
		assert.Equal(t, "sys-p1", settings.SystemUserID)
		assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, settings.WeekendDays)
	})
}

func TestKafkaConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers := StartKafka(ctx, t)
	if len(brokers) == 0 {
		t.Fatal("expected at least one broker")
	}

	t.Logf("kafka brokers: %v", brokers)
}

type webhookCapture struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func (c *webhookCapture) handler(w http.ResponseWriter, r *http.Request) {
	var e domain.NotificationEvent
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
}

func (c *webhookCapture) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType
	}
	return out
}

func TestNotificationsReachWebhook(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	brokers := StartKafka(ctx, t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	topic := fmt.Sprintf("assetflow.notifications.%d", time.Now().UnixNano())

	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	store := seedPlatform(ctx, t)
	e := newEngine(t, store, notify.NewKafkaDispatcher(producer, logger))

	order, err := e.orders.Submit(ctx, client, chairs(2))
	require.NoError(t, err)
	move(ctx, t, e, staff, order.ID, domain.OrderStatusQuoted)

	capture := &webhookCapture{}
	webhook := httptest.NewServer(http.HandlerFunc(capture.handler))
	defer webhook.Close()

	consumer := messaging.NewConsumer(brokers, topic, "integration-notifier", messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()
	forwarder := worker.NewForwarder(webhook.URL, webhook.Client(), logger)

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(consumeCtx, forwarder.Handle) }()

	require.Eventually(t, func() bool {
		return len(capture.types()) >= 2
	}, 90*time.Second, 500*time.Millisecond)

	stop()
	<-done

	assert.Equal(t, []string{domain.EventOrderSubmitted, domain.EventOrderStatusChanged}, capture.types())
}
