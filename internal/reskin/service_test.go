package reskin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/feasibility"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/orders"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/storage/memstore"
)

var (
	client = domain.Actor{ID: "client-1", PlatformID: "p1", Role: domain.RoleClient, CompanyID: "c1"}
	staff  = domain.Actor{ID: "ops-1", PlatformID: "p1", Role: domain.RoleLogistics}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type photoCheck struct {
	err  error
	seen []string
}

func (p *photoCheck) Verify(_ context.Context, keys []string) error {
	p.seen = append(p.seen, keys...)
	return p.err
}

type fixture struct {
	svc      *Service
	orders   *orders.Service
	store    *memstore.Store
	photos   *photoCheck
	recorder *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }

	store := memstore.New()
	store.PutPricingConfig(domain.PricingConfig{ID: "pc-1", PlatformID: "p1", WarehouseOpsRate: dec("50"), IsActive: true})
	store.PutTransportRate(domain.TransportRate{ID: "tr-1", PlatformID: "p1", Emirate: pricing.EmirateDubai, TripType: domain.TripOneWay, VehicleType: domain.VehicleStandard, Rate: dec("300"), IsActive: true})
	settings := domain.DefaultPlatformSettings("p1")
	settings.MarginPercent = dec("15")
	store.PutPlatformSettings(settings)

	packaging := "Crated"
	require.NoError(t, store.CreateAsset(context.Background(), &domain.Asset{
		ID:                "chair",
		PlatformID:        "p1",
		CompanyID:         "c1",
		Name:              "Ghost chair",
		QRCode:            "QR-CHAIR",
		TrackingMethod:    domain.TrackingBatch,
		TotalQuantity:     10,
		AvailableQuantity: 10,
		Condition:         domain.ConditionOrange,
		Status:            domain.AssetAvailable,
		Volume:            dec("0.5"),
		Weight:            dec("4"),
		Dimensions:        domain.Dimensions{Length: dec("45"), Width: dec("50"), Height: dec("90")},
		Packaging:         &packaging,
	}))

	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	calc := pricing.NewCalculator(store, nil, now)
	ledger := lineitems.NewLedger(store, logger)
	rec := &notify.Recorder{}
	ordersSvc := orders.NewService(orders.Deps{
		Store:       store,
		Calculator:  calc,
		Inventory:   inventory.NewService(store, logger),
		Feasibility: feasibility.NewChecker(store, calc.Resolver(), now),
		Ledger:      ledger,
		Notifier:    rec,
		Logger:      logger,
		Now:         now,
		NewID:       newID,
	})
	ledger.UseRepricer(ordersSvc)

	photos := &photoCheck{}
	svc := NewService(Deps{
		Store:    store,
		Orders:   ordersSvc,
		Ledger:   ledger,
		Photos:   photos,
		Notifier: rec,
		Logger:   logger,
		Now:      now,
		NewID:    newID,
	})
	return &fixture{svc: svc, orders: ordersSvc, store: store, photos: photos, recorder: rec}
}

// submit places a two-chair order whose only item asks for a reskin.
func (f *fixture) submit(t *testing.T) *domain.Order {
	t.Helper()
	brand := "Acme Co"
	notes := "Logo on the backrest"
	order, err := f.orders.Submit(context.Background(), client, orders.SubmitInput{
		Contact:    domain.Contact{Name: "Dana", Email: "dana@example.com"},
		EventStart: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		EventEnd:   time.Date(2026, 5, 22, 0, 0, 0, 0, time.UTC),
		Venue:      domain.Venue{Name: "Expo hall", CityID: "dubai"},
		TripType:   domain.TripOneWay,
		Items: []orders.ItemInput{{
			AssetID:           "chair",
			Quantity:          2,
			IsReskinRequest:   true,
			ReskinCustomBrand: &brand,
			ReskinNotes:       &notes,
		}},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) process(t *testing.T, order *domain.Order) *domain.ReskinRequest {
	t.Helper()
	r, err := f.svc.Process(context.Background(), staff, ProcessInput{OrderItemID: order.Items[0].ID, Cost: dec("500")})
	require.NoError(t, err)
	return r
}

// awaitFabrication quotes and confirms the order, then parks it in
// AWAITING_FABRICATION.
func (f *fixture) awaitFabrication(t *testing.T, orderID string) {
	t.Helper()
	ctx := context.Background()
	for _, step := range []struct {
		actor domain.Actor
		to    domain.OrderStatus
	}{
		{staff, domain.OrderStatusQuoted},
		{client, domain.OrderStatusConfirmed},
		{staff, domain.OrderStatusAwaitingFabrication},
	} {
		_, err := f.orders.Transition(ctx, step.actor, orderID, step.to, "")
		require.NoError(t, err, "transition to %s", step.to)
	}
}

func (f *fixture) total(t *testing.T, orderID string) string {
	t.Helper()
	order, err := f.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	b, err := pricing.Unmarshal(order.Pricing)
	require.NoError(t, err)
	return b.Total.StringFixed(2)
}

func TestProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t)
	assert.Equal(t, "402.50", f.total(t, order.ID))

	r := f.process(t, order)

	assert.Equal(t, "chair", r.OriginalAssetID)
	assert.Equal(t, "Ghost chair", r.OriginalAssetName)
	assert.Equal(t, "Acme Co", *r.TargetBrandCustom)
	assert.Equal(t, "Logo on the backrest", *r.ClientNotes)
	assert.Equal(t, "pending", r.State())
	require.NotNil(t, r.LineItemID)

	li, err := f.store.GetLineItem(ctx, *r.LineItemID)
	require.NoError(t, err)
	assert.Equal(t, domain.LineItemCustom, li.Type)
	assert.Equal(t, domain.CategoryReskin, li.Category)
	assert.Equal(t, "500.00", li.Total.StringFixed(2))
	assert.Equal(t, r.ID, *li.ReskinRequestID)

	assert.Equal(t, "902.50", f.total(t, order.ID), "reskin charge is added after margin")

	_, err = f.svc.Process(ctx, staff, ProcessInput{OrderItemID: order.Items[0].ID, Cost: dec("10")})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestProcessRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t)

	require.NoError(t, f.store.CreateOrderItem(ctx, &domain.OrderItem{ID: "plain", OrderID: order.ID, PlatformID: "p1", AssetID: "chair", Quantity: 1}))

	tests := []struct {
		name  string
		actor domain.Actor
		in    ProcessInput
		want  error
	}{
		{"client", client, ProcessInput{OrderItemID: order.Items[0].ID, Cost: dec("1")}, domain.ErrForbidden},
		{"negative cost", staff, ProcessInput{OrderItemID: order.Items[0].ID, Cost: dec("-1")}, domain.ErrValidation},
		{"unknown item", staff, ProcessInput{OrderItemID: "nope", Cost: dec("1")}, domain.ErrNotFound},
		{"not flagged", staff, ProcessInput{OrderItemID: "plain", Cost: dec("1")}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Process(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t)
	r := f.process(t, order)
	f.awaitFabrication(t, order.ID)

	res, err := f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: "Acme ghost chair", Photos: []string{"reskins/r1/front.jpg"}})
	require.NoError(t, err)

	assert.True(t, res.OrderAdvanced)
	assert.Equal(t, "complete", res.Reskin.State())
	assert.Equal(t, []string{"reskins/r1/front.jpg"}, f.photos.seen)

	created := res.NewAsset
	assert.Equal(t, "Acme ghost chair", created.Name)
	assert.Equal(t, domain.ConditionGreen, created.Condition)
	assert.Nil(t, created.ConditionNotes)
	assert.NotEqual(t, "QR-CHAIR", created.QRCode)
	assert.Equal(t, "chair", *created.TransformedFrom)
	assert.Equal(t, 10, created.TotalQuantity)
	assert.Equal(t, "0.5", created.Volume.String())
	assert.Equal(t, "90", created.Dimensions.Height.String())
	assert.Equal(t, "Crated", *created.Packaging)

	original, err := f.store.GetAsset(ctx, "chair")
	require.NoError(t, err)
	assert.Equal(t, domain.AssetTransformed, original.Status)
	assert.Equal(t, created.ID, *original.TransformedTo)

	item, err := f.store.GetOrderItem(ctx, order.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, item.AssetID)
	assert.Equal(t, "Acme ghost chair", item.AssetName)

	bookings, err := f.store.ListOrderBookings(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, created.ID, bookings[0].AssetID)

	got, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInPreparation, got.Status)
	assert.Contains(t, f.recorder.Types(), domain.EventReskinCompleted)

	_, err = f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: "Again", Photos: []string{"x.jpg"}})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.svc.Cancel(ctx, staff, r.ID, CancelInput{Reason: "changed mind"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCompleteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.process(t, f.submit(t))

	_, err := f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: " ", Photos: []string{"a.jpg"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: "Acme chair"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.photos.err = domain.Validation("photo a.jpg was not uploaded")
	_, err = f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: "Acme chair", Photos: []string{"a.jpg"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	stored, err := f.store.GetReskin(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, stored.Pending())
}

func TestCompleteLeavesOrderBeforeFabrication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t)
	r := f.process(t, order)

	res, err := f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: "Acme chair", Photos: []string{"a.jpg"}})
	require.NoError(t, err)
	assert.False(t, res.OrderAdvanced)

	got, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPricingReview, got.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t)
	r := f.process(t, order)

	_, err := f.svc.Cancel(ctx, staff, r.ID, CancelInput{Reason: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	res, err := f.svc.Cancel(ctx, staff, r.ID, CancelInput{Reason: "Client dropped the rebrand"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Reskin.State())
	assert.False(t, res.CancelOrder)

	li, err := f.store.GetLineItem(ctx, *r.LineItemID)
	require.NoError(t, err)
	assert.True(t, li.IsVoided)
	assert.Equal(t, "Reskin cancelled: Client dropped the rebrand", *li.VoidReason)
	assert.Equal(t, "402.50", f.total(t, order.ID))

	item, err := f.store.GetOrderItem(ctx, order.Items[0].ID)
	require.NoError(t, err)
	assert.False(t, item.IsReskinRequest)
	assert.Nil(t, item.ReskinCustomBrand)
	assert.Equal(t, "chair", item.AssetID)

	_, err = f.svc.Cancel(ctx, staff, r.ID, CancelInput{Reason: "Client dropped the rebrand"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.svc.Complete(ctx, staff, r.ID, CompleteInput{NewAssetName: "Acme chair", Photos: []string{"a.jpg"}})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCancelDuringFabrication(t *testing.T) {
	t.Run("advances once nothing is pending", func(t *testing.T) {
		f := newFixture(t)
		order := f.submit(t)
		r := f.process(t, order)
		f.awaitFabrication(t, order.ID)

		res, err := f.svc.Cancel(context.Background(), staff, r.ID, CancelInput{Reason: "Supplier out of vinyl"})
		require.NoError(t, err)
		assert.True(t, res.OrderAdvanced)

		got, err := f.store.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusInPreparation, got.Status)
	})

	t.Run("leaves the order to the caller", func(t *testing.T) {
		f := newFixture(t)
		order := f.submit(t)
		r := f.process(t, order)
		f.awaitFabrication(t, order.ID)

		res, err := f.svc.Cancel(context.Background(), staff, r.ID, CancelInput{Reason: "Supplier out of vinyl", CancelOrder: true})
		require.NoError(t, err)
		assert.True(t, res.CancelOrder)
		assert.False(t, res.OrderAdvanced)

		got, err := f.store.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusAwaitingFabrication, got.Status)
	})
}

func TestListForOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t)

	got, err := f.svc.ListForOrder(ctx, client, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	r := f.process(t, order)
	got, err = f.svc.ListForOrder(ctx, client, order.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)

	other := domain.Actor{ID: "x", PlatformID: "p1", Role: domain.RoleClient, CompanyID: "c9"}
	_, err = f.svc.ListForOrder(ctx, other, order.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
