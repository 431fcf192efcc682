package orders

import (
	"context"
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
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/storage/memstore"
)

var (
	client = domain.Actor{ID: "client-1", PlatformID: "p1", Role: domain.RoleClient, CompanyID: "c1"}
	staff  = domain.Actor{ID: "ops-1", PlatformID: "p1", Role: domain.RoleLogistics}
	admin  = domain.Actor{ID: "admin-1", PlatformID: "p1", Role: domain.RoleAdmin}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	svc      *Service
	store    *memstore.Store
	ledger   *lineitems.Ledger
	recorder *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }

	store := memstore.New()
	store.PutPricingConfig(domain.PricingConfig{ID: "pc-1", PlatformID: "p1", WarehouseOpsRate: dec("50"), IsActive: true})
	store.PutTransportRate(domain.TransportRate{ID: "tr-1", PlatformID: "p1", Emirate: pricing.EmirateDubai, TripType: domain.TripOneWay, VehicleType: domain.VehicleStandard, Rate: dec("300"), IsActive: true})
	store.PutTransportRate(domain.TransportRate{ID: "tr-2", PlatformID: "p1", Emirate: pricing.EmirateDubai, TripType: domain.TripOneWay, VehicleType: domain.Vehicle7Ton, Rate: dec("650"), IsActive: true})
	store.PutServiceType(domain.ServiceType{ID: "st-assembly", PlatformID: "p1", Name: "Assembly crew", Category: domain.CategoryAssembly, Unit: "hour", DefaultRate: decptr("100"), IsActive: true})
	settings := domain.DefaultPlatformSettings("p1")
	settings.MarginPercent = dec("15")
	settings.SystemUserID = "sys-p1"
	store.PutPlatformSettings(settings)

	ctx := context.Background()
	for _, a := range []domain.Asset{
		{ID: "chair", PlatformID: "p1", Name: "Ghost chair", QRCode: "QR-CHAIR", TrackingMethod: domain.TrackingBatch, TotalQuantity: 10, AvailableQuantity: 10, Condition: domain.ConditionGreen, Status: domain.AssetAvailable, Volume: dec("0.5"), Weight: dec("4")},
		{ID: "bar", PlatformID: "p1", Name: "Bar counter", QRCode: "QR-BAR", TrackingMethod: domain.TrackingIndividual, TotalQuantity: 1, AvailableQuantity: 1, Condition: domain.ConditionRed, RefurbDaysEstimate: intptr(2), Status: domain.AssetAvailable, Volume: dec("2"), Weight: dec("80")},
	} {
		require.NoError(t, store.CreateAsset(ctx, &a))
	}

	calc := pricing.NewCalculator(store, nil, now)
	ledger := lineitems.NewLedger(store, logger)
	rec := &notify.Recorder{}
	n := 0
	svc := NewService(Deps{
		Store:       store,
		Calculator:  calc,
		Inventory:   inventory.NewService(store, logger),
		Feasibility: feasibility.NewChecker(store, calc.Resolver(), now),
		Ledger:      ledger,
		Notifier:    rec,
		Logger:      logger,
		Now:         now,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	ledger.UseRepricer(svc)
	return &fixture{svc: svc, store: store, ledger: ledger, recorder: rec}
}

func intptr(n int) *int {
	return &n
}

func chairs(qty int) SubmitInput {
	return SubmitInput{
		Contact:    domain.Contact{Name: "Dana", Email: "dana@example.com"},
		EventStart: day("2026-05-20"),
		EventEnd:   day("2026-05-22"),
		Venue:      domain.Venue{Name: "Expo hall", CityID: "dubai"},
		TripType:   domain.TripOneWay,
		Items:      []ItemInput{{AssetID: "chair", Quantity: qty}},
	}
}

func (f *fixture) submit(t *testing.T, in SubmitInput) *domain.Order {
	t.Helper()
	order, err := f.svc.Submit(context.Background(), client, in)
	require.NoError(t, err)
	return order
}

func (f *fixture) move(t *testing.T, actor domain.Actor, id string, to ...domain.OrderStatus) *domain.Order {
	t.Helper()
	var order *domain.Order
	for _, s := range to {
		var err error
		order, err = f.svc.Transition(context.Background(), actor, id, s, "")
		require.NoError(t, err, "transition to %s", s)
	}
	return order
}

func (f *fixture) breakdown(t *testing.T, id string) *pricing.Breakdown {
	t.Helper()
	order, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	b, err := pricing.Unmarshal(order.Pricing)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (f *fixture) seedOrder(t *testing.T, id, platformID string, status domain.OrderStatus, end string) {
	t.Helper()
	require.NoError(t, f.store.CreateOrder(context.Background(), &domain.Order{
		ID:              id,
		PlatformID:      platformID,
		OrderCode:       "ORD-SEED-" + id,
		CompanyID:       "c1",
		Status:          status,
		FinancialStatus: domain.FinancialQuoteAccepted,
		EventStart:      day("2026-05-01"),
		EventEnd:        day(end),
	}))
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.submit(t, chairs(4))

	assert.Equal(t, "ORD-20260504-001", order.OrderCode)
	assert.Equal(t, domain.OrderStatusPricingReview, order.Status)
	assert.Equal(t, domain.FinancialPendingQuote, order.FinancialStatus)
	assert.Equal(t, "c1", order.CompanyID)
	assert.Equal(t, "client-1", order.RequesterID)
	assert.Equal(t, domain.VehicleStandard, order.VehicleType)
	assert.Equal(t, "2.000", order.TotalVolume.StringFixed(3))
	assert.Equal(t, "16.00", order.TotalWeight.StringFixed(2))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Ghost chair", order.Items[0].AssetName)
	assert.Nil(t, order.Items[0].RefurbDaysSnapshot)

	b := f.breakdown(t, order.ID)
	assert.Equal(t, pricing.KindEstimate, b.Kind)
	assert.Equal(t, "100.00", b.BaseOperations.StringFixed(2))
	assert.Equal(t, "400.00", b.LogisticsSubtotal.StringFixed(2))
	assert.Equal(t, "60.00", b.MarginAmount.StringFixed(2))
	assert.Equal(t, "460.00", b.Total.StringFixed(2))

	history, err := f.svc.History(ctx, client, order.ID)
	require.NoError(t, err)
	require.Len(t, history.Status, 1)
	assert.Equal(t, domain.OrderStatusPricingReview, history.Status[0].Status)
	require.Len(t, history.Financial, 1)
	assert.Equal(t, domain.FinancialPendingQuote, history.Financial[0].Status)

	bookings, err := f.store.ListOrderBookings(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings, "submission does not book inventory")

	assert.Equal(t, []string{domain.EventOrderSubmitted}, f.recorder.Types())

	second := f.submit(t, chairs(1))
	assert.Equal(t, "ORD-20260504-002", second.OrderCode)
}

func TestOrderCodesShareOneDailySequenceAcrossPlatforms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutPricingConfig(domain.PricingConfig{ID: "pc-2", PlatformID: "p2", WarehouseOpsRate: dec("40"), IsActive: true})
	require.NoError(t, f.store.CreateAsset(ctx, &domain.Asset{ID: "stool", PlatformID: "p2", Name: "Bar stool", QRCode: "QR-STOOL", TrackingMethod: domain.TrackingBatch, TotalQuantity: 20, AvailableQuantity: 20, Condition: domain.ConditionGreen, Status: domain.AssetAvailable, Volume: dec("0.2"), Weight: dec("3")}))
	other := domain.Actor{ID: "client-2", PlatformID: "p2", Role: domain.RoleClient, CompanyID: "c2"}
	stools := chairs(2)
	stools.Items = []ItemInput{{AssetID: "stool", Quantity: 2}}

	first := f.submit(t, chairs(1))
	second, err := f.svc.Submit(ctx, other, stools)
	require.NoError(t, err)
	third := f.submit(t, chairs(1))

	assert.Equal(t, "ORD-20260504-001", first.OrderCode)
	assert.Equal(t, "ORD-20260504-002", second.OrderCode)
	assert.Equal(t, "p2", second.PlatformID)
	assert.Equal(t, "ORD-20260504-003", third.OrderCode)
}

func TestSubmitRejectsShortfallWithoutWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, client, chairs(11))
	require.ErrorIs(t, err, domain.ErrConflict)

	de, ok := domain.AsError(err)
	require.True(t, ok)
	lines, ok := de.Details.([]inventory.Line)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Deficit)

	n, err := f.store.CountOrdersCreatedBetween(ctx, day("2026-05-04"), day("2026-05-05"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.recorder.Types())
}

func TestSubmitChecksFeasibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := chairs(1)
	in.EventStart = day("2026-05-05")
	in.EventEnd = day("2026-05-05")
	in.Items = []ItemInput{{AssetID: "bar", Quantity: 1}}

	_, err := f.svc.Submit(ctx, client, in)
	require.ErrorIs(t, err, domain.ErrValidation)
	de, _ := domain.AsError(err)
	issues, ok := de.Details.([]feasibility.Issue)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, feasibility.ModeMandatoryRed, issues[0].MaintenanceMode)
	assert.Equal(t, "2026-05-07", issues[0].EarliestFeasibleDate)

	in.EventStart = day("2026-05-20")
	in.EventEnd = day("2026-05-20")
	order, err := f.svc.Submit(ctx, client, in)
	require.NoError(t, err)
	require.NotNil(t, order.Items[0].RefurbDaysSnapshot)
	assert.Equal(t, 2, *order.Items[0].RefurbDaysSnapshot)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  domain.Actor
		mutate func(in *SubmitInput)
		want   error
	}{
		{"no items", client, func(in *SubmitInput) { in.Items = nil }, domain.ErrValidation},
		{"end before start", client, func(in *SubmitInput) { in.EventEnd = day("2026-05-19") }, domain.ErrValidation},
		{"unknown trip type", client, func(in *SubmitInput) { in.TripType = "BOTH_WAYS" }, domain.ErrValidation},
		{"zero quantity", client, func(in *SubmitInput) { in.Items[0].Quantity = 0 }, domain.ErrValidation},
		{"reskin without brand", client, func(in *SubmitInput) { in.Items[0].IsReskinRequest = true }, domain.ErrValidation},
		{"staff without company", staff, func(in *SubmitInput) {}, domain.ErrValidation},
		{"unknown asset", client, func(in *SubmitInput) { in.Items[0].AssetID = "nope" }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := chairs(1)
			tt.mutate(&in)
			_, err := f.svc.Submit(ctx, tt.actor, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetScopesByPlatformAndCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t, chairs(1))

	got, err := f.svc.Get(ctx, client, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = f.svc.Get(ctx, domain.Actor{ID: "x", PlatformID: "p1", Role: domain.RoleClient, CompanyID: "c2"}, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(ctx, domain.Actor{ID: "x", PlatformID: "p2", Role: domain.RoleAdmin}, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t, chairs(4))

	quoted := f.move(t, staff, order.ID, domain.OrderStatusQuoted)
	assert.Equal(t, domain.FinancialQuoteSent, quoted.FinancialStatus)
	assert.Equal(t, pricing.KindFull, f.breakdown(t, order.ID).Kind)

	confirmed := f.move(t, client, order.ID, domain.OrderStatusConfirmed)
	assert.Equal(t, domain.FinancialQuoteAccepted, confirmed.FinancialStatus)
	bookings, err := f.store.ListOrderBookings(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, 4, bookings[0].Quantity)
	assert.Equal(t, day("2026-05-20"), bookings[0].BlockedFrom)
	assert.Equal(t, day("2026-05-22"), bookings[0].BlockedUntil)

	f.move(t, staff, order.ID, domain.OrderStatusInPreparation)

	history, err := f.svc.History(ctx, staff, order.ID)
	require.NoError(t, err)
	var statuses []domain.OrderStatus
	for _, e := range history.Status {
		statuses = append(statuses, e.Status)
	}
	assert.Equal(t, []domain.OrderStatus{
		domain.OrderStatusPricingReview,
		domain.OrderStatusQuoted,
		domain.OrderStatusConfirmed,
		domain.OrderStatusInPreparation,
	}, statuses)
	assert.Len(t, history.Financial, 3)
	assert.Equal(t, []string{
		domain.EventOrderSubmitted,
		domain.EventOrderStatusChanged,
		domain.EventOrderStatusChanged,
		domain.EventOrderStatusChanged,
	}, f.recorder.Types())
}

func TestTransitionGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t, chairs(1))

	_, err := f.svc.Transition(ctx, client, order.ID, domain.OrderStatusQuoted, "")
	assert.ErrorIs(t, err, domain.ErrForbidden, "clients only answer quotes")

	_, err = f.svc.Transition(ctx, staff, order.ID, domain.OrderStatusConfirmed, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "not an edge of the graph")

	_, err = f.svc.Transition(ctx, staff, order.ID, domain.OrderStatusCancelled, "")
	assert.ErrorIs(t, err, domain.ErrValidation, "cancellation has its own workflow")

	got, err := f.svc.Get(ctx, staff, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPricingReview, got.Status)
}

func TestConfirmRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.submit(t, chairs(6))
	second := f.submit(t, chairs(6))
	f.move(t, staff, first.ID, domain.OrderStatusQuoted)
	f.move(t, staff, second.ID, domain.OrderStatusQuoted)

	f.move(t, client, first.ID, domain.OrderStatusConfirmed)
	_, err := f.svc.Transition(ctx, client, second.ID, domain.OrderStatusConfirmed, "")
	require.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.svc.Get(ctx, client, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusQuoted, got.Status)
	assert.Equal(t, domain.FinancialQuoteSent, got.FinancialStatus)
	bookings, err := f.store.ListOrderBookings(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestFabricationGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plain := f.submit(t, chairs(1))
	f.move(t, staff, plain.ID, domain.OrderStatusQuoted)
	f.move(t, client, plain.ID, domain.OrderStatusConfirmed)
	_, err := f.svc.Transition(ctx, staff, plain.ID, domain.OrderStatusAwaitingFabrication, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	order := f.submit(t, chairs(2))
	f.move(t, staff, order.ID, domain.OrderStatusQuoted)
	f.move(t, client, order.ID, domain.OrderStatusConfirmed)
	require.NoError(t, f.store.CreateReskin(ctx, &domain.ReskinRequest{
		ID:              "r1",
		PlatformID:      "p1",
		OrderID:         order.ID,
		OrderItemID:     order.Items[0].ID,
		OriginalAssetID: "chair",
	}))

	_, err = f.svc.Transition(ctx, staff, order.ID, domain.OrderStatusInPreparation, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got := f.move(t, staff, order.ID, domain.OrderStatusAwaitingFabrication)
	assert.Equal(t, domain.OrderStatusAwaitingFabrication, got.Status)
}

func TestClosingReleasesBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "o-ret", "p1", domain.OrderStatusAwaitingReturn, "2026-05-03")
	require.NoError(t, f.store.CreateBooking(ctx, &domain.AssetBooking{ID: "b1", AssetID: "chair", OrderID: "o-ret", Quantity: 3, BlockedFrom: day("2026-05-01"), BlockedUntil: day("2026-05-03")}))

	f.move(t, staff, "o-ret", domain.OrderStatusClosed)

	bookings, err := f.store.ListOrderBookings(ctx, "o-ret")
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, err = f.svc.Transition(ctx, staff, "o-ret", domain.OrderStatusAwaitingReturn, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "closed is terminal")
}

func TestLineItemChangesReprice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t, chairs(4))

	_, err := f.ledger.AddCatalog(ctx, admin, lineitems.CatalogInput{OrderID: order.ID, ServiceTypeID: "st-assembly", Quantity: dec("1")})
	require.NoError(t, err)
	b := f.breakdown(t, order.ID)
	assert.Equal(t, pricing.KindFull, b.Kind)
	assert.Equal(t, "500.00", b.LogisticsSubtotal.StringFixed(2))
	assert.Equal(t, "75.00", b.MarginAmount.StringFixed(2))
	assert.Equal(t, "575.00", b.Total.StringFixed(2))

	custom, err := f.ledger.AddCustom(ctx, admin, lineitems.CustomInput{OrderID: order.ID, Description: "Vinyl wrap", Category: domain.CategoryReskin, Total: dec("50")})
	require.NoError(t, err)
	b = f.breakdown(t, order.ID)
	assert.Equal(t, "75.00", b.MarginAmount.StringFixed(2), "custom charges are not marginable")
	assert.Equal(t, "625.00", b.Total.StringFixed(2))

	lines := b.Total.Sub(b.BaseOperations).Sub(b.Transport).Sub(b.MarginAmount)
	totals, err := f.ledger.Totals(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.True(t, totals.Sum().Equal(lines))

	_, err = f.ledger.Void(ctx, admin, custom.ID, "Client dropped the wrap")
	require.NoError(t, err)
	assert.Equal(t, "575.00", f.breakdown(t, order.ID).Total.StringFixed(2))
}

func TestRepriceMarginOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t, chairs(4))

	_, err := f.svc.Reprice(ctx, client, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Reprice(ctx, admin, order.ID, &pricing.MarginOverride{Percent: dec("10")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Reprice(ctx, admin, order.ID, &pricing.MarginOverride{Percent: dec("10"), Reason: "Key account rate"})
	require.NoError(t, err)
	b := f.breakdown(t, order.ID)
	assert.True(t, b.MarginOverridden)
	assert.Equal(t, "40.00", b.MarginAmount.StringFixed(2))
	assert.Equal(t, "440.00", b.Total.StringFixed(2))

	_, err = f.ledger.AddCustom(ctx, admin, lineitems.CustomInput{OrderID: order.ID, Description: "Late delivery fee", Category: domain.CategoryHandling, Total: dec("50")})
	require.NoError(t, err)
	b = f.breakdown(t, order.ID)
	assert.True(t, b.MarginOverridden, "override survives line item repricing")
	require.NotNil(t, b.MarginOverrideReason)
	assert.Equal(t, "Key account rate", *b.MarginOverrideReason)
	assert.Equal(t, "490.00", b.Total.StringFixed(2))

	f.move(t, staff, order.ID, domain.OrderStatusQuoted)
	_, err = f.svc.Reprice(ctx, admin, order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestChangeVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.submit(t, chairs(4))

	_, err := f.svc.ChangeVehicle(ctx, client, order.ID, domain.Vehicle7Ton, "Oversized bar counter")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.ChangeVehicle(ctx, staff, order.ID, domain.Vehicle7Ton, "too big")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.ChangeVehicle(ctx, staff, order.ID, domain.Vehicle10Ton, "Oversized bar counter")
	assert.ErrorIs(t, err, domain.ErrNotFound, "no 10 ton rate is defined")

	got, err := f.svc.ChangeVehicle(ctx, staff, order.ID, domain.Vehicle7Ton, "Oversized bar counter")
	require.NoError(t, err)
	assert.Equal(t, domain.Vehicle7Ton, got.VehicleType)

	b := f.breakdown(t, order.ID)
	assert.True(t, b.VehicleChanged)
	assert.Equal(t, "650.00", b.Transport.StringFixed(2))
	assert.Equal(t, "862.50", b.Total.StringFixed(2))

	_, err = f.svc.Reprice(ctx, staff, order.ID, nil)
	require.NoError(t, err)
	b = f.breakdown(t, order.ID)
	assert.Equal(t, domain.Vehicle7Ton, b.VehicleType)
	require.NotNil(t, b.VehicleChangeReason)
	assert.Equal(t, "Oversized bar counter", *b.VehicleChangeReason)
}

func TestUpdateFinancialStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "o-fin", "p1", domain.OrderStatusInUse, "2026-05-10")

	_, err := f.svc.UpdateFinancialStatus(ctx, client, "o-fin", domain.FinancialPendingInvoice, "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateFinancialStatus(ctx, admin, "o-fin", domain.FinancialPaid, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := f.svc.UpdateFinancialStatus(ctx, admin, "o-fin", domain.FinancialPendingInvoice, "Event wrapped")
	require.NoError(t, err)
	assert.Equal(t, domain.FinancialPendingInvoice, got.FinancialStatus)

	history, err := f.svc.History(ctx, admin, "o-fin")
	require.NoError(t, err)
	require.Len(t, history.Financial, 1)
	assert.Equal(t, "Event wrapped", history.Financial[0].Notes)
	assert.Empty(t, history.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.submit(t, chairs(4))
	f.move(t, staff, order.ID, domain.OrderStatusQuoted)
	f.move(t, client, order.ID, domain.OrderStatusConfirmed)

	reskinItem := "r-pending"
	require.NoError(t, f.store.CreateLineItem(ctx, &domain.LineItem{
		ID: "li-reskin", PlatformID: "p1", OrderID: order.ID, Code: "K-000042",
		Type: domain.LineItemCustom, Category: domain.CategoryReskin, ReskinRequestID: &reskinItem,
		Description: "Reskin to Acme", Total: dec("50"),
	}))
	lineItemID := "li-reskin"
	require.NoError(t, f.store.CreateReskin(ctx, &domain.ReskinRequest{ID: "r-pending", PlatformID: "p1", OrderID: order.ID, OrderItemID: order.Items[0].ID, OriginalAssetID: "chair", LineItemID: &lineItemID}))
	done := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.CreateReskin(ctx, &domain.ReskinRequest{ID: "r-done", PlatformID: "p1", OrderID: order.ID, OrderItemID: "other-item", OriginalAssetID: "chair", CompletedAt: &done}))

	t.Run("guards", func(t *testing.T) {
		_, err := f.svc.Cancel(ctx, client, order.ID, CancelInput{Reason: domain.CancelClientRequested})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = f.svc.Cancel(ctx, staff, order.ID, CancelInput{Reason: "bored"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	res, err := f.svc.Cancel(ctx, staff, order.ID, CancelInput{Reason: domain.CancelClientRequested, Notes: "Event postponed"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReleasedBookings)
	assert.Equal(t, 1, res.CancelledReskins)
	assert.Equal(t, 1, res.VoidedLineItems)
	assert.Equal(t, domain.OrderStatusCancelled, res.Order.Status)
	assert.Equal(t, domain.FinancialCancelled, res.Order.FinancialStatus)

	bookings, err := f.store.ListOrderBookings(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	pending, err := f.store.GetReskin(ctx, "r-pending")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", pending.State())
	finished, err := f.store.GetReskin(ctx, "r-done")
	require.NoError(t, err)
	assert.Equal(t, "complete", finished.State())

	li, err := f.store.GetLineItem(ctx, "li-reskin")
	require.NoError(t, err)
	assert.True(t, li.IsVoided)
	assert.Equal(t, "50.00", li.Total.StringFixed(2))

	history, err := f.svc.History(ctx, staff, order.ID)
	require.NoError(t, err)
	last := history.Status[len(history.Status)-1]
	assert.Equal(t, domain.OrderStatusCancelled, last.Status)
	assert.Equal(t, "client_requested: Event postponed", last.Notes)
	assert.Equal(t, domain.FinancialCancelled, history.Financial[len(history.Financial)-1].Status)

	types := f.recorder.Types()
	assert.Equal(t, domain.EventOrderCancelled, types[len(types)-1])

	_, err = f.svc.Cancel(ctx, staff, order.ID, CancelInput{Reason: domain.CancelOther})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCancelRefusedOnceItemsLeft(t *testing.T) {
	f := newFixture(t)
	for _, s := range []domain.OrderStatus{domain.OrderStatusReadyForDelivery, domain.OrderStatusInUse, domain.OrderStatusReturnInTransit} {
		id := "o-" + string(s)
		f.seedOrder(t, id, "p1", s, "2026-05-10")
		_, err := f.svc.Cancel(context.Background(), admin, id, CancelInput{Reason: domain.CancelOther})
		assert.ErrorIs(t, err, domain.ErrInvalidState, string(s))
	}
}

func TestAdvanceEndedEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "o-p1", "p1", domain.OrderStatusInUse, "2026-05-04")
	f.seedOrder(t, "o-p2", "p2", domain.OrderStatusInUse, "2026-05-04")
	f.seedOrder(t, "o-later", "p1", domain.OrderStatusInUse, "2026-05-05")
	f.seedOrder(t, "o-delivered", "p1", domain.OrderStatusDelivered, "2026-05-04")

	res, err := f.svc.AdvanceEndedEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", res.Day)
	assert.ElementsMatch(t, []string{"o-p1", "o-p2"}, res.Advanced)
	assert.Empty(t, res.Failed)

	for id, actor := range map[string]string{"o-p1": "sys-p1", "o-p2": "system"} {
		entries, err := f.store.ListStatusHistory(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.OrderStatusAwaitingReturn, entries[0].Status)
		assert.Equal(t, actor, entries[0].UpdatedBy)
	}

	later, err := f.store.GetOrder(ctx, "o-later")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInUse, later.Status)

	res, err = f.svc.AdvanceEndedEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Advanced, "a rerun finds nothing left to advance")
}
