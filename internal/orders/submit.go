package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/feasibility"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

type ItemInput struct {
	AssetID             string                      `json:"asset_id"`
	Quantity            int                         `json:"quantity"`
	CollectionID        *string                     `json:"from_collection,omitempty"`
	IsReskinRequest     bool                        `json:"is_reskin_request"`
	ReskinTargetBrandID *string                     `json:"reskin_target_brand_id,omitempty"`
	ReskinCustomBrand   *string                     `json:"reskin_target_brand_custom,omitempty"`
	ReskinNotes         *string                     `json:"reskin_notes,omitempty"`
	MaintenanceDecision *domain.MaintenanceDecision `json:"maintenance_decision,omitempty"`
}

type SubmitInput struct {
	// CompanyID is taken from the actor for client submissions.
	CompanyID      string             `json:"company_id"`
	BrandID        *string            `json:"brand_id,omitempty"`
	Contact        domain.Contact     `json:"contact"`
	EventStart     time.Time          `json:"event_start_date"`
	EventEnd       time.Time          `json:"event_end_date"`
	Venue          domain.Venue       `json:"venue"`
	TripType       domain.TripType    `json:"trip_type"`
	DeliveryWindow *domain.TimeWindow `json:"delivery_window,omitempty"`
	PickupWindow   *domain.TimeWindow `json:"pickup_window,omitempty"`
	Items          []ItemInput        `json:"items"`
}

func (in SubmitInput) validate() error {
	if len(in.Items) == 0 {
		return domain.Validation("an order needs at least one item")
	}
	if in.EventStart.IsZero() || in.EventEnd.IsZero() {
		return domain.Validation("event start and end dates are required")
	}
	if in.EventEnd.Before(in.EventStart) {
		return domain.Validation("event end date is before the start date")
	}
	if !in.TripType.Valid() {
		return domain.Validation("unknown trip type %q", in.TripType)
	}
	if strings.TrimSpace(in.Venue.CityID) == "" {
		return domain.Validation("venue city is required")
	}
	for i, it := range in.Items {
		if it.AssetID == "" {
			return domain.Validation("item %d: asset_id is required", i)
		}
		if it.Quantity <= 0 {
			return domain.Validation("item %d: quantity must be positive", i)
		}
		if it.IsReskinRequest && it.ReskinTargetBrandID == nil && (it.ReskinCustomBrand == nil || strings.TrimSpace(*it.ReskinCustomBrand) == "") {
			return domain.Validation("item %d: a reskin request needs a target brand", i)
		}
		if d := it.MaintenanceDecision; d != nil && *d != domain.MaintenanceFixInOrder && *d != domain.MaintenanceUseAsIs {
			return domain.Validation("item %d: unknown maintenance decision %q", i, *d)
		}
	}
	return nil
}

// Submit admits a new order straight into pricing review. Feasibility and
// availability are checked for every item before anything is written.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, in SubmitInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.submit", trace.WithAttributes(
		attribute.String("platform.id", actor.PlatformID),
		attribute.Int("order.items", len(in.Items)),
	))
	defer span.End()

	if actor.Role == domain.RoleClient {
		in.CompanyID = actor.CompanyID
	}
	if in.CompanyID == "" {
		return nil, domain.Validation("company_id is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	entries := make([]feasibility.Entry, len(in.Items))
	for i, it := range in.Items {
		entries[i] = feasibility.Entry{AssetID: it.AssetID, Decision: it.MaintenanceDecision}
	}
	res, err := s.feasibility.Check(ctx, actor.PlatformID, entries, in.EventStart)
	if err != nil {
		return nil, err
	}
	if !res.Feasible {
		return nil, domain.WithDetails(
			domain.Validation("%d asset(s) cannot be refurbished before the event", len(res.Issues)),
			res.Issues,
		)
	}

	var order *domain.Order
	err = s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = s.create(ctx, tx, actor, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderSubmitted(ctx, order.PlatformID)
	s.notifier.Dispatch(ctx, notify.OrderSubmitted(order))
	s.logger.Info("order submitted",
		"order_id", order.ID,
		"order_code", order.OrderCode,
		"company_id", order.CompanyID,
		"items", len(order.Items),
	)
	return order, nil
}

func (s *Service) create(ctx context.Context, tx storage.Store, actor domain.Actor, in SubmitInput) (*domain.Order, error) {
	ids := make([]string, len(in.Items))
	for i, it := range in.Items {
		ids[i] = it.AssetID
	}
	assets, err := tx.ListAssets(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	byID := make(map[string]domain.Asset, len(assets))
	for _, a := range assets {
		if a.PlatformID == actor.PlatformID {
			byID[a.ID] = a
		}
	}

	reqs := make([]inventory.Request, len(in.Items))
	for i, it := range in.Items {
		if _, ok := byID[it.AssetID]; !ok {
			return nil, domain.NotFound("asset %s not found", it.AssetID)
		}
		reqs[i] = inventory.Request{AssetID: it.AssetID, Quantity: it.Quantity}
	}
	window := inventory.Window{Start: in.EventStart, End: in.EventEnd}
	if _, err := s.inventory.Require(ctx, tx, actor.PlatformID, window, reqs); err != nil {
		return nil, err
	}

	now := s.clock()
	code, err := s.nextOrderCode(ctx, tx, now)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:              s.newID(),
		PlatformID:      actor.PlatformID,
		OrderCode:       code,
		CompanyID:       in.CompanyID,
		BrandID:         in.BrandID,
		RequesterID:     actor.ID,
		Contact:         in.Contact,
		EventStart:      in.EventStart,
		EventEnd:        in.EventEnd,
		Venue:           in.Venue,
		TripType:        in.TripType,
		VehicleType:     domain.VehicleStandard,
		TotalVolume:     decimal.Zero,
		TotalWeight:     decimal.Zero,
		Status:          lifecycle.InitialStatus,
		FinancialStatus: domain.FinancialPendingQuote,
		DeliveryWindow:  in.DeliveryWindow,
		PickupWindow:    in.PickupWindow,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]domain.OrderItem, len(in.Items))
	for i, it := range in.Items {
		asset := byID[it.AssetID]
		qty := decimal.NewFromInt(int64(it.Quantity))
		items[i] = domain.OrderItem{
			ID:                  s.newID(),
			OrderID:             order.ID,
			PlatformID:          order.PlatformID,
			AssetID:             asset.ID,
			AssetName:           asset.Name,
			Quantity:            it.Quantity,
			UnitVolume:          asset.Volume,
			UnitWeight:          asset.Weight,
			TotalVolume:         asset.Volume.Mul(qty),
			TotalWeight:         asset.Weight.Mul(qty),
			CollectionID:        it.CollectionID,
			IsReskinRequest:     it.IsReskinRequest,
			ReskinTargetBrandID: it.ReskinTargetBrandID,
			ReskinCustomBrand:   it.ReskinCustomBrand,
			ReskinNotes:         it.ReskinNotes,
			MaintenanceDecision: it.MaintenanceDecision,
			RefurbDaysSnapshot:  refurbSnapshot(asset, it.MaintenanceDecision),
			CreatedAt:           now,
		}
		order.TotalVolume = order.TotalVolume.Add(items[i].TotalVolume)
		order.TotalWeight = order.TotalWeight.Add(items[i].TotalWeight)
	}

	estimate, err := s.calc.Estimate(ctx, s.pricingInput(order, actor.ID))
	if err != nil {
		return nil, err
	}
	if order.Pricing, err = estimate.Marshal(); err != nil {
		return nil, err
	}

	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	for i := range items {
		if err := tx.CreateOrderItem(ctx, &items[i]); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}
	if err := s.appendStatus(ctx, tx, order.ID, order.Status, actor.ID, "Order submitted", now); err != nil {
		return nil, err
	}
	entry := &domain.FinancialEntry{
		ID:        s.newID(),
		OrderID:   order.ID,
		Status:    order.FinancialStatus,
		Notes:     "Order submitted",
		UpdatedBy: actor.ID,
		CreatedAt: now,
	}
	if err := tx.AppendFinancialHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append financial history: %w", err)
	}

	order.Items = items
	return order, nil
}

// nextOrderCode numbers orders per UTC day across every platform.
func (s *Service) nextOrderCode(ctx context.Context, tx storage.Store, now time.Time) (string, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	n, err := tx.CountOrdersCreatedBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("count orders: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%03d", day.Format("20060102"), n+1), nil
}

func refurbSnapshot(a domain.Asset, decision *domain.MaintenanceDecision) *int {
	if a.RefurbDaysEstimate == nil {
		return nil
	}
	switch {
	case a.Condition == domain.ConditionRed:
	case a.Condition == domain.ConditionOrange && decision != nil && *decision == domain.MaintenanceFixInOrder:
	default:
		return nil
	}
	days := *a.RefurbDaysEstimate
	return &days
}

func (s *Service) pricingInput(order *domain.Order, actorID string) pricing.Input {
	return pricing.Input{
		PlatformID:  order.PlatformID,
		CompanyID:   order.CompanyID,
		Volume:      order.TotalVolume,
		CityID:      order.Venue.CityID,
		TripType:    order.TripType,
		VehicleType: order.VehicleType,
		ActorID:     actorID,
	}
}
