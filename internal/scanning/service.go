// Package scanning reconciles physical QR scans against an order's items.
// Progress is always recomputed from the scan event history.
package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/orders"
	"github.com/joao-fontenele/assetflow/internal/storage"
	"github.com/joao-fontenele/assetflow/internal/telemetry"
)

var tracer = otel.Tracer("scanning")

// PhotoVerifier confirms that uploaded photo keys exist.
type PhotoVerifier interface {
	Verify(ctx context.Context, keys []string) error
}

var scanStatuses = map[domain.ScanType]map[domain.OrderStatus]bool{
	domain.ScanOutbound: {
		domain.OrderStatusInPreparation:    true,
		domain.OrderStatusReadyForDelivery: true,
	},
	domain.ScanInbound: {
		domain.OrderStatusDelivered:       true,
		domain.OrderStatusInUse:           true,
		domain.OrderStatusAwaitingReturn:  true,
		domain.OrderStatusReturnInTransit: true,
	},
}

// Orders in these statuses close once every item is scanned back in.
var closeOnReturn = map[domain.OrderStatus]bool{
	domain.OrderStatusAwaitingReturn:  true,
	domain.OrderStatusReturnInTransit: true,
}

type Deps struct {
	Store    storage.Store
	Orders   *orders.Service
	Photos   PhotoVerifier
	Notifier notify.Dispatcher
	Metrics  *telemetry.EngineMetrics
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

type Service struct {
	store    storage.Store
	orders   *orders.Service
	photos   PhotoVerifier
	notifier notify.Dispatcher
	metrics  *telemetry.EngineMetrics
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		orders:   d.Orders,
		photos:   d.Photos,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      d.Now,
		newID:    d.NewID,
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogDispatcher(d.Logger)
	}
	if s.metrics == nil {
		s.metrics = telemetry.DefaultEngineMetrics()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.New().String() }
	}
	return s
}

// ScanInput.Quantity is required for BATCH assets and implied as 1 for
// INDIVIDUAL ones.
type ScanInput struct {
	QRCode             string           `json:"qr_code"`
	Condition          domain.Condition `json:"condition"`
	Quantity           *int             `json:"quantity,omitempty"`
	Notes              *string          `json:"notes,omitempty"`
	Photos             []string         `json:"photos,omitempty"`
	DiscrepancyReason  *string          `json:"discrepancy_reason,omitempty"`
	RefurbDaysEstimate *int             `json:"refurb_days_estimate,omitempty"`
}

type Result struct {
	Event       *domain.ScanEvent `json:"scan_event"`
	Asset       *domain.Asset     `json:"asset"`
	Progress    Progress          `json:"progress"`
	OrderClosed bool              `json:"order_closed"`
}

// Inbound records items coming back to the warehouse. The asset's
// condition follows the observed one, its quantity returns to the
// available pool and the order closes once every item is back.
func (s *Service) Inbound(ctx context.Context, actor domain.Actor, orderID string, in ScanInput) (Result, error) {
	return s.scan(ctx, actor, orderID, domain.ScanInbound, in)
}

// Outbound records items leaving the warehouse for the order.
func (s *Service) Outbound(ctx context.Context, actor domain.Actor, orderID string, in ScanInput) (Result, error) {
	return s.scan(ctx, actor, orderID, domain.ScanOutbound, in)
}

func (s *Service) scan(ctx context.Context, actor domain.Actor, orderID string, scanType domain.ScanType, in ScanInput) (Result, error) {
	ctx, span := tracer.Start(ctx, "scanning.scan", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("scan.type", string(scanType)),
		attribute.String("scan.qr_code", in.QRCode),
	))
	defer span.End()

	if !actor.IsStaff() {
		return Result{}, domain.Forbidden("role %s cannot scan items", actor.Role)
	}
	if in.QRCode == "" {
		return Result{}, domain.Validation("qr_code is required")
	}
	if !in.Condition.Valid() {
		return Result{}, domain.Validation("unknown condition %q", in.Condition)
	}
	if in.RefurbDaysEstimate != nil && *in.RefurbDaysEstimate < 0 {
		return Result{}, domain.Validation("refurb days estimate cannot be negative")
	}
	if s.photos != nil && len(in.Photos) > 0 {
		if err := s.photos.Verify(ctx, in.Photos); err != nil {
			return Result{}, err
		}
	}

	var (
		res   Result
		order *domain.Order
		from  domain.OrderStatus
	)
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = s.order(ctx, tx, actor, orderID)
		if err != nil {
			return err
		}
		if !scanStatuses[scanType][order.Status] {
			return domain.InvalidState("cannot record %s scans while order is %s", scanType, order.Status)
		}

		asset, err := tx.GetAssetByQRCode(ctx, in.QRCode)
		if err != nil {
			return fmt.Errorf("get asset: %w", err)
		}
		if asset == nil || asset.PlatformID != order.PlatformID {
			return domain.NotFound("no asset with qr code %s", in.QRCode)
		}
		qty, err := quantity(asset, in.Quantity)
		if err != nil {
			return err
		}

		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		events, err := tx.ListScanEvents(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list scan events: %w", err)
		}
		if err := checkQuantity(asset, qty, scanType, items, events); err != nil {
			return err
		}

		now := s.now().UTC()
		event := &domain.ScanEvent{
			ID:                s.newID(),
			OrderID:           order.ID,
			AssetID:           asset.ID,
			ScanType:          scanType,
			Quantity:          qty,
			Condition:         in.Condition,
			Notes:             in.Notes,
			Photos:            nonNil(in.Photos),
			DiscrepancyReason: in.DiscrepancyReason,
			ScannedBy:         actor.ID,
			ScannedAt:         now,
		}
		if err := tx.AppendScanEvent(ctx, event); err != nil {
			return fmt.Errorf("append scan event: %w", err)
		}

		applyScan(asset, event, in, now)
		if err := tx.UpdateAsset(ctx, asset); err != nil {
			return fmt.Errorf("update asset: %w", err)
		}

		res = Result{
			Event:    event,
			Asset:    asset,
			Progress: compute(scanType, items, append(events, *event)),
		}
		if scanType == domain.ScanInbound && res.Progress.Complete && closeOnReturn[order.Status] {
			from = order.Status
			if err := s.orders.TransitionWithin(ctx, tx, order, domain.OrderStatusClosed, actor.ID, "All items returned"); err != nil {
				return err
			}
			res.OrderClosed = true
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	discrepancy := res.Event.DiscrepancyReason != nil && *res.Event.DiscrepancyReason != ""
	s.metrics.Scan(ctx, string(scanType), discrepancy)
	if discrepancy {
		s.notifier.Dispatch(ctx, notify.ScanDiscrepancy(order.PlatformID, res.Event))
	}
	if res.OrderClosed {
		s.metrics.Transition(ctx, string(from), string(domain.OrderStatusClosed))
		s.notifier.Dispatch(ctx, notify.StatusChanged(order, from, actor.ID))
	}
	s.logger.Info("scan recorded",
		"order_id", order.ID,
		"asset_id", res.Asset.ID,
		"scan_type", scanType,
		"quantity", res.Event.Quantity,
		"scanned", res.Progress.Scanned,
		"required", res.Progress.Required,
		"order_closed", res.OrderClosed,
	)
	return res, nil
}

// Progress recomputes scan progress for the order from its event history.
func (s *Service) Progress(ctx context.Context, actor domain.Actor, orderID string, scanType domain.ScanType) (Progress, error) {
	if scanType != domain.ScanInbound && scanType != domain.ScanOutbound {
		return Progress{}, domain.Validation("unknown scan type %q", scanType)
	}
	order, err := s.order(ctx, s.store, actor, orderID)
	if err != nil {
		return Progress{}, err
	}
	items, err := s.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return Progress{}, fmt.Errorf("list order items: %w", err)
	}
	events, err := s.store.ListScanEvents(ctx, order.ID)
	if err != nil {
		return Progress{}, fmt.Errorf("list scan events: %w", err)
	}
	return compute(scanType, items, events), nil
}

// ListEvents returns the order's scan history oldest first.
func (s *Service) ListEvents(ctx context.Context, actor domain.Actor, orderID string) ([]domain.ScanEvent, error) {
	order, err := s.order(ctx, s.store, actor, orderID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListScanEvents(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list scan events: %w", err)
	}
	if events == nil {
		events = []domain.ScanEvent{}
	}
	return events, nil
}

func (s *Service) order(ctx context.Context, st storage.Store, actor domain.Actor, id string) (*domain.Order, error) {
	if !actor.IsStaff() {
		return nil, domain.NotFound("order %s not found", id)
	}
	order, err := st.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.PlatformID != actor.PlatformID {
		return nil, domain.NotFound("order %s not found", id)
	}
	return order, nil
}

func quantity(asset *domain.Asset, requested *int) (int, error) {
	if asset.TrackingMethod == domain.TrackingBatch {
		if requested == nil || *requested <= 0 {
			return 0, domain.Validation("a positive quantity is required for batch-tracked asset %s", asset.ID)
		}
		return *requested, nil
	}
	if requested != nil && *requested != 1 {
		return 0, domain.Validation("individually tracked asset %s is scanned one unit at a time", asset.ID)
	}
	return 1, nil
}

// checkQuantity rejects scans that are not on the order or that would push
// the cumulative scanned quantity past what the order requires.
func checkQuantity(asset *domain.Asset, qty int, scanType domain.ScanType, items []domain.OrderItem, events []domain.ScanEvent) error {
	required := 0
	for _, it := range items {
		if it.AssetID == asset.ID {
			required += it.Quantity
		}
	}
	if required == 0 {
		return domain.Validation("asset %s is not part of this order", asset.ID)
	}

	scanned := 0
	for _, e := range events {
		if e.ScanType == scanType && e.AssetID == asset.ID {
			scanned += e.Quantity
		}
	}
	if scanned+qty > required {
		err := domain.Conflict("%s scan of %d would exceed the %d required for asset %s (%d already scanned)",
			scanType, qty, required, asset.ID, scanned)
		return domain.WithDetails(err, map[string]int{"required": required, "scanned": scanned, "attempted": qty})
	}
	return nil
}

// applyScan folds the scan into the asset: condition changes are recorded in
// history, and quantity moves between the warehouse and the order.
func applyScan(asset *domain.Asset, e *domain.ScanEvent, in ScanInput, now time.Time) {
	if e.Condition != asset.Condition {
		asset.Condition = e.Condition
		change := domain.ConditionChange{
			Condition: e.Condition,
			UpdatedBy: e.ScannedBy,
			Timestamp: now,
		}
		if in.Notes != nil {
			change.Notes = *in.Notes
		}
		asset.ConditionHistory = append(asset.ConditionHistory, change)
		if e.Condition == domain.ConditionGreen {
			asset.RefurbDaysEstimate = nil
			asset.ConditionNotes = nil
		} else {
			asset.RefurbDaysEstimate = in.RefurbDaysEstimate
			asset.ConditionNotes = in.Notes
		}
	}

	asset.LastScannedAt = &now
	asset.LastScannedBy = &e.ScannedBy
	asset.UpdatedAt = now

	switch e.ScanType {
	case domain.ScanInbound:
		asset.AvailableQuantity = min(asset.AvailableQuantity+e.Quantity, asset.TotalQuantity)
		asset.Status = domain.AssetAvailable
	case domain.ScanOutbound:
		asset.AvailableQuantity = max(asset.AvailableQuantity-e.Quantity, 0)
		asset.Status = domain.AssetOut
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
