// Package reskin runs the rebrand workflow: an order item flagged for a
// reskin is processed into a request with a fabrication charge, then either
// completed into a new asset or cancelled.
package reskin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/orders"
	"github.com/joao-fontenele/assetflow/internal/storage"
	"github.com/joao-fontenele/assetflow/internal/telemetry"
)

var tracer = otel.Tracer("reskin")

// PhotoVerifier confirms that uploaded photo keys exist.
type PhotoVerifier interface {
	Verify(ctx context.Context, keys []string) error
}

type Deps struct {
	Store    storage.Store
	Orders   *orders.Service
	Ledger   *lineitems.Ledger
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
	ledger   *lineitems.Ledger
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
		ledger:   d.Ledger,
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

type ProcessInput struct {
	OrderItemID string          `json:"order_item_id"`
	Cost        decimal.Decimal `json:"cost"`
	AdminNotes  *string         `json:"admin_notes,omitempty"`
}

// Process opens the reskin request for a flagged order item and books its
// fabrication cost as a custom RESKIN line item.
func (s *Service) Process(ctx context.Context, actor domain.Actor, in ProcessInput) (*domain.ReskinRequest, error) {
	ctx, span := tracer.Start(ctx, "reskin.process", trace.WithAttributes(
		attribute.String("order_item.id", in.OrderItemID),
	))
	defer span.End()

	if !actor.IsStaff() {
		return nil, domain.Forbidden("role %s cannot process reskins", actor.Role)
	}
	if in.Cost.IsNegative() {
		return nil, domain.Validation("cost cannot be negative")
	}

	var created *domain.ReskinRequest
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		item, err := tx.GetOrderItem(ctx, in.OrderItemID)
		if err != nil {
			return fmt.Errorf("get order item: %w", err)
		}
		if item == nil || item.PlatformID != actor.PlatformID {
			return domain.NotFound("order item %s not found", in.OrderItemID)
		}
		order, err := s.order(ctx, tx, item.OrderID)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckLineItemsEditable(order.Status); err != nil {
			return err
		}
		if !item.IsReskinRequest {
			return domain.Validation("order item %s is not flagged for a reskin", item.ID)
		}
		existing, err := tx.GetReskinByOrderItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("get reskin: %w", err)
		}
		if existing != nil {
			return domain.Conflict("order item %s already has a reskin request", item.ID)
		}

		r := &domain.ReskinRequest{
			ID:                s.newID(),
			PlatformID:        order.PlatformID,
			OrderID:           order.ID,
			OrderItemID:       item.ID,
			OriginalAssetID:   item.AssetID,
			OriginalAssetName: item.AssetName,
			TargetBrandID:     item.ReskinTargetBrandID,
			TargetBrandCustom: item.ReskinCustomBrand,
			ClientNotes:       item.ReskinNotes,
			AdminNotes:        in.AdminNotes,
			CompletionPhotos:  []string{},
			CreatedBy:         actor.ID,
			CreatedAt:         s.now().UTC(),
		}
		if err := tx.CreateReskin(ctx, r); err != nil {
			return fmt.Errorf("create reskin: %w", err)
		}

		li, err := s.ledger.AddCustomWithin(ctx, tx, order, actor.ID, lineitems.CustomInput{
			OrderID:         order.ID,
			Description:     fmt.Sprintf("Reskin of %s to %s", item.AssetName, targetBrand(r)),
			Category:        domain.CategoryReskin,
			Total:           in.Cost,
			ReskinRequestID: &r.ID,
		})
		if err != nil {
			return err
		}
		r.LineItemID = &li.ID
		if err := tx.UpdateReskin(ctx, r); err != nil {
			return fmt.Errorf("link line item: %w", err)
		}

		created = r
		return s.orders.RepriceWithin(ctx, tx, order.ID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reskin processed", "reskin_id", created.ID, "order_id", created.OrderID, "cost", in.Cost.StringFixed(2))
	return created, nil
}

type CompleteInput struct {
	NewAssetName string   `json:"new_asset_name"`
	Photos       []string `json:"completion_photos"`
	Notes        *string  `json:"completion_notes,omitempty"`
}

type CompleteResult struct {
	Reskin        *domain.ReskinRequest `json:"reskin"`
	NewAsset      *domain.Asset         `json:"new_asset"`
	OrderAdvanced bool                  `json:"order_advanced"`
}

// Complete fabricates the new asset, retires the original and repoints the
// order item and its bookings. When it was the order's last pending reskin
// an AWAITING_FABRICATION order moves to IN_PREPARATION.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, id string, in CompleteInput) (CompleteResult, error) {
	ctx, span := tracer.Start(ctx, "reskin.complete", trace.WithAttributes(
		attribute.String("reskin.id", id),
	))
	defer span.End()

	if !actor.IsStaff() {
		return CompleteResult{}, domain.Forbidden("role %s cannot complete reskins", actor.Role)
	}
	name := strings.TrimSpace(in.NewAssetName)
	if name == "" {
		return CompleteResult{}, domain.Validation("new asset name is required")
	}
	if len(in.Photos) == 0 {
		return CompleteResult{}, domain.Validation("at least one completion photo is required")
	}
	if s.photos != nil {
		if err := s.photos.Verify(ctx, in.Photos); err != nil {
			return CompleteResult{}, err
		}
	}

	var (
		res   CompleteResult
		order *domain.Order
	)
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		r, err := s.pending(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		order, err = s.order(ctx, tx, r.OrderID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		newAsset, err := s.transform(ctx, tx, r, name, actor.ID, now)
		if err != nil {
			return err
		}

		item, err := tx.GetOrderItem(ctx, r.OrderItemID)
		if err != nil {
			return fmt.Errorf("get order item: %w", err)
		}
		if item == nil {
			return domain.NotFound("order item %s not found", r.OrderItemID)
		}
		item.AssetID = newAsset.ID
		item.AssetName = newAsset.Name
		if err := tx.UpdateOrderItem(ctx, item); err != nil {
			return fmt.Errorf("update order item: %w", err)
		}
		if err := tx.ReassignBookings(ctx, order.ID, r.OriginalAssetID, newAsset.ID); err != nil {
			return fmt.Errorf("reassign bookings: %w", err)
		}

		r.NewAssetID = &newAsset.ID
		r.NewAssetName = &newAsset.Name
		r.CompletionPhotos = in.Photos
		r.CompletionNotes = in.Notes
		r.CompletedAt = &now
		r.CompletedBy = &actor.ID
		if err := tx.UpdateReskin(ctx, r); err != nil {
			return fmt.Errorf("update reskin: %w", err)
		}

		advanced, err := s.advanceIfReady(ctx, tx, order, actor.ID, "All reskins completed")
		if err != nil {
			return err
		}
		res = CompleteResult{Reskin: r, NewAsset: newAsset, OrderAdvanced: advanced}
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}

	s.metrics.ReskinCompleted(ctx)
	s.notifier.Dispatch(ctx, notify.ReskinCompleted(res.Reskin, order.OrderCode))
	if res.OrderAdvanced {
		s.metrics.Transition(ctx, string(domain.OrderStatusAwaitingFabrication), string(domain.OrderStatusInPreparation))
		s.notifier.Dispatch(ctx, notify.StatusChanged(order, domain.OrderStatusAwaitingFabrication, actor.ID))
	}
	s.logger.Info("reskin completed",
		"reskin_id", res.Reskin.ID,
		"order_id", order.ID,
		"new_asset_id", res.NewAsset.ID,
		"order_advanced", res.OrderAdvanced,
	)
	return res, nil
}

// transform creates the rebranded copy of the original asset and marks the
// original TRANSFORMED.
func (s *Service) transform(ctx context.Context, tx storage.Store, r *domain.ReskinRequest, name, actorID string, now time.Time) (*domain.Asset, error) {
	original, err := tx.GetAsset(ctx, r.OriginalAssetID)
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if original == nil {
		return nil, domain.NotFound("asset %s not found", r.OriginalAssetID)
	}

	status := original.Status
	if status == domain.AssetTransformed {
		return nil, domain.InvalidState("asset %s was already transformed", original.ID)
	}
	created := domain.ConditionChange{
		Condition: domain.ConditionGreen,
		Notes:     fmt.Sprintf("Reskinned from %s", original.Name),
		UpdatedBy: actorID,
		Timestamp: now,
	}
	newAsset := &domain.Asset{
		ID:                s.newID(),
		PlatformID:        original.PlatformID,
		CompanyID:         original.CompanyID,
		WarehouseID:       original.WarehouseID,
		BrandID:           r.TargetBrandID,
		Name:              name,
		QRCode:            inventory.NewQRCode(),
		TrackingMethod:    original.TrackingMethod,
		TotalQuantity:     original.TotalQuantity,
		AvailableQuantity: original.AvailableQuantity,
		Condition:         domain.ConditionGreen,
		Status:            status,
		Volume:            original.Volume,
		Weight:            original.Weight,
		Dimensions:        original.Dimensions,
		Packaging:         original.Packaging,
		TransformedFrom:   &original.ID,
		ConditionHistory:  []domain.ConditionChange{created},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.CreateAsset(ctx, newAsset); err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}

	original.Status = domain.AssetTransformed
	original.TransformedTo = &newAsset.ID
	original.UpdatedAt = now
	if err := tx.UpdateAsset(ctx, original); err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	return newAsset, nil
}

// CancelInput.CancelOrder asks the caller to cancel the whole order
// afterwards; the reskin cancellation itself never does.
type CancelInput struct {
	Reason      string `json:"reason"`
	CancelOrder bool   `json:"cancel_order"`
}

type CancelResult struct {
	Reskin        *domain.ReskinRequest `json:"reskin"`
	CancelOrder   bool                  `json:"cancel_order"`
	OrderAdvanced bool                  `json:"order_advanced"`
}

// Cancel drops a pending reskin, voids its charge and reverts the order item
// to a plain rental of the original asset.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id string, in CancelInput) (CancelResult, error) {
	ctx, span := tracer.Start(ctx, "reskin.cancel", trace.WithAttributes(
		attribute.String("reskin.id", id),
	))
	defer span.End()

	if !actor.IsStaff() {
		return CancelResult{}, domain.Forbidden("role %s cannot cancel reskins", actor.Role)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return CancelResult{}, domain.Validation("a cancellation reason is required")
	}

	var (
		res   CancelResult
		order *domain.Order
	)
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		r, err := s.pending(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		order, err = s.order(ctx, tx, r.OrderID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		r.CancelledAt = &now
		r.CancelledBy = &actor.ID
		r.CancellationReason = &reason
		if err := tx.UpdateReskin(ctx, r); err != nil {
			return fmt.Errorf("update reskin: %w", err)
		}

		if r.LineItemID != nil {
			li, err := tx.GetLineItem(ctx, *r.LineItemID)
			if err != nil {
				return fmt.Errorf("get line item: %w", err)
			}
			if li != nil && !li.IsVoided {
				if err := s.ledger.VoidWithin(ctx, tx, li, actor.ID, "Reskin cancelled: "+reason); err != nil {
					return err
				}
			}
		}

		item, err := tx.GetOrderItem(ctx, r.OrderItemID)
		if err != nil {
			return fmt.Errorf("get order item: %w", err)
		}
		if item != nil {
			item.AssetID = r.OriginalAssetID
			item.AssetName = r.OriginalAssetName
			item.IsReskinRequest = false
			item.ReskinTargetBrandID = nil
			item.ReskinCustomBrand = nil
			item.ReskinNotes = nil
			if err := tx.UpdateOrderItem(ctx, item); err != nil {
				return fmt.Errorf("update order item: %w", err)
			}
		}

		if err := s.orders.RepriceWithin(ctx, tx, order.ID, actor.ID); err != nil {
			return err
		}

		res = CancelResult{Reskin: r, CancelOrder: in.CancelOrder}
		if in.CancelOrder {
			return nil
		}
		res.OrderAdvanced, err = s.advanceIfReady(ctx, tx, order, actor.ID, "Remaining reskins resolved")
		return err
	})
	if err != nil {
		return CancelResult{}, err
	}

	if res.OrderAdvanced {
		s.metrics.Transition(ctx, string(domain.OrderStatusAwaitingFabrication), string(domain.OrderStatusInPreparation))
		s.notifier.Dispatch(ctx, notify.StatusChanged(order, domain.OrderStatusAwaitingFabrication, actor.ID))
	}
	s.logger.Info("reskin cancelled", "reskin_id", res.Reskin.ID, "order_id", order.ID, "cancel_order", in.CancelOrder)
	return res, nil
}

// ListForOrder returns the order's reskin requests in creation order.
func (s *Service) ListForOrder(ctx context.Context, actor domain.Actor, orderID string) ([]domain.ReskinRequest, error) {
	order, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	reskins, err := s.store.ListOrderReskins(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list reskins: %w", err)
	}
	if reskins == nil {
		reskins = []domain.ReskinRequest{}
	}
	return reskins, nil
}

func (s *Service) pending(ctx context.Context, tx storage.Store, actor domain.Actor, id string) (*domain.ReskinRequest, error) {
	r, err := tx.GetReskin(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reskin: %w", err)
	}
	if r == nil || r.PlatformID != actor.PlatformID {
		return nil, domain.NotFound("reskin request %s not found", id)
	}
	if !r.Pending() {
		return nil, domain.InvalidState("reskin request %s is already %s", id, r.State())
	}
	return r, nil
}

func (s *Service) order(ctx context.Context, tx storage.Store, id string) (*domain.Order, error) {
	order, err := tx.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.NotFound("order %s not found", id)
	}
	return order, nil
}

// advanceIfReady moves an AWAITING_FABRICATION order on once no reskin is
// pending. It reports whether the order moved.
func (s *Service) advanceIfReady(ctx context.Context, tx storage.Store, order *domain.Order, actorID, notes string) (bool, error) {
	if order.Status != domain.OrderStatusAwaitingFabrication {
		return false, nil
	}
	reskins, err := tx.ListOrderReskins(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("list reskins: %w", err)
	}
	for _, r := range reskins {
		if r.Pending() {
			return false, nil
		}
	}
	if err := s.orders.TransitionWithin(ctx, tx, order, domain.OrderStatusInPreparation, actorID, notes); err != nil {
		return false, err
	}
	return true, nil
}

func targetBrand(r *domain.ReskinRequest) string {
	switch {
	case r.TargetBrandCustom != nil && *r.TargetBrandCustom != "":
		return *r.TargetBrandCustom
	case r.TargetBrandID != nil:
		return *r.TargetBrandID
	default:
		return "new brand"
	}
}
