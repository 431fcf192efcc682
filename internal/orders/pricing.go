package orders

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

// Reprice recomputes the full breakdown from the order's line items. A
// non-nil override replaces the platform margin for this and every later
// recalculation.
func (s *Service) Reprice(ctx context.Context, actor domain.Actor, id string, override *pricing.MarginOverride) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.reprice", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if !actor.IsStaff() {
		return nil, domain.Forbidden("role %s cannot reprice orders", actor.Role)
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if !lifecycle.PricingEditable(order.Status) {
			return domain.InvalidState("order in status %s can no longer be repriced", order.Status)
		}
		if err := s.reprice(ctx, tx, order, actor.ID, override); err != nil {
			return err
		}
		return s.save(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order repriced", "order_id", order.ID, "margin_override", override != nil, "updated_by", actor.ID)
	return order, nil
}

// RepriceWithin recomputes pricing inside tx after a line item change. It
// is a no-op once the order has left review.
func (s *Service) RepriceWithin(ctx context.Context, tx storage.Store, orderID, actorID string) error {
	order, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return domain.NotFound("order %s not found", orderID)
	}
	if !lifecycle.PricingEditable(order.Status) {
		return nil
	}
	if err := s.reprice(ctx, tx, order, actorID, nil); err != nil {
		return err
	}
	return s.save(ctx, tx, order)
}

// ChangeVehicle prices the order with a different vehicle type.
func (s *Service) ChangeVehicle(ctx context.Context, actor domain.Actor, id string, vehicle domain.VehicleType, reason string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.change_vehicle", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.vehicle", string(vehicle)),
	))
	defer span.End()

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if err := lifecycle.CheckVehicleChange(order.Status, actor.Role, reason); err != nil {
			return err
		}
		in, lines, err := s.repriceInputs(ctx, tx, order, actor.ID, nil)
		if err != nil {
			return err
		}
		b, err := s.calc.VehicleUpgrade(ctx, in, vehicle, reason, lines)
		if err != nil {
			return err
		}
		if order.Pricing, err = b.Marshal(); err != nil {
			return err
		}
		order.VehicleType = vehicle
		return s.save(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("vehicle type changed", "order_id", order.ID, "vehicle_type", vehicle, "updated_by", actor.ID)
	return order, nil
}

// reprice stores a fresh full breakdown on order without saving it.
func (s *Service) reprice(ctx context.Context, tx storage.Store, order *domain.Order, actorID string, override *pricing.MarginOverride) error {
	in, lines, err := s.repriceInputs(ctx, tx, order, actorID, override)
	if err != nil {
		return err
	}
	b, err := s.calc.Full(ctx, in, lines)
	if err != nil {
		return err
	}
	order.Pricing, err = b.Marshal()
	return err
}

// repriceInputs carries the previous margin override and vehicle reason
// forward unless a new override is given.
func (s *Service) repriceInputs(ctx context.Context, tx storage.Store, order *domain.Order, actorID string, override *pricing.MarginOverride) (pricing.Input, pricing.LineTotals, error) {
	items, err := tx.ListLineItems(ctx, order.ID)
	if err != nil {
		return pricing.Input{}, pricing.LineTotals{}, fmt.Errorf("list line items: %w", err)
	}
	totals := lineitems.Summarize(items)

	prev, err := pricing.Unmarshal(order.Pricing)
	if err != nil {
		return pricing.Input{}, pricing.LineTotals{}, err
	}

	in := s.pricingInput(order, actorID)
	in.MarginOverride = override
	if prev != nil {
		if override == nil && prev.MarginOverridden && prev.MarginOverrideReason != nil {
			in.MarginOverride = &pricing.MarginOverride{Percent: prev.MarginPercent, Reason: *prev.MarginOverrideReason}
		}
		if order.VehicleType != domain.VehicleStandard {
			in.VehicleChangeReason = prev.VehicleChangeReason
		}
	}
	return in, pricing.LineTotals{Catalog: totals.Catalog, Custom: totals.Custom}, nil
}

func (s *Service) save(ctx context.Context, tx storage.Store, order *domain.Order) error {
	order.UpdatedAt = s.clock()
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}
