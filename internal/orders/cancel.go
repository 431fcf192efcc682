package orders

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

type CancelInput struct {
	Reason domain.CancellationReason `json:"reason"`
	Notes  string                    `json:"notes"`
}

type CancelResult struct {
	Order            *domain.Order `json:"order"`
	ReleasedBookings int           `json:"released_bookings"`
	CancelledReskins int           `json:"cancelled_reskins"`
	VoidedLineItems  int           `json:"voided_line_items"`
}

// Cancel releases the order's bookings, cancels its pending reskins with
// their line items and moves both statuses to CANCELLED atomically.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id string, in CancelInput) (CancelResult, error) {
	ctx, span := tracer.Start(ctx, "orders.cancel", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("cancel.reason", string(in.Reason)),
	))
	defer span.End()

	if !actor.IsStaff() {
		return CancelResult{}, domain.Forbidden("role %s cannot cancel orders", actor.Role)
	}
	if !in.Reason.Valid() {
		return CancelResult{}, domain.Validation("unknown cancellation reason %q", in.Reason)
	}

	var res CancelResult
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		order, err := s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		res, err = s.cancelWithin(ctx, tx, order, actor.ID, in)
		return err
	})
	if err != nil {
		return CancelResult{}, err
	}

	s.metrics.OrderCancelled(ctx, string(in.Reason))
	s.notifier.Dispatch(ctx, notify.OrderCancelled(res.Order, in.Reason, in.Notes, actor.ID))
	s.logger.Info("order cancelled",
		"order_id", res.Order.ID,
		"reason", in.Reason,
		"released_bookings", res.ReleasedBookings,
		"cancelled_reskins", res.CancelledReskins,
		"updated_by", actor.ID,
	)
	return res, nil
}

func (s *Service) cancelWithin(ctx context.Context, tx storage.Store, order *domain.Order, actorID string, in CancelInput) (CancelResult, error) {
	if err := lifecycle.CheckCancel(order.Status); err != nil {
		return CancelResult{}, err
	}

	res := CancelResult{Order: order}
	released, err := s.inventory.Release(ctx, tx, order.ID)
	if err != nil {
		return CancelResult{}, err
	}
	res.ReleasedBookings = released

	now := s.clock()
	reason := fmt.Sprintf("Order cancelled: %s", in.Reason)
	reskins, err := tx.ListOrderReskins(ctx, order.ID)
	if err != nil {
		return CancelResult{}, fmt.Errorf("list reskins: %w", err)
	}
	for i := range reskins {
		r := &reskins[i]
		if !r.Pending() {
			continue
		}
		voided, err := s.cancelReskin(ctx, tx, r, actorID, reason, now)
		if err != nil {
			return CancelResult{}, err
		}
		res.CancelledReskins++
		if voided {
			res.VoidedLineItems++
		}
	}

	notes := string(in.Reason)
	if in.Notes != "" {
		notes = fmt.Sprintf("%s: %s", in.Reason, in.Notes)
	}

	// Cancellation overrides the financial graph.
	order.FinancialStatus = domain.FinancialCancelled
	fin := &domain.FinancialEntry{
		ID:        s.newID(),
		OrderID:   order.ID,
		Status:    domain.FinancialCancelled,
		Notes:     notes,
		UpdatedBy: actorID,
		CreatedAt: now,
	}
	if err := tx.AppendFinancialHistory(ctx, fin); err != nil {
		return CancelResult{}, fmt.Errorf("append financial history: %w", err)
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return CancelResult{}, fmt.Errorf("update order: %w", err)
	}
	if err := s.appendStatus(ctx, tx, order.ID, order.Status, actorID, notes, now); err != nil {
		return CancelResult{}, err
	}
	return res, nil
}

// cancelReskin stamps r cancelled and voids its line item. It reports
// whether a line item was voided.
func (s *Service) cancelReskin(ctx context.Context, tx storage.Store, r *domain.ReskinRequest, actorID, reason string, now time.Time) (bool, error) {
	r.CancelledAt = &now
	r.CancelledBy = &actorID
	r.CancellationReason = &reason
	if err := tx.UpdateReskin(ctx, r); err != nil {
		return false, fmt.Errorf("update reskin: %w", err)
	}

	if r.LineItemID == nil {
		return false, nil
	}
	item, err := tx.GetLineItem(ctx, *r.LineItemID)
	if err != nil {
		return false, fmt.Errorf("get line item: %w", err)
	}
	if item == nil || item.IsVoided {
		return false, nil
	}
	if err := s.ledger.VoidWithin(ctx, tx, item, actorID, reason); err != nil {
		return false, err
	}
	return true, nil
}
