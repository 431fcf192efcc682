package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

const defaultSystemUser = "system"

type SweepResult struct {
	Day      string   `json:"day"`
	Advanced []string `json:"advanced"`
	Failed   []string `json:"failed"`
}

// AdvanceEndedEvents moves every IN_USE order whose event ends on the
// current UTC day to AWAITING_RETURN. Each order commits on its own, so a
// failure leaves the rest of the batch intact and a rerun only picks up
// what is still IN_USE.
func (s *Service) AdvanceEndedEvents(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "orders.advance_ended_events")
	defer span.End()

	now := s.clock()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	res := SweepResult{Day: day.Format(time.DateOnly), Advanced: []string{}, Failed: []string{}}

	ended, err := s.store.ListOrdersEndingOn(ctx, domain.OrderStatusInUse, day)
	if err != nil {
		return res, fmt.Errorf("list ended orders: %w", err)
	}

	byPlatform := make(map[string][]domain.Order)
	var platforms []string
	for _, o := range ended {
		if _, ok := byPlatform[o.PlatformID]; !ok {
			platforms = append(platforms, o.PlatformID)
		}
		byPlatform[o.PlatformID] = append(byPlatform[o.PlatformID], o)
	}

	for _, platformID := range platforms {
		systemID, err := s.systemUser(ctx, platformID)
		if err != nil {
			return res, err
		}
		for _, o := range byPlatform[platformID] {
			order, err := s.advance(ctx, o.ID, systemID)
			if err != nil {
				s.logger.Error("failed to advance ended order", "error", err, "order_id", o.ID)
				res.Failed = append(res.Failed, o.ID)
				continue
			}
			if order == nil {
				continue
			}
			res.Advanced = append(res.Advanced, order.ID)
			s.metrics.Transition(ctx, string(domain.OrderStatusInUse), string(domain.OrderStatusAwaitingReturn))
			s.notifier.Dispatch(ctx, notify.StatusChanged(order, domain.OrderStatusInUse, systemID))
		}
	}

	s.logger.Info("event end sweep finished", "day", res.Day, "advanced", len(res.Advanced), "failed", len(res.Failed))
	return res, nil
}

// advance returns nil when the order moved on since it was listed.
func (s *Service) advance(ctx context.Context, orderID, systemID string) (*domain.Order, error) {
	var advanced *domain.Order
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil || order.Status != domain.OrderStatusInUse {
			return nil
		}
		if err := s.TransitionWithin(ctx, tx, order, domain.OrderStatusAwaitingReturn, systemID, "Event ended, awaiting return"); err != nil {
			return err
		}
		advanced = order
		return nil
	})
	return advanced, err
}

func (s *Service) systemUser(ctx context.Context, platformID string) (string, error) {
	ps, err := s.calc.Resolver().Settings(ctx, platformID)
	if err != nil {
		return "", err
	}
	if ps.SystemUserID == "" {
		return defaultSystemUser, nil
	}
	return ps.SystemUserID, nil
}
