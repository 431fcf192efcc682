// Package orders runs the order lifecycle: submission, status transitions
// and their side effects, repricing, cancellation and the daily sweep.
package orders

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
	"github.com/joao-fontenele/assetflow/internal/feasibility"
	"github.com/joao-fontenele/assetflow/internal/inventory"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/lineitems"
	"github.com/joao-fontenele/assetflow/internal/notify"
	"github.com/joao-fontenele/assetflow/internal/pricing"
	"github.com/joao-fontenele/assetflow/internal/storage"
	"github.com/joao-fontenele/assetflow/internal/telemetry"
)

var tracer = otel.Tracer("orders")

type Deps struct {
	Store       storage.Store
	Calculator  *pricing.Calculator
	Inventory   *inventory.Service
	Feasibility *feasibility.Checker
	Ledger      *lineitems.Ledger
	Notifier    notify.Dispatcher
	Metrics     *telemetry.EngineMetrics
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

type Service struct {
	store       storage.Store
	calc        *pricing.Calculator
	inventory   *inventory.Service
	feasibility *feasibility.Checker
	ledger      *lineitems.Ledger
	notifier    notify.Dispatcher
	metrics     *telemetry.EngineMetrics
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

func NewService(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		calc:        d.Calculator,
		inventory:   d.Inventory,
		feasibility: d.Feasibility,
		ledger:      d.Ledger,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		logger:      d.Logger,
		now:         d.Now,
		newID:       d.NewID,
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

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Get returns the order with its items. Clients only see their company's
// orders.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	order, err := s.load(ctx, s.store, actor, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	order.Items = items
	return order, nil
}

type History struct {
	Status    []domain.StatusEntry    `json:"status_history"`
	Financial []domain.FinancialEntry `json:"financial_history"`
}

func (s *Service) History(ctx context.Context, actor domain.Actor, id string) (History, error) {
	order, err := s.load(ctx, s.store, actor, id)
	if err != nil {
		return History{}, err
	}
	status, err := s.store.ListStatusHistory(ctx, order.ID)
	if err != nil {
		return History{}, fmt.Errorf("list status history: %w", err)
	}
	financial, err := s.store.ListFinancialHistory(ctx, order.ID)
	if err != nil {
		return History{}, fmt.Errorf("list financial history: %w", err)
	}
	return History{Status: status, Financial: financial}, nil
}

// Transition moves the order to status to and applies its side effects in
// one transaction. Cancellation goes through Cancel.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, id string, to domain.OrderStatus, notes string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.transition", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.to", string(to)),
	))
	defer span.End()

	var (
		order *domain.Order
		from  domain.OrderStatus
	)
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		from = order.Status
		if err := checkActorMayTransition(actor, from, to); err != nil {
			return err
		}
		return s.TransitionWithin(ctx, tx, order, to, actor.ID, notes)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(ctx, string(from), string(to))
	s.notifier.Dispatch(ctx, notify.StatusChanged(order, from, actor.ID))
	s.logger.Info("order status changed", "order_id", order.ID, "from", from, "to", to, "updated_by", actor.ID)
	return order, nil
}

// TransitionWithin applies a transition inside tx and updates order in
// place. Callers dispatch notifications after commit.
func (s *Service) TransitionWithin(ctx context.Context, tx storage.Store, order *domain.Order, to domain.OrderStatus, actorID, notes string) error {
	from := order.Status
	if to == domain.OrderStatusCancelled {
		return domain.Validation("orders are cancelled through the cancellation workflow")
	}
	if err := lifecycle.CheckTransition(from, to); err != nil {
		return err
	}

	if from == domain.OrderStatusConfirmed {
		pending, err := s.pendingReskins(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		switch {
		case to == domain.OrderStatusInPreparation && pending > 0:
			return domain.InvalidState("order has %d pending reskin(s) and must await fabrication", pending)
		case to == domain.OrderStatusAwaitingFabrication && pending == 0:
			return domain.InvalidState("order has no pending reskins")
		}
	}

	switch to {
	case domain.OrderStatusQuoted:
		if err := s.reprice(ctx, tx, order, actorID, nil); err != nil {
			return err
		}
	case domain.OrderStatusConfirmed:
		items, err := tx.ListOrderItems(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		if _, err := s.inventory.Reserve(ctx, tx, order, bookingRequests(items)); err != nil {
			return err
		}
	case domain.OrderStatusClosed, domain.OrderStatusDeclined:
		if _, err := s.inventory.Release(ctx, tx, order.ID); err != nil {
			return err
		}
	}

	now := s.clock()
	if fin, ok := lifecycle.FinancialFor(to); ok && fin != order.FinancialStatus {
		if err := s.setFinancial(ctx, tx, order, fin, actorID, fmt.Sprintf("Order moved to %s", to), now); err != nil {
			return err
		}
	}

	order.Status = to
	order.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return s.appendStatus(ctx, tx, order.ID, to, actorID, notes, now)
}

// UpdateFinancialStatus moves the financial status along its own graph.
func (s *Service) UpdateFinancialStatus(ctx context.Context, actor domain.Actor, id string, to domain.FinancialStatus, notes string) (*domain.Order, error) {
	if !actor.IsStaff() {
		return nil, domain.Forbidden("role %s cannot change financial status", actor.Role)
	}
	if to == domain.FinancialCancelled {
		return nil, domain.Validation("orders are cancelled through the cancellation workflow")
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		order, err = s.load(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		now := s.clock()
		if err := s.setFinancial(ctx, tx, order, to, actor.ID, notes, now); err != nil {
			return err
		}
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("financial status changed", "order_id", order.ID, "to", to, "updated_by", actor.ID)
	return order, nil
}

func (s *Service) setFinancial(ctx context.Context, tx storage.Store, order *domain.Order, to domain.FinancialStatus, actorID, notes string, now time.Time) error {
	if err := lifecycle.CheckFinancialTransition(order.FinancialStatus, to); err != nil {
		return err
	}
	order.FinancialStatus = to
	entry := &domain.FinancialEntry{
		ID:        s.newID(),
		OrderID:   order.ID,
		Status:    to,
		Notes:     notes,
		UpdatedBy: actorID,
		CreatedAt: now,
	}
	if err := tx.AppendFinancialHistory(ctx, entry); err != nil {
		return fmt.Errorf("append financial history: %w", err)
	}
	return nil
}

func (s *Service) appendStatus(ctx context.Context, tx storage.Store, orderID string, status domain.OrderStatus, actorID, notes string, now time.Time) error {
	entry := &domain.StatusEntry{
		ID:        s.newID(),
		OrderID:   orderID,
		Status:    status,
		Notes:     notes,
		UpdatedBy: actorID,
		CreatedAt: now,
	}
	if err := tx.AppendStatusHistory(ctx, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, st storage.Store, actor domain.Actor, id string) (*domain.Order, error) {
	order, err := st.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.DeletedAt != nil || order.PlatformID != actor.PlatformID {
		return nil, domain.NotFound("order %s not found", id)
	}
	if actor.Role == domain.RoleClient && order.CompanyID != actor.CompanyID {
		return nil, domain.NotFound("order %s not found", id)
	}
	return order, nil
}

func (s *Service) pendingReskins(ctx context.Context, tx storage.Store, orderID string) (int, error) {
	reskins, err := tx.ListOrderReskins(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("list reskins: %w", err)
	}
	n := 0
	for _, r := range reskins {
		if r.Pending() {
			n++
		}
	}
	return n, nil
}

// checkActorMayTransition limits clients to answering a quote.
func checkActorMayTransition(actor domain.Actor, from, to domain.OrderStatus) error {
	if actor.IsStaff() || actor.Role == domain.RoleSystem {
		return nil
	}
	if from == domain.OrderStatusQuoted && (to == domain.OrderStatusConfirmed || to == domain.OrderStatusDeclined) {
		return nil
	}
	return domain.Forbidden("role %s cannot move an order from %s to %s", actor.Role, from, to)
}

func bookingRequests(items []domain.OrderItem) []inventory.Request {
	reqs := make([]inventory.Request, 0, len(items))
	for _, it := range items {
		reqs = append(reqs, inventory.Request{AssetID: it.AssetID, Quantity: it.Quantity})
	}
	return reqs
}
