// Package lineitems is the append-only ledger of priced charge rows on an
// order. Rows are voided, never deleted, and totals are always recomputed
// from the non-voided rows.
package lineitems

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

// Repricer refreshes an order's pricing snapshot inside the transaction
// that changed its line items.
type Repricer interface {
	RepriceWithin(ctx context.Context, tx storage.Store, orderID, actorID string) error
}

type Totals struct {
	Catalog decimal.Decimal `json:"catalog_total"`
	Custom  decimal.Decimal `json:"custom_total"`
}

func (t Totals) Sum() decimal.Decimal {
	return t.Catalog.Add(t.Custom)
}

// Summarize sums non-voided rows by type.
func Summarize(items []domain.LineItem) Totals {
	t := Totals{Catalog: decimal.Zero, Custom: decimal.Zero}
	for _, it := range items {
		if it.IsVoided {
			continue
		}
		switch it.Type {
		case domain.LineItemCatalog:
			t.Catalog = t.Catalog.Add(it.Total)
		case domain.LineItemCustom:
			t.Custom = t.Custom.Add(it.Total)
		}
	}
	return t
}

type CatalogInput struct {
	OrderID       string           `json:"order_id"`
	ServiceTypeID string           `json:"service_type_id"`
	Quantity      decimal.Decimal  `json:"quantity"`
	UnitRate      *decimal.Decimal `json:"unit_rate,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

type CustomInput struct {
	OrderID         string                  `json:"order_id"`
	Description     string                  `json:"description"`
	Category        domain.LineItemCategory `json:"category"`
	Total           decimal.Decimal         `json:"total"`
	Notes           *string                 `json:"notes,omitempty"`
	ReskinRequestID *string                 `json:"-"`
}

type UpdateInput struct {
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitRate    *decimal.Decimal `json:"unit_rate,omitempty"`
	Total       *decimal.Decimal `json:"total,omitempty"`
	Description *string          `json:"description,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

type Ledger struct {
	store    storage.Store
	repricer Repricer
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewLedger(store storage.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// UseRepricer wires the order pricing refresh run after every change.
func (l *Ledger) UseRepricer(r Repricer) {
	l.repricer = r
}

func (l *Ledger) AddCatalog(ctx context.Context, actor domain.Actor, in CatalogInput) (*domain.LineItem, error) {
	if !in.Quantity.IsPositive() {
		return nil, domain.Validation("quantity must be greater than zero")
	}
	if in.UnitRate != nil && in.UnitRate.IsNegative() {
		return nil, domain.Validation("unit rate cannot be negative")
	}

	var created *domain.LineItem
	err := l.store.WithinTx(ctx, func(tx storage.Store) error {
		order, err := editableOrder(ctx, tx, actor, in.OrderID)
		if err != nil {
			return err
		}

		st, err := tx.GetServiceType(ctx, in.ServiceTypeID)
		if err != nil {
			return fmt.Errorf("get service type: %w", err)
		}
		if st == nil || st.PlatformID != order.PlatformID {
			return domain.NotFound("service type %s not found", in.ServiceTypeID)
		}
		if !st.IsActive {
			return domain.Validation("service type %s is inactive", st.Name)
		}

		rate := in.UnitRate
		if rate == nil {
			rate = st.DefaultRate
		}
		if rate == nil {
			return domain.Validation("service type %s has no default rate, a unit rate is required", st.Name)
		}

		qty := in.Quantity
		r := *rate
		unit := st.Unit
		item := &domain.LineItem{
			PlatformID:    order.PlatformID,
			OrderID:       order.ID,
			Type:          domain.LineItemCatalog,
			Category:      st.Category,
			ServiceTypeID: &st.ID,
			Description:   st.Name,
			Quantity:      &qty,
			Unit:          &unit,
			UnitRate:      &r,
			Total:         qty.Mul(r),
			Notes:         in.Notes,
			AddedBy:       actor.ID,
		}
		if err := l.insert(ctx, tx, item); err != nil {
			return err
		}
		created = item
		return l.reprice(ctx, tx, order.ID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("catalog line item added", "order_id", created.OrderID, "line_item", created.Code, "total", created.Total.StringFixed(2))
	return created, nil
}

func (l *Ledger) AddCustom(ctx context.Context, actor domain.Actor, in CustomInput) (*domain.LineItem, error) {
	var created *domain.LineItem
	err := l.store.WithinTx(ctx, func(tx storage.Store) error {
		order, err := editableOrder(ctx, tx, actor, in.OrderID)
		if err != nil {
			return err
		}
		created, err = l.AddCustomWithin(ctx, tx, order, actor.ID, in)
		if err != nil {
			return err
		}
		return l.reprice(ctx, tx, order.ID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("custom line item added", "order_id", created.OrderID, "line_item", created.Code, "total", created.Total.StringFixed(2))
	return created, nil
}

// AddCustomWithin inserts a custom row inside the caller's transaction
// without the status guard or repricing.
func (l *Ledger) AddCustomWithin(ctx context.Context, tx storage.Store, order *domain.Order, actorID string, in CustomInput) (*domain.LineItem, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, domain.Validation("description is required")
	}
	if !in.Category.Valid() {
		return nil, domain.Validation("unknown line item category %q", in.Category)
	}

	item := &domain.LineItem{
		PlatformID:      order.PlatformID,
		OrderID:         order.ID,
		Type:            domain.LineItemCustom,
		Category:        in.Category,
		ReskinRequestID: in.ReskinRequestID,
		Description:     desc,
		Total:           in.Total,
		Notes:           in.Notes,
		AddedBy:         actorID,
	}
	if err := l.insert(ctx, tx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (l *Ledger) Update(ctx context.Context, actor domain.Actor, id string, in UpdateInput) (*domain.LineItem, error) {
	var updated *domain.LineItem
	err := l.store.WithinTx(ctx, func(tx storage.Store) error {
		item, err := tx.GetLineItem(ctx, id)
		if err != nil {
			return fmt.Errorf("get line item: %w", err)
		}
		if item == nil {
			return domain.NotFound("line item %s not found", id)
		}
		if _, err := editableOrder(ctx, tx, actor, item.OrderID); err != nil {
			return err
		}
		if item.IsVoided {
			return domain.Conflict("line item %s is voided", item.Code)
		}

		if in.Description != nil {
			desc := strings.TrimSpace(*in.Description)
			if desc == "" {
				return domain.Validation("description cannot be empty")
			}
			item.Description = desc
		}
		if in.Notes != nil {
			item.Notes = in.Notes
		}

		switch item.Type {
		case domain.LineItemCatalog:
			if in.Total != nil {
				return domain.Validation("catalog line item totals are computed from quantity and unit rate")
			}
			if in.Quantity != nil {
				if !in.Quantity.IsPositive() {
					return domain.Validation("quantity must be greater than zero")
				}
				q := *in.Quantity
				item.Quantity = &q
			}
			if in.UnitRate != nil {
				if in.UnitRate.IsNegative() {
					return domain.Validation("unit rate cannot be negative")
				}
				r := *in.UnitRate
				item.UnitRate = &r
			}
			item.Total = item.Quantity.Mul(*item.UnitRate)
		case domain.LineItemCustom:
			if in.Quantity != nil || in.UnitRate != nil {
				return domain.Validation("custom line items only carry a total")
			}
			if in.Total != nil {
				item.Total = *in.Total
			}
		}

		item.UpdatedAt = l.now()
		if err := tx.UpdateLineItem(ctx, item); err != nil {
			return fmt.Errorf("update line item: %w", err)
		}
		updated = item
		return l.reprice(ctx, tx, item.OrderID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("line item updated", "order_id", updated.OrderID, "line_item", updated.Code, "total", updated.Total.StringFixed(2))
	return updated, nil
}

func (l *Ledger) Void(ctx context.Context, actor domain.Actor, id, reason string) (*domain.LineItem, error) {
	var voided *domain.LineItem
	err := l.store.WithinTx(ctx, func(tx storage.Store) error {
		item, err := tx.GetLineItem(ctx, id)
		if err != nil {
			return fmt.Errorf("get line item: %w", err)
		}
		if item == nil {
			return domain.NotFound("line item %s not found", id)
		}
		if _, err := editableOrder(ctx, tx, actor, item.OrderID); err != nil {
			return err
		}
		if err := l.VoidWithin(ctx, tx, item, actor.ID, reason); err != nil {
			return err
		}
		voided = item
		return l.reprice(ctx, tx, item.OrderID, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("line item voided", "order_id", voided.OrderID, "line_item", voided.Code)
	return voided, nil
}

// VoidWithin voids item inside the caller's transaction. Voiding is one-way;
// a second void is a Conflict and the total is left untouched.
func (l *Ledger) VoidWithin(ctx context.Context, tx storage.Store, item *domain.LineItem, actorID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Validation("a void reason is required")
	}
	if item.IsVoided {
		return domain.Conflict("line item %s is already voided", item.Code)
	}

	now := l.now()
	item.IsVoided = true
	item.VoidedAt = &now
	item.VoidedBy = &actorID
	item.VoidReason = &reason
	item.UpdatedAt = now
	if err := tx.UpdateLineItem(ctx, item); err != nil {
		return fmt.Errorf("void line item: %w", err)
	}
	return nil
}

// List returns every row on the order, voided ones included.
func (l *Ledger) List(ctx context.Context, actor domain.Actor, orderID string) ([]domain.LineItem, error) {
	order, err := scopedOrder(ctx, l.store, actor, orderID)
	if err != nil {
		return nil, err
	}
	items, err := l.store.ListLineItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return items, nil
}

func (l *Ledger) Totals(ctx context.Context, actor domain.Actor, orderID string) (Totals, error) {
	items, err := l.List(ctx, actor, orderID)
	if err != nil {
		return Totals{}, err
	}
	return Summarize(items), nil
}

func (l *Ledger) insert(ctx context.Context, tx storage.Store, item *domain.LineItem) error {
	n, err := tx.CountLineItems(ctx, item.PlatformID)
	if err != nil {
		return fmt.Errorf("count line items: %w", err)
	}
	now := l.now()
	item.ID = l.newID()
	item.Code = fmt.Sprintf("K-%06d", n+1)
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := tx.CreateLineItem(ctx, item); err != nil {
		return fmt.Errorf("create line item: %w", err)
	}
	return nil
}

func (l *Ledger) reprice(ctx context.Context, tx storage.Store, orderID, actorID string) error {
	if l.repricer == nil {
		return nil
	}
	return l.repricer.RepriceWithin(ctx, tx, orderID, actorID)
}

// scopedOrder loads an order the staff actor's platform owns. Orders of
// other platforms are reported as missing.
func scopedOrder(ctx context.Context, st storage.Store, actor domain.Actor, orderID string) (*domain.Order, error) {
	if !actor.IsStaff() {
		return nil, domain.Forbidden("role %s cannot manage line items", actor.Role)
	}
	order, err := st.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.PlatformID != actor.PlatformID {
		return nil, domain.NotFound("order %s not found", orderID)
	}
	return order, nil
}

func editableOrder(ctx context.Context, tx storage.Store, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := scopedOrder(ctx, tx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CheckLineItemsEditable(order.Status); err != nil {
		return nil, err
	}
	return order, nil
}
