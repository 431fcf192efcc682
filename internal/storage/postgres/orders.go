package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

const orderColumns = `id, platform_id, order_code, company_id, brand_id, requester_id, contact,
	event_start_date, event_end_date, venue, trip_type, vehicle_type, calculated_volume,
	calculated_weight, order_status, financial_status, job_number, delivery_window,
	pickup_window, pricing, tier_id, created_at, updated_at, deleted_at`

func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	args, err := orderArgs(order)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24)
	`, args...)
	if err != nil {
		return conflict(err, "order code %s already exists", order.OrderCode)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(s.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order *domain.Order) error {
	args, err := orderArgs(order)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE orders SET
			platform_id = $2, order_code = $3, company_id = $4, brand_id = $5, requester_id = $6,
			contact = $7, event_start_date = $8, event_end_date = $9, venue = $10, trip_type = $11,
			vehicle_type = $12, calculated_volume = $13, calculated_weight = $14, order_status = $15,
			financial_status = $16, job_number = $17, delivery_window = $18, pickup_window = $19,
			pricing = $20, tier_id = $21, created_at = $22, updated_at = $23, deleted_at = $24
		WHERE id = $1
	`, args...)
	if err != nil {
		return conflict(err, "order code %s already exists", order.OrderCode)
	}
	return expectOne(res, "order %s not found", order.ID)
}

func (s *Store) CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT count(*) FROM orders WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) ListOrdersEndingOn(ctx context.Context, status domain.OrderStatus, day time.Time) ([]domain.Order, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_status = $1 AND event_end_date = $2::date AND deleted_at IS NULL
		ORDER BY platform_id, created_at
	`, status, dateArg(day))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func orderArgs(o *domain.Order) ([]any, error) {
	contact, err := marshal(o.Contact)
	if err != nil {
		return nil, err
	}
	venue, err := marshal(o.Venue)
	if err != nil {
		return nil, err
	}
	delivery, err := marshalOptional(o.DeliveryWindow)
	if err != nil {
		return nil, err
	}
	pickup, err := marshalOptional(o.PickupWindow)
	if err != nil {
		return nil, err
	}
	var pricing any
	if len(o.Pricing) > 0 {
		pricing = []byte(o.Pricing)
	}

	return []any{
		o.ID, o.PlatformID, o.OrderCode, o.CompanyID, o.BrandID, o.RequesterID, contact,
		dateArg(o.EventStart), dateArg(o.EventEnd), venue, o.TripType, o.VehicleType, o.TotalVolume,
		o.TotalWeight, o.Status, o.FinancialStatus, o.JobNumber, delivery,
		pickup, pricing, o.TierID, o.CreatedAt, o.UpdatedAt, o.DeletedAt,
	}, nil
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                       domain.Order
		contact, venue, pricing []byte
		delivery, pickup        []byte
	)
	err := row.Scan(
		&o.ID, &o.PlatformID, &o.OrderCode, &o.CompanyID, &o.BrandID, &o.RequesterID, &contact,
		&o.EventStart, &o.EventEnd, &venue, &o.TripType, &o.VehicleType, &o.TotalVolume,
		&o.TotalWeight, &o.Status, &o.FinancialStatus, &o.JobNumber, &delivery,
		&pickup, &pricing, &o.TierID, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	o.EventStart = civil(o.EventStart)
	o.EventEnd = civil(o.EventEnd)
	if err := json.Unmarshal(contact, &o.Contact); err != nil {
		return nil, fmt.Errorf("unmarshal contact: %w", err)
	}
	if err := json.Unmarshal(venue, &o.Venue); err != nil {
		return nil, fmt.Errorf("unmarshal venue: %w", err)
	}
	if o.DeliveryWindow, err = unmarshalOptional[domain.TimeWindow](delivery); err != nil {
		return nil, err
	}
	if o.PickupWindow, err = unmarshalOptional[domain.TimeWindow](pickup); err != nil {
		return nil, err
	}
	if pricing != nil {
		o.Pricing = json.RawMessage(pricing)
	}
	return &o, nil
}

const orderItemColumns = `id, order_id, platform_id, asset_id, asset_name, quantity, volume_per_unit,
	weight_per_unit, total_volume, total_weight, from_collection, is_reskin_request,
	reskin_target_brand_id, reskin_target_brand_custom, reskin_notes, maintenance_decision,
	refurb_days_snapshot, created_at`

func (s *Store) CreateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO order_items (`+orderItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, orderItemArgs(item)...)
	if err != nil {
		return conflict(err, "order item %s already exists", item.ID)
	}
	return nil
}

func (s *Store) GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error) {
	item, err := scanOrderItem(s.q.QueryRowContext(ctx, `
		SELECT `+orderItemColumns+` FROM order_items WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) UpdateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE order_items SET
			order_id = $2, platform_id = $3, asset_id = $4, asset_name = $5, quantity = $6,
			volume_per_unit = $7, weight_per_unit = $8, total_volume = $9, total_weight = $10,
			from_collection = $11, is_reskin_request = $12, reskin_target_brand_id = $13,
			reskin_target_brand_custom = $14, reskin_notes = $15, maintenance_decision = $16,
			refurb_days_snapshot = $17, created_at = $18
		WHERE id = $1
	`, orderItemArgs(item)...)
	if err != nil {
		return err
	}
	return expectOne(res, "order item %s not found", item.ID)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+orderItemColumns+`
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func orderItemArgs(i *domain.OrderItem) []any {
	return []any{
		i.ID, i.OrderID, i.PlatformID, i.AssetID, i.AssetName, i.Quantity, i.UnitVolume,
		i.UnitWeight, i.TotalVolume, i.TotalWeight, i.CollectionID, i.IsReskinRequest,
		i.ReskinTargetBrandID, i.ReskinCustomBrand, i.ReskinNotes, i.MaintenanceDecision,
		i.RefurbDaysSnapshot, i.CreatedAt,
	}
}

func scanOrderItem(row scanner) (*domain.OrderItem, error) {
	var i domain.OrderItem
	err := row.Scan(
		&i.ID, &i.OrderID, &i.PlatformID, &i.AssetID, &i.AssetName, &i.Quantity, &i.UnitVolume,
		&i.UnitWeight, &i.TotalVolume, &i.TotalWeight, &i.CollectionID, &i.IsReskinRequest,
		&i.ReskinTargetBrandID, &i.ReskinCustomBrand, &i.ReskinNotes, &i.MaintenanceDecision,
		&i.RefurbDaysSnapshot, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *Store) AppendStatusHistory(ctx context.Context, e *domain.StatusEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, status, notes, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.OrderID, e.Status, e.Notes, e.UpdatedBy, e.CreatedAt)
	return err
}

func (s *Store) AppendFinancialHistory(ctx context.Context, e *domain.FinancialEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO financial_status_history (id, order_id, status, notes, updated_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.OrderID, e.Status, e.Notes, e.UpdatedBy, e.CreatedAt)
	return err
}

func (s *Store) ListStatusHistory(ctx context.Context, orderID string) ([]domain.StatusEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, order_id, status, notes, updated_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.StatusEntry
	for rows.Next() {
		var e domain.StatusEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Notes, &e.UpdatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) ListFinancialHistory(ctx context.Context, orderID string) ([]domain.FinancialEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, order_id, status, notes, updated_by, created_at
		FROM financial_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.FinancialEntry
	for rows.Next() {
		var e domain.FinancialEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Notes, &e.UpdatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
