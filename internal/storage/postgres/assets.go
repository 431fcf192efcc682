package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

const assetColumns = `id, platform_id, company_id, warehouse_id, brand_id, name, qr_code,
	tracking_method, total_quantity, available_quantity, condition, condition_notes,
	refurb_days_estimate, status, volume_per_unit, weight_per_unit, length, width, height,
	packaging, transformed_from, transformed_to, condition_history, last_scanned_at,
	last_scanned_by, created_at, updated_at`

func (s *Store) CreateAsset(ctx context.Context, a *domain.Asset) error {
	args, err := assetArgs(a)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)
	`, args...)
	if err != nil {
		return conflict(err, "asset %s or qr code %s already exists", a.ID, a.QRCode)
	}
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	return s.getAsset(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
}

func (s *Store) GetAssetByQRCode(ctx context.Context, qrCode string) (*domain.Asset, error) {
	return s.getAsset(ctx, `SELECT `+assetColumns+` FROM assets WHERE qr_code = $1`, qrCode)
}

func (s *Store) getAsset(ctx context.Context, query string, arg string) (*domain.Asset, error) {
	a, err := scanAsset(s.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAssets(ctx context.Context, ids []string) ([]domain.Asset, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var assets []domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// LockAssets locks rows in id order so concurrent confirmations of
// overlapping orders queue instead of deadlocking.
func (s *Store) LockAssets(ctx context.Context, ids []string) error {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id FROM assets WHERE id = ANY($1) ORDER BY id FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("lock assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("lock assets: %w", err)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateAsset(ctx context.Context, a *domain.Asset) error {
	args, err := assetArgs(a)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE assets SET
			platform_id = $2, company_id = $3, warehouse_id = $4, brand_id = $5, name = $6,
			qr_code = $7, tracking_method = $8, total_quantity = $9, available_quantity = $10,
			condition = $11, condition_notes = $12, refurb_days_estimate = $13, status = $14,
			volume_per_unit = $15, weight_per_unit = $16, length = $17, width = $18, height = $19,
			packaging = $20, transformed_from = $21, transformed_to = $22, condition_history = $23,
			last_scanned_at = $24, last_scanned_by = $25, created_at = $26, updated_at = $27
		WHERE id = $1
	`, args...)
	if err != nil {
		return conflict(err, "qr code %s is already in use", a.QRCode)
	}
	return expectOne(res, "asset %s not found", a.ID)
}

func assetArgs(a *domain.Asset) ([]any, error) {
	history := a.ConditionHistory
	if history == nil {
		history = []domain.ConditionChange{}
	}
	historyJSON, err := marshal(history)
	if err != nil {
		return nil, err
	}

	return []any{
		a.ID, a.PlatformID, a.CompanyID, a.WarehouseID, a.BrandID, a.Name, a.QRCode,
		a.TrackingMethod, a.TotalQuantity, a.AvailableQuantity, a.Condition, a.ConditionNotes,
		a.RefurbDaysEstimate, a.Status, a.Volume, a.Weight, a.Dimensions.Length, a.Dimensions.Width, a.Dimensions.Height,
		a.Packaging, a.TransformedFrom, a.TransformedTo, historyJSON, a.LastScannedAt,
		a.LastScannedBy, a.CreatedAt, a.UpdatedAt,
	}, nil
}

func scanAsset(row scanner) (*domain.Asset, error) {
	var (
		a       domain.Asset
		history []byte
	)
	err := row.Scan(
		&a.ID, &a.PlatformID, &a.CompanyID, &a.WarehouseID, &a.BrandID, &a.Name, &a.QRCode,
		&a.TrackingMethod, &a.TotalQuantity, &a.AvailableQuantity, &a.Condition, &a.ConditionNotes,
		&a.RefurbDaysEstimate, &a.Status, &a.Volume, &a.Weight, &a.Dimensions.Length, &a.Dimensions.Width, &a.Dimensions.Height,
		&a.Packaging, &a.TransformedFrom, &a.TransformedTo, &history, &a.LastScannedAt,
		&a.LastScannedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &a.ConditionHistory); err != nil {
		return nil, fmt.Errorf("unmarshal condition history: %w", err)
	}
	return &a, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *domain.AssetBooking) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO asset_bookings (id, asset_id, order_id, quantity, blocked_from, blocked_until, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::date, $7)
	`, b.ID, b.AssetID, b.OrderID, b.Quantity, dateArg(b.BlockedFrom), dateArg(b.BlockedUntil), b.CreatedAt)
	return err
}

const bookingColumns = `b.id, b.asset_id, b.order_id, b.quantity, b.blocked_from, b.blocked_until, b.created_at`

func (s *Store) ListOrderBookings(ctx context.Context, orderID string) ([]domain.AssetBooking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM asset_bookings b
		WHERE b.order_id = $1
		ORDER BY b.created_at, b.id
	`, orderID)
}

func (s *Store) ListActiveBookings(ctx context.Context, assetID string, statuses []domain.OrderStatus, from, to time.Time) ([]domain.AssetBooking, error) {
	return s.listBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM asset_bookings b
		JOIN orders o ON o.id = b.order_id
		WHERE b.asset_id = $1
			AND o.order_status = ANY($2)
			AND o.deleted_at IS NULL
			AND b.blocked_from <= $4::date
			AND b.blocked_until >= $3::date
		ORDER BY b.blocked_until, b.id
	`, assetID, pq.Array(statusArgs(statuses)), dateArg(from), dateArg(to))
}

func (s *Store) listBookings(ctx context.Context, query string, args ...any) ([]domain.AssetBooking, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var bookings []domain.AssetBooking
	for rows.Next() {
		var b domain.AssetBooking
		if err := rows.Scan(&b.ID, &b.AssetID, &b.OrderID, &b.Quantity, &b.BlockedFrom, &b.BlockedUntil, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.BlockedFrom = civil(b.BlockedFrom)
		b.BlockedUntil = civil(b.BlockedUntil)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *Store) DeleteOrderBookings(ctx context.Context, orderID string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM asset_bookings WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *Store) ReassignBookings(ctx context.Context, orderID, fromAssetID, toAssetID string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE asset_bookings SET asset_id = $3 WHERE order_id = $1 AND asset_id = $2
	`, orderID, fromAssetID, toAssetID)
	return err
}

const selfBookingColumns = `id, platform_id, asset_id, quantity, returned_quantity, status, booked_by,
	reason, created_at, updated_at`

func (s *Store) CreateSelfBooking(ctx context.Context, item *domain.SelfBookingItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO self_booking_items (`+selfBookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.PlatformID, item.AssetID, item.Quantity, item.ReturnedQuantity, item.Status, item.BookedBy,
		item.Reason, item.CreatedAt, item.UpdatedAt)
	return err
}

func (s *Store) GetSelfBooking(ctx context.Context, id string) (*domain.SelfBookingItem, error) {
	item, err := scanSelfBooking(s.q.QueryRowContext(ctx, `
		SELECT `+selfBookingColumns+` FROM self_booking_items WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) UpdateSelfBooking(ctx context.Context, item *domain.SelfBookingItem) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE self_booking_items
		SET quantity = $2, returned_quantity = $3, status = $4, reason = $5, updated_at = $6
		WHERE id = $1
	`, item.ID, item.Quantity, item.ReturnedQuantity, item.Status, item.Reason, item.UpdatedAt)
	if err != nil {
		return err
	}
	return expectOne(res, "self booking %s not found", item.ID)
}

func (s *Store) ListOutstandingSelfBookings(ctx context.Context, assetID string) ([]domain.SelfBookingItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+selfBookingColumns+`
		FROM self_booking_items
		WHERE asset_id = $1 AND status = $2
		ORDER BY created_at, id
	`, assetID, domain.SelfBookingOut)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.SelfBookingItem
	for rows.Next() {
		item, err := scanSelfBooking(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanSelfBooking(row scanner) (*domain.SelfBookingItem, error) {
	var i domain.SelfBookingItem
	err := row.Scan(&i.ID, &i.PlatformID, &i.AssetID, &i.Quantity, &i.ReturnedQuantity, &i.Status, &i.BookedBy,
		&i.Reason, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
