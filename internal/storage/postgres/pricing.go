package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/assetflow/internal/domain"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

const lineItemColumns = `id, platform_id, order_id, line_item_code, line_item_type, category,
	service_type_id, reskin_request_id, description, quantity, unit, unit_rate, total, notes,
	added_by, is_voided, voided_at, voided_by, void_reason, created_at, updated_at`

func (s *Store) CreateLineItem(ctx context.Context, li *domain.LineItem) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO order_line_items (`+lineItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21)
	`, lineItemArgs(li)...)
	if err != nil {
		return conflict(err, "line item code %s already exists", li.Code)
	}
	return nil
}

func (s *Store) GetLineItem(ctx context.Context, id string) (*domain.LineItem, error) {
	li, err := scanLineItem(s.q.QueryRowContext(ctx, `
		SELECT `+lineItemColumns+` FROM order_line_items WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return li, nil
}

func (s *Store) UpdateLineItem(ctx context.Context, li *domain.LineItem) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE order_line_items SET
			platform_id = $2, order_id = $3, line_item_code = $4, line_item_type = $5, category = $6,
			service_type_id = $7, reskin_request_id = $8, description = $9, quantity = $10, unit = $11,
			unit_rate = $12, total = $13, notes = $14, added_by = $15, is_voided = $16, voided_at = $17,
			voided_by = $18, void_reason = $19, created_at = $20, updated_at = $21
		WHERE id = $1
	`, lineItemArgs(li)...)
	if err != nil {
		return conflict(err, "line item code %s already exists", li.Code)
	}
	return expectOne(res, "line item %s not found", li.ID)
}

func (s *Store) ListLineItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+lineItemColumns+`
		FROM order_line_items
		WHERE order_id = $1
		ORDER BY created_at, line_item_code
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *li)
	}
	return items, rows.Err()
}

func (s *Store) CountLineItems(ctx context.Context, platformID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT count(*) FROM order_line_items WHERE platform_id = $1
	`, platformID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func lineItemArgs(li *domain.LineItem) []any {
	return []any{
		li.ID, li.PlatformID, li.OrderID, li.Code, li.Type, li.Category,
		li.ServiceTypeID, li.ReskinRequestID, li.Description, li.Quantity, li.Unit, li.UnitRate, li.Total, li.Notes,
		li.AddedBy, li.IsVoided, li.VoidedAt, li.VoidedBy, li.VoidReason, li.CreatedAt, li.UpdatedAt,
	}
}

func scanLineItem(row scanner) (*domain.LineItem, error) {
	var li domain.LineItem
	err := row.Scan(
		&li.ID, &li.PlatformID, &li.OrderID, &li.Code, &li.Type, &li.Category,
		&li.ServiceTypeID, &li.ReskinRequestID, &li.Description, &li.Quantity, &li.Unit, &li.UnitRate, &li.Total, &li.Notes,
		&li.AddedBy, &li.IsVoided, &li.VoidedAt, &li.VoidedBy, &li.VoidReason, &li.CreatedAt, &li.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &li, nil
}

func (s *Store) GetServiceType(ctx context.Context, id string) (*domain.ServiceType, error) {
	var t domain.ServiceType
	err := s.q.QueryRowContext(ctx, `
		SELECT id, platform_id, name, category, unit, default_rate, is_active
		FROM service_types
		WHERE id = $1
	`, id).Scan(&t.ID, &t.PlatformID, &t.Name, &t.Category, &t.Unit, &t.DefaultRate, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const reskinColumns = `id, platform_id, order_id, order_item_id, original_asset_id, original_asset_name,
	target_brand_id, target_brand_custom, client_notes, admin_notes, line_item_id, new_asset_id,
	new_asset_name, completion_photos, completion_notes, completed_at, completed_by, cancelled_at,
	cancelled_by, cancellation_reason, created_by, created_at`

func (s *Store) CreateReskin(ctx context.Context, r *domain.ReskinRequest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO reskin_requests (`+reskinColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22)
	`, reskinArgs(r)...)
	if err != nil {
		return conflict(err, "order item %s already has a reskin request", r.OrderItemID)
	}
	return nil
}

func (s *Store) GetReskin(ctx context.Context, id string) (*domain.ReskinRequest, error) {
	return s.getReskin(ctx, `SELECT `+reskinColumns+` FROM reskin_requests WHERE id = $1`, id)
}

func (s *Store) GetReskinByOrderItem(ctx context.Context, orderItemID string) (*domain.ReskinRequest, error) {
	return s.getReskin(ctx, `SELECT `+reskinColumns+` FROM reskin_requests WHERE order_item_id = $1`, orderItemID)
}

func (s *Store) getReskin(ctx context.Context, query, arg string) (*domain.ReskinRequest, error) {
	r, err := scanReskin(s.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) UpdateReskin(ctx context.Context, r *domain.ReskinRequest) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE reskin_requests SET
			platform_id = $2, order_id = $3, order_item_id = $4, original_asset_id = $5,
			original_asset_name = $6, target_brand_id = $7, target_brand_custom = $8, client_notes = $9,
			admin_notes = $10, line_item_id = $11, new_asset_id = $12, new_asset_name = $13,
			completion_photos = $14, completion_notes = $15, completed_at = $16, completed_by = $17,
			cancelled_at = $18, cancelled_by = $19, cancellation_reason = $20, created_by = $21,
			created_at = $22
		WHERE id = $1
	`, reskinArgs(r)...)
	if err != nil {
		return err
	}
	return expectOne(res, "reskin request %s not found", r.ID)
}

func (s *Store) ListOrderReskins(ctx context.Context, orderID string) ([]domain.ReskinRequest, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+reskinColumns+`
		FROM reskin_requests
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ReskinRequest
	for rows.Next() {
		r, err := scanReskin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func reskinArgs(r *domain.ReskinRequest) []any {
	return []any{
		r.ID, r.PlatformID, r.OrderID, r.OrderItemID, r.OriginalAssetID, r.OriginalAssetName,
		r.TargetBrandID, r.TargetBrandCustom, r.ClientNotes, r.AdminNotes, r.LineItemID, r.NewAssetID,
		r.NewAssetName, pq.Array(nonNil(r.CompletionPhotos)), r.CompletionNotes, r.CompletedAt, r.CompletedBy, r.CancelledAt,
		r.CancelledBy, r.CancellationReason, r.CreatedBy, r.CreatedAt,
	}
}

func scanReskin(row scanner) (*domain.ReskinRequest, error) {
	var r domain.ReskinRequest
	err := row.Scan(
		&r.ID, &r.PlatformID, &r.OrderID, &r.OrderItemID, &r.OriginalAssetID, &r.OriginalAssetName,
		&r.TargetBrandID, &r.TargetBrandCustom, &r.ClientNotes, &r.AdminNotes, &r.LineItemID, &r.NewAssetID,
		&r.NewAssetName, pq.Array(&r.CompletionPhotos), &r.CompletionNotes, &r.CompletedAt, &r.CompletedBy, &r.CancelledAt,
		&r.CancelledBy, &r.CancellationReason, &r.CreatedBy, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) AppendScanEvent(ctx context.Context, e *domain.ScanEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO scan_events (id, order_id, asset_id, scan_type, quantity, condition, notes, photos,
			discrepancy_reason, scanned_by, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.OrderID, e.AssetID, e.ScanType, e.Quantity, e.Condition, e.Notes, pq.Array(nonNil(e.Photos)),
		e.DiscrepancyReason, e.ScannedBy, e.ScannedAt)
	return err
}

func (s *Store) ListScanEvents(ctx context.Context, orderID string) ([]domain.ScanEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, order_id, asset_id, scan_type, quantity, condition, notes, photos,
			discrepancy_reason, scanned_by, scanned_at
		FROM scan_events
		WHERE order_id = $1
		ORDER BY scanned_at, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []domain.ScanEvent
	for rows.Next() {
		var e domain.ScanEvent
		err := rows.Scan(&e.ID, &e.OrderID, &e.AssetID, &e.ScanType, &e.Quantity, &e.Condition, &e.Notes, pq.Array(&e.Photos),
			&e.DiscrepancyReason, &e.ScannedBy, &e.ScannedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) FindPricingConfig(ctx context.Context, platformID string, companyID *string) (*domain.PricingConfig, error) {
	var c domain.PricingConfig
	err := s.q.QueryRowContext(ctx, `
		SELECT id, platform_id, company_id, warehouse_ops_rate, is_active
		FROM pricing_configs
		WHERE platform_id = $1 AND company_id IS NOT DISTINCT FROM $2 AND is_active
		LIMIT 1
	`, platformID, companyID).Scan(&c.ID, &c.PlatformID, &c.CompanyID, &c.WarehouseOpsRate, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindTransportRate(ctx context.Context, q storage.TransportRateQuery) (*domain.TransportRate, error) {
	var r domain.TransportRate
	err := s.q.QueryRowContext(ctx, `
		SELECT id, platform_id, company_id, emirate, trip_type, vehicle_type, rate, is_active
		FROM transport_rates
		WHERE platform_id = $1
			AND company_id IS NOT DISTINCT FROM $2
			AND emirate = $3
			AND trip_type = $4
			AND vehicle_type = $5
			AND is_active
		LIMIT 1
	`, q.PlatformID, q.CompanyID, q.Emirate, q.TripType, q.VehicleType).Scan(
		&r.ID, &r.PlatformID, &r.CompanyID, &r.Emirate, &r.TripType, &r.VehicleType, &r.Rate, &r.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetPlatformSettings(ctx context.Context, platformID string) (*domain.PlatformSettings, error) {
	var (
		ps       domain.PlatformSettings
		weekend  []int64
		systemID sql.NullString
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT platform_id, margin_percent, minimum_lead_hours, exclude_weekends, weekend_days,
			timezone, system_user_id
		FROM platform_settings
		WHERE platform_id = $1
	`, platformID).Scan(&ps.PlatformID, &ps.MarginPercent, &ps.MinimumLeadHours, &ps.ExcludeWeekends,
		pq.Array(&weekend), &ps.Timezone, &systemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ps.SystemUserID = systemID.String
	ps.WeekendDays = make([]time.Weekday, len(weekend))
	for i, d := range weekend {
		ps.WeekendDays[i] = time.Weekday(d)
	}
	return &ps, nil
}
