// Package inventory owns assets and the booking ledger that decides how
// much of an asset is free over a date window.
package inventory

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
	"github.com/joao-fontenele/assetflow/internal/lifecycle"
	"github.com/joao-fontenele/assetflow/internal/storage"
)

var tracer = otel.Tracer("inventory")

type Service struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(store storage.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// Check reports availability of every request over the window without
// reserving anything.
func (s *Service) Check(ctx context.Context, platformID string, window Window, reqs []Request) (Report, error) {
	ctx, span := tracer.Start(ctx, "inventory.check", trace.WithAttributes(
		attribute.String("platform.id", platformID),
		attribute.Int("inventory.requests", len(reqs)),
	))
	defer span.End()

	return s.report(ctx, s.store, platformID, window, reqs)
}

// Require is Check inside the caller's transaction that fails with a
// Conflict carrying the shortfalls when any request cannot be met.
func (s *Service) Require(ctx context.Context, tx storage.Store, platformID string, window Window, reqs []Request) (Report, error) {
	rep, err := s.report(ctx, tx, platformID, window, reqs)
	if err != nil {
		return Report{}, err
	}
	if !rep.OK() {
		short := rep.Shortfalls()
		return rep, domain.WithDetails(
			domain.Conflict("insufficient availability for %d asset(s), first: %s", len(short), short[0].AssetName),
			short,
		)
	}
	return rep, nil
}

// Reserve locks the requested assets, re-checks availability and books
// them for the order inside tx. The order's existing bookings are replaced.
func (s *Service) Reserve(ctx context.Context, tx storage.Store, order *domain.Order, reqs []Request) ([]domain.AssetBooking, error) {
	ctx, span := tracer.Start(ctx, "inventory.reserve", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	merged, err := merge(reqs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(merged))
	for i, r := range merged {
		ids[i] = r.AssetID
	}
	if err := tx.LockAssets(ctx, ids); err != nil {
		return nil, fmt.Errorf("lock assets: %w", err)
	}
	if _, err := tx.DeleteOrderBookings(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("clear order bookings: %w", err)
	}

	window := Window{Start: order.EventStart, End: order.EventEnd}
	if _, err := s.Require(ctx, tx, order.PlatformID, window, merged); err != nil {
		return nil, err
	}

	now := s.now()
	bookings := make([]domain.AssetBooking, 0, len(merged))
	for _, r := range merged {
		b := domain.AssetBooking{
			ID:           s.newID(),
			AssetID:      r.AssetID,
			OrderID:      order.ID,
			Quantity:     r.Quantity,
			BlockedFrom:  window.Start,
			BlockedUntil: window.End,
			CreatedAt:    now,
		}
		if err := tx.CreateBooking(ctx, &b); err != nil {
			return nil, fmt.Errorf("create booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	s.logger.Info("assets reserved", "order_id", order.ID, "bookings", len(bookings))
	return bookings, nil
}

// Release deletes every booking held by the order.
func (s *Service) Release(ctx context.Context, tx storage.Store, orderID string) (int, error) {
	n, err := tx.DeleteOrderBookings(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("release bookings: %w", err)
	}
	if n > 0 {
		s.logger.Info("bookings released", "order_id", orderID, "count", n)
	}
	return n, nil
}

func (s *Service) report(ctx context.Context, st storage.Store, platformID string, window Window, reqs []Request) (Report, error) {
	if err := window.validate(); err != nil {
		return Report{}, err
	}
	merged, err := merge(reqs)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Window: window, Lines: make([]Line, 0, len(merged))}
	for _, r := range merged {
		asset, err := st.GetAsset(ctx, r.AssetID)
		if err != nil {
			return Report{}, fmt.Errorf("get asset: %w", err)
		}
		if asset == nil || asset.PlatformID != platformID {
			return Report{}, domain.NotFound("asset %s not found", r.AssetID)
		}

		bookings, err := st.ListActiveBookings(ctx, asset.ID, lifecycle.BookingStatuses, window.Start, window.End)
		if err != nil {
			return Report{}, fmt.Errorf("list bookings: %w", err)
		}
		self, err := st.ListOutstandingSelfBookings(ctx, asset.ID)
		if err != nil {
			return Report{}, fmt.Errorf("list self bookings: %w", err)
		}
		rep.Lines = append(rep.Lines, evaluate(*asset, r.Quantity, bookings, self))
	}
	return rep, nil
}

type NewAsset struct {
	CompanyID          string                `json:"company_id"`
	WarehouseID        string                `json:"warehouse_id"`
	BrandID            *string               `json:"brand_id,omitempty"`
	Name               string                `json:"name"`
	QRCode             string                `json:"qr_code,omitempty"`
	TrackingMethod     domain.TrackingMethod `json:"tracking_method"`
	TotalQuantity      int                   `json:"total_quantity"`
	Condition          domain.Condition      `json:"condition,omitempty"`
	ConditionNotes     *string               `json:"condition_notes,omitempty"`
	RefurbDaysEstimate *int                  `json:"refurb_days_estimate,omitempty"`
	Volume             decimal.Decimal       `json:"volume_per_unit"`
	Weight             decimal.Decimal       `json:"weight_per_unit"`
	Dimensions         domain.Dimensions     `json:"dimensions"`
	Packaging          *string               `json:"packaging,omitempty"`
}

// CreateAsset registers inventory. An INDIVIDUAL asset with a total above
// one becomes that many single-unit rows with suffixed QR codes.
func (s *Service) CreateAsset(ctx context.Context, actor domain.Actor, in NewAsset) ([]domain.Asset, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.Validation("asset name is required")
	}
	if !in.TrackingMethod.Valid() {
		return nil, domain.Validation("unknown tracking method %q", in.TrackingMethod)
	}
	if in.TotalQuantity <= 0 {
		return nil, domain.Validation("total quantity must be greater than zero")
	}
	if in.Condition == "" {
		in.Condition = domain.ConditionGreen
	}
	if !in.Condition.Valid() {
		return nil, domain.Validation("unknown condition %q", in.Condition)
	}
	if in.Volume.IsNegative() || in.Weight.IsNegative() {
		return nil, domain.Validation("volume and weight cannot be negative")
	}
	if in.RefurbDaysEstimate != nil && *in.RefurbDaysEstimate < 0 {
		return nil, domain.Validation("refurbishment estimate cannot be negative")
	}

	qr := strings.TrimSpace(in.QRCode)
	if qr == "" {
		qr = NewQRCode()
	}

	units, perUnit := 1, in.TotalQuantity
	if in.TrackingMethod == domain.TrackingIndividual && in.TotalQuantity > 1 {
		units, perUnit = in.TotalQuantity, 1
	}

	now := s.now()
	assets := make([]domain.Asset, 0, units)
	for i := range units {
		code := qr
		if units > 1 {
			code = fmt.Sprintf("%s-%03d", qr, i+1)
		}
		assets = append(assets, domain.Asset{
			ID:                 s.newID(),
			PlatformID:         actor.PlatformID,
			CompanyID:          in.CompanyID,
			WarehouseID:        in.WarehouseID,
			BrandID:            in.BrandID,
			Name:               in.Name,
			QRCode:             code,
			TrackingMethod:     in.TrackingMethod,
			TotalQuantity:      perUnit,
			AvailableQuantity:  perUnit,
			Condition:          in.Condition,
			ConditionNotes:     in.ConditionNotes,
			RefurbDaysEstimate: in.RefurbDaysEstimate,
			Status:             domain.AssetAvailable,
			Volume:             in.Volume,
			Weight:             in.Weight,
			Dimensions:         in.Dimensions,
			Packaging:          in.Packaging,
			ConditionHistory: []domain.ConditionChange{{
				Condition: in.Condition,
				Notes:     "created",
				UpdatedBy: actor.ID,
				Timestamp: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		for i := range assets {
			if err := tx.CreateAsset(ctx, &assets[i]); err != nil {
				return fmt.Errorf("create asset: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("asset created", "name", in.Name, "rows", len(assets), "tracking_method", in.TrackingMethod)
	return assets, nil
}

func (s *Service) GetAsset(ctx context.Context, platformID, id string) (*domain.Asset, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if asset == nil || asset.PlatformID != platformID {
		return nil, domain.NotFound("asset %s not found", id)
	}
	return asset, nil
}

// CreateSelfBooking checks out quantity units for internal use. The units
// compete with orders whose window covers today.
func (s *Service) CreateSelfBooking(ctx context.Context, actor domain.Actor, assetID string, quantity int, reason string) (*domain.SelfBookingItem, error) {
	if quantity <= 0 {
		return nil, domain.Validation("quantity must be greater than zero")
	}

	var item *domain.SelfBookingItem
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		if err := tx.LockAssets(ctx, []string{assetID}); err != nil {
			return fmt.Errorf("lock assets: %w", err)
		}
		today := startOfDay(s.now())
		window := Window{Start: today, End: today}
		if _, err := s.Require(ctx, tx, actor.PlatformID, window, []Request{{AssetID: assetID, Quantity: quantity}}); err != nil {
			return err
		}

		now := s.now()
		item = &domain.SelfBookingItem{
			ID:         s.newID(),
			PlatformID: actor.PlatformID,
			AssetID:    assetID,
			Quantity:   quantity,
			Status:     domain.SelfBookingOut,
			BookedBy:   actor.ID,
			Reason:     strings.TrimSpace(reason),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateSelfBooking(ctx, item); err != nil {
			return fmt.Errorf("create self booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("self booking created", "asset_id", assetID, "quantity", quantity, "booked_by", actor.ID)
	return item, nil
}

// ReturnSelfBooking records quantity units coming back. The booking is
// RETURNED once nothing is outstanding.
func (s *Service) ReturnSelfBooking(ctx context.Context, actor domain.Actor, id string, quantity int) (*domain.SelfBookingItem, error) {
	if quantity <= 0 {
		return nil, domain.Validation("quantity must be greater than zero")
	}

	var item *domain.SelfBookingItem
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		item, err = tx.GetSelfBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("get self booking: %w", err)
		}
		if item == nil || item.PlatformID != actor.PlatformID {
			return domain.NotFound("self booking %s not found", id)
		}
		if item.Status != domain.SelfBookingOut {
			return domain.InvalidState("self booking %s is already returned", id)
		}
		if quantity > item.Outstanding() {
			return domain.Conflict("cannot return %d, only %d outstanding", quantity, item.Outstanding())
		}

		item.ReturnedQuantity += quantity
		if item.Outstanding() == 0 {
			item.Status = domain.SelfBookingReturned
		}
		item.UpdatedAt = s.now()
		if err := tx.UpdateSelfBooking(ctx, item); err != nil {
			return fmt.Errorf("update self booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("self booking returned", "id", id, "quantity", quantity, "status", item.Status)
	return item, nil
}

// NewQRCode returns a fresh asset QR code.
func NewQRCode() string {
	return "AST-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
