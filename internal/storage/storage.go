// Package storage defines the persistence contract of the engine. Lookups
// return (nil, nil) when a row does not exist; callers decide whether that
// is a NotFound. Insert paths translate unique violations to
// domain.Conflict.
package storage

import (
	"context"
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderItem(ctx context.Context, item *domain.OrderItem) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error
	ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	GetOrderItem(ctx context.Context, id string) (*domain.OrderItem, error)
	UpdateOrderItem(ctx context.Context, item *domain.OrderItem) error
	// CountOrdersCreatedBetween counts orders of every platform created in
	// [from, to).
	CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	// ListOrdersEndingOn returns orders in status whose event ends on day.
	ListOrdersEndingOn(ctx context.Context, status domain.OrderStatus, day time.Time) ([]domain.Order, error)
	AppendStatusHistory(ctx context.Context, entry *domain.StatusEntry) error
	AppendFinancialHistory(ctx context.Context, entry *domain.FinancialEntry) error
	ListStatusHistory(ctx context.Context, orderID string) ([]domain.StatusEntry, error)
	ListFinancialHistory(ctx context.Context, orderID string) ([]domain.FinancialEntry, error)
}

type AssetStore interface {
	CreateAsset(ctx context.Context, asset *domain.Asset) error
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	GetAssetByQRCode(ctx context.Context, qrCode string) (*domain.Asset, error)
	ListAssets(ctx context.Context, ids []string) ([]domain.Asset, error)
	// LockAssets takes row locks on the given assets for the rest of the
	// surrounding transaction.
	LockAssets(ctx context.Context, ids []string) error
	UpdateAsset(ctx context.Context, asset *domain.Asset) error
}

type BookingStore interface {
	CreateBooking(ctx context.Context, booking *domain.AssetBooking) error
	ListOrderBookings(ctx context.Context, orderID string) ([]domain.AssetBooking, error)
	// ListActiveBookings returns bookings on assetID held by orders in one
	// of statuses whose blocked window overlaps [from, to].
	ListActiveBookings(ctx context.Context, assetID string, statuses []domain.OrderStatus, from, to time.Time) ([]domain.AssetBooking, error)
	DeleteOrderBookings(ctx context.Context, orderID string) (int, error)
	ReassignBookings(ctx context.Context, orderID, fromAssetID, toAssetID string) error
	CreateSelfBooking(ctx context.Context, item *domain.SelfBookingItem) error
	GetSelfBooking(ctx context.Context, id string) (*domain.SelfBookingItem, error)
	UpdateSelfBooking(ctx context.Context, item *domain.SelfBookingItem) error
	ListOutstandingSelfBookings(ctx context.Context, assetID string) ([]domain.SelfBookingItem, error)
}

type LineItemStore interface {
	CreateLineItem(ctx context.Context, item *domain.LineItem) error
	GetLineItem(ctx context.Context, id string) (*domain.LineItem, error)
	UpdateLineItem(ctx context.Context, item *domain.LineItem) error
	ListLineItems(ctx context.Context, orderID string) ([]domain.LineItem, error)
	CountLineItems(ctx context.Context, platformID string) (int, error)
	GetServiceType(ctx context.Context, id string) (*domain.ServiceType, error)
}

type ReskinStore interface {
	CreateReskin(ctx context.Context, r *domain.ReskinRequest) error
	GetReskin(ctx context.Context, id string) (*domain.ReskinRequest, error)
	GetReskinByOrderItem(ctx context.Context, orderItemID string) (*domain.ReskinRequest, error)
	UpdateReskin(ctx context.Context, r *domain.ReskinRequest) error
	ListOrderReskins(ctx context.Context, orderID string) ([]domain.ReskinRequest, error)
}

type ScanStore interface {
	AppendScanEvent(ctx context.Context, event *domain.ScanEvent) error
	ListScanEvents(ctx context.Context, orderID string) ([]domain.ScanEvent, error)
}

type RateStore interface {
	// FindPricingConfig returns the active row for the company, or the
	// platform default when companyID is nil.
	FindPricingConfig(ctx context.Context, platformID string, companyID *string) (*domain.PricingConfig, error)
	FindTransportRate(ctx context.Context, q TransportRateQuery) (*domain.TransportRate, error)
	GetPlatformSettings(ctx context.Context, platformID string) (*domain.PlatformSettings, error)
}

type TransportRateQuery struct {
	PlatformID  string
	CompanyID   *string
	Emirate     string
	TripType    domain.TripType
	VehicleType domain.VehicleType
}

type Store interface {
	OrderStore
	AssetStore
	BookingStore
	LineItemStore
	ReskinStore
	ScanStore
	RateStore

	// WithinTx runs fn against a transactional view of the store. fn's
	// writes are applied atomically when it returns nil and discarded
	// otherwise. Nested calls reuse the outer transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
