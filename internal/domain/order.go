package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusDraft               OrderStatus = "DRAFT"
	OrderStatusSubmitted           OrderStatus = "SUBMITTED"
	OrderStatusPricingReview       OrderStatus = "PRICING_REVIEW"
	OrderStatusPendingApproval     OrderStatus = "PENDING_APPROVAL"
	OrderStatusQuoted              OrderStatus = "QUOTED"
	OrderStatusDeclined            OrderStatus = "DECLINED"
	OrderStatusConfirmed           OrderStatus = "CONFIRMED"
	OrderStatusAwaitingFabrication OrderStatus = "AWAITING_FABRICATION"
	OrderStatusInPreparation       OrderStatus = "IN_PREPARATION"
	OrderStatusReadyForDelivery    OrderStatus = "READY_FOR_DELIVERY"
	OrderStatusInTransit           OrderStatus = "IN_TRANSIT"
	OrderStatusDelivered           OrderStatus = "DELIVERED"
	OrderStatusInUse               OrderStatus = "IN_USE"
	OrderStatusAwaitingReturn      OrderStatus = "AWAITING_RETURN"
	OrderStatusReturnInTransit     OrderStatus = "RETURN_IN_TRANSIT"
	OrderStatusClosed              OrderStatus = "CLOSED"
	OrderStatusCancelled           OrderStatus = "CANCELLED"
)

type FinancialStatus string

const (
	FinancialPendingQuote   FinancialStatus = "PENDING_QUOTE"
	FinancialQuoteSent      FinancialStatus = "QUOTE_SENT"
	FinancialQuoteAccepted  FinancialStatus = "QUOTE_ACCEPTED"
	FinancialPendingInvoice FinancialStatus = "PENDING_INVOICE"
	FinancialInvoiced       FinancialStatus = "INVOICED"
	FinancialPaid           FinancialStatus = "PAID"
	FinancialCancelled      FinancialStatus = "CANCELLED"
)

type TripType string

const (
	TripOneWay    TripType = "ONE_WAY"
	TripRoundTrip TripType = "ROUND_TRIP"
)

func (t TripType) Valid() bool {
	return t == TripOneWay || t == TripRoundTrip
}

type VehicleType string

const (
	VehicleStandard VehicleType = "STANDARD"
	Vehicle7Ton     VehicleType = "7_TON"
	Vehicle10Ton    VehicleType = "10_TON"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleStandard, Vehicle7Ton, Vehicle10Ton:
		return true
	}
	return false
}

type MaintenanceDecision string

const (
	MaintenanceFixInOrder MaintenanceDecision = "FIX_IN_ORDER"
	MaintenanceUseAsIs    MaintenanceDecision = "USE_AS_IS"
)

type CancellationReason string

const (
	CancelClientRequested   CancellationReason = "client_requested"
	CancelAssetUnavailable  CancellationReason = "asset_unavailable"
	CancelPricingDispute    CancellationReason = "pricing_dispute"
	CancelEventCancelled    CancellationReason = "event_cancelled"
	CancelFabricationFailed CancellationReason = "fabrication_failed"
	CancelOther             CancellationReason = "other"
)

func (r CancellationReason) Valid() bool {
	switch r {
	case CancelClientRequested, CancelAssetUnavailable, CancelPricingDispute,
		CancelEventCancelled, CancelFabricationFailed, CancelOther:
		return true
	}
	return false
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Venue struct {
	Name     string `json:"name"`
	CityID   string `json:"city_id"`
	CityName string `json:"city_name"`
	Address  string `json:"address"`
}

type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Order struct {
	ID              string          `json:"id"`
	PlatformID      string          `json:"platform_id"`
	OrderCode       string          `json:"order_code"`
	CompanyID       string          `json:"company_id"`
	BrandID         *string         `json:"brand_id,omitempty"`
	RequesterID     string          `json:"requester_id"`
	Contact         Contact         `json:"contact"`
	EventStart      time.Time       `json:"event_start_date"`
	EventEnd        time.Time       `json:"event_end_date"`
	Venue           Venue           `json:"venue"`
	TripType        TripType        `json:"trip_type"`
	VehicleType     VehicleType     `json:"vehicle_type"`
	TotalVolume     decimal.Decimal `json:"calculated_volume"`
	TotalWeight     decimal.Decimal `json:"calculated_weight"`
	Status          OrderStatus     `json:"order_status"`
	FinancialStatus FinancialStatus `json:"financial_status"`
	JobNumber       *string         `json:"job_number,omitempty"`
	DeliveryWindow  *TimeWindow     `json:"delivery_window,omitempty"`
	PickupWindow    *TimeWindow     `json:"pickup_window,omitempty"`
	Pricing         json.RawMessage `json:"pricing,omitempty"`
	TierID          *string         `json:"tier_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       *time.Time      `json:"-"`
	Items           []OrderItem     `json:"items,omitempty"`
}

type OrderItem struct {
	ID                  string               `json:"id"`
	OrderID             string               `json:"order_id"`
	PlatformID          string               `json:"platform_id"`
	AssetID             string               `json:"asset_id"`
	AssetName           string               `json:"asset_name"`
	Quantity            int                  `json:"quantity"`
	UnitVolume          decimal.Decimal      `json:"volume_per_unit"`
	UnitWeight          decimal.Decimal      `json:"weight_per_unit"`
	TotalVolume         decimal.Decimal      `json:"total_volume"`
	TotalWeight         decimal.Decimal      `json:"total_weight"`
	CollectionID        *string              `json:"from_collection,omitempty"`
	IsReskinRequest     bool                 `json:"is_reskin_request"`
	ReskinTargetBrandID *string              `json:"reskin_target_brand_id,omitempty"`
	ReskinCustomBrand   *string              `json:"reskin_target_brand_custom,omitempty"`
	ReskinNotes         *string              `json:"reskin_notes,omitempty"`
	MaintenanceDecision *MaintenanceDecision `json:"maintenance_decision,omitempty"`
	RefurbDaysSnapshot  *int                 `json:"refurb_days_snapshot,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// StatusEntry is one row of the append-only order status history.
type StatusEntry struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	UpdatedBy string      `json:"updated_by"`
	CreatedAt time.Time   `json:"timestamp"`
}

// FinancialEntry mirrors StatusEntry for the financial status.
type FinancialEntry struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Status    FinancialStatus `json:"status"`
	Notes     string          `json:"notes,omitempty"`
	UpdatedBy string          `json:"updated_by"`
	CreatedAt time.Time       `json:"timestamp"`
}
