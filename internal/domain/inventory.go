package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AssetStatus string

const (
	AssetAvailable   AssetStatus = "AVAILABLE"
	AssetBooked      AssetStatus = "BOOKED"
	AssetOut         AssetStatus = "OUT"
	AssetMaintenance AssetStatus = "MAINTENANCE"
	AssetTransformed AssetStatus = "TRANSFORMED"
)

type Condition string

const (
	ConditionGreen  Condition = "GREEN"
	ConditionOrange Condition = "ORANGE"
	ConditionRed    Condition = "RED"
)

func (c Condition) Valid() bool {
	return c == ConditionGreen || c == ConditionOrange || c == ConditionRed
}

type TrackingMethod string

const (
	TrackingIndividual TrackingMethod = "INDIVIDUAL"
	TrackingBatch      TrackingMethod = "BATCH"
)

func (t TrackingMethod) Valid() bool {
	return t == TrackingIndividual || t == TrackingBatch
}

type ConditionChange struct {
	Condition Condition `json:"condition"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedBy string    `json:"updated_by"`
	Timestamp time.Time `json:"timestamp"`
}

type Dimensions struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
}

type Asset struct {
	ID                 string            `json:"id"`
	PlatformID         string            `json:"platform_id"`
	CompanyID          string            `json:"company_id"`
	WarehouseID        string            `json:"warehouse_id"`
	BrandID            *string           `json:"brand_id,omitempty"`
	Name               string            `json:"name"`
	QRCode             string            `json:"qr_code"`
	TrackingMethod     TrackingMethod    `json:"tracking_method"`
	TotalQuantity      int               `json:"total_quantity"`
	AvailableQuantity  int               `json:"available_quantity"`
	Condition          Condition         `json:"condition"`
	ConditionNotes     *string           `json:"condition_notes,omitempty"`
	RefurbDaysEstimate *int              `json:"refurb_days_estimate,omitempty"`
	Status             AssetStatus       `json:"status"`
	Volume             decimal.Decimal   `json:"volume_per_unit"`
	Weight             decimal.Decimal   `json:"weight_per_unit"`
	Dimensions         Dimensions        `json:"dimensions"`
	Packaging          *string           `json:"packaging,omitempty"`
	TransformedFrom    *string           `json:"transformed_from,omitempty"`
	TransformedTo      *string           `json:"transformed_to,omitempty"`
	ConditionHistory   []ConditionChange `json:"condition_history"`
	LastScannedAt      *time.Time        `json:"last_scanned_at,omitempty"`
	LastScannedBy      *string           `json:"last_scanned_by,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type AssetBooking struct {
	ID           string    `json:"id"`
	AssetID      string    `json:"asset_id"`
	OrderID      string    `json:"order_id"`
	Quantity     int       `json:"quantity"`
	BlockedFrom  time.Time `json:"blocked_from"`
	BlockedUntil time.Time `json:"blocked_until"`
	CreatedAt    time.Time `json:"created_at"`
}

type SelfBookingStatus string

const (
	SelfBookingOut      SelfBookingStatus = "OUT"
	SelfBookingReturned SelfBookingStatus = "RETURNED"
)

// SelfBookingItem is a manual, non-order checkout that draws from the same
// pool as customer orders.
type SelfBookingItem struct {
	ID               string            `json:"id"`
	PlatformID       string            `json:"platform_id"`
	AssetID          string            `json:"asset_id"`
	Quantity         int               `json:"quantity"`
	ReturnedQuantity int               `json:"returned_quantity"`
	Status           SelfBookingStatus `json:"status"`
	BookedBy         string            `json:"booked_by"`
	Reason           string            `json:"reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (s SelfBookingItem) Outstanding() int {
	if s.Status != SelfBookingOut {
		return 0
	}
	return s.Quantity - s.ReturnedQuantity
}

type ScanType string

const (
	ScanOutbound ScanType = "OUTBOUND"
	ScanInbound  ScanType = "INBOUND"
)

type ScanEvent struct {
	ID                string    `json:"id"`
	OrderID           string    `json:"order_id"`
	AssetID           string    `json:"asset_id"`
	ScanType          ScanType  `json:"scan_type"`
	Quantity          int       `json:"quantity"`
	Condition         Condition `json:"condition"`
	Notes             *string   `json:"notes,omitempty"`
	Photos            []string  `json:"photos"`
	DiscrepancyReason *string   `json:"discrepancy_reason,omitempty"`
	ScannedBy         string    `json:"scanned_by"`
	ScannedAt         time.Time `json:"scanned_at"`
}
