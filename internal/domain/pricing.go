package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItemType string

const (
	LineItemCatalog LineItemType = "CATALOG"
	LineItemCustom  LineItemType = "CUSTOM"
)

type LineItemCategory string

const (
	CategoryAssembly  LineItemCategory = "ASSEMBLY"
	CategoryEquipment LineItemCategory = "EQUIPMENT"
	CategoryHandling  LineItemCategory = "HANDLING"
	CategoryReskin    LineItemCategory = "RESKIN"
	CategoryTransport LineItemCategory = "TRANSPORT"
	CategoryOther     LineItemCategory = "OTHER"
)

func (c LineItemCategory) Valid() bool {
	switch c {
	case CategoryAssembly, CategoryEquipment, CategoryHandling, CategoryReskin, CategoryTransport, CategoryOther:
		return true
	}
	return false
}

type LineItem struct {
	ID              string           `json:"id"`
	PlatformID      string           `json:"platform_id"`
	OrderID         string           `json:"order_id"`
	Code            string           `json:"line_item_id"`
	Type            LineItemType     `json:"line_item_type"`
	Category        LineItemCategory `json:"category"`
	ServiceTypeID   *string          `json:"service_type_id,omitempty"`
	ReskinRequestID *string          `json:"reskin_request_id,omitempty"`
	Description     string           `json:"description"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	Unit            *string          `json:"unit,omitempty"`
	UnitRate        *decimal.Decimal `json:"unit_rate,omitempty"`
	Total           decimal.Decimal  `json:"total"`
	Notes           *string          `json:"notes,omitempty"`
	AddedBy         string           `json:"added_by"`
	IsVoided        bool             `json:"is_voided"`
	VoidedAt        *time.Time       `json:"voided_at,omitempty"`
	VoidedBy        *string          `json:"voided_by,omitempty"`
	VoidReason      *string          `json:"void_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type ServiceType struct {
	ID          string           `json:"id"`
	PlatformID  string           `json:"platform_id"`
	Name        string           `json:"name"`
	Category    LineItemCategory `json:"category"`
	Unit        string           `json:"unit"`
	DefaultRate *decimal.Decimal `json:"default_rate,omitempty"`
	IsActive    bool             `json:"is_active"`
}

// PricingConfig holds the warehouse operations rate. A nil CompanyID marks
// the platform default row.
type PricingConfig struct {
	ID               string          `json:"id"`
	PlatformID       string          `json:"platform_id"`
	CompanyID        *string         `json:"company_id,omitempty"`
	WarehouseOpsRate decimal.Decimal `json:"warehouse_ops_rate"`
	IsActive         bool            `json:"is_active"`
}

type TransportRate struct {
	ID          string          `json:"id"`
	PlatformID  string          `json:"platform_id"`
	CompanyID   *string         `json:"company_id,omitempty"`
	Emirate     string          `json:"emirate"`
	TripType    TripType        `json:"trip_type"`
	VehicleType VehicleType     `json:"vehicle_type"`
	Rate        decimal.Decimal `json:"rate"`
	IsActive    bool            `json:"is_active"`
}

// PlatformSettings is the slice of platform configuration the engine reads.
type PlatformSettings struct {
	PlatformID       string          `json:"platform_id"`
	MarginPercent    decimal.Decimal `json:"margin_percent"`
	MinimumLeadHours int             `json:"minimum_lead_hours"`
	ExcludeWeekends  bool            `json:"exclude_weekends"`
	WeekendDays      []time.Weekday  `json:"weekend_days"`
	Timezone         string          `json:"timezone"`
	SystemUserID     string          `json:"system_user_id,omitempty"`
}

const (
	DefaultMinimumLeadHours = 24
	DefaultTimezone         = "Asia/Dubai"
)

// DefaultPlatformSettings returns the fallback used when a platform has no
// stored settings.
func DefaultPlatformSettings(platformID string) PlatformSettings {
	return PlatformSettings{
		PlatformID:       platformID,
		MarginPercent:    decimal.Zero,
		MinimumLeadHours: DefaultMinimumLeadHours,
		ExcludeWeekends:  true,
		WeekendDays:      []time.Weekday{time.Saturday, time.Sunday},
		Timezone:         DefaultTimezone,
	}
}
