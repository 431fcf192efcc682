package pricing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

const SchemaVersion = 1

type Kind string

const (
	KindEstimate Kind = "ESTIMATE"
	KindFull     Kind = "FULL"
)

// Breakdown is the pricing snapshot stored on an order. Money is rounded to
// 2 places and volume to 3 only when a Breakdown is produced.
type Breakdown struct {
	Version      int       `json:"version"`
	Kind         Kind      `json:"kind"`
	CalculatedAt time.Time `json:"calculated_at"`
	CalculatedBy string    `json:"calculated_by"`

	Volume           decimal.Decimal `json:"volume"`
	WarehouseOpsRate decimal.Decimal `json:"warehouse_ops_rate"`
	BaseOperations   decimal.Decimal `json:"base_operations"`

	Emirate              string             `json:"emirate"`
	TripType             domain.TripType    `json:"trip_type"`
	VehicleType          domain.VehicleType `json:"vehicle_type"`
	VehicleChanged       bool               `json:"vehicle_changed"`
	VehicleChangeReason  *string            `json:"vehicle_change_reason,omitempty"`
	Transport            decimal.Decimal    `json:"transport"`
	TransportRateMissing bool               `json:"transport_rate_missing,omitempty"`

	CatalogTotal      decimal.Decimal `json:"catalog_total"`
	LogisticsSubtotal decimal.Decimal `json:"logistics_subtotal"`

	MarginPercent        decimal.Decimal `json:"margin_percent"`
	MarginOverridden     bool            `json:"margin_overridden"`
	MarginOverrideReason *string         `json:"margin_override_reason,omitempty"`
	MarginAmount         decimal.Decimal `json:"margin_amount"`

	CustomTotal decimal.Decimal `json:"custom_total"`
	Total       decimal.Decimal `json:"total"`
}

func (b Breakdown) Marshal() (json.RawMessage, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal pricing breakdown: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored snapshot. An empty snapshot yields (nil, nil).
func Unmarshal(raw json.RawMessage) (*Breakdown, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var b Breakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("unmarshal pricing breakdown: %w", err)
	}
	if b.Version != SchemaVersion {
		return nil, fmt.Errorf("unsupported pricing breakdown version %d", b.Version)
	}
	return &b, nil
}
