package domain

import "time"

type ReskinRequest struct {
	ID                 string     `json:"id"`
	PlatformID         string     `json:"platform_id"`
	OrderID            string     `json:"order_id"`
	OrderItemID        string     `json:"order_item_id"`
	OriginalAssetID    string     `json:"original_asset_id"`
	OriginalAssetName  string     `json:"original_asset_name"`
	TargetBrandID      *string    `json:"target_brand_id,omitempty"`
	TargetBrandCustom  *string    `json:"target_brand_custom,omitempty"`
	ClientNotes        *string    `json:"client_notes,omitempty"`
	AdminNotes         *string    `json:"admin_notes,omitempty"`
	LineItemID         *string    `json:"line_item_id,omitempty"`
	NewAssetID         *string    `json:"new_asset_id,omitempty"`
	NewAssetName       *string    `json:"new_asset_name,omitempty"`
	CompletionPhotos   []string   `json:"completion_photos"`
	CompletionNotes    *string    `json:"completion_notes,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CompletedBy        *string    `json:"completed_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (r ReskinRequest) Pending() bool {
	return r.CompletedAt == nil && r.CancelledAt == nil
}

// State is "pending", "complete" or "cancelled".
func (r ReskinRequest) State() string {
	switch {
	case r.CompletedAt != nil:
		return "complete"
	case r.CancelledAt != nil:
		return "cancelled"
	default:
		return "pending"
	}
}
