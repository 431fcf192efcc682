package notify

import (
	"time"

	"github.com/joao-fontenele/assetflow/internal/domain"
)

func OrderSubmitted(o *domain.Order) domain.NotificationEvent {
	return domain.NotificationEvent{
		EventType:  domain.EventOrderSubmitted,
		PlatformID: o.PlatformID,
		EntityType: domain.EntityOrder,
		EntityID:   o.ID,
		Payload: map[string]any{
			"order_code":       o.OrderCode,
			"company_id":       o.CompanyID,
			"event_start_date": o.EventStart.Format(time.DateOnly),
			"item_count":       len(o.Items),
		},
		Timestamp: o.CreatedAt,
	}
}

func StatusChanged(o *domain.Order, from domain.OrderStatus, actorID string) domain.NotificationEvent {
	return domain.NotificationEvent{
		EventType:  domain.EventOrderStatusChanged,
		PlatformID: o.PlatformID,
		EntityType: domain.EntityOrder,
		EntityID:   o.ID,
		Payload: map[string]any{
			"order_code":       o.OrderCode,
			"from":             from,
			"to":               o.Status,
			"financial_status": o.FinancialStatus,
			"updated_by":       actorID,
		},
		Timestamp: o.UpdatedAt,
	}
}

func OrderCancelled(o *domain.Order, reason domain.CancellationReason, notes, actorID string) domain.NotificationEvent {
	return domain.NotificationEvent{
		EventType:  domain.EventOrderCancelled,
		PlatformID: o.PlatformID,
		EntityType: domain.EntityOrder,
		EntityID:   o.ID,
		Payload: map[string]any{
			"order_code": o.OrderCode,
			"reason":     reason,
			"notes":      notes,
			"updated_by": actorID,
		},
		Timestamp: o.UpdatedAt,
	}
}

func ReskinCompleted(r *domain.ReskinRequest, orderCode string) domain.NotificationEvent {
	payload := map[string]any{
		"order_id":          r.OrderID,
		"order_code":        orderCode,
		"original_asset_id": r.OriginalAssetID,
	}
	if r.NewAssetID != nil {
		payload["new_asset_id"] = *r.NewAssetID
	}
	if r.NewAssetName != nil {
		payload["new_asset_name"] = *r.NewAssetName
	}
	ts := time.Time{}
	if r.CompletedAt != nil {
		ts = *r.CompletedAt
	}
	return domain.NotificationEvent{
		EventType:  domain.EventReskinCompleted,
		PlatformID: r.PlatformID,
		EntityType: domain.EntityReskin,
		EntityID:   r.ID,
		Payload:    payload,
		Timestamp:  ts,
	}
}

func ScanDiscrepancy(platformID string, e *domain.ScanEvent) domain.NotificationEvent {
	payload := map[string]any{
		"order_id":  e.OrderID,
		"scan_type": e.ScanType,
		"quantity":  e.Quantity,
		"condition": e.Condition,
	}
	if e.DiscrepancyReason != nil {
		payload["discrepancy_reason"] = *e.DiscrepancyReason
	}
	return domain.NotificationEvent{
		EventType:  domain.EventScanDiscrepancy,
		PlatformID: platformID,
		EntityType: domain.EntityAsset,
		EntityID:   e.AssetID,
		Payload:    payload,
		Timestamp:  e.ScannedAt,
	}
}
