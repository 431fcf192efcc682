package domain

import "time"

const (
	EventOrderSubmitted     = "order.submitted"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventReskinCompleted    = "reskin.completed"
	EventScanDiscrepancy    = "scan.discrepancy"
)

const (
	EntityOrder  = "ORDER"
	EntityReskin = "RESKIN_REQUEST"
	EntityAsset  = "ASSET"
)

// NotificationEvent is what the engine hands to the notification dispatcher
// after a transaction commits.
type NotificationEvent struct {
	EventType  string         `json:"event_type"`
	PlatformID string         `json:"platform_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
	Timestamp  time.Time      `json:"timestamp"`
}
