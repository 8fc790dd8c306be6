package model

import "time"

// EventType identifies a notification published to an external event sink.
type EventType string

// Event type constants.
const (
	EventMappingAutoApplied EventType = "mapping.auto_applied"
	EventMappingApproved    EventType = "mapping.approved"
	EventRoundUpAccrued     EventType = "roundup.accrued"
	EventRoundUpSwept       EventType = "roundup.swept"
)

// Event is a best-effort notification. Delivery is fire-and-forget; a missing
// or failing sink never fails the operation that produced the event.
type Event struct {
	OccurredAt time.Time
	Type       EventType
	Payload    map[string]any
}
