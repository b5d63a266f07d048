package domain

import "time"

// EventKind identifies the class of alert-eligible event
type EventKind string

const (
	// EventUnauthorizedDevice - an unknown or deny-listed device was
	// observed on a monitored subnet. Emitted whether the device is new
	// or recurring; allow-listed devices never produce events.
	EventUnauthorizedDevice EventKind = "unauthorized_device_detected"
)

// Event is an alert-eligible occurrence produced by the reconciler.
// Deduplication and delivery are the dispatcher's concern; the reconciler
// emits one event per qualifying observation.
type Event struct {
	Kind           EventKind      `json:"kind"`
	Device         Device         `json:"device"`
	Classification Classification `json:"classification"`
	IsNew          bool           `json:"is_new"`
	ObservedAt     time.Time      `json:"observed_at"`
}

// DedupKey is the cooldown key: one delivery per (device, kind) pair
// within the configured cooldown window.
func (e Event) DedupKey() string {
	return e.Device.ID + "|" + string(e.Kind)
}
