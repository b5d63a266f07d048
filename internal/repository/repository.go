package repository

import (
	"context"
	"time"

	"netsentry/internal/domain"
)

// Store is the persisted device inventory. The reconciler is its only
// writer and cycles never overlap, so implementations need no locking
// against concurrent cycles - only atomicity against process crash: a
// write interrupted mid-flight must never corrupt previously committed
// entries.
type Store interface {
	// Upsert records an observation. The returned bool is true iff no
	// entry existed for the observation's key before this call - exactly
	// once per device across its lifetime.
	Upsert(ctx context.Context, obs domain.Observation, class domain.Classification) (domain.Device, bool, error)

	// Get returns the entry for a key, or nil if none exists
	Get(ctx context.Context, id string) (*domain.Device, error)

	// LoadAll returns the complete inventory keyed by device ID
	LoadAll(ctx context.Context) (map[string]domain.Device, error)

	// History returns the most recent inventory transitions, newest first
	History(ctx context.Context, limit int) ([]HistoryEntry, error)

	// Close releases resources
	Close() error
}

// HistoryEntry records one inventory transition: a device's first
// appearance or a classification change.
type HistoryEntry struct {
	DeviceID       string                `json:"device_id"`
	Change         string                `json:"change"` // first_seen or reclassified
	Classification domain.Classification `json:"classification"`
	IP             string                `json:"ip"`
	At             time.Time             `json:"at"`
}
