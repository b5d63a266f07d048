// Package domain defines the core domain types for the netsentry network
// presence monitor.
//
// This package contains the fundamental entities and value objects: device
// observations, inventory entries, alert events, and cycle reports.
//
// # Core Types
//
// Observation is one scan cycle's sighting of a device (MAC/IP pair) on a
// subnet. Observations are transient - produced fresh by the scan adapters
// every cycle and never persisted directly.
//
// Device is the persisted inventory record for a physical device, keyed by
// its canonical MAC address (or a synthetic ip: key when the scan method
// cannot observe MACs, e.g. routed subnets). The inventory caches the
// last-computed classification for display and history only; the policy
// lists remain the source of truth and the classification is re-derived
// on every cycle.
//
// Event is emitted by the reconciler when an observed device is not
// trusted (unknown or deny-listed). Events feed the alert dispatcher,
// which owns deduplication and delivery.
//
// CycleReport summarizes one full scan-reconcile-dispatch pass, including
// per-subnet errors.
//
// # Design Principles
//
// - Immutable value objects where possible
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
// - Rich type system with meaningful constants and enumerations
package domain
