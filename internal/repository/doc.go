// Package repository defines data access for the device inventory.
//
// The Store interface is the reconciler's view of persistence: keyed
// upserts that report first-sightings, full inventory loads, and a
// history of inventory transitions. The sqlite subpackage provides the
// implementation.
//
// # SQLite Implementation
//
// The sqlite store runs in WAL mode and performs each upsert inside a
// transaction, which gives the crash-consistency the inventory needs:
// an interrupted write rolls back cleanly and never corrupts committed
// entries. The schema is migrated in code on startup.
package repository
