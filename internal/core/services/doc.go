// Package services implements the driving port interfaces.
// Services contain the pipeline logic and orchestrate
// calls to driven ports (adapters).
//
// # Locking
//
// Every write to a document (metadata, artifacts, snapshots) happens inside
// MetadataService.Exclusive, which holds a per-document lock. Converters and
// chunk strategies run outside that lock; their results are committed in a
// short exclusive section that first re-checks what they were computed from.
//
// Lock order is always: operation key, then subcatalog, then document.
package services
