// Package repositories implements SQLite persistence for sync history and playlist mappings.
//
// Each repository implements models.Repository[T] and excludes soft-deleted rows from queries by default.
//
// Key Implementations:
//   - [RunRepository] : One row per sync run with counts and the JSON report; satisfies tasks.RunRecorder
//   - [PlaylistRepository] : Remote playlist ids keyed by service and exact name; satisfies tasks.PlaylistIndex
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
