// Package tasks is the sync engine: it matches a Discogs collection against Tidal and fans the matches out
// into playlists, with real-time progress reporting.
//
// # Pipeline
//
// [SyncOrchestrator.Run] performs one batch pass:
//
//  1. Fetch the releases of a collection folder from the [services.Catalog]
//  2. Resolve every distinct track (by fingerprint) with a [TrackMatcher]
//     - The search ladder is an ordered list of [SearchStrategy] values: exact artist + title,
//     title with a fuzzy artist filter, then the cleaned title alone
//     - Resolutions are memoized in a run-scoped [SearchCache]; concurrent lookups of one fingerprint share
//     a single search
//     - Tracks no strategy accepts are reported as unmatched, never as errors
//  3. Group matched tracks with a [Partitioner]
//     - [StylePartitioner]: one playlist per release style, plus "Unknown Style"
//     - [SingleGroup]: every match in one playlist
//  4. Reconcile each group with a [PlaylistReconciler]
//     - Playlists are found by exact name or created
//     - Only tracks missing from the playlist are added, batched when the target supports it
//     - A failed batch falls back to single adds; each failure is recorded in the outcome
//
// A dry run performs only reads and reports what would be created and added.
//
// # Failure handling
//
// Recoverable target errors (rate limits, transient network, timeouts) are retried per [CallPolicy].
// Only failures that retries cannot fix abort a run, and only before any playlist is touched.
//
// # Progress Reporting
//
// [ProgressUpdate] values are sent on a caller-provided channel. Updates use select with default to prevent
// blocking, so a slow consumer misses updates rather than stalling the run.
//
// # Persistence
//
// The optional [PlaylistIndex] and [RunRecorder] interfaces are implemented by the repositories package.
// Their errors are logged and never interrupt a run.
package tasks
