// Package models defines domain entities and persistence interfaces for the Discogs to Tidal sync.
//
// The package contains three categories of types:
//
// 1. Catalog and target DTOs: lightweight structs produced by the service clients
//   - [Release] : a collection release with its tracklist and style tags
//   - [Track] : a tracklist entry with a back-reference to its release
//   - [Folder] : a collection folder
//   - [TrackCandidate] : a target-service search result
//   - [Playlist] : target-service playlist metadata
//   - [AddResult] : per-track outcome of an add call
//
// 2. Sync results: values built by the engine during one run
//   - [ResolvedTrack] : the resolution of one fingerprint (matched or unmatched)
//   - [StyleGroup] : the distinct track ids destined for one playlist
//   - [PlaylistOutcome] : what reconciliation did to one playlist
//   - [SyncReport] : the complete result of a run
//
// 3. Persistent entities: database-backed models
//   - [SyncRun] : one recorded sync or style-sync invocation
//   - [PlaylistMapping] : remote playlist id known for a target-service playlist name
//
// All persistent entities implement the Model interface providing ID, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
