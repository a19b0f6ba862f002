package models

import (
	"slices"
	"time"
)

// Strategy names the search layer that produced a match.
type Strategy string

const (
	StrategyNone       Strategy = ""            // unmatched
	StrategyExact      Strategy = "exact"       // artist + title query, normalized equality
	StrategyTitleFuzzy Strategy = "title_fuzzy" // title query, fuzzy artist post-filter
	StrategyTitleLoose Strategy = "title_loose" // cleaned title query, no artist filter
	StrategyAlbum      Strategy = "album"       // found in the tracklist of the release's album
)

// Strategies lists every matching strategy in the order they are tried.
var Strategies = []Strategy{StrategyExact, StrategyTitleFuzzy, StrategyTitleLoose, StrategyAlbum}

// Mode distinguishes single-playlist syncs from per-style syncs.
type Mode string

const (
	ModeSync      Mode = "sync"
	ModeStyleSync Mode = "style-sync"
)

// ResolvedTrack is the resolution of one fingerprint. TrackID is empty when no strategy matched.
type ResolvedTrack struct {
	Fingerprint string   `json:"fingerprint"`
	Artist      string   `json:"artist"`
	Title       string   `json:"title"`
	TrackID     string   `json:"track_id,omitempty"`
	Strategy    Strategy `json:"strategy,omitempty"`
	Candidate   string   `json:"candidate,omitempty"` // "artist - title" of the accepted candidate
	Error       string   `json:"error,omitempty"`     // last search error when retries were exhausted
}

// Matched reports whether a target-service track was found.
func (r ResolvedTrack) Matched() bool { return r.TrackID != "" }

// Unmatched builds the resolution for a track no strategy accepted.
func Unmatched(t Track, searchErr error) ResolvedTrack {
	r := ResolvedTrack{Fingerprint: t.Fingerprint(), Artist: t.Artist, Title: t.Title}
	if searchErr != nil {
		r.Error = searchErr.Error()
	}
	return r
}

// StyleGroup is the ordered set of distinct track ids destined for one playlist.
type StyleGroup struct {
	Style    string   `json:"style"`
	TrackIDs []string `json:"track_ids"`

	seen map[string]struct{}
}

// NewStyleGroup creates an empty group for style.
func NewStyleGroup(style string) *StyleGroup {
	return &StyleGroup{Style: style, TrackIDs: []string{}, seen: map[string]struct{}{}}
}

// Add appends id unless it is already present and reports whether it was added.
func (g *StyleGroup) Add(id string) bool {
	if g.seen == nil {
		g.seen = make(map[string]struct{}, len(g.TrackIDs))
		for _, existing := range g.TrackIDs {
			g.seen[existing] = struct{}{}
		}
	}
	if _, ok := g.seen[id]; ok {
		return false
	}
	g.seen[id] = struct{}{}
	g.TrackIDs = append(g.TrackIDs, id)
	return true
}

// Contains reports whether id is in the group.
func (g *StyleGroup) Contains(id string) bool {
	return slices.Contains(g.TrackIDs, id)
}

// Len returns the number of distinct track ids.
func (g *StyleGroup) Len() int { return len(g.TrackIDs) }

// TrackFailure records a single track that could not be added to a playlist.
type TrackFailure struct {
	TrackID string `json:"track_id"`
	Reason  string `json:"reason"`
}

// PlaylistOutcome describes what reconciliation did (or would do, in a dry run) to one playlist.
type PlaylistOutcome struct {
	Style        string         `json:"style"`
	PlaylistName string         `json:"playlist_name"`
	PlaylistID   string         `json:"playlist_id,omitempty"` // empty for a dry-run playlist that does not exist yet
	Created      bool           `json:"created"`
	Added        int            `json:"added"`
	Skipped      int            `json:"skipped"` // already present
	Failures     []TrackFailure `json:"failures"`
	Error        string         `json:"error,omitempty"` // playlist-level failure, e.g. creation failed
}

// Failed returns the number of tracks that were not added.
func (o PlaylistOutcome) Failed() int { return len(o.Failures) }

// OK reports whether the playlist was reconciled without any failure.
func (o PlaylistOutcome) OK() bool { return o.Error == "" && len(o.Failures) == 0 }

// SyncReport is the complete result of one run.
type SyncReport struct {
	RunID             string            `json:"run_id"`
	Mode              Mode              `json:"mode"`
	BaseName          string            `json:"base_name"`
	FolderID          int               `json:"folder_id"`
	DryRun            bool              `json:"dry_run"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	ReleasesProcessed int               `json:"releases_processed"`
	TracksTotal       int               `json:"tracks_total"`
	TracksDistinct    int               `json:"tracks_distinct"`
	TracksMatched     int               `json:"tracks_matched"`
	TracksUnmatched   int               `json:"tracks_unmatched"`
	Strategies        map[Strategy]int  `json:"strategies"`
	Outcomes          []PlaylistOutcome `json:"playlists"`
	Unmatched         []ResolvedTrack   `json:"unmatched"`
}

// Duration returns how long the run took.
func (r *SyncReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TracksAdded sums added tracks across playlists.
func (r *SyncReport) TracksAdded() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Added
	}
	return n
}

// TracksSkipped sums already-present tracks across playlists.
func (r *SyncReport) TracksSkipped() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Skipped
	}
	return n
}

// TracksFailed sums failed track additions across playlists.
func (r *SyncReport) TracksFailed() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Failed()
	}
	return n
}

// SearchErrors counts unmatched tracks whose search ended in an error rather than an empty result.
func (r *SyncReport) SearchErrors() int {
	n := 0
	for _, u := range r.Unmatched {
		if u.Error != "" {
			n++
		}
	}
	return n
}

// HasFailures reports whether any playlist recorded an unrecoverable failure.
func (r *SyncReport) HasFailures() bool {
	for _, o := range r.Outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}

// Outcome returns the outcome for style, if present.
func (r *SyncReport) Outcome(style string) (PlaylistOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Style == style {
			return o, true
		}
	}
	return PlaylistOutcome{}, false
}
