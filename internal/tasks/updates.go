package tasks

import (
	"fmt"

	"github.com/desertthunder/d2t/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Run phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Run phase enumeration
type Phase int

const (
	FetchCatalog Phase = iota
	ResolveTracks
	Partition
	Reconcile
	Complete
)

func (p Phase) String() string {
	switch p {
	case FetchCatalog:
		return "fetch_catalog"
	case ResolveTracks:
		return "resolve_tracks"
	case Partition:
		return "partition"
	case Reconcile:
		return "reconcile"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// sendProgress sends a progress update if the channel is not nil.
//
// Non-blocking: a full channel drops the update.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func fetchCatalogUpdate(folderID int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCatalog,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching collection folder %d...", folderID),
	}
}

func releaseUpdate(step, total int, r models.Release) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCatalog,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s (%d tracks)", step, total, r.Artist, r.Title, len(r.Tracks)),
		Data:    r,
	}
}

func resolveUpdate(step, total int, r models.ResolvedTrack) ProgressUpdate {
	status := "no match"
	if r.Matched() {
		status = string(r.Strategy)
	}
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s (%s)", step, total, r.Artist, r.Title, status),
		Data:    r,
	}
}

func partitionUpdate(groups []*models.StyleGroup) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Partition,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Grouped matched tracks into %d playlists", len(groups)),
		Data:    groups,
	}
}

func reconcileUpdate(step, total int, o models.PlaylistOutcome) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: %d added, %d already present", step, total, o.PlaylistName, o.Added, o.Skipped)
	if o.Error != "" {
		msg = fmt.Sprintf("[%d/%d] %s: %s", step, total, o.PlaylistName, o.Error)
	}
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    o,
	}
}

func completeUpdate(report *models.SyncReport) ProgressUpdate {
	return ProgressUpdate{
		Phase: Complete,
		Step:  1,
		Total: 1,
		Message: fmt.Sprintf("Matched %d of %d tracks, added %d to %d playlists",
			report.TracksMatched, report.TracksDistinct, report.TracksAdded(), len(report.Outcomes)),
		Data: report,
	}
}
