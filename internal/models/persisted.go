package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/d2t/internal/shared"
)

// SyncRun is the recorded result of one sync or style-sync invocation.
type SyncRun struct {
	persisted

	Mode              Mode
	BaseName          string
	FolderID          int
	DryRun            bool
	ReleasesProcessed int
	TracksMatched     int
	TracksUnmatched   int
	TracksAdded       int
	TracksFailed      int
	Report            []byte // JSON encoded [SyncReport]
	StartedAt         time.Time
	FinishedAt        *time.Time
}

// NewSyncRun creates a run record from a finished report. The report's run id becomes the record id.
func NewSyncRun(sequence int, report *SyncReport) (*SyncRun, error) {
	data, err := shared.MarshalJSON(report, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	run := &SyncRun{
		persisted:         newPersisted(sequence),
		Mode:              report.Mode,
		BaseName:          report.BaseName,
		FolderID:          report.FolderID,
		DryRun:            report.DryRun,
		ReleasesProcessed: report.ReleasesProcessed,
		TracksMatched:     report.TracksMatched,
		TracksUnmatched:   report.TracksUnmatched,
		TracksAdded:       report.TracksAdded(),
		TracksFailed:      report.TracksFailed(),
		Report:            data,
		StartedAt:         report.StartedAt,
	}
	run.SetID(report.RunID)
	if !report.FinishedAt.IsZero() {
		finished := report.FinishedAt
		run.FinishedAt = &finished
	}
	return run, nil
}

// Validate checks required fields.
func (r *SyncRun) Validate() error {
	if r.ID() == "" {
		return fmt.Errorf("%w: sync run id is required", shared.ErrInvalidInput)
	}
	if r.Mode != ModeSync && r.Mode != ModeStyleSync {
		return fmt.Errorf("%w: unknown sync mode %q", shared.ErrInvalidInput, r.Mode)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("%w: sync run start time is required", shared.ErrInvalidInput)
	}
	return nil
}

// DecodeReport unmarshals the stored report.
func (r *SyncRun) DecodeReport() (*SyncReport, error) {
	var report SyncReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to decode stored report: %w", err)
	}
	return &report, nil
}

// PlaylistMapping remembers the remote id of a target-service playlist by its exact name.
type PlaylistMapping struct {
	persisted

	Service   string
	Name      string
	RemoteID  string
	Style     string
	LastRunID string
}

// NewPlaylistMapping creates an unsaved mapping.
func NewPlaylistMapping(service, name, remoteID, style string) *PlaylistMapping {
	return &PlaylistMapping{
		persisted: newPersisted(0),
		Service:   service,
		Name:      name,
		RemoteID:  remoteID,
		Style:     style,
	}
}

// Validate checks required fields.
func (m *PlaylistMapping) Validate() error {
	switch {
	case m.Service == "":
		return fmt.Errorf("%w: playlist service is required", shared.ErrInvalidInput)
	case m.Name == "":
		return fmt.Errorf("%w: playlist name is required", shared.ErrInvalidInput)
	case m.RemoteID == "":
		return fmt.Errorf("%w: playlist remote id is required", shared.ErrInvalidInput)
	}
	return nil
}
