package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/shared"
)

// SyncEngine defines the sync operation exposed to the CLI and TUI.
type SyncEngine interface {
	// Run performs one sync pass and returns its report.
	//
	// Progress updates are sent to the provided channel (non-blocking).
	Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*models.SyncReport, error)
}

// RunRecorder persists finished reports. Implemented by repositories.RunRepository.
type RunRecorder interface {
	Record(ctx context.Context, report *models.SyncReport) error
}

// RunOptions selects what one run syncs.
type RunOptions struct {
	FolderID int         // Collection folder, 0 is "All"
	Limit    int         // Maximum tracks fetched, 0 means unlimited
	Mode     models.Mode // [models.ModeSync] writes one playlist, [models.ModeStyleSync] one per style
	Name     string      // Playlist name for ModeSync, base name for ModeStyleSync
	DryRun   bool        // Compute outcomes without mutating calls
}

// Partitioner returns the grouping for the options' mode.
func (o RunOptions) Partitioner() Partitioner {
	if o.Mode == models.ModeSync {
		return SingleGroup{Name: o.Name}
	}
	return StylePartitioner{BaseName: o.Name}
}

func (o RunOptions) validate() error {
	var problems []string
	if strings.TrimSpace(o.Name) == "" {
		problems = append(problems, "a playlist name is required")
	}
	if o.Mode != models.ModeSync && o.Mode != models.ModeStyleSync {
		problems = append(problems, fmt.Sprintf("unknown mode %q", o.Mode))
	}
	if o.FolderID < 0 {
		problems = append(problems, "folder id must be >= 0")
	}
	if o.Limit < 0 {
		problems = append(problems, "limit must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// SyncOrchestrator drives a run: fetch the collection, resolve each distinct track once, fill gaps from
// albums when the target can search them, partition, then reconcile every group. It implements [SyncEngine].
type SyncOrchestrator struct {
	catalog  services.Catalog
	target   services.Target
	policy   CallPolicy
	workers  int
	index    PlaylistIndex // optional
	recorder RunRecorder   // optional
	logger   *log.Logger
}

// NewSyncOrchestrator creates an orchestrator. workers bounds concurrent searches and playlist reconciliations.
func NewSyncOrchestrator(catalog services.Catalog, target services.Target, policy CallPolicy, workers int, logger *log.Logger) *SyncOrchestrator {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &SyncOrchestrator{
		catalog: catalog,
		target:  target,
		policy:  policy,
		workers: max(workers, 1),
		logger:  shared.WithLogger(logger, "component", "orchestrator"),
	}
}

// WithIndex sets the playlist index reconciled playlists are written through to.
func (o *SyncOrchestrator) WithIndex(index PlaylistIndex) *SyncOrchestrator {
	o.index = index
	return o
}

// WithRecorder sets where finished reports are stored.
func (o *SyncOrchestrator) WithRecorder(recorder RunRecorder) *SyncOrchestrator {
	o.recorder = recorder
	return o
}

// Run executes one sync pass.
//
// Errors are returned only before processing: invalid options, a missing collaborator, or a catalog or
// target failure that no retry can fix (credentials, unknown folder). Everything after that is absorbed
// into the report.
func (o *SyncOrchestrator) Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*models.SyncReport, error) {
	if o.catalog == nil || o.target == nil {
		return nil, fmt.Errorf("%w: catalog and target services are required", shared.ErrServiceUnavailable)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	report := &models.SyncReport{
		RunID:      shared.GenerateID(),
		Mode:       opts.Mode,
		BaseName:   opts.Name,
		FolderID:   opts.FolderID,
		DryRun:     opts.DryRun,
		StartedAt:  time.Now().UTC(),
		Strategies: map[models.Strategy]int{},
		Outcomes:   []models.PlaylistOutcome{},
		Unmatched:  []models.ResolvedTrack{},
	}
	logger := o.logger.With("run", report.RunID, "mode", opts.Mode, "dry_run", opts.DryRun)

	sendProgress(progress, fetchCatalogUpdate(opts.FolderID))
	releases, err := o.catalog.FetchCollection(ctx, opts.FolderID, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s collection: %w", o.catalog.Name(), err)
	}
	for i, r := range releases {
		sendProgress(progress, releaseUpdate(i+1, len(releases), r))
	}
	report.ReleasesProcessed = len(releases)
	report.TracksTotal = models.TrackCount(releases)
	logger.Info("fetched collection", "releases", report.ReleasesProcessed, "tracks", report.TracksTotal)

	reconciler := NewPlaylistReconciler(o.target, o.policy, o.index, o.logger)
	reconciler.runID = report.RunID
	if err := reconciler.Load(ctx); err != nil {
		if shared.IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}
		logger.Warn("playlist listing failed, retrying per playlist", "error", err)
	}

	resolved := o.resolve(ctx, distinctTracks(releases), progress)
	if albums, ok := o.target.(services.AlbumSearcher); ok {
		resolved = o.fillFromAlbums(ctx, albums, releases, resolved)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	report.TracksDistinct = len(resolved)
	for _, r := range resolved {
		if r.Matched() {
			report.TracksMatched++
			report.Strategies[r.Strategy]++
			continue
		}
		report.TracksUnmatched++
		report.Unmatched = append(report.Unmatched, r)
	}

	partitioner := opts.Partitioner()
	groups := partitioner.Partition(releases, resolvedByFingerprint(resolved))
	sendProgress(progress, partitionUpdate(groups))
	logger.Info("partitioned", "groups", len(groups), "matched", report.TracksMatched, "unmatched", report.TracksUnmatched)

	report.Outcomes = o.reconcileAll(ctx, reconciler, partitioner, groups, opts.DryRun, progress)
	report.FinishedAt = time.Now().UTC()

	if o.recorder != nil {
		if err := o.recorder.Record(ctx, report); err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}

	sendProgress(progress, completeUpdate(report))
	logger.Info("sync finished", "added", report.TracksAdded(), "failed", report.TracksFailed(), "took", report.Duration())
	return report, nil
}

// distinctTracks flattens releases into one track per fingerprint, in collection order.
func distinctTracks(releases []models.Release) []models.Track {
	seen := make(map[string]struct{})
	var tracks []models.Track
	for _, r := range releases {
		for _, t := range r.Tracks {
			fp := t.Fingerprint()
			if _, ok := seen[fp]; ok {
				continue
			}
			seen[fp] = struct{}{}
			tracks = append(tracks, t)
		}
	}
	return tracks
}

func resolvedByFingerprint(resolved []models.ResolvedTrack) map[string]models.ResolvedTrack {
	out := make(map[string]models.ResolvedTrack, len(resolved))
	for _, r := range resolved {
		out[r.Fingerprint] = r
	}
	return out
}

// resolve matches tracks with at most workers searches in flight. The result keeps the order of tracks.
func (o *SyncOrchestrator) resolve(ctx context.Context, tracks []models.Track, progress chan<- ProgressUpdate) []models.ResolvedTrack {
	matcher := NewTrackMatcher(o.target, NewSearchCache(), o.policy, o.logger)
	resolved := make([]models.ResolvedTrack, len(tracks))

	var (
		g    errgroup.Group
		done atomic.Int32
	)
	g.SetLimit(o.workers)
	for i, t := range tracks {
		g.Go(func() error {
			resolved[i] = matcher.Resolve(ctx, t)
			sendProgress(progress, resolveUpdate(int(done.Add(1)), len(tracks), resolved[i]))
			return nil
		})
	}
	_ = g.Wait()
	return resolved
}

// fillFromAlbums runs the album pass over every release and returns resolved with the filled tracks
// replaced. When two releases fill the same track, the earlier release in the collection wins.
func (o *SyncOrchestrator) fillFromAlbums(ctx context.Context, target services.AlbumSearcher, releases []models.Release, resolved []models.ResolvedTrack) []models.ResolvedTrack {
	matcher := NewAlbumMatcher(target, NewAlbumCache(), o.policy, o.logger)
	byFingerprint := resolvedByFingerprint(resolved)
	fills := make([][]models.ResolvedTrack, len(releases))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, r := range releases {
		g.Go(func() error {
			fills[i] = matcher.Fill(ctx, r, byFingerprint)
			return nil
		})
	}
	_ = g.Wait()

	updated := map[string]models.ResolvedTrack{}
	for _, fill := range fills {
		for _, r := range fill {
			if _, ok := updated[r.Fingerprint]; !ok {
				updated[r.Fingerprint] = r
			}
		}
	}
	if len(updated) == 0 {
		return resolved
	}

	out := slices.Clone(resolved)
	for i, r := range out {
		if fill, ok := updated[r.Fingerprint]; ok {
			out[i] = fill
		}
	}
	o.logger.Info("album pass", "filled", len(updated))
	return out
}

// reconcileAll reconciles groups concurrently. Each group maps to exactly one playlist.
func (o *SyncOrchestrator) reconcileAll(ctx context.Context, r *PlaylistReconciler, p Partitioner, groups []*models.StyleGroup, dryRun bool, progress chan<- ProgressUpdate) []models.PlaylistOutcome {
	outcomes := make([]models.PlaylistOutcome, len(groups))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)
	g.SetLimit(o.workers)
	for i, group := range groups {
		g.Go(func() error {
			outcomes[i] = r.Reconcile(ctx, p.PlaylistName(group.Style), group, dryRun)

			mu.Lock()
			done++
			sendProgress(progress, reconcileUpdate(done, len(groups), outcomes[i]))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
