package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/shared"
)

const (
	// PlaylistDescription is set on playlists the reconciler creates.
	PlaylistDescription = "Created by d2t from your Discogs collection"

	// maxBatch caps the ids sent in one batch add.
	maxBatch = 100
)

// PlaylistIndex remembers the remote id of each playlist the reconciler touches.
//
// Implemented by repositories.PlaylistRepository.
type PlaylistIndex interface {
	Remember(ctx context.Context, m *models.PlaylistMapping) error
}

// PlaylistReconciler maps style groups onto remote playlists and appends only the missing tracks.
//
// Remote playlists are looked up by exact name; the listing is fetched once and kept current as playlists
// are created, so a reconciler belongs to a single run.
type PlaylistReconciler struct {
	target services.Target
	policy CallPolicy
	index  PlaylistIndex
	runID  string
	logger *log.Logger

	mu     sync.Mutex
	byName map[string]string
}

// NewPlaylistReconciler creates a reconciler. index may be nil.
func NewPlaylistReconciler(target services.Target, policy CallPolicy, index PlaylistIndex, logger *log.Logger) *PlaylistReconciler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &PlaylistReconciler{
		target: target,
		policy: policy,
		index:  index,
		logger: shared.WithLogger(logger, "component", "reconciler"),
	}
}

// Load fetches the remote playlist listing if it has not been fetched yet.
func (p *PlaylistReconciler) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(ctx)
}

func (p *PlaylistReconciler) load(ctx context.Context) error {
	if p.byName != nil {
		return nil
	}

	var playlists []models.Playlist
	err := p.policy.do(ctx, func(ctx context.Context) error {
		var err error
		playlists, err = p.target.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	p.byName = make(map[string]string, len(playlists))
	for _, pl := range playlists {
		if _, dup := p.byName[pl.Name]; !dup {
			p.byName[pl.Name] = pl.ID
		}
	}
	return nil
}

// ensure returns the id of the playlist called name, creating it unless dryRun is set.
// An empty id with a nil error means the playlist would be created.
func (p *PlaylistReconciler) ensure(ctx context.Context, name string, dryRun bool) (id string, created bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.load(ctx); err != nil {
		return "", false, err
	}
	if id, ok := p.byName[name]; ok {
		return id, false, nil
	}
	if dryRun {
		return "", true, nil
	}

	err = p.policy.do(ctx, func(ctx context.Context) error {
		var err error
		id, err = p.target.CreatePlaylist(ctx, name, PlaylistDescription)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to create playlist: %w", err)
	}

	p.byName[name] = id
	p.logger.Info("created playlist", "name", name, "id", id)
	return id, true, nil
}

// Reconcile brings the playlist called name up to date with group.
//
// Only ids missing from the playlist are added, so reconciling an unchanged group twice adds nothing the
// second time. With dryRun set no mutating call is made and the outcome reports what would be added.
// Failures are recorded in the outcome, never returned.
func (p *PlaylistReconciler) Reconcile(ctx context.Context, name string, group *models.StyleGroup, dryRun bool) models.PlaylistOutcome {
	out := models.PlaylistOutcome{Style: group.Style, PlaylistName: name, Failures: []models.TrackFailure{}}
	logger := p.logger.With("playlist", name)

	id, created, err := p.ensure(ctx, name, dryRun)
	if err != nil {
		return p.failAll(out, group, err)
	}
	out.PlaylistID, out.Created = id, created

	current := map[string]struct{}{}
	if id != "" && !created {
		var ids []string
		err := p.policy.do(ctx, func(ctx context.Context) error {
			var err error
			ids, err = p.target.GetPlaylistTracks(ctx, id)
			return err
		})
		if err != nil {
			return p.failAll(out, group, fmt.Errorf("failed to read playlist tracks: %w", err))
		}
		for _, t := range ids {
			current[t] = struct{}{}
		}
	}

	var missing []string
	for _, t := range group.TrackIDs {
		if _, ok := current[t]; !ok {
			missing = append(missing, t)
		}
	}
	out.Skipped = group.Len() - len(missing)

	if dryRun {
		out.Added = len(missing)
		logger.Debug("dry run", "would_add", out.Added, "present", out.Skipped, "create", created)
		return out
	}

	if id != "" {
		p.remember(ctx, name, id, group.Style)
	}

	for _, r := range p.add(ctx, id, missing) {
		if r.OK() {
			out.Added++
			continue
		}
		out.Failures = append(out.Failures, models.TrackFailure{TrackID: r.TrackID, Reason: r.Err.Error()})
	}

	if len(out.Failures) > 0 {
		logger.Warn("some tracks were not added", "error", shared.ErrPartialPlaylistFailure, "failed", len(out.Failures))
	}
	logger.Info("reconciled", "added", out.Added, "present", out.Skipped)
	return out
}

// failAll records a playlist-level failure against every track of the group.
func (p *PlaylistReconciler) failAll(out models.PlaylistOutcome, group *models.StyleGroup, err error) models.PlaylistOutcome {
	p.logger.Error("playlist failed", "playlist", out.PlaylistName, "error", err)
	out.Error = err.Error()
	for _, t := range group.TrackIDs {
		out.Failures = append(out.Failures, models.TrackFailure{TrackID: t, Reason: out.Error})
	}
	return out
}

func (p *PlaylistReconciler) remember(ctx context.Context, name, id, style string) {
	if p.index == nil {
		return
	}
	m := models.NewPlaylistMapping(p.target.Name(), name, id, style)
	m.LastRunID = p.runID
	if err := p.index.Remember(ctx, m); err != nil {
		p.logger.Warn("failed to remember playlist", "playlist", name, "error", err)
	}
}

// add appends ids in batches when the target supports it. A failed batch falls back to single adds so one
// bad id does not block the rest.
func (p *PlaylistReconciler) add(ctx context.Context, playlistID string, ids []string) []models.AddResult {
	if len(ids) == 0 {
		return nil
	}
	if !p.target.SupportsBatch() {
		return p.addEach(ctx, playlistID, ids)
	}

	results := make([]models.AddResult, 0, len(ids))
	for start := 0; start < len(ids); start += maxBatch {
		chunk := ids[start:min(start+maxBatch, len(ids))]

		var batch []models.AddResult
		err := p.policy.do(ctx, func(ctx context.Context) error {
			var err error
			batch, err = p.target.AddTracks(ctx, playlistID, chunk)
			return err
		})
		if err != nil {
			p.logger.Warn("batch add failed, adding one by one", "playlist", playlistID, "tracks", len(chunk), "error", err)
			results = append(results, p.addEach(ctx, playlistID, chunk)...)
			continue
		}
		results = append(results, batch...)
	}
	return results
}

// addEach adds ids one call at a time, in order.
//
// Adds to one playlist never overlap: each add moves the playlist's version, and an add racing another
// would be rejected as stale.
func (p *PlaylistReconciler) addEach(ctx context.Context, playlistID string, ids []string) []models.AddResult {
	results := make([]models.AddResult, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(ids); j++ {
				results[j] = models.AddResult{TrackID: ids[j], Err: err}
			}
			break
		}
		results[i] = p.addOne(ctx, playlistID, id)
	}
	return results
}

func (p *PlaylistReconciler) addOne(ctx context.Context, playlistID, id string) models.AddResult {
	var res []models.AddResult
	err := p.policy.do(ctx, func(ctx context.Context) error {
		var err error
		res, err = p.target.AddTracks(ctx, playlistID, []string{id})
		return err
	})
	switch {
	case err != nil:
		return models.AddResult{TrackID: id, Err: err}
	case len(res) == 0:
		return models.AddResult{TrackID: id, Err: fmt.Errorf("%w: no result for track", shared.ErrAPIRequest)}
	}
	return models.AddResult{TrackID: id, Err: res[0].Err}
}
