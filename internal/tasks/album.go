package tasks

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/shared"
)

const (
	// AlbumThreshold is the title and artist similarity an album result needs to count as the release.
	AlbumThreshold = 0.80

	// AlbumTrackThreshold is the title similarity an album track needs to stand in for a release track.
	AlbumTrackThreshold = 0.80

	// positionBonus is added to an album track sitting at the same position as the release track.
	positionBonus = 0.1
)

// AlbumCache memoizes album tracklists by release for the lifetime of one sync run. A nil tracklist
// records that no album matched.
type AlbumCache struct {
	mu      sync.RWMutex
	entries map[string][]models.TrackCandidate
	flight  singleflight.Group
}

// NewAlbumCache creates an empty cache.
func NewAlbumCache() *AlbumCache {
	return &AlbumCache{entries: make(map[string][]models.TrackCandidate)}
}

// Tracklist returns the tracklist stored under key, calling fn on a miss. Results of a failed fn are not
// kept, so a later release on the same album tries again.
func (c *AlbumCache) Tracklist(key string, fn func() ([]models.TrackCandidate, error)) (tracks []models.TrackCandidate, hit bool, err error) {
	c.mu.RLock()
	tracks, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return tracks, true, nil
	}

	called := false
	v, err, _ := c.flight.Do(key, func() (any, error) {
		c.mu.RLock()
		tracks, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return tracks, nil
		}

		called = true
		tracks, err := fn()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = tracks
		c.mu.Unlock()
		return tracks, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]models.TrackCandidate), !called, nil
}

// Len returns the number of cached releases, found or not.
func (c *AlbumCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// AlbumMatcher fills the gaps of a release that mostly matched track by track, using the tracklist of the
// release's album on the target service.
type AlbumMatcher struct {
	target services.AlbumSearcher
	cache  *AlbumCache
	policy CallPolicy
	logger *log.Logger
}

// NewAlbumMatcher creates an album matcher. A nil cache gets a fresh one.
func NewAlbumMatcher(target services.AlbumSearcher, cache *AlbumCache, policy CallPolicy, logger *log.Logger) *AlbumMatcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if cache == nil {
		cache = NewAlbumCache()
	}
	return &AlbumMatcher{
		target: target,
		cache:  cache,
		policy: policy,
		logger: shared.WithLogger(logger, "component", "album_matcher"),
	}
}

// Fill returns new resolutions for the unmatched tracks of r that were found on its album.
//
// It does nothing unless more than half of the release's tracks are already matched in resolved. Tracks
// already matched keep their resolution; an album track is never used for two release tracks.
func (m *AlbumMatcher) Fill(ctx context.Context, r models.Release, resolved map[string]models.ResolvedTrack) []models.ResolvedTrack {
	matched := 0
	taken := map[string]bool{}
	for _, t := range r.Tracks {
		if res := resolved[t.Fingerprint()]; res.Matched() {
			matched++
			taken[res.TrackID] = true
		}
	}
	if matched == len(r.Tracks) || matched*2 <= len(r.Tracks) {
		return nil
	}

	logger := m.logger.With("release", r.Artist+" - "+r.Title)
	tracklist, hit, err := m.cache.Tracklist(albumKey(r), func() ([]models.TrackCandidate, error) {
		return m.findAlbum(ctx, r)
	})
	if err != nil {
		logger.Warn("album lookup failed", "error", err)
		return nil
	}
	if len(tracklist) == 0 {
		logger.Debug("no album found", "cached", hit)
		return nil
	}

	var filled []models.ResolvedTrack
	done := map[string]bool{}
	for i, t := range r.Tracks {
		fp := t.Fingerprint()
		if resolved[fp].Matched() || done[fp] {
			continue
		}

		c, ok := pickAlbumTrack(t, i+1, tracklist, taken)
		if !ok {
			continue
		}
		taken[c.ID] = true
		done[fp] = true
		filled = append(filled, models.ResolvedTrack{
			Fingerprint: fp,
			Artist:      t.Artist,
			Title:       t.Title,
			TrackID:     c.ID,
			Strategy:    models.StrategyAlbum,
			Candidate:   c.Artist + " - " + c.Title,
		})
	}

	if len(filled) > 0 {
		logger.Info("filled from album", "tracks", len(filled), "matched_before", matched, "of", len(r.Tracks))
	}
	return filled
}

// findAlbum tries each album query in turn and returns the tracklist of the first matching album.
// A nil tracklist with a nil error means no album matched.
func (m *AlbumMatcher) findAlbum(ctx context.Context, r models.Release) ([]models.TrackCandidate, error) {
	var errs []error
	for _, query := range albumQueries(r) {
		var albums []models.AlbumCandidate
		err := m.policy.do(ctx, func(ctx context.Context) error {
			var err error
			albums, err = m.target.SearchAlbums(ctx, query)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}

		for _, a := range albums {
			if !albumMatches(r, a) {
				continue
			}

			var tracks []models.TrackCandidate
			err := m.policy.do(ctx, func(ctx context.Context) error {
				var err error
				tracks, err = m.target.AlbumTracks(ctx, a.ID)
				return err
			})
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if len(tracks) > 0 {
				m.logger.Debug("album matched", "query", query, "album", a.ID, "tracks", len(tracks))
				return tracks, nil
			}
		}
	}
	return nil, errors.Join(errs...)
}

func albumKey(r models.Release) string {
	return cleanArtistKey(r.Artist) + "\x00" + cleanTitleKey(r.Title)
}

// albumQueries returns the distinct queries to search for the release's album, cleaned first.
func albumQueries(r models.Release) []string {
	artist, title := shared.CleanArtist(r.Artist), shared.CleanTitle(r.Title)
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(title) == "" {
		return nil
	}

	var queries []string
	for _, q := range []string{
		strings.TrimSpace(artist + " " + title),
		strings.TrimSpace(cleanArtistKey(r.Artist) + " " + cleanTitleKey(r.Title)),
		strings.TrimSpace(title),
	} {
		if q != "" && !slices.Contains(queries, q) {
			queries = append(queries, q)
		}
	}
	return queries
}

// albumMatches requires both the title and one credited artist to clear [AlbumThreshold].
func albumMatches(r models.Release, a models.AlbumCandidate) bool {
	if similarity(cleanTitleKey(r.Title), cleanTitleKey(a.Title)) < AlbumThreshold {
		return false
	}

	artist := cleanArtistKey(r.Artist)
	artists := append([]string{a.Artist}, a.Artists...)
	for _, name := range artists {
		if similarity(artist, cleanArtistKey(name)) >= AlbumThreshold {
			return true
		}
	}
	return false
}

// pickAlbumTrack scores each unused album track by weighted title and artist similarity, plus
// [positionBonus] when it sits at position, and returns the best one whose title clears
// [AlbumTrackThreshold].
func pickAlbumTrack(t models.Track, position int, tracklist []models.TrackCandidate, taken map[string]bool) (models.TrackCandidate, bool) {
	title := cleanTitleKey(t.Title)
	if title == "" {
		return models.TrackCandidate{}, false
	}
	artist := cleanArtistKey(t.Artist)

	var best models.TrackCandidate
	bestScore := -1.0
	for _, c := range tracklist {
		if taken[c.ID] || !durationsAgree(t.Duration, c.Duration) {
			continue
		}

		titleSim := similarity(title, cleanTitleKey(c.Title))
		if titleSim < AlbumTrackThreshold {
			continue
		}
		artistSim := 0.0
		for _, a := range candidateArtists(c) {
			artistSim = max(artistSim, similarity(artist, cleanArtistKey(a)))
		}

		score := titleWeight*titleSim + artistWeight*artistSim
		if c.TrackNumber > 0 && c.TrackNumber == position {
			score += positionBonus
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore >= 0
}
