package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
	tu "github.com/desertthunder/d2t/internal/testing"
)

func katModa() models.Release {
	return models.Release{
		ID: 7, Title: "Kat Moda", Artist: "Jeff Mills", Styles: []string{"Techno"},
		Tracks: []models.Track{
			{Artist: "Jeff Mills", Title: "The Bells", ReleaseID: 7},
			{Artist: "Jeff Mills", Title: "Alarms", ReleaseID: 7},
			{Artist: "Jeff Mills", Title: "Step To Enchantment (Stringent)", ReleaseID: 7},
		},
	}
}

func albumTrack(id, title string, number int) models.TrackCandidate {
	c := candidate(id, "Jeff Mills", title)
	c.TrackNumber = number
	return c
}

// katModaTarget serves the album behind katModa.
func katModaTarget() *tu.FakeTarget {
	target := tu.NewFakeTarget()
	target.Albums["Jeff Mills Kat Moda"] = []models.AlbumCandidate{
		{ID: "a0", Title: "Kat Moda", Artist: "Purpose Maker"},
		{ID: "a1", Title: "Kat Moda", Artist: "Jeff Mills"},
	}
	target.Tracklists["a1"] = []models.TrackCandidate{
		albumTrack("t1", "The Bells", 1),
		albumTrack("t2", "Alarms", 2),
		albumTrack("t3", "Step to Enchantment", 3),
	}
	return target
}

// resolvedFor marks the release tracks listed in ids as matched.
func resolvedFor(r models.Release, ids map[string]string) map[string]models.ResolvedTrack {
	out := map[string]models.ResolvedTrack{}
	for _, t := range r.Tracks {
		res := models.Unmatched(t, nil)
		if id, ok := ids[t.Title]; ok {
			res.TrackID, res.Strategy = id, models.StrategyExact
		}
		out[t.Fingerprint()] = res
	}
	return out
}

func TestAlbumMatcher_Fill(t *testing.T) {
	ctx := context.Background()
	release := katModa()

	t.Run("fills the gap from the album tracklist", func(t *testing.T) {
		target := katModaTarget()
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)

		filled := m.Fill(ctx, release, resolvedFor(release, map[string]string{"The Bells": "t1", "Alarms": "t2"}))
		require.Len(t, filled, 1)
		assert.Equal(t, "t3", filled[0].TrackID)
		assert.Equal(t, models.StrategyAlbum, filled[0].Strategy)
		assert.Equal(t, release.Tracks[2].Fingerprint(), filled[0].Fingerprint)
		assert.Equal(t, "Jeff Mills - Step to Enchantment", filled[0].Candidate)
		assert.Equal(t, 1, target.Calls("AlbumTracks"), "only the matching album is listed")
	})

	t.Run("half matched is not enough", func(t *testing.T) {
		target := katModaTarget()
		r := release
		r.Tracks = release.Tracks[1:]
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)

		assert.Empty(t, m.Fill(ctx, r, resolvedFor(r, map[string]string{"Alarms": "t2"})))
		assert.Zero(t, target.Calls("SearchAlbums"))
	})

	t.Run("fully matched releases are left alone", func(t *testing.T) {
		target := katModaTarget()
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)

		all := map[string]string{"The Bells": "t1", "Alarms": "t2", "Step To Enchantment (Stringent)": "t3"}
		assert.Empty(t, m.Fill(ctx, release, resolvedFor(release, all)))
		assert.Zero(t, target.Calls("SearchAlbums"))
	})

	t.Run("album by another artist is rejected and remembered", func(t *testing.T) {
		target := katModaTarget()
		delete(target.Albums, "Jeff Mills Kat Moda")
		target.Albums["Kat Moda"] = []models.AlbumCandidate{{ID: "a1", Title: "Kat Moda", Artist: "Robert Hood"}}
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)
		resolved := resolvedFor(release, map[string]string{"The Bells": "t1", "Alarms": "t2"})

		assert.Empty(t, m.Fill(ctx, release, resolved))
		searches := target.Calls("SearchAlbums")
		assert.Equal(t, 3, searches, "every album query is tried")
		assert.Zero(t, target.Calls("AlbumTracks"))

		assert.Empty(t, m.Fill(ctx, release, resolved))
		assert.Equal(t, searches, target.Calls("SearchAlbums"), "a missing album is cached for the run")
	})

	t.Run("position breaks ties between equal titles", func(t *testing.T) {
		target := katModaTarget()
		target.Tracklists["a1"] = []models.TrackCandidate{
			albumTrack("t1", "The Bells", 1),
			albumTrack("t2", "Alarms", 2),
			albumTrack("t4", "Step To Enchantment", 4),
			albumTrack("t3", "Step To Enchantment", 3),
		}
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)

		filled := m.Fill(ctx, release, resolvedFor(release, map[string]string{"The Bells": "t1", "Alarms": "t2"}))
		require.Len(t, filled, 1)
		assert.Equal(t, "t3", filled[0].TrackID)
	})

	t.Run("album tracks already matched are not reused", func(t *testing.T) {
		target := katModaTarget()
		r := release
		r.Tracks = append(release.Tracks[:2:2], models.Track{Artist: "Jeff Mills", Title: "The Bells (Live)", ReleaseID: 7})
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)

		assert.Empty(t, m.Fill(ctx, r, resolvedFor(r, map[string]string{"The Bells": "t1", "Alarms": "t2"})))
	})

	t.Run("lookup errors are not cached", func(t *testing.T) {
		target := katModaTarget()
		target.AlbumErr = fmt.Errorf("%w: bad query", shared.ErrAPIRequest)
		m := NewAlbumMatcher(target, nil, fastPolicy, nil)
		resolved := resolvedFor(release, map[string]string{"The Bells": "t1", "Alarms": "t2"})

		assert.Empty(t, m.Fill(ctx, release, resolved))

		target.AlbumErr = nil
		filled := m.Fill(ctx, release, resolved)
		require.Len(t, filled, 1)
		assert.Equal(t, "t3", filled[0].TrackID)
	})
}

func TestAlbumCache(t *testing.T) {
	t.Run("stores found and missing tracklists", func(t *testing.T) {
		c := NewAlbumCache()
		calls := 0
		lookup := func() ([]models.TrackCandidate, error) {
			calls++
			return nil, nil
		}

		tracks, hit, err := c.Tracklist("k", lookup)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Nil(t, tracks)

		_, hit, err = c.Tracklist("k", lookup)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("errors pass through uncached", func(t *testing.T) {
		c := NewAlbumCache()
		boom := errors.New("boom")

		_, _, err := c.Tracklist("k", func() ([]models.TrackCandidate, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, c.Len())
	})

	t.Run("concurrent lookups share one call", func(t *testing.T) {
		c := NewAlbumCache()
		var calls atomic.Int32
		release := make(chan struct{})

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tracks, _, err := c.Tracklist("k", func() ([]models.TrackCandidate, error) {
					calls.Add(1)
					<-release
					return []models.TrackCandidate{candidate("t1", "Jeff Mills", "The Bells")}, nil
				})
				assert.NoError(t, err)
				assert.Len(t, tracks, 1)
			}()
		}
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 1, c.Len())
	})
}

func TestAlbumMatching(t *testing.T) {
	release := katModa()

	t.Run("albumMatches", func(t *testing.T) {
		tests := []struct {
			name  string
			album models.AlbumCandidate
			want  bool
		}{
			{name: "same album", album: models.AlbumCandidate{Title: "Kat Moda", Artist: "Jeff Mills"}, want: true},
			{name: "decorated title", album: models.AlbumCandidate{Title: "Kat Moda (Remastered)", Artist: "Jeff Mills"}, want: true},
			{name: "credited second", album: models.AlbumCandidate{Title: "Kat Moda", Artist: "Various", Artists: []string{"Jeff Mills"}}, want: true},
			{name: "other artist", album: models.AlbumCandidate{Title: "Kat Moda", Artist: "Robert Hood"}, want: false},
			{name: "other title", album: models.AlbumCandidate{Title: "Waveform Transmission", Artist: "Jeff Mills"}, want: false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, albumMatches(release, tt.album))
			})
		}
	})

	t.Run("albumQueries", func(t *testing.T) {
		assert.Equal(t, []string{"Jeff Mills Kat Moda", "jeff mills kat moda", "Kat Moda"}, albumQueries(release))

		various := release
		various.Artist = "Various"
		assert.Empty(t, albumQueries(various), "compilations have no album artist to search by")
	})
}
