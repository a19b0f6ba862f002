package tasks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
	tu "github.com/desertthunder/d2t/internal/testing"
)

var fastPolicy = CallPolicy{
	Retry:   shared.RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond},
	Timeout: time.Second,
}

func candidate(id, artist, title string) models.TrackCandidate {
	return models.TrackCandidate{ID: id, Artist: artist, Title: title}
}

func TestTrackMatcher_Resolve(t *testing.T) {
	ctx := context.Background()
	bells := models.Track{Artist: "Jeff Mills", Title: "The Bells"}

	t.Run("exact strategy", func(t *testing.T) {
		target := tu.NewFakeTarget()
		target.Catalog["Jeff Mills The Bells"] = []models.TrackCandidate{candidate("1", "Jeff Mills", "The Bells")}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		assert.True(t, r.Matched())
		assert.Equal(t, "1", r.TrackID)
		assert.Equal(t, models.StrategyExact, r.Strategy)
		assert.Equal(t, "Jeff Mills - The Bells", r.Candidate)
		assert.Equal(t, bells.Fingerprint(), r.Fingerprint)
		assert.Equal(t, 1, target.Calls("SearchTrack"))
	})

	t.Run("falls back to the fuzzy title strategy", func(t *testing.T) {
		target := tu.NewFakeTarget()
		target.Catalog["The Bells"] = []models.TrackCandidate{candidate("2", "Jeff Mills & Friends", "The Bells")}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		assert.Equal(t, "2", r.TrackID)
		assert.Equal(t, models.StrategyTitleFuzzy, r.Strategy)
		assert.Equal(t, 2, target.Calls("SearchTrack"))
	})

	t.Run("falls back to the loose title strategy", func(t *testing.T) {
		target := tu.NewFakeTarget()
		target.Catalog["the bells"] = []models.TrackCandidate{candidate("3", "Unknown Orchestra", "The Bells")}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		assert.Equal(t, "3", r.TrackID)
		assert.Equal(t, models.StrategyTitleLoose, r.Strategy)
		assert.Equal(t, 3, target.Calls("SearchTrack"))
	})

	t.Run("no match is not an error", func(t *testing.T) {
		target := tu.NewFakeTarget()
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		assert.False(t, r.Matched())
		assert.Empty(t, r.Error)
		assert.Equal(t, models.StrategyNone, r.Strategy)
	})

	t.Run("identical queries are searched once", func(t *testing.T) {
		target := tu.NewFakeTarget()
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		// fuzzy and loose queries are both "abc"
		m.Resolve(ctx, models.Track{Artist: "X", Title: "abc"})
		assert.Equal(t, 1, target.Searches("abc"))
		assert.Equal(t, 2, target.Calls("SearchTrack"))
	})

	t.Run("cached fingerprint costs no search", func(t *testing.T) {
		target := tu.NewFakeTarget()
		target.Catalog["Jeff Mills The Bells"] = []models.TrackCandidate{candidate("1", "Jeff Mills", "The Bells")}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		first := m.Resolve(ctx, bells)
		again := m.Resolve(ctx, models.Track{Artist: "JEFF MILLS", Title: "the bells", ReleaseID: 99})
		assert.Equal(t, first, again)
		assert.Equal(t, 1, target.Calls("SearchTrack"))
		assert.Equal(t, 1, m.Cache().Len())
	})
}

func TestTrackMatcher_Errors(t *testing.T) {
	ctx := context.Background()
	bells := models.Track{Artist: "Jeff Mills", Title: "The Bells"}

	t.Run("transient errors are retried", func(t *testing.T) {
		target := tu.NewFakeTarget()
		target.SearchFails = 2
		target.Catalog["Jeff Mills The Bells"] = []models.TrackCandidate{candidate("1", "Jeff Mills", "The Bells")}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		assert.Equal(t, "1", r.TrackID)
		assert.Equal(t, 3, target.Calls("SearchTrack"))
	})

	t.Run("exhausted retries degrade to unmatched", func(t *testing.T) {
		target := tu.NewFakeTarget()
		rateLimited := &shared.RateLimitError{Service: "Tidal"}
		for _, q := range []string{"Jeff Mills The Bells", "The Bells", "the bells"} {
			target.SearchErr[q] = rateLimited
		}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		require.False(t, r.Matched())
		assert.Contains(t, r.Error, "rate limited")
		assert.Equal(t, 9, target.Calls("SearchTrack"), "3 strategies x 3 attempts")
	})

	t.Run("fatal errors are not retried", func(t *testing.T) {
		target := tu.NewFakeTarget()
		target.SearchErr["Jeff Mills The Bells"] = fmt.Errorf("%w: token revoked", shared.ErrAuthentication)
		target.Catalog["The Bells"] = []models.TrackCandidate{candidate("2", "Jeff Mills", "The Bells")}
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		r := m.Resolve(ctx, bells)
		assert.Equal(t, "2", r.TrackID, "a later strategy may still match")
		assert.Equal(t, 2, target.Calls("SearchTrack"))
	})

	t.Run("cancelled context stops the ladder", func(t *testing.T) {
		target := tu.NewFakeTarget()
		m := NewTrackMatcher(target, nil, fastPolicy, nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		target.SearchErr["Jeff Mills The Bells"] = context.Canceled

		r := m.Resolve(cctx, bells)
		assert.False(t, r.Matched())
		assert.NotEmpty(t, r.Error)
		assert.Equal(t, 1, target.Calls("SearchTrack"))
	})
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(shared.SyncConfig{SearchTimeout: 7, SearchRetryCount: 5})
	assert.Equal(t, 7*time.Second, p.Timeout)
	assert.Equal(t, 5, p.Retry.Attempts)
	assert.Equal(t, shared.DefaultRetryPolicy.Base, p.Retry.Base)
}
