package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/shared"
)

// CallPolicy bounds every target-service call: each attempt gets Timeout, recoverable failures are retried
// per Retry.
type CallPolicy struct {
	Retry   shared.RetryPolicy
	Timeout time.Duration
}

// PolicyFromConfig derives the call policy from the sync settings.
func PolicyFromConfig(cfg shared.SyncConfig) CallPolicy {
	p := CallPolicy{Retry: shared.DefaultRetryPolicy, Timeout: cfg.Timeout()}
	p.Retry.Attempts = cfg.SearchRetryCount
	return p
}

func (p CallPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return shared.Retry(ctx, p.Retry, func(ctx context.Context) error {
		if p.Timeout <= 0 {
			return fn(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		return fn(ctx)
	})
}

// TrackMatcher resolves catalog tracks to target-service track ids through the search ladder,
// consulting and populating a run-scoped [SearchCache].
type TrackMatcher struct {
	target     services.Target
	cache      *SearchCache
	strategies []SearchStrategy
	policy     CallPolicy
	logger     *log.Logger
}

// NewTrackMatcher creates a matcher using [DefaultStrategies].
func NewTrackMatcher(target services.Target, cache *SearchCache, policy CallPolicy, logger *log.Logger) *TrackMatcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if cache == nil {
		cache = NewSearchCache()
	}
	return &TrackMatcher{
		target:     target,
		cache:      cache,
		strategies: DefaultStrategies(),
		policy:     policy,
		logger:     shared.WithLogger(logger, "component", "matcher"),
	}
}

// Cache returns the cache the matcher populates.
func (m *TrackMatcher) Cache() *SearchCache {
	return m.cache
}

// Resolve returns the resolution for t. A cached fingerprint costs no network call.
//
// Resolve never fails: exhausted searches produce an unmatched resolution carrying the last error.
func (m *TrackMatcher) Resolve(ctx context.Context, t models.Track) models.ResolvedTrack {
	fp := t.Fingerprint()
	r, hit, err := m.cache.Resolve(fp, func() models.ResolvedTrack {
		return m.match(ctx, t)
	})
	if err != nil {
		m.logger.Error("cache rejected resolution", "fingerprint", fp, "error", err)
	}
	if hit {
		m.logger.Debug("cache hit", "fingerprint", fp)
	}
	return r
}

// match runs the strategies in order. Identical queries across strategies are searched once.
func (m *TrackMatcher) match(ctx context.Context, t models.Track) models.ResolvedTrack {
	results := make(map[string][]models.TrackCandidate)
	var lastErr error

	for _, s := range m.strategies {
		query := s.Query(t)
		if query == "" {
			continue
		}

		candidates, seen := results[query]
		if !seen {
			var err error
			candidates, err = m.search(ctx, query)
			if err != nil {
				m.logger.Warn("search failed", "strategy", s.Name, "query", query, "error", err)
				lastErr = err
				if ctx.Err() != nil {
					break
				}
				continue
			}
			results[query] = candidates
		}

		if c, ok := s.Pick(t, candidates); ok {
			m.logger.Debug("matched", "strategy", s.Name, "track", t.Artist+" - "+t.Title, "candidate", c.ID)
			return models.ResolvedTrack{
				Fingerprint: t.Fingerprint(),
				Artist:      t.Artist,
				Title:       t.Title,
				TrackID:     c.ID,
				Strategy:    s.Name,
				Candidate:   c.Artist + " - " + c.Title,
			}
		}
	}

	m.logger.Debug("no match", "track", t.Artist+" - "+t.Title)
	return models.Unmatched(t, lastErr)
}

func (m *TrackMatcher) search(ctx context.Context, query string) ([]models.TrackCandidate, error) {
	var candidates []models.TrackCandidate
	err := m.policy.do(ctx, func(ctx context.Context) error {
		var err error
		candidates, err = m.target.SearchTrack(ctx, query)
		return err
	})
	return candidates, err
}
