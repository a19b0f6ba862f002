package tasks

import (
	"fmt"
	"maps"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/d2t/internal/models"
)

// ErrCacheConflict is returned when a fingerprint would be stored with a different resolution.
var ErrCacheConflict = fmt.Errorf("search cache conflict")

// SearchCache memoizes resolutions by fingerprint for the lifetime of one sync run.
//
// Concurrent [SearchCache.Resolve] calls for the same fingerprint share a single resolution.
type SearchCache struct {
	mu      sync.RWMutex
	entries map[string]models.ResolvedTrack
	flight  singleflight.Group
}

// NewSearchCache creates an empty cache.
func NewSearchCache() *SearchCache {
	return &SearchCache{entries: make(map[string]models.ResolvedTrack)}
}

// Lookup returns the resolution stored for fingerprint.
func (c *SearchCache) Lookup(fingerprint string) (models.ResolvedTrack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.entries[fingerprint]
	return r, ok
}

// Store records the resolution for fingerprint. Storing an identical value again is a no-op.
func (c *SearchCache) Store(fingerprint string, r models.ResolvedTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[fingerprint]; ok {
		if existing != r {
			return fmt.Errorf("%w: %q already resolved to %q", ErrCacheConflict, fingerprint, existing.TrackID)
		}
		return nil
	}
	c.entries[fingerprint] = r
	return nil
}

// Resolve returns the cached resolution for fingerprint, calling fn to produce it on a miss.
//
// fn runs at most once per fingerprint; concurrent callers wait for its result.
// hit reports whether the result came from the cache or another caller.
func (c *SearchCache) Resolve(fingerprint string, fn func() models.ResolvedTrack) (r models.ResolvedTrack, hit bool, err error) {
	if r, ok := c.Lookup(fingerprint); ok {
		return r, true, nil
	}

	called := false
	v, err, _ := c.flight.Do(fingerprint, func() (any, error) {
		if r, ok := c.Lookup(fingerprint); ok {
			return r, nil
		}
		called = true
		r := fn()
		return r, c.Store(fingerprint, r)
	})
	if err != nil {
		return models.ResolvedTrack{}, false, err
	}
	return v.(models.ResolvedTrack), !called, nil
}

// Len returns the number of cached fingerprints.
func (c *SearchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot copies the cache contents.
func (c *SearchCache) Snapshot() map[string]models.ResolvedTrack {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.entries)
}
