package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

// Similarity thresholds (Jaro-Winkler on normalized, cleaned strings).
const (
	FuzzyArtistThreshold = 0.65
	FuzzyTitleThreshold  = 0.60
	LooseTitleThreshold  = 0.80

	// MaxDurationDrift rejects fuzzy candidates whose length differs this much from the source track.
	MaxDurationDrift = 30 * time.Second

	artistWeight = 0.3
	titleWeight  = 0.7
)

// SearchStrategy is one layer of the search ladder: a query derived from the track and a picker that
// accepts at most one candidate from the results.
//
// An empty query skips the strategy.
type SearchStrategy struct {
	Name  models.Strategy
	Query func(t models.Track) string
	Pick  func(t models.Track, candidates []models.TrackCandidate) (models.TrackCandidate, bool)
}

// DefaultStrategies returns the ladder from strictest to loosest.
func DefaultStrategies() []SearchStrategy {
	return []SearchStrategy{
		{Name: models.StrategyExact, Query: exactQuery, Pick: pickExact},
		{Name: models.StrategyTitleFuzzy, Query: fuzzyQuery, Pick: pickFuzzy},
		{Name: models.StrategyTitleLoose, Query: looseQuery, Pick: pickLoose},
	}
}

func exactQuery(t models.Track) string {
	return strings.TrimSpace(t.Artist + " " + t.Title)
}

func fuzzyQuery(t models.Track) string {
	return shared.CleanTitle(t.Title)
}

func looseQuery(t models.Track) string {
	return shared.Normalize(shared.CleanTitle(t.Title))
}

// candidateArtists returns every credited artist, primary first.
func candidateArtists(c models.TrackCandidate) []string {
	artists := make([]string, 0, len(c.Artists)+1)
	if c.Artist != "" {
		artists = append(artists, c.Artist)
	}
	for _, a := range c.Artists {
		if !slices.Contains(artists, a) {
			artists = append(artists, a)
		}
	}
	return artists
}

// pickExact accepts the first candidate whose normalized title (with or without its version) and one
// normalized artist equal the track's.
func pickExact(t models.Track, candidates []models.TrackCandidate) (models.TrackCandidate, bool) {
	title := shared.Normalize(t.Title)
	artist := shared.Normalize(t.Artist)
	if title == "" || artist == "" {
		return models.TrackCandidate{}, false
	}

	for _, c := range candidates {
		titles := []string{shared.Normalize(c.Title)}
		if c.Version != "" {
			titles = append(titles, shared.Normalize(c.Title+" "+c.Version))
		}
		if !slices.Contains(titles, title) {
			continue
		}
		for _, a := range candidateArtists(c) {
			if shared.Normalize(a) == artist {
				return c, true
			}
		}
	}
	return models.TrackCandidate{}, false
}

// pickFuzzy accepts the candidate with the best weighted artist and title similarity above both thresholds.
func pickFuzzy(t models.Track, candidates []models.TrackCandidate) (models.TrackCandidate, bool) {
	artist := cleanArtistKey(t.Artist)
	title := cleanTitleKey(t.Title)
	if artist == "" || title == "" {
		return models.TrackCandidate{}, false
	}

	var best models.TrackCandidate
	bestScore := -1.0
	for _, c := range candidates {
		if !durationsAgree(t.Duration, c.Duration) {
			continue
		}

		artistSim := 0.0
		for _, a := range candidateArtists(c) {
			artistSim = max(artistSim, similarity(artist, cleanArtistKey(a)))
		}
		titleSim := similarity(title, cleanTitleKey(c.Title))
		if artistSim < FuzzyArtistThreshold || titleSim < FuzzyTitleThreshold {
			continue
		}

		if score := artistWeight*artistSim + titleWeight*titleSim; score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore >= 0
}

// pickLoose accepts the candidate with the best title similarity above the loose threshold, ignoring artists.
func pickLoose(t models.Track, candidates []models.TrackCandidate) (models.TrackCandidate, bool) {
	title := cleanTitleKey(t.Title)
	if title == "" {
		return models.TrackCandidate{}, false
	}

	var best models.TrackCandidate
	bestScore := -1.0
	for _, c := range candidates {
		if !durationsAgree(t.Duration, c.Duration) {
			continue
		}
		sim := similarity(title, cleanTitleKey(c.Title))
		if sim >= LooseTitleThreshold && sim > bestScore {
			best, bestScore = c, sim
		}
	}
	return best, bestScore >= 0
}

func cleanTitleKey(s string) string  { return shared.Normalize(shared.CleanTitle(s)) }
func cleanArtistKey(s string) string { return shared.Normalize(shared.CleanArtist(s)) }

// durationsAgree is true unless both durations are known and drift apart.
func durationsAgree(a, b time.Duration) bool {
	if a <= 0 || b <= 0 {
		return true
	}
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= MaxDurationDrift
}

// similarity returns the Jaro-Winkler similarity of a and b in [0, 1].
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	s, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0
	}
	return float64(s)
}
