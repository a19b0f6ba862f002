package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/desertthunder/d2t/internal/models"
)

func TestStrategyQueries(t *testing.T) {
	track := models.Track{Artist: "Crystal Waters", Title: "Gypsy Woman (She's Homeless) [Basement Boy Strip To The Bone Mix]"}
	s := DefaultStrategies()

	if len(s) != 3 {
		t.Fatalf("expected 3 strategies, got %d", len(s))
	}
	assert.Equal(t, models.StrategyExact, s[0].Name)
	assert.Equal(t, "Crystal Waters Gypsy Woman (She's Homeless) [Basement Boy Strip To The Bone Mix]", s[0].Query(track))
	assert.Equal(t, models.StrategyTitleFuzzy, s[1].Name)
	assert.Equal(t, "Gypsy Woman", s[1].Query(track))
	assert.Equal(t, models.StrategyTitleLoose, s[2].Name)
	assert.Equal(t, "gypsy woman", s[2].Query(track))
}

func TestPickExact(t *testing.T) {
	track := models.Track{Artist: "Beyoncé", Title: "Déjà Vu"}

	tests := []struct {
		name       string
		candidates []models.TrackCandidate
		expected   string
	}{
		{
			name:       "diacritics and case are ignored",
			candidates: []models.TrackCandidate{{ID: "1", Artist: "BEYONCE", Title: "deja vu"}},
			expected:   "1",
		},
		{
			name: "first equal candidate wins",
			candidates: []models.TrackCandidate{
				{ID: "1", Artist: "Someone", Title: "Deja Vu"},
				{ID: "2", Artist: "Beyonce", Title: "Deja Vu!"},
				{ID: "3", Artist: "Beyonce", Title: "Deja Vu"},
			},
			expected: "2",
		},
		{
			name:       "secondary artist credit",
			candidates: []models.TrackCandidate{{ID: "1", Artist: "Jay-Z", Artists: []string{"Jay-Z", "Beyoncé"}, Title: "Déjà Vu"}},
			expected:   "1",
		},
		{
			name:       "title must match exactly",
			candidates: []models.TrackCandidate{{ID: "1", Artist: "Beyonce", Title: "Deja Vu (Remix)"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := pickExact(track, tt.candidates)
			if tt.expected == "" {
				assert.False(t, ok)
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tt.expected, c.ID)
		})
	}

	t.Run("version is part of the title", func(t *testing.T) {
		mix := models.Track{Artist: "Jeff Mills", Title: "The Bells (Original Mix)"}
		c, ok := pickExact(mix, []models.TrackCandidate{{ID: "7", Artist: "Jeff Mills", Title: "The Bells", Version: "Original Mix"}})
		assert.True(t, ok)
		assert.Equal(t, "7", c.ID)
	})
}

func TestPickFuzzy(t *testing.T) {
	track := models.Track{Artist: "The Chemical Brothers", Title: "Hey Boy Hey Girl (Radio Edit)", Duration: 4 * time.Minute}

	t.Run("best weighted score above thresholds", func(t *testing.T) {
		c, ok := pickFuzzy(track, []models.TrackCandidate{
			{ID: "far", Artist: "Unrelated Orchestra", Title: "Hey Boy Hey Girl"},
			{ID: "close", Artist: "Chemical Brothers", Title: "Hey Boy, Hey Girl"},
		})
		assert.True(t, ok)
		assert.Equal(t, "close", c.ID)
	})

	t.Run("artist below threshold", func(t *testing.T) {
		_, ok := pickFuzzy(track, []models.TrackCandidate{{ID: "1", Artist: "Zz Top", Title: "Hey Boy Hey Girl"}})
		assert.False(t, ok)
	})

	t.Run("duration drift rejects", func(t *testing.T) {
		_, ok := pickFuzzy(track, []models.TrackCandidate{
			{ID: "1", Artist: "The Chemical Brothers", Title: "Hey Boy Hey Girl", Duration: 8 * time.Minute},
		})
		assert.False(t, ok)
	})

	t.Run("unknown duration is accepted", func(t *testing.T) {
		_, ok := pickFuzzy(track, []models.TrackCandidate{{ID: "1", Artist: "The Chemical Brothers", Title: "Hey Boy Hey Girl"}})
		assert.True(t, ok)
	})

	t.Run("various artists cannot be filtered", func(t *testing.T) {
		va := models.Track{Artist: "Various", Title: "Hey Boy Hey Girl"}
		_, ok := pickFuzzy(va, []models.TrackCandidate{{ID: "1", Artist: "The Chemical Brothers", Title: "Hey Boy Hey Girl"}})
		assert.False(t, ok)
	})
}

func TestPickLoose(t *testing.T) {
	track := models.Track{Artist: "Various", Title: "Strings of Life"}

	c, ok := pickLoose(track, []models.TrackCandidate{
		{ID: "1", Artist: "Someone", Title: "Strings"},
		{ID: "2", Artist: "Rhythim Is Rhythim", Title: "Strings of Life"},
	})
	assert.True(t, ok)
	assert.Equal(t, "2", c.ID)

	_, ok = pickLoose(track, []models.TrackCandidate{{ID: "1", Title: "Completely Different"}})
	assert.False(t, ok)

	_, ok = pickLoose(track, nil)
	assert.False(t, ok)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("same", "same"))
	assert.Equal(t, 0.0, similarity("", "x"))
	assert.Greater(t, similarity("chemical brothers", "chemical bros"), FuzzyArtistThreshold)
	assert.Less(t, similarity("abc", "xyz"), FuzzyTitleThreshold)
}

func TestDurationsAgree(t *testing.T) {
	tests := []struct {
		a, b     time.Duration
		expected bool
	}{
		{0, 5 * time.Minute, true},
		{5 * time.Minute, 0, true},
		{5 * time.Minute, 5*time.Minute + 30*time.Second, true},
		{5 * time.Minute, 5*time.Minute - 31*time.Second, false},
	}
	for _, tt := range tests {
		if got := durationsAgree(tt.a, tt.b); got != tt.expected {
			t.Errorf("durationsAgree(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
		}
	}
}
