package models

import (
	"time"

	"github.com/desertthunder/d2t/internal/shared"
)

// UnknownStyle is the group for tracks whose release carries no style tags.
const UnknownStyle = "Unknown Style"

// Release is a collection entry from the catalog source. Releases are not modified after they are fetched.
type Release struct {
	ID     int      `json:"id"`
	Title  string   `json:"title"`
	Artist string   `json:"artist"`
	Year   int      `json:"year,omitempty"`
	Styles []string `json:"styles"`
	Genres []string `json:"genres,omitempty"`
	Tracks []Track  `json:"tracks"`
}

// Track is one tracklist entry. ReleaseID and ReleaseTitle point back at the parent [Release].
type Track struct {
	Title        string        `json:"title"`
	Artist       string        `json:"artist"`
	Position     string        `json:"position,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"` // zero when the catalog has no duration
	ReleaseID    int           `json:"release_id"`
	ReleaseTitle string        `json:"release_title"`
}

// Fingerprint returns the normalized (artist, title) identity of the track.
func (t Track) Fingerprint() string {
	return shared.Fingerprint(t.Artist, t.Title)
}

// Folder is a collection folder. Folder 0 is "All".
type Folder struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TrackCount returns the total number of tracks across releases.
func TrackCount(releases []Release) int {
	n := 0
	for _, r := range releases {
		n += len(r.Tracks)
	}
	return n
}

// TrackCandidate is a search result from the target service.
type TrackCandidate struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	Artists     []string      `json:"artists,omitempty"`
	Album       string        `json:"album,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	ISRC        string        `json:"isrc,omitempty"`
	Version     string        `json:"version,omitempty"`
	TrackNumber int           `json:"track_number,omitempty"` // position on its album, 0 when unknown
}

// AlbumCandidate is an album search result from the target service.
type AlbumCandidate struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	Artists    []string `json:"artists,omitempty"`
	TrackCount int      `json:"track_count,omitempty"`
}

// Playlist is target-service playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
}

// AddResult is the outcome of adding one track to a playlist.
type AddResult struct {
	TrackID string
	Err     error
}

// OK reports whether the track was added.
func (r AddResult) OK() bool { return r.Err == nil }
