// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

// FakeCatalog is a test double for [services.Catalog] serving a fixed collection.
type FakeCatalog struct {
	Username string
	Releases []models.Release
	Err      error // returned by every call when set
	Calls    int
}

func (c *FakeCatalog) Name() string { return "Discogs" }

func (c *FakeCatalog) Identity(ctx context.Context) (string, error) {
	if c.Err != nil {
		return "", c.Err
	}
	return c.Username, nil
}

func (c *FakeCatalog) Folders(ctx context.Context) ([]models.Folder, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return []models.Folder{{ID: 0, Name: "All", Count: len(c.Releases)}}, nil
}

func (c *FakeCatalog) FetchCollection(ctx context.Context, folderID, limit int) ([]models.Release, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	if folderID != 0 {
		return nil, fmt.Errorf("%w: %d", shared.ErrFolderNotFound, folderID)
	}
	if limit <= 0 {
		return c.Releases, nil
	}

	var out []models.Release
	remaining := limit
	for _, r := range c.Releases {
		if remaining <= 0 {
			break
		}
		if len(r.Tracks) > remaining {
			r.Tracks = r.Tracks[:remaining]
		}
		remaining -= len(r.Tracks)
		out = append(out, r)
	}
	return out, nil
}

// FakeTarget is an in-memory test double for [services.Target] and [services.AlbumSearcher].
//
// Catalog maps a search query to its results, Albums an album query to its results and Tracklists an
// album id to its tracks. Playlists live in memory; every call is counted.
type FakeTarget struct {
	Catalog    map[string][]models.TrackCandidate
	Albums     map[string][]models.AlbumCandidate
	Tracklists map[string][]models.TrackCandidate
	Batch      bool

	// Error injection
	SearchErr   map[string]error // per query
	ListErr     error
	CreateErr   error
	BatchErr    error            // returned by AddTracks calls with more than one id
	TrackErr    map[string]error // per track id, reported when that id is added
	SearchFails int              // fail this many searches with a transient error before succeeding
	AlbumErr    error            // returned by every album search

	mu        sync.Mutex
	playlists []models.Playlist
	tracks    map[string][]string
	searches  map[string]int
	calls     map[string]int
	nextID    int
}

// NewFakeTarget creates a target with batch support and no playlists.
func NewFakeTarget() *FakeTarget {
	return &FakeTarget{
		Catalog:    map[string][]models.TrackCandidate{},
		Albums:     map[string][]models.AlbumCandidate{},
		Tracklists: map[string][]models.TrackCandidate{},
		Batch:      true,
		SearchErr:  map[string]error{},
		TrackErr:   map[string]error{},
		tracks:     map[string][]string{},
		searches:   map[string]int{},
		calls:      map[string]int{},
	}
}

func (f *FakeTarget) count(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *FakeTarget) Name() string { return "Tidal" }

func (f *FakeTarget) SupportsBatch() bool { return f.Batch }

func (f *FakeTarget) SearchTrack(ctx context.Context, query string) ([]models.TrackCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["SearchTrack"]++
	f.searches[query]++
	if f.SearchFails > 0 {
		f.SearchFails--
		return nil, fmt.Errorf("%w: connection reset", shared.ErrTransientNetwork)
	}
	if err := f.SearchErr[query]; err != nil {
		return nil, err
	}
	return f.Catalog[query], nil
}

func (f *FakeTarget) SearchAlbums(ctx context.Context, query string) ([]models.AlbumCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["SearchAlbums"]++
	f.searches[query]++
	if f.AlbumErr != nil {
		return nil, f.AlbumErr
	}
	return f.Albums[query], nil
}

func (f *FakeTarget) AlbumTracks(ctx context.Context, albumID string) ([]models.TrackCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["AlbumTracks"]++
	tracks, ok := f.Tracklists[albumID]
	if !ok {
		return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, albumID)
	}
	return tracks, nil
}

func (f *FakeTarget) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	f.count("GetPlaylists")
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Playlist, len(f.playlists))
	for i, p := range f.playlists {
		p.TrackCount = len(f.tracks[p.ID])
		out[i] = p
	}
	return out, nil
}

func (f *FakeTarget) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	f.count("CreatePlaylist")
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	return f.AddPlaylist(name), nil
}

func (f *FakeTarget) GetPlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	f.count("GetPlaylistTracks")

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.exists(playlistID) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	return slices.Clone(f.tracks[playlistID]), nil
}

func (f *FakeTarget) AddTracks(ctx context.Context, playlistID string, trackIDs []string) ([]models.AddResult, error) {
	f.count("AddTracks")

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.exists(playlistID) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	if len(trackIDs) > 1 && f.BatchErr != nil {
		return nil, f.BatchErr
	}

	results := make([]models.AddResult, len(trackIDs))
	for i, id := range trackIDs {
		results[i] = models.AddResult{TrackID: id, Err: f.TrackErr[id]}
		if results[i].OK() {
			f.tracks[playlistID] = append(f.tracks[playlistID], id)
		}
	}
	return results, nil
}

func (f *FakeTarget) exists(playlistID string) bool {
	return slices.ContainsFunc(f.playlists, func(p models.Playlist) bool { return p.ID == playlistID })
}

// AddPlaylist seeds a playlist and returns its id.
func (f *FakeTarget) AddPlaylist(name string, trackIDs ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := "pl-" + strconv.Itoa(f.nextID)
	f.playlists = append(f.playlists, models.Playlist{ID: id, Name: name})
	f.tracks[id] = slices.Clone(trackIDs)
	return id
}

// PlaylistTracks returns the tracks of the playlist called name.
func (f *FakeTarget) PlaylistTracks(name string) ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.playlists {
		if p.Name == name {
			return slices.Clone(f.tracks[p.ID]), true
		}
	}
	return nil, false
}

// PlaylistCount returns the number of playlists.
func (f *FakeTarget) PlaylistCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.playlists)
}

// Calls returns how many times method was called.
func (f *FakeTarget) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Searches returns how many times query was searched.
func (f *FakeTarget) Searches(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches[query]
}

// MutationCount returns the number of calls that change remote state.
func (f *FakeTarget) MutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls["CreatePlaylist"] + f.calls["AddTracks"]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
