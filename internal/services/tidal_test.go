package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/d2t/internal/shared"
	tu "github.com/desertthunder/d2t/internal/testing"
)

const searchBody = `{"limit": 10, "offset": 0, "totalNumberOfItems": 2, "items": [
	{"id": 11, "title": "The Bells", "version": "Original Mix", "duration": 540, "isrc": "NL1234",
	 "artist": {"id": 1, "name": "Jeff Mills"}, "artists": [{"id": 1, "name": "Jeff Mills"}], "album": {"id": 5, "title": "Kat Moda"}},
	{"id": 12, "title": "The Bells", "duration": 300, "artist": {"id": 2, "name": "Someone Else"}}
]}`

func tidalMux(t *testing.T, added *[]string) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sessionId": "s", "userId": 7, "countryCode": "GB"}`)
	})
	mux.HandleFunc("/search/tracks", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "jeff mills the bells", r.URL.Query().Get("query"))
		require.Equal(t, "US", r.URL.Query().Get("countryCode"))
		fmt.Fprint(w, searchBody)
	})
	mux.HandleFunc("/search/albums", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Jeff Mills Kat Moda", r.URL.Query().Get("query"))
		fmt.Fprint(w, `{"totalNumberOfItems": 1, "items": [
			{"id": 5, "title": "Kat Moda", "numberOfTracks": 3, "artist": {"id": 1, "name": "Jeff Mills"},
			 "artists": [{"id": 1, "name": "Jeff Mills"}]}
		]}`)
	})
	mux.HandleFunc("/albums/5/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, `{"limit": 2, "offset": 0, "totalNumberOfItems": 3, "items": [
				{"id": 11, "title": "The Bells", "trackNumber": 1, "artist": {"id": 1, "name": "Jeff Mills"}},
				{"id": 13, "title": "Alarms", "trackNumber": 2, "artist": {"id": 1, "name": "Jeff Mills"}}
			]}`)
			return
		}
		fmt.Fprint(w, `{"offset": 2, "totalNumberOfItems": 3, "items": [
			{"id": 14, "title": "Step to Enchantment", "trackNumber": 3, "artist": {"id": 1, "name": "Jeff Mills"}}
		]}`)
	})
	mux.HandleFunc("/users/7/playlists", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			require.Equal(t, "Discogs - Techno", r.PostForm.Get("title"))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"uuid": "new-uuid", "title": "Discogs - Techno"}`)
		default:
			fmt.Fprint(w, `{"totalNumberOfItems": 2, "items": [
				{"uuid": "p1", "title": "Discogs - House", "numberOfTracks": 2},
				{"uuid": "p2", "title": "Other", "numberOfTracks": 0}
			]}`)
		}
	})
	mux.HandleFunc("/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-1"`)
		fmt.Fprint(w, `{"uuid": "p1", "title": "Discogs - House"}`)
	})
	mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"totalNumberOfItems": 2, "items": [{"id": 11}, {"id": 12}]}`)
	})
	mux.HandleFunc("/playlists/p1/items", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, `"etag-1"`, r.Header.Get("If-None-Match"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "SKIP", r.PostForm.Get("onDupes"))
		*added = append(*added, r.PostForm.Get("trackIds"))
		fmt.Fprint(w, `{"lastUpdated": 1, "addedItemIds": [1]}`)
	})
	return mux
}

func newTestTidal(t *testing.T, h http.Handler) *TidalService {
	t.Helper()

	svr := httptest.NewServer(h)
	t.Cleanup(svr.Close)

	s := NewTidalService(http.DefaultClient, "US", 1000, nil)
	s.baseURL = svr.URL
	return s
}

func TestTidalService(t *testing.T) {
	var added []string
	s := newTestTidal(t, tidalMux(t, &added))
	ctx := context.Background()

	assert.Equal(t, "Tidal", s.Name())
	assert.True(t, s.SupportsBatch())

	t.Run("SearchTrack", func(t *testing.T) {
		candidates, err := s.SearchTrack(ctx, "jeff mills the bells")
		require.NoError(t, err)
		require.Len(t, candidates, 2)

		assert.Equal(t, "11", candidates[0].ID)
		assert.Equal(t, "Jeff Mills", candidates[0].Artist)
		assert.Equal(t, 9*time.Minute, candidates[0].Duration)
		assert.Equal(t, "Kat Moda", candidates[0].Album)
		assert.Equal(t, "Original Mix", candidates[0].Version)
		assert.Equal(t, "Someone Else", candidates[1].Artist)
	})

	t.Run("SearchAlbums", func(t *testing.T) {
		albums, err := s.SearchAlbums(ctx, "Jeff Mills Kat Moda")
		require.NoError(t, err)
		require.Len(t, albums, 1)
		assert.Equal(t, "5", albums[0].ID)
		assert.Equal(t, "Kat Moda", albums[0].Title)
		assert.Equal(t, "Jeff Mills", albums[0].Artist)
		assert.Equal(t, 3, albums[0].TrackCount)
	})

	t.Run("AlbumTracks", func(t *testing.T) {
		tracks, err := s.AlbumTracks(ctx, "5")
		require.NoError(t, err)
		require.Len(t, tracks, 3)
		assert.Equal(t, "14", tracks[2].ID)
		assert.Equal(t, 3, tracks[2].TrackNumber)
		assert.Equal(t, "Alarms", tracks[1].Title)
	})

	t.Run("GetPlaylists", func(t *testing.T) {
		playlists, err := s.GetPlaylists(ctx)
		require.NoError(t, err)
		require.Len(t, playlists, 2)
		assert.Equal(t, "p1", playlists[0].ID)
		assert.Equal(t, "Discogs - House", playlists[0].Name)
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		id, err := s.CreatePlaylist(ctx, "Discogs - Techno", "Created by d2t")
		require.NoError(t, err)
		assert.Equal(t, "new-uuid", id)
	})

	t.Run("GetPlaylistTracks", func(t *testing.T) {
		ids, err := s.GetPlaylistTracks(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, []string{"11", "12"}, ids)
	})

	t.Run("AddTracks", func(t *testing.T) {
		results, err := s.AddTracks(ctx, "p1", []string{"21", "22"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].OK())
		assert.Equal(t, "22", results[1].TrackID)
		assert.Equal(t, []string{"21,22"}, added)
	})

	t.Run("AddTracks with nothing to add", func(t *testing.T) {
		results, err := s.AddTracks(ctx, "p1", nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestTidalService_Session(t *testing.T) {
	var calls atomic.Int32
	s := newTestTidal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"userId": 7}`)
	}))

	_, err := s.Session(context.Background())
	require.ErrorIs(t, err, shared.ErrTransientNetwork)

	session, err := s.Session(context.Background())
	require.NoError(t, err, "a failed lookup is not remembered")
	assert.Equal(t, 7, session.UserID)

	_, err = s.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTidalService_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		header   map[string]string
		body     string
		expected error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"status": 401, "userMessage": "Token expired"}`, expected: shared.ErrAuthentication},
		{name: "not found", status: http.StatusNotFound, expected: shared.ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "2"}, expected: shared.ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, expected: shared.ErrTransientNetwork},
		{name: "bad request", status: http.StatusBadRequest, expected: shared.ErrAPIRequest},
		{name: "stale etag", status: http.StatusPreconditionFailed, expected: shared.ErrTransientNetwork},
		{name: "conflict", status: http.StatusConflict, expected: shared.ErrTransientNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestTidal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			_, err := s.SearchTrack(context.Background(), "anything")
			require.ErrorIs(t, err, tt.expected)

			if tt.status == http.StatusTooManyRequests {
				var rl *shared.RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, 2*time.Second, rl.RetryAfter)
			}
			if tt.body != "" {
				assert.Contains(t, err.Error(), "Token expired")
			}
		})
	}
}

// versionedPlaylist serves playlist p1 with an ETag that changes on every write, rejecting writes that
// carry an older one.
type versionedPlaylist struct {
	mu      sync.Mutex
	version int
	foreign int // writes by another client landing just before the next posts
	stale   int
	added   []string
}

func (v *versionedPlaylist) etag() string { return strconv.Quote(strconv.Itoa(v.version)) }

func (v *versionedPlaylist) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		v.mu.Lock()
		defer v.mu.Unlock()
		w.Header().Set("ETag", v.etag())
		fmt.Fprint(w, `{"uuid": "p1"}`)
	})
	mux.HandleFunc("/playlists/p1/items", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)

		v.mu.Lock()
		defer v.mu.Unlock()
		if v.foreign > 0 {
			v.foreign--
			v.version++
		}
		if r.Header.Get("If-None-Match") != v.etag() {
			v.stale++
			w.WriteHeader(http.StatusPreconditionFailed)
			fmt.Fprint(w, `{"status": 412, "userMessage": "The resource has been modified"}`)
			return
		}
		_ = r.ParseForm()
		v.version++
		v.added = append(v.added, r.PostForm.Get("trackIds"))
		fmt.Fprint(w, `{}`)
	})
	return mux
}

func TestTidalService_AddTracksVersioning(t *testing.T) {
	t.Run("concurrent adds to one playlist all land", func(t *testing.T) {
		pl := &versionedPlaylist{}
		s := newTestTidal(t, pl.handler())

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.AddTracks(context.Background(), "p1", []string{strconv.Itoa(i + 1)})
			}()
		}
		wg.Wait()

		for _, err := range errs {
			assert.NoError(t, err)
		}
		assert.Len(t, pl.added, 8)
		assert.Zero(t, pl.stale)
	})

	t.Run("stale etag is retried with a fresh one", func(t *testing.T) {
		pl := &versionedPlaylist{foreign: 1}
		s := newTestTidal(t, pl.handler())

		attempts := 0
		policy := shared.RetryPolicy{Attempts: 3, Base: time.Millisecond, Max: 2 * time.Millisecond}
		err := shared.Retry(context.Background(), policy, func(ctx context.Context) error {
			attempts++
			_, err := s.AddTracks(ctx, "p1", []string{"42"})
			return err
		})

		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 1, pl.stale)
		assert.Equal(t, []string{"42"}, pl.added)
	})
}

func TestTransportError(t *testing.T) {
	t.Run("refused connection", func(t *testing.T) {
		s := NewTidalService(http.DefaultClient, "US", 1000, nil)
		s.baseURL = "http://127.0.0.1:1"

		_, err := s.SearchTrack(context.Background(), "anything")
		require.Error(t, err)
		assert.True(t, shared.IsRecoverable(err))
	})

	t.Run("reset by transport", func(t *testing.T) {
		c := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset by peer"))}
		s := NewTidalService(c, "US", 1000, nil)

		_, err := s.GetPlaylists(context.Background())
		require.ErrorIs(t, err, shared.ErrTransientNetwork)
		assert.Contains(t, err.Error(), "connection reset by peer")
	})
}
