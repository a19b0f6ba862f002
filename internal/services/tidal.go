// Tidal API implementation of [Target]
//
// Tidal v1 API response types based on the JSON the listen.tidal.com web player consumes.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agukrapo/go-http-client/requests"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

const (
	tidalBaseURL     = "https://api.tidal.com/v1"
	tidalSearchLimit = 10
	tidalPageSize    = 100
)

// TidalSession is the response of /sessions.
type TidalSession struct {
	SessionID   string `json:"sessionId"`
	UserID      int    `json:"userId"`
	CountryCode string `json:"countryCode"`
}

// TidalArtist is an artist reference on a track.
type TidalArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// TidalTrack is a track resource. Duration is in seconds.
type TidalTrack struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Version     string        `json:"version"`
	Duration    int           `json:"duration"`
	TrackNumber int           `json:"trackNumber"`
	ISRC        string        `json:"isrc"`
	Artist      TidalArtist   `json:"artist"`
	Artists     []TidalArtist `json:"artists"`
	Album       struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	} `json:"album"`
}

// TidalAlbum is an album resource.
type TidalAlbum struct {
	ID             int           `json:"id"`
	Title          string        `json:"title"`
	NumberOfTracks int           `json:"numberOfTracks"`
	Artist         TidalArtist   `json:"artist"`
	Artists        []TidalArtist `json:"artists"`
}

// TidalPlaylist is a playlist resource.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
}

// tidalPage is the paging envelope shared by list endpoints.
type tidalPage[T any] struct {
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
	Items              []T `json:"items"`
}

// TidalService implements [Target] for the Tidal v1 API.
//
// The httpClient must already authorize requests, e.g. the client returned by [TidalAuth.Client].
type TidalService struct {
	baseURL     string
	countryCode string
	httpClient  httpClient
	limiter     *rate.Limiter
	logger      *log.Logger

	mu      sync.Mutex
	session *TidalSession
	writes  sync.Map // playlist id -> *sync.Mutex
}

var (
	_ Target        = (*TidalService)(nil)
	_ AlbumSearcher = (*TidalService)(nil)
)

// NewTidalService creates a Tidal client limited to rps requests per second.
func NewTidalService(c httpClient, countryCode string, rps float64, logger *log.Logger) *TidalService {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if rps <= 0 {
		rps = 5
	}
	if countryCode == "" {
		countryCode = "US"
	}

	return &TidalService{
		baseURL:     tidalBaseURL,
		countryCode: countryCode,
		httpClient:  c,
		limiter:     rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		logger:      shared.WithLogger(logger, "service", "tidal"),
	}
}

func (s *TidalService) Name() string {
	return "Tidal"
}

// SupportsBatch is true: the items endpoint accepts a comma separated id list.
func (s *TidalService) SupportsBatch() bool {
	return true
}

func (s *TidalService) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("countryCode", s.countryCode)
	return s.baseURL + path + "?" + params.Encode()
}

func (s *TidalService) headers(b *requests.Builder) *requests.Builder {
	b.Header("Accept", "application/json")
	return b
}

// tidalDo sends a request built from b and decodes the JSON response into T.
func tidalDo[T any](ctx context.Context, s *TidalService, b *requests.Builder, expected ...int) (T, http.Header, error) {
	var out T
	if err := s.limiter.Wait(ctx); err != nil {
		return out, nil, fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	req, err := s.headers(b).Build(ctx)
	if err != nil {
		return out, nil, fmt.Errorf("failed to create request: %w", err)
	}

	return send[T](s.httpClient, s.Name(), req, expected...)
}

// Session returns the session of the authorized user. A successful lookup is remembered.
func (s *TidalService) Session(ctx context.Context) (TidalSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return *s.session, nil
	}

	session, _, err := tidalDo[TidalSession](ctx, s, requests.New(s.baseURL+"/sessions"), http.StatusOK)
	if err != nil {
		return TidalSession{}, err
	}
	if session.UserID == 0 {
		return TidalSession{}, fmt.Errorf("%w: tidal session has no user", shared.ErrAuthentication)
	}

	s.session = &session
	return session, nil
}

// SearchTrack queries the track catalog.
func (s *TidalService) SearchTrack(ctx context.Context, query string) ([]models.TrackCandidate, error) {
	params := url.Values{"query": {query}, "limit": {strconv.Itoa(tidalSearchLimit)}}

	res, _, err := tidalDo[tidalPage[TidalTrack]](ctx, s, requests.New(s.endpoint("/search/tracks", params)), http.StatusOK)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.TrackCandidate, 0, len(res.Items))
	for _, t := range res.Items {
		candidates = append(candidates, toCandidate(t))
	}
	return candidates, nil
}

func toCandidate(t TidalTrack) models.TrackCandidate {
	c := models.TrackCandidate{
		ID:          strconv.Itoa(t.ID),
		Title:       t.Title,
		Artist:      t.Artist.Name,
		Album:       t.Album.Title,
		Duration:    time.Duration(t.Duration) * time.Second,
		ISRC:        t.ISRC,
		Version:     t.Version,
		TrackNumber: t.TrackNumber,
	}
	for _, a := range t.Artists {
		c.Artists = append(c.Artists, a.Name)
	}
	if c.Artist == "" && len(c.Artists) > 0 {
		c.Artist = c.Artists[0]
	}
	return c
}

// SearchAlbums queries the album catalog.
func (s *TidalService) SearchAlbums(ctx context.Context, query string) ([]models.AlbumCandidate, error) {
	params := url.Values{"query": {query}, "limit": {strconv.Itoa(tidalSearchLimit)}}

	res, _, err := tidalDo[tidalPage[TidalAlbum]](ctx, s, requests.New(s.endpoint("/search/albums", params)), http.StatusOK)
	if err != nil {
		return nil, err
	}

	albums := make([]models.AlbumCandidate, 0, len(res.Items))
	for _, a := range res.Items {
		album := models.AlbumCandidate{
			ID:         strconv.Itoa(a.ID),
			Title:      a.Title,
			Artist:     a.Artist.Name,
			TrackCount: a.NumberOfTracks,
		}
		for _, artist := range a.Artists {
			album.Artists = append(album.Artists, artist.Name)
		}
		if album.Artist == "" && len(album.Artists) > 0 {
			album.Artist = album.Artists[0]
		}
		albums = append(albums, album)
	}
	return albums, nil
}

// AlbumTracks returns every track of the album in album order.
func (s *TidalService) AlbumTracks(ctx context.Context, albumID string) ([]models.TrackCandidate, error) {
	var tracks []models.TrackCandidate
	for offset := 0; ; offset += tidalPageSize {
		params := url.Values{"limit": {strconv.Itoa(tidalPageSize)}, "offset": {strconv.Itoa(offset)}}
		path := "/albums/" + url.PathEscape(albumID) + "/tracks"

		res, _, err := tidalDo[tidalPage[TidalTrack]](ctx, s, requests.New(s.endpoint(path, params)), http.StatusOK)
		if err != nil {
			return nil, err
		}

		for _, t := range res.Items {
			tracks = append(tracks, toCandidate(t))
		}

		if len(res.Items) == 0 || offset+len(res.Items) >= res.TotalNumberOfItems {
			break
		}
	}
	return tracks, nil
}

// GetPlaylists retrieves every playlist the user owns.
func (s *TidalService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}

	var playlists []models.Playlist
	for offset := 0; ; offset += tidalPageSize {
		params := url.Values{"limit": {strconv.Itoa(tidalPageSize)}, "offset": {strconv.Itoa(offset)}}
		path := fmt.Sprintf("/users/%d/playlists", session.UserID)

		res, _, err := tidalDo[tidalPage[TidalPlaylist]](ctx, s, requests.New(s.endpoint(path, params)), http.StatusOK)
		if err != nil {
			return nil, err
		}

		for _, p := range res.Items {
			playlists = append(playlists, models.Playlist{
				ID:          p.UUID,
				Name:        p.Title,
				Description: p.Description,
				TrackCount:  p.NumberOfTracks,
			})
		}

		if len(res.Items) == 0 || offset+len(res.Items) >= res.TotalNumberOfItems {
			break
		}
	}

	return playlists, nil
}

// CreatePlaylist creates a playlist owned by the user and returns its uuid.
func (s *TidalService) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{"title": {name}, "description": {description}}
	b := requests.New(s.endpoint(fmt.Sprintf("/users/%d/playlists", session.UserID), nil)).
		Method(http.MethodPost).
		Body(strings.NewReader(form.Encode()))
	b.Header("Content-Type", "application/x-www-form-urlencoded")

	res, _, err := tidalDo[TidalPlaylist](ctx, s, b, http.StatusOK, http.StatusCreated)
	if err != nil {
		return "", err
	}
	if res.UUID == "" {
		return "", fmt.Errorf("%s: %w: created playlist has no id", s.Name(), shared.ErrAPIRequest)
	}

	s.logger.Info("created playlist", "name", name, "id", res.UUID)
	return res.UUID, nil
}

// GetPlaylistTracks returns the ids of every track in the playlist.
func (s *TidalService) GetPlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += tidalPageSize {
		params := url.Values{"limit": {strconv.Itoa(tidalPageSize)}, "offset": {strconv.Itoa(offset)}}
		path := "/playlists/" + url.PathEscape(playlistID) + "/tracks"

		res, _, err := tidalDo[tidalPage[TidalTrack]](ctx, s, requests.New(s.endpoint(path, params)), http.StatusOK)
		if err != nil {
			return nil, err
		}

		for _, t := range res.Items {
			ids = append(ids, strconv.Itoa(t.ID))
		}

		if len(res.Items) == 0 || offset+len(res.Items) >= res.TotalNumberOfItems {
			break
		}
	}
	return ids, nil
}

// etag reads the playlist's current ETag, required as If-None-Match by mutating calls.
func (s *TidalService) etag(ctx context.Context, playlistID string) (string, error) {
	path := "/playlists/" + url.PathEscape(playlistID)
	_, header, err := tidalDo[TidalPlaylist](ctx, s, requests.New(s.endpoint(path, nil)), http.StatusOK)
	if err != nil {
		return "", err
	}
	return header.Get("ETag"), nil
}

// playlistLock returns the lock that serializes writes to one playlist.
func (s *TidalService) playlistLock(playlistID string) *sync.Mutex {
	m, _ := s.writes.LoadOrStore(playlistID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// AddTracks appends trackIDs in one call. Duplicates already in the playlist are skipped by the server.
//
// Concurrent adds to the same playlist wait for each other, since every write changes the ETag the next one
// must send.
func (s *TidalService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) ([]models.AddResult, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}

	lock := s.playlistLock(playlistID)
	lock.Lock()
	defer lock.Unlock()

	etag, err := s.etag(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"trackIds":           {strings.Join(trackIDs, ",")},
		"onDupes":            {"SKIP"},
		"onArtifactNotFound": {"FAIL"},
	}
	b := requests.New(s.endpoint("/playlists/"+url.PathEscape(playlistID)+"/items", nil)).
		Method(http.MethodPost).
		Body(strings.NewReader(form.Encode()))
	b.Header("Content-Type", "application/x-www-form-urlencoded")
	if etag != "" {
		b.Header("If-None-Match", etag)
	}

	if _, _, err := tidalDo[struct{}](ctx, s, b, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}

	results := make([]models.AddResult, len(trackIDs))
	for i, id := range trackIDs {
		results[i] = models.AddResult{TrackID: id}
	}
	return results, nil
}
