// Discogs API implementation of [Catalog]
//
// Discogs API response types based on https://www.discogs.com/developers
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/agukrapo/go-http-client/client"
	"github.com/agukrapo/go-http-client/requests"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

const (
	discogsBaseURL = "https://api.discogs.com"
	discogsPerPage = 100
)

// DiscogsArtist is an artist credit on a release or track.
type DiscogsArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	ANV  string `json:"anv"` // artist name variation
	Join string `json:"join"`
}

// DiscogsTrack is a tracklist entry. Type is "track", "heading" or "index".
type DiscogsTrack struct {
	Position string          `json:"position"`
	Type     string          `json:"type_"`
	Title    string          `json:"title"`
	Duration string          `json:"duration"`
	Artists  []DiscogsArtist `json:"artists"`
}

// DiscogsRelease is the full release resource.
type DiscogsRelease struct {
	ID        int             `json:"id"`
	Title     string          `json:"title"`
	Year      int             `json:"year"`
	Artists   []DiscogsArtist `json:"artists"`
	Styles    []string        `json:"styles"`
	Genres    []string        `json:"genres"`
	Tracklist []DiscogsTrack  `json:"tracklist"`
}

// DiscogsFolder is a collection folder.
type DiscogsFolder struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type discogsIdentity struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type discogsFolders struct {
	Folders []DiscogsFolder `json:"folders"`
}

type discogsPagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

type discogsCollectionItem struct {
	ID               int `json:"id"`
	InstanceID       int `json:"instance_id"`
	BasicInformation struct {
		ID      int             `json:"id"`
		Title   string          `json:"title"`
		Year    int             `json:"year"`
		Artists []DiscogsArtist `json:"artists"`
		Styles  []string        `json:"styles"`
		Genres  []string        `json:"genres"`
	} `json:"basic_information"`
}

type discogsCollectionPage struct {
	Pagination discogsPagination       `json:"pagination"`
	Releases   []discogsCollectionItem `json:"releases"`
}

// DiscogsService implements [Catalog] for the Discogs API using a personal access token.
type DiscogsService struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient httpClient
	limiter    *rate.Limiter
	retry      shared.RetryPolicy
	logger     *log.Logger

	username string
}

// NewDiscogsService creates a Discogs client. A nil httpClient uses the default client and a nil logger discards.
func NewDiscogsService(cfg shared.DiscogsConfig, c httpClient, logger *log.Logger) (*DiscogsService, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: discogs token", shared.ErrMissingCredentials)
	}
	if c == nil {
		c = client.New()
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "d2t/0.1"
	}

	return &DiscogsService{
		baseURL:    discogsBaseURL,
		token:      cfg.Token,
		userAgent:  userAgent,
		httpClient: c,
		limiter:    rate.NewLimiter(rate.Limit(1), 5),
		retry:      shared.DefaultRetryPolicy,
		logger:     shared.WithLogger(logger, "service", "discogs"),
	}, nil
}

func (s *DiscogsService) Name() string {
	return "Discogs"
}

func (s *DiscogsService) headers(b *requests.Builder) *requests.Builder {
	b.Header("Authorization", "Discogs token="+s.token)
	b.Header("User-Agent", s.userAgent)
	b.Header("Accept", "application/vnd.discogs.v2.discogs+json")

	return b
}

// get fetches endpoint into T, throttled and retried.
func get[T any](ctx context.Context, s *DiscogsService, endpoint string) (T, error) {
	var out T

	err := shared.Retry(ctx, s.retry, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}

		req, err := s.headers(requests.New(s.baseURL + endpoint)).Build(ctx)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		res, _, err := send[T](s.httpClient, s.Name(), req, http.StatusOK)
		if err != nil {
			s.logger.Debug("request failed", "endpoint", endpoint, "error", err)
			return err
		}
		out = res
		return nil
	})

	return out, err
}

// Identity validates the token and returns the username.
func (s *DiscogsService) Identity(ctx context.Context) (string, error) {
	if s.username != "" {
		return s.username, nil
	}

	id, err := get[discogsIdentity](ctx, s, "/oauth/identity")
	if err != nil {
		return "", err
	}
	if id.Username == "" {
		return "", fmt.Errorf("%w: discogs identity has no username", shared.ErrAuthentication)
	}

	s.username = id.Username
	return s.username, nil
}

// Folders lists the user's collection folders.
func (s *DiscogsService) Folders(ctx context.Context) ([]models.Folder, error) {
	username, err := s.Identity(ctx)
	if err != nil {
		return nil, err
	}

	res, err := get[discogsFolders](ctx, s, "/users/"+url.PathEscape(username)+"/collection/folders")
	if err != nil {
		return nil, err
	}

	folders := make([]models.Folder, 0, len(res.Folders))
	for _, f := range res.Folders {
		folders = append(folders, models.Folder{ID: f.ID, Name: f.Name, Count: f.Count})
	}
	return folders, nil
}

// Release fetches a single release with its tracklist.
func (s *DiscogsService) Release(ctx context.Context, id int) (*DiscogsRelease, error) {
	res, err := get[DiscogsRelease](ctx, s, fmt.Sprintf("/releases/%d", id))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// FetchCollection returns the releases in folderID with tracklists, stopping once limit tracks are collected.
//
// Releases that fail to load for a recoverable reason are logged and skipped.
func (s *DiscogsService) FetchCollection(ctx context.Context, folderID int, limit int) ([]models.Release, error) {
	username, err := s.Identity(ctx)
	if err != nil {
		return nil, err
	}

	folders, err := s.Folders(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkFolder(folders, folderID); err != nil {
		return nil, err
	}

	var (
		releases []models.Release
		tracks   int
	)

	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("/users/%s/collection/folders/%d/releases?page=%d&per_page=%d",
			url.PathEscape(username), folderID, page, discogsPerPage)

		res, err := get[discogsCollectionPage](ctx, s, endpoint)
		if err != nil {
			return nil, err
		}

		for _, item := range res.Releases {
			if limit > 0 && tracks >= limit {
				return releases, nil
			}

			full, err := s.Release(ctx, item.BasicInformation.ID)
			if err != nil {
				if shared.IsFatal(err) || ctx.Err() != nil {
					return nil, err
				}
				s.logger.Warn("skipping release", "id", item.BasicInformation.ID, "title", item.BasicInformation.Title, "error", err)
				continue
			}

			release := toRelease(full)
			if limit > 0 && tracks+len(release.Tracks) > limit {
				release.Tracks = release.Tracks[:limit-tracks]
			}
			tracks += len(release.Tracks)
			releases = append(releases, release)

			s.logger.Debug("fetched release", "id", release.ID, "title", release.Title, "tracks", len(release.Tracks))
		}

		if page >= res.Pagination.Pages || len(res.Releases) == 0 {
			break
		}
	}

	return releases, nil
}

// checkFolder fails with [shared.ErrFolderNotFound] listing the available folders when id is unknown.
func checkFolder(folders []models.Folder, id int) error {
	available := make([]string, 0, len(folders))
	for _, f := range folders {
		if f.ID == id {
			return nil
		}
		available = append(available, fmt.Sprintf("ID %d: %s (%d items)", f.ID, f.Name, f.Count))
	}
	return fmt.Errorf("%w: folder %d, available folders: %s", shared.ErrFolderNotFound, id, strings.Join(available, ", "))
}

// toRelease converts a Discogs release, skipping headings and index entries.
func toRelease(r *DiscogsRelease) models.Release {
	release := models.Release{
		ID:     r.ID,
		Title:  r.Title,
		Artist: primaryArtist(r.Artists),
		Year:   r.Year,
		Styles: r.Styles,
		Genres: r.Genres,
	}

	for _, t := range r.Tracklist {
		if t.Type != "" && t.Type != "track" {
			continue
		}
		if strings.TrimSpace(t.Title) == "" {
			continue
		}

		artist := primaryArtist(t.Artists)
		if artist == "" {
			artist = release.Artist
		}

		duration, _ := shared.ParseTrackDuration(t.Duration)
		release.Tracks = append(release.Tracks, models.Track{
			Title:        strings.TrimSpace(t.Title),
			Artist:       artist,
			Position:     t.Position,
			Duration:     duration,
			ReleaseID:    r.ID,
			ReleaseTitle: r.Title,
		})
	}

	return release
}

func primaryArtist(artists []DiscogsArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return shared.StripDiscogsNumbering(artists[0].Name)
}
