// package services defines the catalog and target interfaces the sync engine depends on
//
// Discogs (catalog), Tidal (target)
package services

import (
	"context"

	"github.com/desertthunder/d2t/internal/models"
)

// Catalog is the source of the user's collection (Discogs).
type Catalog interface {
	// Name returns the name of the service (e.g., "Discogs")
	Name() string

	// Identity validates the credentials and returns the username.
	// Fails with [shared.ErrAuthentication] when they are rejected.
	Identity(ctx context.Context) (string, error)

	// Folders lists the collection folders.
	Folders(ctx context.Context) ([]models.Folder, error)

	// FetchCollection returns the releases in folderID (0 is "All") with full tracklists and styles.
	// limit caps the total number of tracks; 0 means unlimited.
	// An unknown folder fails with [shared.ErrFolderNotFound].
	FetchCollection(ctx context.Context, folderID int, limit int) ([]models.Release, error)
}

// Target is the streaming service playlists are written to (Tidal).
type Target interface {
	// Name returns the name of the service (e.g., "Tidal")
	Name() string

	// SearchTrack returns candidates for a free-text query, best first.
	SearchTrack(ctx context.Context, query string) ([]models.TrackCandidate, error)

	// GetPlaylists retrieves all playlists owned by the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// CreatePlaylist creates a playlist and returns its id.
	CreatePlaylist(ctx context.Context, name, description string) (string, error)

	// GetPlaylistTracks returns the track ids currently in the playlist.
	GetPlaylistTracks(ctx context.Context, playlistID string) ([]string, error)

	// AddTracks appends tracks to the playlist. A returned error means the whole call failed;
	// otherwise each [models.AddResult] reports one track.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) ([]models.AddResult, error)

	// SupportsBatch reports whether AddTracks accepts more than one id per call.
	SupportsBatch() bool
}

// AlbumSearcher is implemented by targets that can search albums and list their tracks. The sync engine
// uses it to fill gaps in a release that mostly matched track by track.
type AlbumSearcher interface {
	// SearchAlbums returns album candidates for a free-text query, best first.
	SearchAlbums(ctx context.Context, query string) ([]models.AlbumCandidate, error)

	// AlbumTracks returns the album's tracklist in album order.
	AlbumTracks(ctx context.Context, albumID string) ([]models.TrackCandidate, error)
}
