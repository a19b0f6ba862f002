package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenStore(t *testing.T) {
	t.Run("tidal round trip", func(t *testing.T) {
		store := NewTokenStore(filepath.Join(t.TempDir(), "tokens"))
		expiry := time.Now().Add(time.Hour).Truncate(time.Second)

		token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", Expiry: expiry}
		require.NoError(t, store.SaveTidalToken(token, "device"))

		loaded, err := store.LoadTidalToken()
		require.NoError(t, err)
		assert.Equal(t, "access", loaded.AccessToken)
		assert.Equal(t, "refresh", loaded.RefreshToken)
		assert.True(t, loaded.Expiry.Equal(expiry))
	})

	t.Run("missing tidal session", func(t *testing.T) {
		store := NewTokenStore(t.TempDir())
		_, err := store.LoadTidalToken()
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("nil token rejected", func(t *testing.T) {
		store := NewTokenStore(t.TempDir())
		assert.ErrorIs(t, store.SaveTidalToken(nil, "pkce"), ErrInvalidInput)
	})

	t.Run("discogs round trip", func(t *testing.T) {
		store := NewTokenStore(t.TempDir())
		require.NoError(t, store.SaveDiscogsToken("personal", "digger"))

		token, err := store.LoadDiscogsToken()
		require.NoError(t, err)
		assert.Equal(t, "personal", token)
	})

	t.Run("missing discogs session", func(t *testing.T) {
		_, err := NewTokenStore(t.TempDir()).LoadDiscogsToken()
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("files are private", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "tokens")
		store := NewTokenStore(dir)
		require.NoError(t, store.SaveDiscogsToken("personal", ""))

		dirInfo, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

		fileInfo, err := os.Stat(filepath.Join(dir, discogsSessionFile))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), fileInfo.Mode().Perm())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temp files should not be left behind")
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewTokenStore(t.TempDir())
		require.NoError(t, store.SaveDiscogsToken("personal", ""))
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear())

		_, err := store.LoadDiscogsToken()
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
