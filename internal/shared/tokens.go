package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

const (
	tidalSessionFile   = "tidal_session.json"
	discogsSessionFile = "discogs_session.json"
)

// TokenStore persists service credentials as JSON files in a private directory (0700 dir, 0600 files).
type TokenStore struct {
	dir string
}

type tidalSession struct {
	*oauth2.Token
	AuthMethod string    `json:"auth_method"`
	SavedAt    time.Time `json:"saved_at"`
}

type discogsSession struct {
	PersonalToken string    `json:"personal_token"`
	Username      string    `json:"username,omitempty"`
	SavedAt       time.Time `json:"saved_at"`
}

// NewTokenStore creates a store rooted at dir. The directory is created lazily on first save.
func NewTokenStore(dir string) *TokenStore {
	return &TokenStore{dir: dir}
}

// Dir returns the store's directory.
func (s *TokenStore) Dir() string {
	return s.dir
}

// SaveTidalToken stores the Tidal OAuth2 token together with the flow that produced it.
func (s *TokenStore) SaveTidalToken(token *oauth2.Token, method string) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidInput)
	}
	return s.write(tidalSessionFile, tidalSession{Token: token, AuthMethod: method, SavedAt: time.Now()})
}

// LoadTidalToken returns the stored Tidal token, or [ErrNotAuthenticated] when none is stored.
func (s *TokenStore) LoadTidalToken() (*oauth2.Token, error) {
	var session tidalSession
	if err := s.read(tidalSessionFile, &session); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: run tidal-auth first", ErrNotAuthenticated)
		}
		return nil, err
	}
	if session.Token == nil || session.AccessToken == "" {
		return nil, fmt.Errorf("%w: stored tidal session has no access token", ErrNotAuthenticated)
	}
	return session.Token, nil
}

// SaveDiscogsToken stores a validated Discogs personal access token.
func (s *TokenStore) SaveDiscogsToken(token, username string) error {
	if token == "" {
		return fmt.Errorf("%w: empty discogs token", ErrInvalidInput)
	}
	return s.write(discogsSessionFile, discogsSession{PersonalToken: token, Username: username, SavedAt: time.Now()})
}

// LoadDiscogsToken returns the stored Discogs token, or an error wrapping [ErrNotFound].
func (s *TokenStore) LoadDiscogsToken() (string, error) {
	var session discogsSession
	if err := s.read(discogsSessionFile, &session); err != nil {
		return "", err
	}
	if session.PersonalToken == "" {
		return "", fmt.Errorf("discogs session: %w", ErrNotFound)
	}
	return session.PersonalToken, nil
}

// Clear removes every stored session.
func (s *TokenStore) Clear() error {
	for _, name := range []string{tidalSessionFile, discogsSessionFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *TokenStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// write replaces the named file atomically: a temp file in the same directory is renamed over it.
func (s *TokenStore) write(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create tokens directory: %w", err)
	}
	if err := os.Chmod(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to secure tokens directory: %w", err)
	}

	data, err := MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to secure %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}
