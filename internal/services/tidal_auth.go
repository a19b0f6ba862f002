package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/d2t/internal/shared"
)

const (
	tidalAuthURL       = "https://login.tidal.com/authorize"
	tidalTokenURL      = "https://auth.tidal.com/v1/oauth2/token"
	tidalDeviceAuthURL = "https://auth.tidal.com/v1/oauth2/device_authorization"
)

// Auth methods recorded with stored tokens.
const (
	AuthMethodDevice = "device"
	AuthMethodPKCE   = "pkce"
)

// TidalAuth obtains, stores and refreshes Tidal OAuth2 tokens.
type TidalAuth struct {
	config *oauth2.Config
	store  *shared.TokenStore
	logger *log.Logger
}

// NewTidalAuth creates an authenticator for the configured client.
func NewTidalAuth(cfg shared.TidalConfig, store *shared.TokenStore, logger *log.Logger) *TidalAuth {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &TidalAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"r_usr", "w_usr", "w_sub"},
			Endpoint: oauth2.Endpoint{
				AuthURL:       tidalAuthURL,
				TokenURL:      tidalTokenURL,
				DeviceAuthURL: tidalDeviceAuthURL,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		store:  store,
		logger: shared.WithLogger(logger, "service", "tidal-auth"),
	}
}

// Config exposes the OAuth2 configuration.
func (a *TidalAuth) Config() *oauth2.Config {
	return a.config
}

// StartDevice begins the device authorization flow. The user visits VerificationURI and enters UserCode.
func (a *TidalAuth) StartDevice(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	da, err := a.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: device authorization: %v", shared.ErrAuthentication, err)
	}
	return da, nil
}

// AwaitDevice polls until the user approves the device code, then stores the token.
func (a *TidalAuth) AwaitDevice(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	token, err := a.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("%w: device token: %v", shared.ErrAuthentication, err)
	}
	return token, a.save(token, AuthMethodDevice)
}

// AuthCodeURL builds the login URL for the authorization code flow with a PKCE challenge derived from verifier.
func (a *TidalAuth) AuthCodeURL(state, verifier string) string {
	return a.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token and stores it.
func (a *TidalAuth) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", shared.ErrAuthentication, err)
	}
	return token, a.save(token, AuthMethodPKCE)
}

func (a *TidalAuth) save(token *oauth2.Token, method string) error {
	if err := a.store.SaveTidalToken(token, method); err != nil {
		return fmt.Errorf("failed to store tidal token: %w", err)
	}
	a.logger.Info("stored tidal token", "method", method, "expires", token.Expiry)
	return nil
}

// Client returns an HTTP client authorized with the stored token. Refreshed tokens are written back to the store.
func (a *TidalAuth) Client(ctx context.Context) (*http.Client, error) {
	token, err := a.store.LoadTidalToken()
	if err != nil {
		return nil, err
	}

	ts := &storingTokenSource{
		base:   a.config.TokenSource(ctx, token),
		store:  a.store,
		last:   token.AccessToken,
		logger: a.logger,
	}
	return oauth2.NewClient(ctx, ts), nil
}

// storingTokenSource persists each token that differs from the last one seen.
type storingTokenSource struct {
	base   oauth2.TokenSource
	store  *shared.TokenStore
	logger *log.Logger

	mu   sync.Mutex
	last string
}

func (s *storingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.store.SaveTidalToken(token, "refresh"); err != nil {
			s.logger.Warn("failed to store refreshed token", "error", err)
		}
	}
	return token, nil
}
