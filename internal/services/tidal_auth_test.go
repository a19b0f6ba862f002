package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/desertthunder/d2t/internal/shared"
)

func newTestTidalAuth(t *testing.T, h http.Handler) (*TidalAuth, *shared.TokenStore) {
	t.Helper()

	svr := httptest.NewServer(h)
	t.Cleanup(svr.Close)

	store := shared.NewTokenStore(t.TempDir())
	auth := NewTidalAuth(shared.TidalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:3000/callback",
	}, store, nil)
	auth.config.Endpoint.TokenURL = svr.URL + "/token"
	auth.config.Endpoint.DeviceAuthURL = svr.URL + "/device_authorization"
	return auth, store
}

func tokenJSON(access string) string {
	return fmt.Sprintf(`{"access_token": %q, "token_type": "Bearer", "refresh_token": "refresh", "expires_in": 3600}`, access)
}

func TestTidalAuth_AuthCodeURL(t *testing.T) {
	auth, _ := newTestTidalAuth(t, http.NotFoundHandler())

	verifier := oauth2.GenerateVerifier()
	u, err := url.Parse(auth.AuthCodeURL("state-1", verifier))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "login.tidal.com", u.Host)
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.Equal(t, "client", q.Get("client_id"))
}

func TestTidalAuth_Exchange(t *testing.T) {
	verifier := oauth2.GenerateVerifier()
	auth, store := newTestTidalAuth(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "code-1", r.PostForm.Get("code"))
		require.Equal(t, verifier, r.PostForm.Get("code_verifier"))
		require.Equal(t, "client", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("pkce-token"))
	}))

	token, err := auth.Exchange(context.Background(), "code-1", verifier)
	require.NoError(t, err)
	assert.Equal(t, "pkce-token", token.AccessToken)

	stored, err := store.LoadTidalToken()
	require.NoError(t, err)
	assert.Equal(t, "pkce-token", stored.AccessToken)
}

func TestTidalAuth_Exchange_Rejected(t *testing.T) {
	auth, store := newTestTidalAuth(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant"}`)
	}))

	_, err := auth.Exchange(context.Background(), "bad", oauth2.GenerateVerifier())
	assert.ErrorIs(t, err, shared.ErrAuthentication)

	_, err = store.LoadTidalToken()
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}

func TestTidalAuth_Device(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/device_authorization", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"device_code": "dev", "user_code": "ABCD", "verification_uri": "link.tidal.com", "expires_in": 300, "interval": 1}`)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "dev", r.PostForm.Get("device_code"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("device-token"))
	})
	auth, store := newTestTidalAuth(t, mux)

	da, err := auth.StartDevice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABCD", da.UserCode)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, err := auth.AwaitDevice(ctx, da)
	require.NoError(t, err)
	assert.Equal(t, "device-token", token.AccessToken)

	stored, err := store.LoadTidalToken()
	require.NoError(t, err)
	assert.Equal(t, "device-token", stored.AccessToken)
}

func TestTidalAuth_Client(t *testing.T) {
	t.Run("requires a stored token", func(t *testing.T) {
		auth, _ := newTestTidalAuth(t, http.NotFoundHandler())
		_, err := auth.Client(context.Background())
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("refreshes and stores expired tokens", func(t *testing.T) {
		var refreshes atomic.Int32
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			refreshes.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, tokenJSON("fresh"))
		})
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"userId": 7}`)
		})

		svr := httptest.NewServer(mux)
		t.Cleanup(svr.Close)

		store := shared.NewTokenStore(t.TempDir())
		expired := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Hour)}
		require.NoError(t, store.SaveTidalToken(expired, AuthMethodDevice))

		auth := NewTidalAuth(shared.TidalConfig{ClientID: "client"}, store, nil)
		auth.config.Endpoint.TokenURL = svr.URL + "/token"

		c, err := auth.Client(context.Background())
		require.NoError(t, err)

		tidal := NewTidalService(c, "US", 1000, nil)
		tidal.baseURL = svr.URL

		session, err := tidal.Session(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, session.UserID)
		assert.Equal(t, int32(1), refreshes.Load())

		stored, err := store.LoadTidalToken()
		require.NoError(t, err)
		assert.Equal(t, "fresh", stored.AccessToken)
	})
}
