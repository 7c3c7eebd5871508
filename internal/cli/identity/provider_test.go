package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cursos-dev/cursos/internal/cli/auth"
)

// fakeIssuer is a minimal OpenID Connect issuer
type fakeIssuer struct {
	t      *testing.T
	server *httptest.Server

	mu           sync.Mutex
	tokenGrants  []url.Values
	deviceParams url.Values
	accessToken  string
	noDevice     bool
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	f := &fakeIssuer{t: t, accessToken: "access-1"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]string{
			"issuer":                 f.server.URL,
			"authorization_endpoint": f.server.URL + "/authorize",
			"token_endpoint":         f.server.URL + "/oauth/token",
			"userinfo_endpoint":      f.server.URL + "/userinfo",
			"jwks_uri":               f.server.URL + "/.well-known/jwks.json",
		}
		if !f.noDevice {
			doc["device_authorization_endpoint"] = f.server.URL + "/oauth/device/code"
		}
		writeJSON(w, doc)
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.tokenGrants = append(f.tokenGrants, r.PostForm)
		access := f.accessToken
		f.mu.Unlock()

		writeJSON(w, map[string]any{
			"access_token":  access,
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/oauth/device/code", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.deviceParams = r.PostForm
		f.mu.Unlock()

		writeJSON(w, map[string]any{
			"device_code":      "device-123",
			"user_code":        "ABCD-EFGH",
			"verification_uri": f.server.URL + "/activate",
			"expires_in":       600,
			"interval":         1,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.currentAccessToken() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"sub":     "auth0|42",
			"name":    "Ana Souza",
			"email":   "ana@example.com",
			"picture": "https://example.com/ana.png",
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIssuer) currentAccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accessToken
}

func (f *fakeIssuer) grants() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.tokenGrants...)
}

func (f *fakeIssuer) deviceRequest() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deviceParams
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestProvider(t *testing.T, issuer *fakeIssuer, store auth.TokenStore, mutate func(*Options)) *Provider {
	t.Helper()
	opts := Options{
		Store:        store,
		Logger:       zerolog.Nop(),
		Out:          &bytes.Buffer{},
		LoginTimeout: 10 * time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}

	provider, err := NewProvider(Settings{
		Alias:    "production",
		Issuer:   issuer.server.URL,
		ClientID: "client-123",
		Audience: "https://api.example.com",
	}, opts)
	require.NoError(t, err)
	return provider
}

// browserFollowing plays the user's browser: it follows the authorization
// URL straight back to the loopback callback with a code.
func browserFollowing(t *testing.T, seen *url.Values, callbackState func(string) string) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		*seen = u.Query()

		callback := seen.Get("redirect_uri") + "?" + url.Values{
			"code":  {"code-xyz"},
			"state": {callbackState(seen.Get("state"))},
		}.Encode()

		go func() {
			resp, err := http.Get(callback)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	store := auth.NewMemoryStore()
	tests := []struct {
		name     string
		settings Settings
		store    auth.TokenStore
		errMsg   string
	}{
		{"missing alias", Settings{Issuer: "https://x", ClientID: "c"}, store, "server alias is required"},
		{"missing issuer", Settings{Alias: "a", ClientID: "c"}, store, "issuer is required"},
		{"missing client ID", Settings{Alias: "a", Issuer: "https://x"}, store, "client ID is required"},
		{"missing store", Settings{Alias: "a", Issuer: "https://x", ClientID: "c"}, nil, "token store is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.settings, Options{Store: tt.store})
			require.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestSignIn_AuthorizationCodeWithPKCE(t *testing.T) {
	issuer := newFakeIssuer(t)
	store := auth.NewMemoryStore()

	var authQuery url.Values
	provider := newTestProvider(t, issuer, store, func(o *Options) {
		o.OpenURL = browserFollowing(t, &authQuery, func(state string) string { return state })
	})

	ok, err := provider.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, provider.SignIn(context.Background()))

	assert.Equal(t, "client-123", authQuery.Get("client_id"))
	assert.Equal(t, "S256", authQuery.Get("code_challenge_method"))
	assert.NotEmpty(t, authQuery.Get("code_challenge"))
	assert.NotEmpty(t, authQuery.Get("nonce"))
	assert.Equal(t, "https://api.example.com", authQuery.Get("audience"))
	assert.Contains(t, authQuery.Get("scope"), "offline_access")
	assert.Contains(t, authQuery.Get("redirect_uri"), "http://127.0.0.1:")

	grants := issuer.grants()
	require.Len(t, grants, 1)
	assert.Equal(t, "authorization_code", grants[0].Get("grant_type"))
	assert.Equal(t, "code-xyz", grants[0].Get("code"))
	assert.NotEmpty(t, grants[0].Get("code_verifier"))

	ok, err = provider.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	token, err := provider.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
}

func TestSignIn_StateMismatch(t *testing.T) {
	issuer := newFakeIssuer(t)
	store := auth.NewMemoryStore()

	var authQuery url.Values
	provider := newTestProvider(t, issuer, store, func(o *Options) {
		o.OpenURL = browserFollowing(t, &authQuery, func(string) string { return "forged" })
	})

	err := provider.SignIn(context.Background())
	require.EqualError(t, err, "authorization failed: state mismatch")
	assert.Empty(t, issuer.grants())

	ok, err := provider.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignIn_TimesOutWithoutCallback(t *testing.T) {
	issuer := newFakeIssuer(t)
	out := &bytes.Buffer{}

	provider := newTestProvider(t, issuer, auth.NewMemoryStore(), func(o *Options) {
		o.Out = out
		o.LoginTimeout = 200 * time.Millisecond
	})

	err := provider.SignIn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login timed out")
	// Without an opener the URL is printed for the user
	assert.Contains(t, out.String(), issuer.server.URL+"/authorize?")
}

func TestSignIn_DeviceFlow(t *testing.T) {
	issuer := newFakeIssuer(t)
	store := auth.NewMemoryStore()
	out := &bytes.Buffer{}

	provider := newTestProvider(t, issuer, store, func(o *Options) {
		o.Device = true
		o.Out = out
	})

	require.NoError(t, provider.SignIn(context.Background()))

	assert.Contains(t, out.String(), "ABCD-EFGH")
	assert.Contains(t, out.String(), issuer.server.URL+"/activate")
	assert.Equal(t, "https://api.example.com", issuer.deviceRequest().Get("audience"))

	grants := issuer.grants()
	require.Len(t, grants, 1)
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", grants[0].Get("grant_type"))
	assert.Equal(t, "device-123", grants[0].Get("device_code"))

	stored, err := store.LoadToken("production")
	require.NoError(t, err)
	assert.Equal(t, "access-1", stored.AccessToken)
}

func TestSignIn_DeviceFlowUnsupported(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.noDevice = true

	provider := newTestProvider(t, issuer, auth.NewMemoryStore(), func(o *Options) { o.Device = true })

	err := provider.SignIn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support device authorization")
}

func TestAccessToken_ValidTokenSkipsIssuer(t *testing.T) {
	issuer := newFakeIssuer(t)
	store := auth.NewMemoryStore()
	require.NoError(t, store.SaveToken("production", &oauth2.Token{
		AccessToken: "still-good",
		Expiry:      time.Now().Add(time.Hour),
	}))

	provider := newTestProvider(t, issuer, store, nil)

	token, err := provider.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still-good", token)
	assert.Empty(t, issuer.grants())
}

func TestAccessToken_RefreshIsPersisted(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.accessToken = "access-2"
	store := auth.NewMemoryStore()
	require.NoError(t, store.SaveToken("production", &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	provider := newTestProvider(t, issuer, store, nil)

	token, err := provider.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-2", token)

	grants := issuer.grants()
	require.Len(t, grants, 1)
	assert.Equal(t, "refresh_token", grants[0].Get("grant_type"))
	assert.Equal(t, "refresh-0", grants[0].Get("refresh_token"))

	stored, err := store.LoadToken("production")
	require.NoError(t, err)
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestAccessToken_ExpiredWithoutRefreshToken(t *testing.T) {
	issuer := newFakeIssuer(t)
	store := auth.NewMemoryStore()
	require.NoError(t, store.SaveToken("production", &oauth2.Token{
		AccessToken: "expired",
		Expiry:      time.Now().Add(-time.Minute),
	}))

	provider := newTestProvider(t, issuer, store, nil)

	_, err := provider.AccessToken(context.Background())
	require.EqualError(t, err, "session expired. Please run 'cursos login' again")
}

func TestAccessToken_NotAuthenticated(t *testing.T) {
	provider := newTestProvider(t, newFakeIssuer(t), auth.NewMemoryStore(), nil)

	_, err := provider.AccessToken(context.Background())
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestProfile(t *testing.T) {
	issuer := newFakeIssuer(t)
	store := auth.NewMemoryStore()
	require.NoError(t, store.SaveToken("production", &oauth2.Token{
		AccessToken: "access-1",
		Expiry:      time.Now().Add(time.Hour),
	}))

	provider := newTestProvider(t, issuer, store, nil)

	profile, err := provider.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auth0|42", profile.Subject)
	assert.Equal(t, "Ana Souza", profile.Name)
	assert.Equal(t, "ana@example.com", profile.Email)
	assert.Equal(t, "https://example.com/ana.png", profile.Picture)
}

func TestSignOut(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.SaveToken("production", &oauth2.Token{AccessToken: "x"}))

	provider := newTestProvider(t, newFakeIssuer(t), store, nil)
	require.NoError(t, provider.SignOut(context.Background()))

	ok, err := provider.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiscovery_Failure(t *testing.T) {
	store := auth.NewMemoryStore()
	require.NoError(t, store.SaveToken("production", &oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "r",
		Expiry:       time.Now().Add(-time.Minute),
	}))

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	provider, err := NewProvider(Settings{Alias: "production", Issuer: dead.URL, ClientID: "c"}, Options{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = provider.AccessToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc discovery failed")
}
