package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/cursos-dev/cursos/internal/cli/auth"
	"github.com/cursos-dev/cursos/internal/models"
)

// DefaultScopes are requested when the server entry lists none
var DefaultScopes = []string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess}

// Settings describes one identity provider tenant
type Settings struct {
	// Alias keys the stored token
	Alias        string
	Issuer       string
	ClientID     string
	Audience     string
	Scopes       []string
	CallbackPort int
}

// Options configures a Provider
type Options struct {
	Store      auth.TokenStore
	HTTPClient *http.Client
	Logger     zerolog.Logger

	// OpenURL opens the authorization page. When it fails the URL is printed instead.
	OpenURL func(url string) error
	// Out receives the messages meant for the user, os.Stderr when nil
	Out io.Writer
	// Device selects the device authorization flow for SignIn
	Device bool
	// LoginTimeout bounds an interactive sign-in, 5 minutes when zero
	LoginTimeout time.Duration
}

// Provider implements auth.IdentityProvider on top of an OpenID Connect issuer.
// Tokens are kept in a TokenStore so sessions survive between invocations.
type Provider struct {
	settings     Settings
	store        auth.TokenStore
	httpClient   *http.Client
	logger       zerolog.Logger
	openURL      func(url string) error
	out          io.Writer
	device       bool
	loginTimeout time.Duration

	mu       sync.Mutex
	oidc     *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
	config   *oauth2.Config
}

// NewProvider creates a provider. Discovery is deferred until the first
// operation that needs the issuer's endpoints.
func NewProvider(settings Settings, opts Options) (*Provider, error) {
	if settings.Alias == "" {
		return nil, errors.New("server alias is required")
	}
	if settings.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if settings.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if opts.Store == nil {
		return nil, errors.New("token store is required")
	}

	if len(settings.Scopes) == 0 {
		settings.Scopes = DefaultScopes
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	loginTimeout := opts.LoginTimeout
	if loginTimeout <= 0 {
		loginTimeout = 5 * time.Minute
	}

	return &Provider{
		settings:     settings,
		store:        opts.Store,
		httpClient:   httpClient,
		logger:       opts.Logger.With().Str("component", "identity").Str("server", settings.Alias).Logger(),
		openURL:      opts.OpenURL,
		out:          out,
		device:       opts.Device,
		loginTimeout: loginTimeout,
	}, nil
}

// discover fetches the issuer's discovery document once
func (p *Provider) discover(ctx context.Context) (*oauth2.Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config != nil {
		return p.config, nil
	}

	op, err := gooidc.NewProvider(p.clientContext(ctx), p.settings.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed for %s: %w", p.settings.Issuer, err)
	}

	p.oidc = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: p.settings.ClientID})
	p.config = &oauth2.Config{
		ClientID: p.settings.ClientID,
		Endpoint: op.Endpoint(),
		Scopes:   p.settings.Scopes,
	}
	return p.config, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return gooidc.ClientContext(ctx, p.httpClient)
}

// audienceOptions adds the API audience when one is configured
func (p *Provider) audienceOptions(opts ...oauth2.AuthCodeOption) []oauth2.AuthCodeOption {
	if p.settings.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.settings.Audience))
	}
	return opts
}

// IsAuthenticated reports whether a token is stored for the server
func (p *Provider) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := p.store.LoadToken(p.settings.Alias)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AccessToken returns a valid access token, refreshing it through the
// issuer when the stored one has expired. A refreshed token is saved.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	stored, err := p.store.LoadToken(p.settings.Alias)
	if err != nil {
		return "", err
	}

	if stored.Valid() {
		return stored.AccessToken, nil
	}

	if stored.RefreshToken == "" {
		return "", errors.New("session expired. Please run 'cursos login' again")
	}

	config, err := p.discover(ctx)
	if err != nil {
		return "", err
	}

	fresh, err := config.TokenSource(p.clientContext(ctx), stored).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	if fresh.AccessToken != stored.AccessToken {
		if err := p.store.SaveToken(p.settings.Alias, fresh); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to persist refreshed token")
		} else {
			p.logger.Debug().Time("expiry", fresh.Expiry).Msg("Access token refreshed")
		}
	}

	return fresh.AccessToken, nil
}

// Profile fetches the user's claims from the issuer's userinfo endpoint
func (p *Provider) Profile(ctx context.Context) (*models.Profile, error) {
	token, err := p.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := p.discover(ctx); err != nil {
		return nil, err
	}

	info, err := p.oidc.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	var profile models.Profile
	if err := info.Claims(&profile); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if profile.Subject == "" {
		profile.Subject = info.Subject
	}
	if profile.Email == "" {
		profile.Email = info.Email
	}
	return &profile, nil
}

// SignIn runs the interactive login and stores the resulting token
func (p *Provider) SignIn(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.loginTimeout)
	defer cancel()

	var (
		token *oauth2.Token
		err   error
	)
	if p.device {
		token, err = p.signInDevice(ctx)
	} else {
		token, err = p.signInBrowser(ctx)
	}
	if err != nil {
		return err
	}

	if err := p.store.SaveToken(p.settings.Alias, token); err != nil {
		return fmt.Errorf("failed to save authentication token: %w", err)
	}

	p.logger.Info().Msg("Signed in")
	return nil
}

// SignOut forgets the stored token
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.store.DeleteToken(p.settings.Alias); err != nil {
		return err
	}
	p.logger.Info().Msg("Signed out")
	return nil
}

// verifyIDToken checks the ID token when the issuer returned one
func (p *Provider) verifyIDToken(ctx context.Context, token *oauth2.Token, nonce string) error {
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil
	}

	idToken, err := p.verifier.Verify(p.clientContext(ctx), raw)
	if err != nil {
		return fmt.Errorf("verify id_token: %w", err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return errors.New("invalid nonce in id_token")
	}
	return nil
}

func (p *Provider) showURL(url string) {
	if p.openURL != nil {
		if err := p.openURL(url); err == nil {
			fmt.Fprintf(p.out, "Opening your browser to sign in...\nIf it does not open, visit:\n  %s\n", url)
			return
		}
	}
	fmt.Fprintf(p.out, "Open this URL in your browser to sign in:\n  %s\n", url)
}

// randomString returns a URL-safe random string of n bytes of entropy
func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}
