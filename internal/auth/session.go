package auth

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cursos-dev/cursos/internal/models"
)

// IdentityProvider is the external login service the session is bridged to
type IdentityProvider interface {
	IsAuthenticated(ctx context.Context) (bool, error)
	AccessToken(ctx context.Context) (string, error)
	Profile(ctx context.Context) (*models.Profile, error)
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// SessionData is a snapshot of the current authentication state.
// IsAdmin is only meaningful when BearerToken is set.
type SessionData struct {
	Authenticated bool   `json:"authenticated"`
	BearerToken   string `json:"-"`
	IsAdmin       bool   `json:"is_admin"`
}

// TokenListener is notified when the bearer token changes to a new value
type TokenListener func(ctx context.Context, token string)

// Manager keeps the session in sync with an IdentityProvider
type Manager struct {
	provider  IdentityProvider
	roleClaim string
	logger    zerolog.Logger

	mu        sync.RWMutex
	session   SessionData
	listeners []TokenListener
}

// NewManager creates a session manager. An empty roleClaim selects DefaultRoleClaim.
func NewManager(provider IdentityProvider, roleClaim string, logger zerolog.Logger) *Manager {
	if roleClaim == "" {
		roleClaim = DefaultRoleClaim
	}
	return &Manager{
		provider:  provider,
		roleClaim: roleClaim,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// Subscribe registers fn to run every time a new bearer token is stored
func (m *Manager) Subscribe(fn TokenListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Sync reads the provider's authentication state and reacts to transitions:
// entering the authenticated state fetches a token, leaving it destroys the session.
func (m *Manager) Sync(ctx context.Context) error {
	return m.sync(ctx, false)
}

// sync with refetch set requests a token even when the session was already
// authenticated.
func (m *Manager) sync(ctx context.Context, refetch bool) error {
	authenticated, err := m.provider.IsAuthenticated(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	was := m.session.Authenticated
	if !authenticated {
		m.session = SessionData{}
	} else {
		m.session.Authenticated = true
	}
	m.mu.Unlock()

	if authenticated && (!was || refetch) {
		m.OnAuthenticationEstablished(ctx)
	}
	if !authenticated && was {
		m.logger.Debug().Msg("Session destroyed")
	}
	return nil
}

// OnAuthenticationEstablished silently requests a fresh bearer token and
// derives the admin flag from it. Failures are logged and never returned:
// without a token the session stays non-admin and nothing is fetched.
func (m *Manager) OnAuthenticationEstablished(ctx context.Context) {
	token, err := m.provider.AccessToken(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to retrieve access token")
		return
	}

	m.mu.Lock()
	changed := token != "" && token != m.session.BearerToken
	m.session.Authenticated = true
	m.session.BearerToken = token
	m.mu.Unlock()

	isAdmin, err := IsAdmin(token, m.roleClaim)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to decode access token roles")
	} else {
		m.mu.Lock()
		m.session.IsAdmin = isAdmin
		m.mu.Unlock()
		m.logger.Debug().Bool("is_admin", isAdmin).Msg("Access token retrieved")
	}

	if changed {
		m.notify(ctx, token)
	}
}

func (m *Manager) notify(ctx context.Context, token string) {
	m.mu.RLock()
	listeners := append([]TokenListener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, token)
	}
}

// SignIn runs the provider's interactive login and establishes the session.
// A successful login always requests a new token, even if the provider
// already reported an authenticated session that could not produce one.
func (m *Manager) SignIn(ctx context.Context) error {
	if err := m.provider.SignIn(ctx); err != nil {
		return err
	}
	return m.sync(ctx, true)
}

// SignOut ends the provider session and destroys the local one
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.provider.SignOut(ctx); err != nil {
		return err
	}
	return m.Sync(ctx)
}

// Profile returns the signed-in user's profile
func (m *Manager) Profile(ctx context.Context) (*models.Profile, error) {
	return m.provider.Profile(ctx)
}

// Session returns a snapshot of the session
func (m *Manager) Session() SessionData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Token returns the bearer token and whether one is present
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.BearerToken, m.session.BearerToken != ""
}

// IsAdmin reports whether the current token carries the admin role
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.BearerToken != "" && m.session.IsAdmin
}
