package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/auth"
	tokenstore "github.com/cursos-dev/cursos/internal/cli/auth"
	"github.com/cursos-dev/cursos/internal/cli/client"
	"github.com/cursos-dev/cursos/internal/cli/config"
	"github.com/cursos-dev/cursos/internal/cli/identity"
	"github.com/cursos-dev/cursos/internal/cli/serverselect"
	runtimeconfig "github.com/cursos-dev/cursos/internal/config"
	"github.com/cursos-dev/cursos/internal/courses"
	"github.com/cursos-dev/cursos/internal/logger"
)

// Option overrides one of the app's collaborators, mostly for tests
type Option func(*options)

type options struct {
	server   *config.Server
	api      courses.API
	provider auth.IdentityProvider
	store    tokenstore.TokenStore
	prompter Prompter
	out      io.Writer
	device   bool
}

// WithServer skips config loading and server resolution
func WithServer(server *config.Server) Option {
	return func(o *options) { o.server = server }
}

// WithAPI replaces the course API client
func WithAPI(api courses.API) Option {
	return func(o *options) { o.api = api }
}

// WithIdentityProvider replaces the OIDC provider
func WithIdentityProvider(provider auth.IdentityProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithTokenStore replaces the OS keyring
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(o *options) { o.store = store }
}

// WithPrompter replaces the interactive prompts
func WithPrompter(p Prompter) Option {
	return func(o *options) { o.prompter = p }
}

// WithOutput redirects command output
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

func withDeviceFlow(device bool) Option {
	return func(o *options) { o.device = device }
}

// app is everything a command needs, wired for one server
type app struct {
	server   *config.Server
	session  *auth.Manager
	courses  *courses.Controller
	prompter Prompter
	out      io.Writer
	logger   zerolog.Logger
}

// newApp loads configuration and wires
// identity provider -> session -> course controller for the selected server.
func newApp(serverAlias string, opts ...Option) (*app, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	rt, err := runtimeconfig.Load()
	if err != nil {
		return nil, err
	}
	log := logger.Init(rt.Logging.Level, rt.Logging.Format)

	server := o.server
	if server == nil {
		server, err = getSelectedServer(rt, serverAlias)
		if err != nil {
			return nil, err
		}
	}

	if o.out == nil {
		o.out = os.Stdout
	}
	if o.prompter == nil {
		o.prompter = newPromptuiPrompter()
	}
	if o.store == nil {
		o.store = tokenstore.Default
	}

	if o.provider == nil {
		provider, err := identity.NewProvider(identity.Settings{
			Alias:        server.Alias,
			Issuer:       server.Auth.IssuerURL(),
			ClientID:     server.Auth.ClientID,
			Audience:     server.Auth.Audience,
			Scopes:       server.Auth.Scopes,
			CallbackPort: server.Auth.CallbackPort,
		}, identity.Options{
			Store:      o.store,
			HTTPClient: &http.Client{Timeout: rt.HTTP.Timeout},
			Logger:     log,
			OpenURL:    openBrowser,
			Out:        o.out,
			Device:     o.device,
		})
		if err != nil {
			return nil, err
		}
		o.provider = provider
	}

	if o.api == nil {
		o.api = client.New(server.URL, client.Options{
			Timeout:            rt.HTTP.Timeout,
			InsecureSkipVerify: server.InsecureSkipVerify,
			Logger:             log,
		})
	}

	session := auth.NewManager(o.provider, server.Auth.RoleClaim, log)
	controller := courses.NewController(o.api, session, log)
	session.Subscribe(controller.OnTokenChanged)

	return &app{
		server:   server,
		session:  session,
		courses:  controller,
		prompter: o.prompter,
		out:      o.out,
		logger:   log,
	}, nil
}

// getSelectedServer loads the config and returns the selected server.
// This is common logic used by most commands.
func getSelectedServer(rt *runtimeconfig.Config, serverAlias string) (*config.Server, error) {
	cfg, err := config.LoadFrom(rt.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'cursos init' to create a configuration file", err)
	}

	if serverAlias == "" {
		serverAlias = rt.Server
	}

	server, err := serverselect.ResolveServer(cfg, serverAlias)
	if err != nil {
		return nil, err
	}

	if err := server.Validate(); err != nil {
		return nil, err
	}

	return server, nil
}

// connect restores the stored session. Establishing it loads the course list.
func (a *app) connect(ctx context.Context) error {
	if err := a.session.Sync(ctx); err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if _, ok := a.session.Token(); !ok {
		return courses.ErrNotAuthenticated
	}
	return nil
}

// stateError turns the controller's error message into the command's error
func (a *app) stateError() error {
	if msg := a.courses.State().Error; msg != "" {
		return errors.New(msg)
	}
	return nil
}

func addServerFlag(cmd *cobra.Command, serverAlias *string) {
	cmd.Flags().StringVar(serverAlias, "server", "", "Server alias (or set CURSOS_SERVER)")
}
