package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/orgpulse/orgpulse/internal/cli/client"
	"github.com/orgpulse/orgpulse/internal/cli/config"
	"github.com/orgpulse/orgpulse/internal/cli/serverselect"
	"github.com/orgpulse/orgpulse/internal/cli/session"
	"github.com/orgpulse/orgpulse/internal/cli/userconfig"
	"github.com/orgpulse/orgpulse/internal/logger"
)

// GlobalFlags holds the persistent flags shared by every command
type GlobalFlags struct {
	Server  string
	Project string
	Verbose bool
}

// Globals is bound to the root command's persistent flags
var Globals GlobalFlags

// API is the part of the orgpulse API the commands use
type API interface {
	session.API
	session.SSOAPI
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
	SaveToken(token string) error
	DeleteToken() error
}

// Option overrides a collaborator of a command, mostly for tests
type Option func(*env)

// WithServer skips server resolution
func WithServer(server *config.Server) Option {
	return func(e *env) {
		e.server = server
	}
}

// WithAPI sets the API client
func WithAPI(api API) Option {
	return func(e *env) {
		e.api = api
	}
}

// WithOutput sets where command output is written
func WithOutput(w io.Writer) Option {
	return func(e *env) {
		e.out = w
	}
}

// WithRoute sets where the active project id is read from
func WithRoute(route session.Route) Option {
	return func(e *env) {
		e.route = route
	}
}

// WithNavigator sets the navigator used for login redirects
func WithNavigator(nav session.Navigator) Option {
	return func(e *env) {
		e.nav = nav
	}
}

// WithPrompt sets the interactive list selection
func WithPrompt(prompt func(label string, items []string) (int, error)) Option {
	return func(e *env) {
		e.prompt = prompt
	}
}

// env holds the collaborators a command runs with
type env struct {
	server *config.Server
	api    API
	out    io.Writer
	route  session.Route
	nav    session.Navigator
	prompt func(label string, items []string) (int, error)
	logger zerolog.Logger
}

func newEnv(opts ...Option) (*env, error) {
	e := &env{
		out:    os.Stdout,
		prompt: serverselect.Select,
		logger: logger.NewConsole(os.Stderr, Globals.Verbose),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.server == nil {
		server, err := getSelectedServer()
		if err != nil {
			return nil, err
		}
		e.server = server
	}
	if e.api == nil {
		e.api = client.New(e.server.URL)
	}
	if e.route == nil {
		e.route = projectRoute{server: e.server.URL, override: Globals.Project}
	}
	if e.nav == nil {
		e.nav = newTerminalNavigator(e.out)
	}

	return e, nil
}

// redirectConfig describes how OAuth logins reach this server
func (e *env) redirectConfig(oauthLoginURL string) session.RedirectConfig {
	cfg := session.RedirectConfig{
		Origin:        e.server.Origin(),
		OAuthLoginURL: oauthLoginURL,
	}
	if e.server.RewritePort {
		cfg.PortRewrite = session.DefaultPortRewrite
	}
	return cfg
}

// newStore builds a session store bound to this command's lifetime
func (e *env) newStore(ctx context.Context) *session.Store {
	return session.NewStore(ctx, e.api,
		session.WithRoute(e.route),
		session.WithNavigator(e.nav),
		session.WithLoginRedirect(e.redirectConfig(e.server.OAuthLoginURL)),
		session.WithLogger(e.logger),
	)
}

// loadSession builds a store and waits for the current session
func (e *env) loadSession(ctx context.Context) (*session.Store, error) {
	store := e.newStore(ctx)
	if _, err := store.GetOrLoad(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load session from %s: %w", e.server.URL, err)
	}
	return store, nil
}

// projectRoute reads the active project from the --project flag, falling back
// to the project selected with `orgpulse use`
type projectRoute struct {
	server   string
	override string
}

func (r projectRoute) Param(name string) string {
	if name != session.ParamProjectID {
		return ""
	}
	if r.override != "" {
		return r.override
	}
	id, err := userconfig.GetSelectedProject(r.server)
	if err != nil {
		return ""
	}
	return id
}

// getSelectedServer loads the config and returns the selected server.
func getSelectedServer() (*config.Server, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'orgpulse init' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, Globals.Server)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	return server, nil
}
