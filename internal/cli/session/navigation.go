package session

import (
	"errors"
	"net/url"
	"strings"

	"github.com/orgpulse/orgpulse/internal/cli/client"
)

// RouteLogin is the name of the client-side login route
const RouteLogin = "Login"

// ErrNavigationCancelled is returned by a Navigator when a navigation was
// cancelled or duplicated. RedirectToLogin ignores it.
var ErrNavigationCancelled = errors.New("navigation cancelled")

// Route supplies the current navigation parameters
type Route interface {
	Param(name string) string
}

// RouteParams is a fixed set of route parameters
type RouteParams map[string]string

func (p RouteParams) Param(name string) string {
	return p[name]
}

// Navigator performs navigation side effects
type Navigator interface {
	// Push navigates to a named client-side route
	Push(route string) error
	// Assign performs a full-page navigation to rawURL
	Assign(rawURL string) error
}

type noopNavigator struct{}

func (noopNavigator) Push(string) error   { return nil }
func (noopNavigator) Assign(string) error { return nil }

// PortRewrite replaces one port token in the service origin with another.
// It is a deployment fixup for setups where the public and internal ports differ.
type PortRewrite struct {
	From string
	To   string
}

// DefaultPortRewrite is the rewrite used by the stock deployment
var DefaultPortRewrite = PortRewrite{From: "19876", To: "14318"}

// RedirectConfig describes where the OAuth login lives and how to reach us back
type RedirectConfig struct {
	// Origin is scheme://host of the current page, e.g. "https://orgpulse.example.com"
	Origin string
	// OAuthLoginURL is the prefix the service URL is appended to,
	// e.g. "https://cas.example.com/login?service="
	OAuthLoginURL string
	PortRewrite   PortRewrite
}

// LoginURL builds the full-page OAuth login URL that returns to redirect.
// The redirect target is encoded exactly once.
func LoginURL(cfg RedirectConfig, redirect string) string {
	origin := strings.TrimRight(cfg.Origin, "/")
	if cfg.PortRewrite.From != "" {
		origin = strings.Replace(origin, cfg.PortRewrite.From, cfg.PortRewrite.To, 1)
	}
	service := origin + client.PathOAuth + "?redirect=" + encodeComponent(redirect)
	return cfg.OAuthLoginURL + service
}

// RedirectToLogin sends the user to the login page. With an empty redirect it
// pushes the named login route and swallows cancelled navigations. Otherwise it
// performs a full-page navigation to the OAuth login URL.
func RedirectToLogin(nav Navigator, cfg RedirectConfig, redirect string) error {
	if redirect == "" {
		if err := nav.Push(RouteLogin); err != nil && !errors.Is(err, ErrNavigationCancelled) {
			return err
		}
		return nil
	}
	return nav.Assign(LoginURL(cfg, redirect))
}

// encodeComponent escapes s for use as a single query value, spaces as %20
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
