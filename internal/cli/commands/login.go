package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/orgpulse/orgpulse/internal/cli/client"
	"github.com/orgpulse/orgpulse/internal/cli/session"
)

// loginOptions holds the login flags
type loginOptions struct {
	username string
	password string
	sso      bool
	token    string
}

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var o loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an orgpulse server",
		Long: `Authenticate with an orgpulse server.

By default logs in with username and password. With --sso, pick a single
sign-on method and finish the login in the browser; the page you land on
shows a token to pass back with --token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), o)
		},
	}

	cmd.Flags().StringVar(&o.username, "username", "", "Username (or set ORGPULSE_USERNAME)")
	cmd.Flags().StringVar(&o.password, "password", "", "Password (or set ORGPULSE_PASSWORD, will prompt if not provided)")
	cmd.Flags().BoolVar(&o.sso, "sso", false, "Log in through a single sign-on method in the browser")
	cmd.Flags().StringVar(&o.token, "token", "", "Store a token obtained from a browser SSO login")

	return cmd
}

func runLogin(ctx context.Context, o loginOptions, opts ...Option) error {
	e, err := newEnv(opts...)
	if err != nil {
		return err
	}

	switch {
	case o.token != "":
		return e.loginWithToken(ctx, o.token)
	case o.sso:
		return e.loginWithSSO(ctx)
	default:
		return e.loginWithPassword(ctx, o.username, o.password)
	}
}

func (e *env) loginWithPassword(ctx context.Context, username, password string) error {
	// Environment variables are useful for CI/CD
	if username == "" {
		username = os.Getenv("ORGPULSE_USERNAME")
	}
	if password == "" {
		password = os.Getenv("ORGPULSE_PASSWORD")
	}

	if username == "" {
		return fmt.Errorf("username is required (use --username flag or ORGPULSE_USERNAME env var)")
	}

	if password == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or ORGPULSE_PASSWORD env var)")
		}
		fmt.Fprint(e.out, "Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(bytePassword)
		fmt.Fprintln(e.out)
	}

	fmt.Fprintf(e.out, "Logging in to %s (%s)...\n", e.server.Alias, e.server.URL)

	loginResp, err := e.api.Login(ctx, username, password)
	if err != nil {
		return err
	}

	fmt.Fprintln(e.out, "✓ Login successful!")
	fmt.Fprintf(e.out, "  User: %s", loginResp.User.Username)
	if loginResp.User.Email != "" {
		fmt.Fprintf(e.out, " (%s)", loginResp.User.Email)
	}
	fmt.Fprintln(e.out)

	return nil
}

func (e *env) loginWithSSO(ctx context.Context) error {
	methods, err := e.ssoMethods(ctx)
	if err != nil {
		return err
	}
	if len(methods) == 0 {
		return fmt.Errorf("no SSO methods configured on %s", e.server.URL)
	}

	method := methods[0]
	if len(methods) > 1 {
		labels := make([]string, len(methods))
		for i, m := range methods {
			labels[i] = m.Name
		}
		index, err := e.prompt("Select a sign-on method", labels)
		if err != nil {
			return fmt.Errorf("sign-on method selection cancelled: %w", err)
		}
		method = methods[index]
	}

	loginURL := method.URL
	if loginURL == "" {
		loginURL = e.server.OAuthLoginURL
	}
	if loginURL == "" {
		return fmt.Errorf("SSO method '%s' has no login URL", method.Name)
	}

	fmt.Fprintf(e.out, "Signing in with %s...\n", method.Name)
	if err := session.RedirectToLogin(e.nav, e.redirectConfig(loginURL), client.PathToken); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "Once signed in, run 'orgpulse login --token <token>' with the token shown in the browser.")
	return nil
}

func (e *env) loginWithToken(ctx context.Context, token string) error {
	if err := e.api.SaveToken(strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("failed to save authentication token: %w", err)
	}

	store, err := e.loadSession(ctx)
	if err != nil {
		e.forgetToken()
		return err
	}
	defer store.Close()

	user, ok := store.Current()
	if !ok {
		e.forgetToken()
		return fmt.Errorf("token was rejected by %s", e.server.URL)
	}

	fmt.Fprintln(e.out, "✓ Login successful!")
	fmt.Fprintf(e.out, "  User: %s\n", user.Username)
	return nil
}

// forgetToken drops a token that did not verify
func (e *env) forgetToken() {
	if err := e.api.DeleteToken(); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to delete rejected token")
	}
}
