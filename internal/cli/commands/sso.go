package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orgpulse/orgpulse/internal/cli/client"
	"github.com/orgpulse/orgpulse/internal/cli/session"
)

// NewSSOCmd creates the sso command
func NewSSOCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sso",
		Short: "List the single sign-on methods offered by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSSO(cmd.Context())
		},
	}
}

func runSSO(ctx context.Context, opts ...Option) error {
	e, err := newEnv(opts...)
	if err != nil {
		return err
	}

	methods, err := e.ssoMethods(ctx)
	if err != nil {
		return err
	}

	if len(methods) == 0 {
		fmt.Fprintln(e.out, "No SSO methods configured.")
		return nil
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tURL")
	fmt.Fprintln(w, "────\t───")
	for _, m := range methods {
		fmt.Fprintf(w, "%s\t%s\n", m.Name, m.URL)
	}
	return w.Flush()
}

// ssoMethods runs one SSO lookup and waits for it
func (e *env) ssoMethods(ctx context.Context) ([]client.SSOMethod, error) {
	lookup := session.NewSSOLookup(ctx, e.api, session.WithSSOLogger(e.logger))
	defer lookup.Close()

	if err := lookup.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch SSO methods: %w", err)
	}
	return lookup.Methods(), nil
}
