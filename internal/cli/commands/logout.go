package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End your session on the selected server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context())
		},
	}
}

func runLogout(ctx context.Context, opts ...Option) error {
	e, err := newEnv(opts...)
	if err != nil {
		return err
	}

	store := e.newStore(ctx)
	defer store.Close()

	if err := store.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "✓ Logged out of %s (%s)\n", e.server.Alias, e.server.URL)
	return nil
}
