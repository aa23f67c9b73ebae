package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user and active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context())
		},
	}
}

func runWhoami(ctx context.Context, opts ...Option) error {
	e, err := newEnv(opts...)
	if err != nil {
		return err
	}

	store, err := e.loadSession(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	user, ok := store.Current()
	if !ok {
		fmt.Fprintf(e.out, "Not logged in to %s (%s).\n", e.server.Alias, e.server.URL)
		fmt.Fprintln(e.out, "Run 'orgpulse login' to sign in.")
		return nil
	}

	fmt.Fprintf(e.out, "User:     %s\n", user.Username)
	if user.Email != "" {
		fmt.Fprintf(e.out, "Email:    %s\n", user.Email)
	}
	fmt.Fprintf(e.out, "Server:   %s (%s)\n", e.server.Alias, e.server.URL)

	if project, ok := store.ActiveProject(); ok {
		fmt.Fprintf(e.out, "Project:  %s\n", projectLabel(project.ID, project.Name))
	} else {
		fmt.Fprintln(e.out, "Project:  (none)")
	}
	fmt.Fprintf(e.out, "Projects: %d\n", len(store.Projects()))

	return nil
}

func projectLabel(id uint64, name string) string {
	if name == "" {
		return fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%d (%s)", id, name)
}
