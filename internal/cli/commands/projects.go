package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewProjectsCmd creates the projects command
func NewProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "projects",
		Aliases: []string{"ls"},
		Short:   "List the projects you are a member of",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjects(cmd.Context())
		},
	}
}

func runProjects(ctx context.Context, opts ...Option) error {
	e, err := newEnv(opts...)
	if err != nil {
		return err
	}

	store, err := e.loadSession(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.IsAuth() {
		return fmt.Errorf("not authenticated. Please run 'orgpulse login' first")
	}

	projects := store.Projects()
	if len(projects) == 0 {
		fmt.Fprintln(e.out, "No projects found.")
		return nil
	}

	active, hasActive := store.ActiveProject()

	fmt.Fprintf(e.out, "Projects on %s (%s):\n\n", e.server.Alias, e.server.URL)

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME")
	fmt.Fprintln(w, "\t──\t────")
	for _, p := range projects {
		marker := ""
		if hasActive && p.ID == active.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", marker, p.ID, p.Name)
	}

	return w.Flush()
}
