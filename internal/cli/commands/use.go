package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/orgpulse/orgpulse/internal/cli/client"
	"github.com/orgpulse/orgpulse/internal/cli/userconfig"
)

// NewUseCmd creates the use command
func NewUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use [project-id]",
		Short: "Select the active project",
		Long: `Select the active project for the current server.

If no project id is provided, an interactive prompt will be shown.

Examples:
  $ orgpulse use      # Interactive selection
  $ orgpulse use 2    # Select project 2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var projectID string
			if len(args) > 0 {
				projectID = args[0]
			}
			return runUse(cmd.Context(), projectID)
		},
	}
}

func runUse(ctx context.Context, projectID string, opts ...Option) error {
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
		return fmt.Errorf("you are not a member of any project on %s", e.server.URL)
	}

	var selected client.Project
	if projectID == "" {
		labels := make([]string, len(projects))
		for i, p := range projects {
			labels[i] = projectLabel(p.ID, p.Name)
		}
		index, err := e.prompt("Select a project", labels)
		if err != nil {
			return fmt.Errorf("project selection cancelled: %w", err)
		}
		selected = projects[index]
	} else {
		selected, err = findProject(projects, projectID)
		if err != nil {
			return err
		}
	}

	if err := userconfig.SetSelectedProject(e.server.URL, strconv.FormatUint(selected.ID, 10)); err != nil {
		return fmt.Errorf("failed to save selected project: %w", err)
	}

	fmt.Fprintf(e.out, "Selected project: %s\n", projectLabel(selected.ID, selected.Name))
	return nil
}

func findProject(projects []client.Project, projectID string) (client.Project, error) {
	id, err := strconv.ParseUint(projectID, 10, 64)
	if err != nil || id == 0 {
		return client.Project{}, fmt.Errorf("invalid project id '%s'", projectID)
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return client.Project{}, fmt.Errorf("project %d not found among your projects", id)
}
