package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"
)

// NewDashCmd creates the dash command
func NewDashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Open the orgpulse web UI in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash()
		},
	}

	return cmd
}

func runDash(opts ...Option) error {
	e, err := newEnv(opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Opening dashboard for %s (%s)...\n", e.server.Alias, e.server.URL)

	return e.nav.Assign(e.server.Origin())
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
