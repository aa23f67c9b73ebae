package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/orgpulse/orgpulse/internal/cli/session"
)

// terminalNavigator maps navigation onto the terminal: named routes print a
// hint, full-page navigations open the browser.
type terminalNavigator struct {
	out  io.Writer
	open func(url string) error

	mu      sync.Mutex
	current string
}

func newTerminalNavigator(out io.Writer) *terminalNavigator {
	return &terminalNavigator{out: out, open: openBrowser}
}

func (n *terminalNavigator) Push(route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if route == n.current {
		return session.ErrNavigationCancelled
	}
	n.current = route

	if route == session.RouteLogin {
		fmt.Fprintln(n.out, "Run 'orgpulse login' to sign in.")
	}
	return nil
}

func (n *terminalNavigator) Assign(url string) error {
	fmt.Fprintf(n.out, "Opening %s\n", url)
	if err := n.open(url); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, url)
	}
	return nil
}
