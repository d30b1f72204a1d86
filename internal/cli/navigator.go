// ABOUTME: Terminal rendering of route changes requested by the session
// ABOUTME: Login redirects become a hint naming the command to run and where to return

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/auth"
)

// Navigator prints route changes and remembers the last one.
type Navigator struct {
	mu    sync.Mutex
	out   io.Writer
	last  string
	count int
}

// NewNavigator creates a navigator writing hints to out.
func NewNavigator(out io.Writer) *Navigator {
	return &Navigator{out: out}
}

// Navigate records path and prints a hint for it.
func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = path
	n.count++

	yellow := color.New(color.FgYellow)
	switch {
	case strings.HasPrefix(path, auth.PathLogin+"?"):
		yellow.Fprintf(n.out, "Sign in required. Run `kbchat login`, then return to %s\n", auth.RedirectTarget(path))
	case path == auth.PathLogin:
		yellow.Fprintln(n.out, "Signed out. Run `kbchat login` to sign in again.")
	case path == auth.PathHome:
		yellow.Fprintln(n.out, "That page is not available to this account.")
	default:
		fmt.Fprintf(n.out, "→ %s\n", path)
	}
}

// Last returns the most recent route, or "".
func (n *Navigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Count returns how many navigations have happened.
func (n *Navigator) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}
