// ABOUTME: Route gating rules for screens that require a session
// ABOUTME: Maps session state and a path to allow, wait, or redirect decisions

package auth

import (
	"net/url"
	"strings"

	"github.com/2389/kbchat/internal/client"
)

// Well-known routes
const (
	PathHome          = "/"
	PathLogin         = "/login"
	PathRegister      = "/register"
	PathAdminRegister = "/admin/register"
	PathAdminPrefix   = "/admin"
)

// publicPaths never require a session.
var publicPaths = map[string]bool{
	PathLogin:         true,
	PathRegister:      true,
	PathAdminRegister: true,
}

// IsPublic reports whether path can be visited without a session.
func IsPublic(path string) bool {
	return publicPaths[stripQuery(path)]
}

// IsAdminPath reports whether path belongs to the admin console.
func IsAdminPath(path string) bool {
	p := stripQuery(path)
	return p == PathAdminPrefix || strings.HasPrefix(p, PathAdminPrefix+"/")
}

// LoginRedirect returns the login route that sends the user back to path
// after signing in.
func LoginRedirect(path string) string {
	if path == "" {
		path = PathHome
	}
	return PathLogin + "?redirect=" + url.QueryEscape(path)
}

// RedirectTarget extracts the post-login destination from a login route,
// defaulting to home.
func RedirectTarget(loginPath string) string {
	_, query, ok := strings.Cut(loginPath, "?")
	if !ok {
		return PathHome
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return PathHome
	}
	target := values.Get("redirect")
	if target == "" || !strings.HasPrefix(target, "/") {
		return PathHome
	}
	return target
}

// Action is what a screen should do after consulting the guard.
type Action int

const (
	// Allow renders the screen.
	Allow Action = iota
	// Wait shows a loading indicator until the session resolves.
	Wait
	// Redirect navigates to Decision.Target instead.
	Redirect
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for a path.
type Decision struct {
	Action Action
	Target string
}

// Decide applies the route rules to a session state.
func Decide(state State, path string) Decision {
	if state.Loading {
		return Decision{Action: Wait}
	}

	if IsPublic(path) {
		if state.IsAuthenticated && stripQuery(path) == PathLogin {
			return Decision{Action: Redirect, Target: PathHome}
		}
		return Decision{Action: Allow}
	}

	if !state.IsAuthenticated {
		return Decision{Action: Redirect, Target: LoginRedirect(path)}
	}

	if IsAdminPath(path) && (state.User == nil || state.User.Role != client.RoleAdmin) {
		return Decision{Action: Redirect, Target: PathHome}
	}

	return Decision{Action: Allow}
}

func stripQuery(path string) string {
	p, _, _ := strings.Cut(path, "?")
	return p
}
