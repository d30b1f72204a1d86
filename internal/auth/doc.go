// Package auth holds the kbchat session.
//
// # Session
//
// Manager tracks {User, IsAuthenticated, Loading} for the whole process and
// is the only code that writes the stored access token:
//
//	m := auth.NewManager(api, tokens, nav, cfg.Auth, logger)
//	api.SetUnauthorizedHandler(m.HandleUnauthorized)
//	m.Init(ctx)    // resolve the stored token via /api/users/me
//	go m.Run(ctx)  // revalidate every auth.revalidate_interval
//
// Login stores the token with an expiry taken from the response's expires
// field, the token's exp claim, or auth.cookie_max_age, in that order.
//
// # Routes
//
// Screens call Enter with their route before rendering. The rules are:
//
//   - while Loading, wait
//   - /login, /register, /admin/register are public; an authenticated user
//     on /login goes home
//   - without a session, redirect to /login?redirect=<route>
//   - /admin routes need the admin role, otherwise redirect home
//
// A 401 from any authenticated API call runs HandleUnauthorized, which drops
// the session and redirects to login with the current route preserved.
package auth
