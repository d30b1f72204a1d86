// ABOUTME: Session manager holding the current user, authentication flag, and loading flag
// ABOUTME: Owns login, logout, register, switch-user, periodic revalidation, and 401 handling

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/kbchat/internal/broadcast"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
	"github.com/2389/kbchat/internal/store"
)

// Registration errors detected before any network call
var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissingField     = errors.New("missing required field")
)

// API is the subset of the backend client the session manager uses.
type API interface {
	Login(ctx context.Context, username, password string) (*client.LoginResponse, error)
	Me(ctx context.Context) (*client.User, error)
	Register(ctx context.Context, req client.RegisterRequest) (*client.RegisterResponse, error)
}

// Navigator moves the user to another route. The terminal front ends render
// this as a hint or a prompt; tests record it.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f(path).
func (f NavigatorFunc) Navigate(path string) { f(path) }

// State is a snapshot of the session.
type State struct {
	User            *client.User
	IsAuthenticated bool
	Loading         bool
}

// RegisterResult reports the outcome of a registration attempt.
type RegisterResult struct {
	Success  bool
	Username string
	Detail   string
}

// Manager is the process-wide session. It is the only writer of the stored
// access token.
type Manager struct {
	api    API
	tokens *store.TokenStore
	nav    Navigator
	logger *slog.Logger

	revalidateInterval time.Duration
	cookieMaxAge       time.Duration
	now                func() time.Time

	mu    sync.RWMutex
	state State
	path  string

	observers *broadcast.Broadcaster[State]
}

// NewManager creates a session manager. The state starts as Loading until
// Init resolves it.
func NewManager(api API, tokens *store.TokenStore, nav Navigator, cfg config.AuthConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	revalidate := cfg.RevalidateInterval
	if revalidate <= 0 {
		revalidate = config.DefaultRevalidateInterval
	}
	maxAge := cfg.CookieMaxAge
	if maxAge <= 0 {
		maxAge = config.DefaultCookieMaxAge
	}

	return &Manager{
		api:                api,
		tokens:             tokens,
		nav:                nav,
		logger:             logger.With("component", "auth"),
		revalidateInterval: revalidate,
		cookieMaxAge:       maxAge,
		now:                time.Now,
		state:              State{Loading: true},
		path:               PathHome,
		observers:          broadcast.New[State](logger),
	}
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the current user, or nil.
func (m *Manager) User() *client.User {
	return m.State().User
}

// Subscribe returns a channel of state snapshots published after every change.
func (m *Manager) Subscribe(ctx context.Context) <-chan State {
	ch, _ := m.observers.Subscribe(ctx)
	return ch
}

// Token reads the access token from the store. It is read on every call so
// that a logout in one screen is seen by every other.
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.tokens.Token(ctx)
}

// Init resolves the session from the stored token.
func (m *Manager) Init(ctx context.Context) {
	m.setState(func(s *State) { s.Loading = true })

	user, err := m.resolve(ctx)
	if err != nil {
		m.logger.Debug("no active session", "error", err)
	}
	m.setState(func(s *State) {
		s.User = user
		s.IsAuthenticated = user != nil
		s.Loading = false
	})
}

// Run revalidates the session on a fixed interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.revalidateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.revalidate(ctx)
		}
	}
}

// revalidate re-resolves the current user. Losing the session redirects to
// login unless the 401 hook has already done so.
func (m *Manager) revalidate(ctx context.Context) {
	user, err := m.resolve(ctx)
	if err == nil {
		m.setState(func(s *State) {
			s.User = user
			s.IsAuthenticated = true
		})
		return
	}

	m.logger.Info("session revalidation failed", "error", err)
	if errors.Is(err, client.ErrUnauthorized) {
		return
	}
	m.expire()
}

// resolve reads the stored token and asks the backend who it belongs to.
func (m *Manager) resolve(ctx context.Context) (*client.User, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	if token == "" {
		return nil, client.ErrNoToken
	}
	user, err := m.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login exchanges credentials for a token, stores it, and resolves the user.
func (m *Manager) Login(ctx context.Context, username, password string) (*client.User, error) {
	resp, err := m.api.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	expiresAt := TokenExpiry(resp.AccessToken, resp.Expires, m.cookieMaxAge, m.now())
	if err := m.tokens.SetToken(ctx, resp.AccessToken, expiresAt); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.setState(func(s *State) {
			s.User = nil
			s.IsAuthenticated = false
			s.Loading = false
		})
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	m.setState(func(s *State) {
		s.User = user
		s.IsAuthenticated = true
		s.Loading = false
	})
	m.logger.Info("logged in", "username", user.Username, "expires_at", expiresAt)
	return user, nil
}

// Logout clears the stored token, resets the session, and navigates to login.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.tokens.ClearToken(ctx)
	m.setState(func(s *State) {
		s.User = nil
		s.IsAuthenticated = false
		s.Loading = false
	})
	m.navigate(PathLogin)
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}

// Register creates an account. Local validation failures are returned as
// errors without a network call. A rejection by the backend is reported in
// the result with the server's detail and a nil error.
func (m *Manager) Register(ctx context.Context, req client.RegisterRequest) (RegisterResult, error) {
	if err := validateRegistration(req); err != nil {
		return RegisterResult{Success: false, Username: req.Username, Detail: err.Error()}, err
	}

	resp, err := m.api.Register(ctx, req)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return RegisterResult{Success: false, Username: req.Username, Detail: apiErr.Detail}, nil
		}
		return RegisterResult{Success: false, Username: req.Username, Detail: err.Error()}, err
	}

	return RegisterResult{Success: true, Username: resp.Username, Detail: resp.Detail}, nil
}

func validateRegistration(req client.RegisterRequest) error {
	fields := []struct{ name, value string }{
		{"username", req.Username},
		{"email", req.Email},
		{"password", req.Password},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	if req.Password != req.RetypePassword {
		return ErrPasswordMismatch
	}
	return nil
}

// ChangeUser replaces the session with another user's, as issued by an admin
// switch-user. A nil user signs out without clearing the token.
func (m *Manager) ChangeUser(ctx context.Context, user *client.User, token, expires string) error {
	if token != "" {
		expiresAt := TokenExpiry(token, expires, m.cookieMaxAge, m.now())
		if err := m.tokens.SetToken(ctx, token, expiresAt); err != nil {
			return fmt.Errorf("storing token: %w", err)
		}
	}
	m.setState(func(s *State) {
		s.User = user
		s.IsAuthenticated = user != nil
		s.Loading = false
	})
	if user != nil {
		m.logger.Info("switched user", "username", user.Username)
	}
	return nil
}

// HandleUnauthorized is the client's 401 hook. It drops the session and
// sends the user to login, preserving the current route.
func (m *Manager) HandleUnauthorized() {
	m.logger.Info("session rejected by server")
	m.expire()
}

// expire marks the session unauthenticated and redirects from protected routes.
func (m *Manager) expire() {
	m.setState(func(s *State) {
		s.User = nil
		s.IsAuthenticated = false
		s.Loading = false
	})

	path := m.CurrentPath()
	if IsPublic(path) {
		return
	}
	m.navigate(LoginRedirect(path))
}

// Enter records path as the current route and applies the route rules,
// navigating when they call for a redirect.
func (m *Manager) Enter(path string) Decision {
	m.mu.Lock()
	m.path = path
	state := m.state
	m.mu.Unlock()

	d := Decide(state, path)
	if d.Action == Redirect {
		m.navigate(d.Target)
	}
	return d
}

// Guard applies the route rules to path without recording or navigating.
func (m *Manager) Guard(path string) Decision {
	return Decide(m.State(), path)
}

// CurrentPath returns the route last passed to Enter.
func (m *Manager) CurrentPath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Close releases observers.
func (m *Manager) Close() {
	m.observers.Close()
}

func (m *Manager) navigate(path string) {
	m.logger.Debug("navigate", "path", path)
	m.nav.Navigate(path)
}

func (m *Manager) setState(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	snapshot := m.state
	m.mu.Unlock()

	m.observers.Publish(snapshot)
}
