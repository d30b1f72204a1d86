// ABOUTME: Process wiring shared by the kbchat binaries
// ABOUTME: Builds config, logging, telemetry, the session store, API client, and session manager

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/2389/kbchat/internal/auth"
	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
	"github.com/2389/kbchat/internal/documents"
	"github.com/2389/kbchat/internal/logging"
	"github.com/2389/kbchat/internal/notify"
	"github.com/2389/kbchat/internal/store"
	"github.com/2389/kbchat/internal/telemetry"
)

// TokenEnv supplies a session token for one process without touching the
// cookie jar.
const TokenEnv = "KBCHAT_TOKEN"

// ErrRedirected is returned when a command stops because the session sent
// the user to another route. The navigator has already told the user why.
var ErrRedirected = errors.New("redirected")

// App holds everything a command needs.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Client  *client.Client
	Tokens  *store.TokenStore
	Session *auth.Manager
	Notify  *notify.Notifier
	Nav     *Navigator
	Out     io.Writer
	ErrOut  io.Writer

	logCloser io.Closer
	shutdown  telemetry.ShutdownFunc
}

// New wires an App from the user's config file and environment.
func New(ctx context.Context, out, errOut io.Writer) (*App, error) {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, out, errOut)
}

// NewWithConfig wires an App from cfg.
func NewWithConfig(ctx context.Context, cfg *config.Config, out, errOut io.Writer) (*App, error) {
	logger, logCloser := logging.Setup(cfg.Logging)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, config.DataPath())
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	tokens, err := openTokens(ctx, cfg.Store)
	if err != nil {
		_ = shutdown(ctx)
		logCloser.Close()
		return nil, err
	}

	api, err := client.New(cfg.API.BaseURL, tokens,
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(logger),
	)
	if err != nil {
		tokens.Close()
		_ = shutdown(ctx)
		logCloser.Close()
		return nil, err
	}

	nav := NewNavigator(errOut)
	session := auth.NewManager(api, tokens, nav, cfg.Auth, logger)
	api.SetUnauthorizedHandler(session.HandleUnauthorized)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Client:    api,
		Tokens:    tokens,
		Session:   session,
		Notify:    notify.New(errOut, cfg.Notify, logger),
		Nav:       nav,
		Out:       out,
		ErrOut:    errOut,
		logCloser: logCloser,
		shutdown:  shutdown,
	}, nil
}

// openTokens picks the cookie jar: an in-memory jar seeded from
// KBCHAT_TOKEN when set, else the configured SQLite file.
func openTokens(ctx context.Context, cfg config.StoreConfig) (*store.TokenStore, error) {
	if tok := os.Getenv(TokenEnv); tok != "" {
		tokens := store.NewTokenStore(store.NewMemoryStore())
		exp, err := auth.PeekExpiry(tok)
		if err != nil {
			exp = time.Time{}
		}
		if err := tokens.SetToken(ctx, tok, exp); err != nil {
			return nil, err
		}
		return tokens, nil
	}

	if cfg.Path == config.StoreMemory {
		return store.NewTokenStore(store.NewMemoryStore()), nil
	}

	jar, err := store.NewSQLiteStore(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return store.NewTokenStore(jar), nil
}

// Require resolves the session and applies the route rules for path. It
// returns ErrRedirected when the rules send the user elsewhere.
func (a *App) Require(ctx context.Context, path string) error {
	// Record the route first so a 401 while resolving redirects back here.
	a.Session.Enter(path)
	seen := a.Nav.Count()
	a.Session.Init(ctx)

	if d := a.Session.Guard(path); d.Action != auth.Redirect {
		return nil
	}
	if a.Nav.Count() == seen {
		a.Session.Enter(path)
	}
	return ErrRedirected
}

// Fail reports err to the user and returns the process exit code.
func (a *App) Fail(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrRedirected):
	case errors.Is(err, documents.ErrSessionExpired):
		a.Notify.Notify(notify.Error, documents.SessionExpiredMessage)
	case errors.Is(err, context.Canceled):
		return 130
	default:
		a.Notify.Error(err)
	}
	a.Logger.Debug("command failed", "error", err)
	return 1
}

// Close flushes telemetry and releases the store and log file.
func (a *App) Close(ctx context.Context) {
	a.Session.Close()
	if err := a.Tokens.Close(); err != nil {
		a.Logger.Warn("closing session store", "error", err)
	}
	if err := a.shutdown(ctx); err != nil {
		a.Logger.Warn("flushing telemetry", "error", err)
	}
	a.logCloser.Close()
}
