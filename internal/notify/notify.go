// ABOUTME: Transient success/error/info notifications for the terminal front ends
// ABOUTME: Colorized with fatih/color; identical toasts within the TTL are suppressed

package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/kbchat/internal/client"
	"github.com/2389/kbchat/internal/config"
)

const maxRemembered = 256

// Level is a toast's severity.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

type style struct {
	icon  string
	color *color.Color
}

// Notifier writes toasts to a terminal.
type Notifier struct {
	mu     sync.Mutex
	out    io.Writer
	styles map[Level]style
	recent *recent
	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithoutColor disables ANSI colors regardless of the terminal.
func WithoutColor() Option {
	return func(n *Notifier) {
		for _, s := range n.styles {
			s.color.DisableColor()
		}
	}
}

// New creates a notifier writing to out.
func New(out io.Writer, cfg config.NotifyConfig, logger *slog.Logger, opts ...Option) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = config.DefaultNotifyTTL
	}
	n := &Notifier{
		out: out,
		styles: map[Level]style{
			Info:    {icon: "•", color: color.New(color.FgCyan)},
			Success: {icon: "✓", color: color.New(color.FgGreen)},
			Warning: {icon: "!", color: color.New(color.FgYellow)},
			Error:   {icon: "✗", color: color.New(color.FgRed, color.Bold)},
		},
		recent: newRecent(ttl, maxRemembered),
		logger: logger.With("component", "notify"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify shows msg at level unless the same toast was shown within the TTL.
// It reports whether the toast was shown.
func (n *Notifier) Notify(level Level, msg string) bool {
	if n.recent.seenOrMark(level.String() + "\x00" + msg) {
		n.logger.Debug("suppressed repeated toast", "level", level.String(), "message", msg)
		return false
	}

	s := n.styles[level]
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := s.color.Fprintf(n.out, "%s %s\n", s.icon, msg); err != nil {
		n.logger.Debug("failed to write toast", "error", err)
	}
	return true
}

// Success shows a success toast.
func (n *Notifier) Success(format string, args ...any) bool {
	return n.Notify(Success, fmt.Sprintf(format, args...))
}

// Info shows an informational toast.
func (n *Notifier) Info(format string, args ...any) bool {
	return n.Notify(Info, fmt.Sprintf(format, args...))
}

// Warn shows a warning toast.
func (n *Notifier) Warn(format string, args ...any) bool {
	return n.Notify(Warning, fmt.Sprintf(format, args...))
}

// Error shows err as an error toast, using the server's detail message for
// API errors. A nil err shows nothing.
func (n *Notifier) Error(err error) bool {
	if err == nil {
		return false
	}
	return n.Notify(Error, client.Message(err))
}
