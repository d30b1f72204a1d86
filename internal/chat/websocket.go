// ABOUTME: gorilla/websocket transport for streamed assistant replies
// ABOUTME: Builds the per-conversation ws[s] URL and keeps the token out of logs

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389/kbchat/internal/client"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 15 * time.Second
	redacted         = "REDACTED"
)

// WebSocketDialer opens streaming chat connections.
type WebSocketDialer struct {
	base   *url.URL
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewWebSocketDialer creates a dialer for the API at baseURL. http and https
// map to ws and wss.
func NewWebSocketDialer(baseURL string, logger *slog.Logger) (*WebSocketDialer, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", baseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketDialer{
		base: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger.With("component", "chat.websocket"),
	}, nil
}

// URL returns the connection URL for target.
func (d *WebSocketDialer) URL(target Target) *url.URL {
	segments := []string{"api", "assistant", target.AssistantID, "conversations", target.ConversationID, target.Token, "ws"}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	prefix := strings.TrimRight(d.base.Path, "/")

	u := *d.base
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = prefix + "/" + strings.Join(segments, "/")
	u.RawPath = prefix + "/" + strings.Join(escaped, "/")
	return &u
}

// Redacted returns the connection URL with the token replaced, for logging.
func (d *WebSocketDialer) Redacted(target Target) string {
	masked := target
	masked.Token = redacted
	return d.URL(masked).String()
}

// Dial opens a connection. Handshake failures never include the token.
func (d *WebSocketDialer) Dial(ctx context.Context, target Target) (Conn, error) {
	if target.Token == "" {
		return nil, client.ErrNoToken
	}
	for _, id := range []string{target.AssistantID, target.ConversationID} {
		if err := client.CheckSegment(id); err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
	}

	safe := d.Redacted(target)
	conn, resp, err := d.dialer.DialContext(ctx, d.URL(target).String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: %w", safe, client.ErrUnauthorized)
		}
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", safe, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", safe, scrub(err, target.Token))
	}

	d.logger.Debug("websocket connected", "url", safe)
	return &wsConn{conn: conn, logger: d.logger}, nil
}

// scrub removes the token from an error message if a lower layer echoed the URL.
func scrub(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, redacted))
}

// wsConn is one open WebSocket. Writes are serialized; a single goroutine reads.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func (c *wsConn) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(outgoing{Content: text})
}

func (c *wsConn) ReadFrame() (Frame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrConnClosed
		}
		return nil, err
	}
	return ParseFrame(data)
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		c.logger.Debug("failed to send close message", "error", err)
	}
	return c.conn.Close()
}
