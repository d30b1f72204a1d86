// ABOUTME: HTTP client for the knowledge-base chatbot API
// ABOUTME: Builds requests with per-operation credentials and maps failures to APIError

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName names the tracer and meter used by the client.
const instrumentationName = "github.com/2389/kbchat/internal/client"

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// CredentialMode selects how the access token is attached to a request.
type CredentialMode int

const (
	// CredentialNone sends no credential (login, register).
	CredentialNone CredentialMode = iota
	// CredentialBearer sends "Authorization: Bearer <token>".
	CredentialBearer
	// CredentialCookie sends the token as the access_token cookie.
	CredentialCookie
)

func (m CredentialMode) String() string {
	switch m {
	case CredentialBearer:
		return "bearer"
	case CredentialCookie:
		return "cookie"
	default:
		return "none"
	}
}

// TokenSource supplies the current access token. It is consulted before every
// authenticated request; an empty token means no active session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the static token.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client talks to the backend API. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger

	mu             sync.RWMutex
	onUnauthorized func()

	tracer   trace.Tracer
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "client") }
}

// New creates a client for the API at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		tokens:  tokens,
		logger:  slog.Default().With("component", "client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tracer = otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)
	c.requests, err = meter.Int64Counter("kbchat.client.requests",
		metric.WithDescription("API requests by operation and status"))
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	c.latency, err = meter.Float64Histogram("kbchat.client.duration",
		metric.WithDescription("API request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	return c, nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// SetUnauthorizedHandler installs the hook run when an authenticated request
// is rejected with 401. The session manager installs itself here.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// request describes a single API call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	cred        CredentialMode
	// fallback is the error message used when the server gives no detail.
	fallback string
}

// jsonBody encodes v as a JSON request body.
func (r *request) jsonBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	r.body = bytes.NewReader(data)
	r.contentType = "application/json"
	return nil
}

// do sends the request and returns the response for a 2xx status. Any other
// status is drained and returned as an *APIError.
func (c *Client) do(ctx context.Context, r *request) (*http.Response, error) {
	if err := checkPath(r.path); err != nil {
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}

	ctx, span := c.tracer.Start(ctx, "client."+r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("kbchat.credential", r.cred.String()),
		))
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		attrs := metric.WithAttributes(
			attribute.String("op", r.op),
			attribute.Int("status", status),
		)
		c.requests.Add(ctx, 1, attrs)
		c.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}()

	u := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), r.body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	span.SetAttributes(attribute.String("request.id", requestID))

	if err := c.attachCredential(ctx, req, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Debug("api request", "op", r.op, "method", r.method, "path", u.Path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%s: %w", r.op, err)
	}
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status >= 200 && status < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := &APIError{
		Op:         r.op,
		StatusCode: status,
		Detail:     parseDetail(resp.Body, r.fallback),
	}
	span.SetStatus(codes.Error, apiErr.Error())

	c.logger.Debug("api request failed", "op", r.op, "status", status, "detail", apiErr.Detail, "request_id", requestID)

	if status == http.StatusUnauthorized && r.cred != CredentialNone {
		c.unauthorized()
	}
	return nil, apiErr
}

// attachCredential reads the token and adds it in the request's credential mode.
func (c *Client) attachCredential(ctx context.Context, req *http.Request, r *request) error {
	if r.cred == CredentialNone {
		return nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%s: reading token: %w", r.op, err)
	}
	if token == "" {
		return fmt.Errorf("%s: %w", r.op, ErrNoToken)
	}

	switch r.cred {
	case CredentialBearer:
		req.Header.Set("Authorization", "Bearer "+token)
	case CredentialCookie:
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	}
	return nil
}

// AccessTokenCookie is the cookie name used by CredentialCookie requests.
const AccessTokenCookie = "access_token"

// Validator is implemented by response types checked at the API boundary.
type Validator interface {
	Validate() error
}

// doJSON sends the request and decodes a JSON response into out. When out
// implements Validator the decoded value is validated.
func (c *Client) doJSON(ctx context.Context, r *request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", r.op, err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%s: %w: %w", r.op, ErrInvalidResponse, err)
		}
	}
	return nil
}

// Blob is a binary response body such as an export or a word cloud image.
type Blob struct {
	ContentType string
	Filename    string
	Data        []byte
}

// doBlob sends the request and reads the whole binary body.
func (c *Client) doBlob(ctx context.Context, r *request) (*Blob, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", r.op, err)
	}

	blob := &Blob{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			blob.Filename = params["filename"]
		}
	}
	return blob, nil
}

// doStream sends the request and copies the binary body to w.
func (c *Client) doStream(ctx context.Context, r *request, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("%s: reading body: %w", r.op, err)
	}
	return n, nil
}

// parseDetail extracts the server's "detail" field from an error body.
// FastAPI returns either a string or a list of validation errors.
func parseDetail(body io.Reader, fallback string) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || json.Unmarshal(data, &payload) != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if s == "" {
			return fallback
		}
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fallback
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
