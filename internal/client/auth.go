// ABOUTME: Authentication operations: login, register, and current-user lookup
// ABOUTME: Login is form-encoded and unauthenticated; Me uses the bearer token

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Login exchanges a username and password for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	r := &request{
		op:          "Login",
		method:      http.MethodPost,
		path:        "/api/users/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		cred:        CredentialNone,
		fallback:    "Something wrong !",
	}

	var resp LoginResponse
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a new account. A non-2xx response is an *APIError whose
// Detail is the server's reason.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	r := &request{
		op:       "Register",
		method:   http.MethodPost,
		path:     "/api/users/create",
		cred:     CredentialNone,
		fallback: "Registration failed",
	}
	if err := r.jsonBody(req); err != nil {
		return nil, err
	}

	var resp RegisterResponse
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, err
	}
	if resp.Username == "" {
		resp.Username = req.Username
	}
	if resp.Detail == "" {
		resp.Detail = "Done"
	}
	return &resp, nil
}

// Me returns the user the current token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	err := c.doJSON(ctx, &request{
		op:       "Me",
		method:   http.MethodGet,
		path:     "/api/users/me",
		cred:     CredentialBearer,
		fallback: "Something wrong",
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MeWithToken resolves the user for an explicit token without consulting the
// client's TokenSource. Used to validate a token before it is stored.
func (c *Client) MeWithToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, fmt.Errorf("Me: %w", ErrNoToken)
	}
	return c.withTokens(StaticToken(token)).Me(ctx)
}

// withTokens returns a client sharing c's transport and instruments but reading
// tokens from ts and with no unauthorized hook.
func (c *Client) withTokens(ts TokenSource) *Client {
	return &Client{
		baseURL:  c.baseURL,
		http:     c.http,
		tokens:   ts,
		logger:   c.logger,
		tracer:   c.tracer,
		requests: c.requests,
		latency:  c.latency,
	}
}
