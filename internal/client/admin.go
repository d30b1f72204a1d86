// ABOUTME: Admin operations: users, long-lived tokens, and switch-user
// ABOUTME: Require an admin session; the backend rejects other roles with 403

package client

import (
	"context"
	"net/http"
)

// ListUsers returns every user account.
func (c *Client) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var users AdminUsers
	err := c.doJSON(ctx, &request{
		op:       "ListUsers",
		method:   http.MethodGet,
		path:     "/api/admin/users",
		cred:     CredentialCookie,
		fallback: "Failed to fetch users",
	}, &users)
	return users, err
}

// UpdateUser sets a user's organization.
func (c *Client) UpdateUser(ctx context.Context, userID, organization string) error {
	r := &request{
		op:       "UpdateUser",
		method:   http.MethodPut,
		path:     pathf("/api/admin/users/%s", userID),
		cred:     CredentialCookie,
		fallback: "Failed to update user",
	}
	if err := r.jsonBody(map[string]string{"organization": organization}); err != nil {
		return err
	}
	return c.doJSON(ctx, r, nil)
}

// DeleteUser deletes a user account.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	return c.doJSON(ctx, &request{
		op:       "DeleteUser",
		method:   http.MethodDelete,
		path:     pathf("/api/admin/users/%s", userID),
		cred:     CredentialCookie,
		fallback: "Failed to delete user",
	}, nil)
}

// SwitchUser issues a session for another user. The caller stores the
// returned token to act as that user.
func (c *Client) SwitchUser(ctx context.Context, username string) (*SwitchUserResponse, error) {
	r := &request{
		op:       "SwitchUser",
		method:   http.MethodPost,
		path:     "/api/admin/switch-user",
		cred:     CredentialCookie,
		fallback: "Something wrong happened!",
	}
	if err := r.jsonBody(map[string]string{"username_to_switch": username}); err != nil {
		return nil, err
	}

	var resp SwitchUserResponse
	if err := c.doJSON(ctx, r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTokens returns all long-lived tokens.
func (c *Client) ListTokens(ctx context.Context) ([]APIToken, error) {
	var tokens APITokens
	err := c.doJSON(ctx, &request{
		op:       "ListTokens",
		method:   http.MethodGet,
		path:     "/api/admin/tokens",
		cred:     CredentialCookie,
		fallback: "Failed to fetch tokens",
	}, &tokens)
	return tokens, err
}

// CreateToken issues a long-lived token for a user.
func (c *Client) CreateToken(ctx context.Context, username string) (*APIToken, error) {
	r := &request{
		op:       "CreateToken",
		method:   http.MethodPost,
		path:     "/api/admin/create-token",
		cred:     CredentialCookie,
		fallback: "Failed to create token",
	}
	if err := r.jsonBody(map[string]string{"username": username}); err != nil {
		return nil, err
	}

	var token APIToken
	if err := c.doJSON(ctx, r, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteToken revokes a long-lived token.
func (c *Client) DeleteToken(ctx context.Context, tokenID string) error {
	return c.doJSON(ctx, &request{
		op:       "DeleteToken",
		method:   http.MethodDelete,
		path:     pathf("/api/admin/delete-token/%s", tokenID),
		cred:     CredentialCookie,
		fallback: "Failed to delete token",
	}, nil)
}
