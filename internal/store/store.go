// ABOUTME: TokenStore interface and cookie types for the kbchat credential jar
// ABOUTME: The access_token cookie is the only state kbchat persists between runs

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested cookie does not exist or has expired
var ErrNotFound = errors.New("not found")

// AccessTokenCookie is the cookie name the backend expects for cookie credentials.
const AccessTokenCookie = "access_token"

// Cookie is a single named credential with an expiry.
type Cookie struct {
	Name      string
	Value     string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the cookie is past its expiry at now.
// A zero ExpiresAt never expires.
func (c *Cookie) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CookieStore persists named cookies.
type CookieStore interface {
	GetCookie(ctx context.Context, name string) (*Cookie, error)
	SetCookie(ctx context.Context, cookie *Cookie) error
	DeleteCookie(ctx context.Context, name string) error
	Close() error
}

// TokenStore is the access-token view over a CookieStore used by the session
// manager (the single writer) and the API client (a reader).
type TokenStore struct {
	cookies CookieStore
	now     func() time.Time
}

// NewTokenStore wraps a cookie store.
func NewTokenStore(cookies CookieStore) *TokenStore {
	return &TokenStore{cookies: cookies, now: time.Now}
}

// Token returns the current access token, or "" when absent or expired.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	c, err := s.cookies.GetCookie(ctx, AccessTokenCookie)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if c.Expired(s.now()) {
		return "", nil
	}
	return c.Value, nil
}

// SetToken stores the access token until expiresAt.
func (s *TokenStore) SetToken(ctx context.Context, token string, expiresAt time.Time) error {
	return s.cookies.SetCookie(ctx, &Cookie{
		Name:      AccessTokenCookie,
		Value:     token,
		ExpiresAt: expiresAt,
		UpdatedAt: s.now(),
	})
}

// ClearToken removes the access token. Clearing an absent token is not an error.
func (s *TokenStore) ClearToken(ctx context.Context) error {
	err := s.cookies.DeleteCookie(ctx, AccessTokenCookie)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Close releases the underlying cookie store.
func (s *TokenStore) Close() error {
	return s.cookies.Close()
}
