// ABOUTME: Access token inspection for choosing how long a stored session lasts
// ABOUTME: Reads the JWT exp claim without verification; the backend owns the secret

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing required claim")
)

// expiresLayouts are the timestamp forms the backend uses for "expires".
var expiresLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

// PeekExpiry returns the exp claim of a JWT access token. The signature is
// not checked: the client has no key and only uses the value to age out its
// local copy of the token.
func PeekExpiry(tokenString string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}
	return exp.Time, nil
}

// PeekSubject returns the sub claim of a JWT access token without verification.
func PeekSubject(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// ParseExpires parses the optional "expires" value of a login or switch-user
// response. Timestamps without a zone are taken as UTC; bare integers are
// Unix seconds.
func ParseExpires(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty expires")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range expiresLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised expires %q", s)
}

// TokenExpiry decides when a newly issued token should be dropped from the
// store: the server's expires value when present, else the token's exp claim,
// else now plus maxAge.
func TokenExpiry(token, expires string, maxAge time.Duration, now time.Time) time.Time {
	if t, err := ParseExpires(expires); err == nil {
		return t
	}
	if t, err := PeekExpiry(token); err == nil {
		return t
	}
	return now.Add(maxAge)
}
