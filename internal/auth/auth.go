// Package auth supplies credential tokens for realtime connection attempts.
package auth

import (
	"os"
	"strings"
	"time"
)

// Token is an opaque credential with an optional expiry.
type Token struct {
	Value     string    // Bearer token value
	ExpiresAt time.Time // Zero means no known expiry
}

// Expired reports whether the token is past its expiry at the given time.
// Tokens without a known expiry never expire.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// TokenProvider returns the current credential token, or nil when no
// credential is available. A nil result signals the connection manager to
// fail the attempt without touching the network; it is not an error.
//
// Providers must not block on network refresh. Refreshing an expired token
// is an external concern; the manager fetches a token fresh on every
// connection attempt so a refreshed value is always picked up.
type TokenProvider interface {
	Token() *Token
}

// TokenFunc adapts a function to the TokenProvider interface.
type TokenFunc func() *Token

// Token implements TokenProvider.
func (f TokenFunc) Token() *Token { return f() }

// Static returns a provider that always yields the same token. An empty
// value yields nil. Intended for tests and short-lived tools.
func Static(value string, expiresAt time.Time) TokenProvider {
	return TokenFunc(func() *Token {
		if value == "" {
			return nil
		}
		return &Token{Value: value, ExpiresAt: expiresAt}
	})
}

// FromEnv reads the token from an environment variable on every call.
func FromEnv(name string) TokenProvider {
	return TokenFunc(func() *Token {
		value := strings.TrimSpace(os.Getenv(name))
		if value == "" {
			return nil
		}
		return &Token{Value: value}
	})
}

// FromFile reads the token from a file on every call, so an external
// refresher can rotate the credential by rewriting the file. Surrounding
// whitespace is trimmed.
func FromFile(path string) TokenProvider {
	return TokenFunc(func() *Token {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return nil
		}
		return &Token{Value: value}
	})
}
