package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the access token attached to requests. An empty
// token means the request is sent without credentials.
type TokenSource interface {
	AccessToken() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) AccessToken() (string, error) { return string(t), nil }

// MemoryTokens holds a token that can be replaced at runtime, for example
// after a login round-trip.
type MemoryTokens struct {
	mu    sync.RWMutex
	token string
}

func (m *MemoryTokens) AccessToken() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryTokens) Set(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *MemoryTokens) Remove() { m.Set("") }

// ErrTokenExpired is returned by Guard.Check for expired tokens.
var ErrTokenExpired = errors.New("api: access token expired")

// ErrNoToken is returned by Guard.Check when no token is available.
var ErrNoToken = errors.New("api: no access token")

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// Tokens without exp report the zero time.
func ExpiresAt(token string) (time.Time, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("api: parse token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("api: token expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Guard decides whether a client-side route may be entered with the current
// token. Tokens are not verified, only checked for presence and expiry.
type Guard struct {
	Tokens TokenSource
	Leeway time.Duration
	Now    func() time.Time
}

// Check returns nil when the token is present and not expired.
func (g Guard) Check() error {
	if g.Tokens == nil {
		return ErrNoToken
	}
	token, err := g.Tokens.AccessToken()
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNoToken
	}
	exp, err := ExpiresAt(token)
	if err != nil {
		return err
	}
	if exp.IsZero() {
		return nil
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	if !now().Before(exp.Add(g.Leeway)) {
		return ErrTokenExpired
	}
	return nil
}

// CanActivate reports whether Check passes.
func (g Guard) CanActivate() bool { return g.Check() == nil }

// VerifyHS256 verifies an HMAC signed token and returns its claims.
func VerifyHS256(token string, secret []byte) (gojwt.MapClaims, error) {
	claims := gojwt.MapClaims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return secret, nil
	}, gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("api: verify token: %w", err)
	}
	return claims, nil
}

// SignHS256 issues an HMAC signed token carrying subject and expiring after
// ttl. A zero ttl issues a token without expiry.
func SignHS256(subject string, ttl time.Duration, secret []byte) (string, error) {
	claims := gojwt.MapClaims{"sub": subject, "iat": time.Now().Unix()}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(secret)
}

// SecureURL appends the access token as a query parameter, for links that
// are fetched without the auth header such as downloads and images.
func SecureURL(rawURL, token string) string {
	if rawURL == "" || token == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "token=" + url.QueryEscape(token)
}
