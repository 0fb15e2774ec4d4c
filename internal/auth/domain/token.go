package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

type TokenType string

const (
	TokenAuthorization TokenType = "Authorization" // authorization code
	TokenBearer        TokenType = "Bearer"
	TokenRefresh       TokenType = "Refresh"
)

// OAuthToken is an opaque token record. The ID is the token value handed to
// clients.
type OAuthToken struct {
	ID          idx.SecureID
	Type        TokenType
	ClientID    string
	IdentityID  string // empty for client_credentials tokens
	Scopes      []string
	ExpiresIn   int64 // seconds
	CreatedAt   time.Time
	AuthTokenID *idx.SecureID // refresh tokens: the bearer issued alongside
	RedirectURI string        // authorization codes: redirect used at /authorize
}

func (t OAuthToken) ExpiresAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpiredAt reports whether more than ExpiresIn seconds have passed
// between CreatedAt and now.
func (t OAuthToken) IsExpiredAt(now time.Time) bool {
	return now.Sub(t.CreatedAt) > time.Duration(t.ExpiresIn)*time.Second
}

func (t OAuthToken) IsExpired() bool { return t.IsExpiredAt(time.Now()) }

func (t OAuthToken) HasScope(scope string) bool {
	return slices.Contains(t.Scopes, scope)
}

// Scope returns the space delimited scope string.
func (t OAuthToken) Scope() string { return strings.Join(t.Scopes, " ") }

// TokenPair is the outcome of a token endpoint grant. Refresh is nil for
// grants that do not issue one.
type TokenPair struct {
	Access  OAuthToken
	Refresh *OAuthToken
}
