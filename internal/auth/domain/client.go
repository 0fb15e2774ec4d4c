package domain

import (
	"slices"
	"time"
)

type ClientType string

const (
	ClientAuthorizationGrant ClientType = "AuthorizationGrant"
	ClientImplicit           ClientType = "Implicit"
	ClientCredentials        ClientType = "ClientCredentials"
	ClientOwnerCredentials   ClientType = "OwnerCredentials"
)

// Valid reports whether t is one of the known client types.
func (t ClientType) Valid() bool {
	switch t {
	case ClientAuthorizationGrant, ClientImplicit, ClientCredentials, ClientOwnerCredentials:
		return true
	}
	return false
}

// ResponseType is the only response_type a client of this type may request
// at the authorization endpoint, or "" when it may not use it at all.
func (t ClientType) ResponseType() string {
	switch t {
	case ClientAuthorizationGrant:
		return "code"
	case ClientImplicit:
		return "token"
	default:
		return ""
	}
}

type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantOwnerCredentials  GrantType = "owner_credentials" // alias of password
	GrantRefreshToken      GrantType = "refresh_token"
)

// Allows reports whether a client of type t may use grant g at the token
// endpoint.
func (t ClientType) Allows(g GrantType) bool {
	switch g {
	case GrantAuthorizationCode:
		return t == ClientAuthorizationGrant
	case GrantClientCredentials:
		return t == ClientCredentials
	case GrantPassword, GrantOwnerCredentials:
		return t == ClientOwnerCredentials
	case GrantRefreshToken:
		return t == ClientAuthorizationGrant || t == ClientOwnerCredentials
	}
	return false
}

// Client is a registered relying party. Type never changes after creation.
type Client struct {
	ID             string
	ApplicationID  string
	Name           string
	Type           ClientType
	SecretHash     string // empty for public clients
	RedirectURIs   []string
	ReferrerURIs   []string
	Scopes         []string // used by client_credentials
	Config         ClientConfig
	Authenticators []ClientAuthenticator
	CreatedAt      time.Time
}

func (c Client) Confidential() bool { return c.SecretHash != "" }

// Authenticator returns the configured authenticator named name.
func (c Client) Authenticator(name string) (ClientAuthenticator, bool) {
	i := slices.IndexFunc(c.Authenticators, func(a ClientAuthenticator) bool {
		return a.Type == name
	})
	if i < 0 {
		return ClientAuthenticator{}, false
	}
	return c.Authenticators[i], true
}

// ClientConfig holds per-client lifetime overrides. Zero means use the
// server default.
type ClientConfig struct {
	AuthorizationCodeTTL time.Duration
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
}

func (c ClientConfig) CodeTTL(def time.Duration) time.Duration {
	return orDefault(c.AuthorizationCodeTTL, def)
}
func (c ClientConfig) AccessTTL(def time.Duration) time.Duration {
	return orDefault(c.AccessTokenTTL, def)
}
func (c ClientConfig) RefreshTTL(def time.Duration) time.Duration {
	return orDefault(c.RefreshTokenTTL, def)
}

func orDefault(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

// ClientAuthenticator enables one identity provider for a client, with the
// provider specific settings (issuer, upstream client id, ...).
type ClientAuthenticator struct {
	ID       string
	ClientID string
	Type     string
	Config   map[string]string
}
