package service

import (
	"net/url"
	"slices"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

// RequireValidRedirect checks requested against the registered redirect
// URIs by exact string match. An empty request is allowed when exactly one
// URI is registered. Failures must never be redirected.
func RequireValidRedirect(requested string, registered []string) (*url.URL, error) {
	if requested == "" {
		if len(registered) != 1 {
			return nil, authsdk.ErrInvalidRequest.WithDescription("redirect_uri is required")
		}
		requested = registered[0]
	}

	if !slices.Contains(registered, requested) {
		return nil, authsdk.ErrInvalidRequest.WithDescription("redirect_uri is not registered for this client")
	}

	u, err := url.Parse(requested)
	if err != nil || !u.IsAbs() {
		return nil, authsdk.ErrInvalidRequest.WithDescription("registered redirect_uri is not an absolute URI")
	}
	return u, nil
}

// ValidateResponseType checks the response type the client type may use at
// the authorization endpoint.
func ValidateResponseType(client domain.Client, responseType string) error {
	allowed := client.Type.ResponseType()
	if allowed == "" || responseType != allowed {
		return authsdk.ErrUnsupportedResponseType
	}
	return nil
}

// ValidateAuthenticator picks the named authenticator from the client's
// configured set. An empty name selects the only configured one.
func ValidateAuthenticator(client domain.Client, name string) (domain.ClientAuthenticator, error) {
	if name == "" {
		if len(client.Authenticators) == 1 {
			return client.Authenticators[0], nil
		}
		return domain.ClientAuthenticator{}, authsdk.ErrInvalidRequest.WithDescription("authenticator is required")
	}

	cfg, ok := client.Authenticator(name)
	if !ok {
		return domain.ClientAuthenticator{}, authsdk.ErrInvalidRequest.WithDescription("authenticator is not enabled for this client")
	}
	return cfg, nil
}
