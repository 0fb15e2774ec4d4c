package authenticator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

// Config keys for an oidc client authenticator.
const (
	OIDCIssuer       = "issuer"
	OIDCClientID     = "client_id"
	OIDCClientSecret = "client_secret"
	OIDCScopes       = "scopes"
)

var defaultOIDCScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// OIDC federates authentication to an OpenID Connect provider. Each client
// authenticator row carries its own issuer and upstream credentials.
type OIDC struct {
	HTTPClient *http.Client
}

// NewOIDC returns an OIDC authenticator whose upstream calls time out after
// timeout.
func NewOIDC(timeout time.Duration) *OIDC {
	return &OIDC{HTTPClient: &http.Client{Timeout: timeout}}
}

type oidcSetup struct {
	provider *oidc.Provider
	oauth    oauth2.Config
	issuer   string
}

func (a *OIDC) context(ctx context.Context) context.Context {
	if a.HTTPClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, a.HTTPClient)
}

func (a *OIDC) setup(ctx context.Context, cfg domain.ClientAuthenticator, callback *url.URL) (*oidcSetup, error) {
	issuer := cfg.Config[OIDCIssuer]
	clientID := cfg.Config[OIDCClientID]
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("oidc authenticator %s: issuer and client_id are required", cfg.ID)
	}

	provider, err := oidc.NewProvider(a.context(ctx), issuer)
	if err != nil {
		return nil, &ThirdPartyError{Provider: issuer, Err: err}
	}

	scopes := defaultOIDCScopes
	if s := strings.Fields(cfg.Config[OIDCScopes]); len(s) > 0 {
		scopes = s
	}

	// The upstream redirect_uri is the bare callback; our state id travels
	// as the upstream state parameter instead.
	redirect := *callback
	redirect.RawQuery = ""

	return &oidcSetup{
		provider: provider,
		issuer:   issuer,
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: cfg.Config[OIDCClientSecret],
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirect.String(),
			Scopes:       scopes,
		},
	}, nil
}

func (a *OIDC) Delegate(ctx context.Context, cfg domain.ClientAuthenticator, callback *url.URL) (http.Handler, error) {
	s, err := a.setup(ctx, cfg, callback)
	if err != nil {
		return nil, err
	}

	target := s.oauth.AuthCodeURL(callback.Query().Get("state"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}), nil
}

type oidcClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (a *OIDC) Authenticate(ctx context.Context, st store.Store, req Request) (domain.UserIdentity, error) {
	if code := req.Params.Get("error"); code != "" {
		if code == "access_denied" {
			return domain.UserIdentity{}, ErrAccessDenied
		}
		return domain.UserIdentity{}, &ThirdPartyError{
			Provider: req.Config.Config[OIDCIssuer],
			Err:      fmt.Errorf("%s: %s", code, req.Params.Get("error_description")),
		}
	}

	code := req.Params.Get("code")
	if code == "" {
		return domain.UserIdentity{}, ErrInvalidCredentials
	}

	s, err := a.setup(ctx, req.Config, req.CallbackURL)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	ctx = a.context(ctx)
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			return domain.UserIdentity{}, ErrInvalidCredentials
		}
		return domain.UserIdentity{}, &ThirdPartyError{Provider: s.issuer, Err: err}
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return domain.UserIdentity{}, &ThirdPartyError{Provider: s.issuer, Err: errors.New("token response has no id_token")}
	}

	idt, err := s.provider.Verifier(&oidc.Config{ClientID: s.oauth.ClientID}).Verify(ctx, rawID)
	if err != nil {
		return domain.UserIdentity{}, &ThirdPartyError{Provider: s.issuer, Err: err}
	}

	var claims oidcClaims
	if err := idt.Claims(&claims); err != nil {
		return domain.UserIdentity{}, &ThirdPartyError{Provider: s.issuer, Err: err}
	}

	attrs := map[string]string{"iss": idt.Issuer}
	if claims.Email != "" {
		attrs["email"] = claims.Email
	}
	if claims.Name != "" {
		attrs["name"] = claims.Name
	}

	return FindOrCreateIdentity(ctx, st, req.Application, domain.IdentityOIDC, idt.Subject, attrs)
}
