package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/authenticator"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// AuthorizeService runs the interactive authorization flow: /authorize
// persists an AuthenticatorState and delegates to an authenticator, the
// callback redeems the state and issues a code or an implicit token.
type AuthorizeService struct {
	Store          store.Store
	Authenticators *authenticator.Registry
	IDs            *idx.Generator

	CodeTTL   time.Duration
	AccessTTL time.Duration
	StateTTL  time.Duration
}

// AuthorizeRequest is the /authorize query. CallbackURL is the absolute URL
// of the callback endpoint.
type AuthorizeRequest struct {
	ClientID      string
	ResponseType  string
	RedirectURI   string
	Scope         string
	State         string
	Authenticator string
	CallbackURL   *url.URL
}

// Delegation hands the user agent to an authenticator.
type Delegation struct {
	StateID  idx.SecureID
	Callback *url.URL
	Handler  http.Handler
}

// CallbackRequest is the re-entry from an authenticator.
type CallbackRequest struct {
	StateID     string
	Params      url.Values
	CallbackURL *url.URL
}

// Authorize validates the request and persists its state. Errors are
// always *AuthorizeError.
func (s *AuthorizeService) Authorize(ctx context.Context, req AuthorizeRequest) (*Delegation, error) {
	l := slogx.FromContext(ctx).With(slog.String("client_id", req.ClientID))

	if req.ClientID == "" {
		return nil, directError(authsdk.ErrInvalidRequest.WithDescription("client_id is required"))
	}
	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, directError(authsdk.ErrInvalidClient.WithDescription("unknown client"))
	}
	if err != nil {
		l.Error("authorize: load client", "err", err)
		return nil, directError(authsdk.ErrServerError)
	}

	// The redirect is checked before anything else. Until it is known every
	// error is written directly.
	redirect, err := RequireValidRedirect(req.RedirectURI, client.RedirectURIs)
	if err != nil {
		return nil, directError(AsOAuth2Error(err))
	}

	fail := func(oe *authsdk.OAuth2Error) error {
		return &AuthorizeError{
			Err:         oe,
			RedirectURI: redirect,
			Fragment:    client.Type == domain.ClientImplicit,
			State:       req.State,
		}
	}

	if err := ValidateResponseType(client, req.ResponseType); err != nil {
		return nil, fail(AsOAuth2Error(err))
	}
	cfg, err := ValidateAuthenticator(client, req.Authenticator)
	if err != nil {
		return nil, fail(AsOAuth2Error(err))
	}

	app, err := s.Store.Applications().GetApplicationByID(ctx, client.ApplicationID)
	if err != nil {
		l.Error("authorize: load application", "err", err)
		return nil, fail(authsdk.ErrServerError)
	}
	scopes, err := ResolveScopes(req.Scope, app.Scopes)
	if err != nil {
		return nil, fail(AsOAuth2Error(err))
	}

	impl, err := s.Authenticators.Lookup(cfg.Type)
	if err != nil {
		l.Error("authorize: authenticator not registered", "authenticator", cfg.Type)
		return nil, fail(authsdk.ErrServerError.WithDescription("authenticator unavailable"))
	}

	state := domain.AuthenticatorState{
		ClientID:      client.ID,
		Authenticator: cfg.Type,
		Scopes:        scopes,
		ClientState:   req.State,
		RedirectURI:   redirect.String(),
		CreatedAt:     time.Now().UTC(),
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		id, err := s.IDs.NextUnique(ctx, idx.ExistenceFunc(tx.States().StateExists))
		if err != nil {
			return err
		}
		state.ID = id
		return tx.States().CreateState(ctx, state)
	})
	if err != nil {
		l.Error("authorize: persist state", "err", err)
		return nil, fail(authsdk.ErrServerError)
	}

	callback := *req.CallbackURL
	q := callback.Query()
	q.Set("state", state.ID.String())
	callback.RawQuery = q.Encode()

	h, err := impl.Delegate(ctx, cfg, &callback)
	if err != nil {
		l.Error("authorize: delegate", "authenticator", cfg.Type, "err", err)
		oe, ok := authenticatorError(err)
		if !ok {
			oe = authsdk.ErrServerError
		}
		return nil, fail(oe)
	}

	l.Info("authorization delegated",
		slog.String("authenticator", cfg.Type),
		slog.String("state", cryptox.FingerprintToken(state.ID.String())),
	)
	return &Delegation{StateID: state.ID, Callback: &callback, Handler: h}, nil
}

// Callback redeems the state named in req and returns the redirect
// location carrying a code or an implicit access token. Errors are always
// *AuthorizeError.
//
// The state row is deleted before authentication runs, so concurrent
// callbacks for one state cannot both get past the take. A failed attempt
// rolls the deletion back and the state stays usable until it expires.
func (s *AuthorizeService) Callback(ctx context.Context, req CallbackRequest) (string, error) {
	l := slogx.FromContext(ctx)

	id, err := idx.FromString(req.StateID)
	if err != nil || id == nil {
		return "", directError(authsdk.ErrInvalidRequest.WithDescription("state is missing or malformed"))
	}

	var (
		state    domain.AuthenticatorState
		taken    bool
		location string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		state, err = tx.States().TakeState(ctx, *id)
		if err != nil {
			return err
		}
		taken = true

		location, err = s.redeem(ctx, tx, state, req)
		return err
	})

	switch {
	case err == nil:
		return location, nil
	case !taken && errors.Is(err, store.ErrNotFound):
		return "", directError(authsdk.ErrInvalidRequest.WithDescription("unknown or already used state"))
	case !taken:
		l.Error("callback: take state", "err", err)
		return "", directError(authsdk.ErrServerError)
	}

	s.restoreState(ctx, state)

	var outcome *AuthorizeError
	if errors.As(err, &outcome) {
		l.Info("authorization failed",
			slog.String("client_id", state.ClientID),
			slog.String("error", outcome.Err.Code),
		)
		return "", outcome
	}

	l.Error("callback: issue", slog.String("client_id", state.ClientID), "err", err)
	redirect, perr := url.Parse(state.RedirectURI)
	if perr != nil {
		return "", directError(authsdk.ErrServerError)
	}
	return "", &AuthorizeError{
		Err:         authsdk.ErrServerError,
		RedirectURI: redirect,
		Fragment:    s.isImplicit(ctx, state.ClientID),
		State:       state.ClientState,
	}
}

// restoreState undoes the take for state backends outside the SQL
// transaction. SQLite states come back with the rollback.
func (s *AuthorizeService) restoreState(ctx context.Context, state domain.AuthenticatorState) {
	r, ok := s.Store.States().(store.StateRestorer)
	if !ok {
		return
	}
	if err := r.RestoreState(ctx, state); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		slogx.FromContext(ctx).Warn("callback: restore state",
			slog.String("state", cryptox.FingerprintToken(state.ID.String())),
			"err", err,
		)
	}
}

func (s *AuthorizeService) isImplicit(ctx context.Context, clientID string) bool {
	c, err := s.Store.Clients().GetClientByID(ctx, clientID)
	return err == nil && c.Type == domain.ClientImplicit
}

// redeem authenticates against a taken state and issues the grant. It
// returns *AuthorizeError for protocol failures and plain errors for store
// failures.
func (s *AuthorizeService) redeem(ctx context.Context, tx store.Store, state domain.AuthenticatorState, req CallbackRequest) (string, error) {
	redirect, err := url.Parse(state.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("stored redirect: %w", err)
	}

	client, err := tx.Clients().GetClientByID(ctx, state.ClientID)
	if err != nil {
		return "", fmt.Errorf("load client: %w", err)
	}

	fail := func(oe *authsdk.OAuth2Error) error {
		return &AuthorizeError{
			Err:         oe,
			RedirectURI: redirect,
			Fragment:    client.Type == domain.ClientImplicit,
			State:       state.ClientState,
		}
	}

	if s.StateTTL > 0 && state.IsStaleAt(time.Now(), s.StateTTL) {
		return "", fail(authsdk.ErrInvalidRequest.WithDescription("authorization request expired"))
	}

	cfg, ok := client.Authenticator(state.Authenticator)
	if !ok {
		return "", fail(authsdk.ErrInvalidRequest.WithDescription("authenticator is no longer enabled for this client"))
	}
	impl, err := s.Authenticators.Lookup(cfg.Type)
	if err != nil {
		return "", fail(authsdk.ErrServerError.WithDescription("authenticator unavailable"))
	}

	app, err := tx.Applications().GetApplicationByID(ctx, client.ApplicationID)
	if err != nil {
		return "", fmt.Errorf("load application: %w", err)
	}

	callback := *req.CallbackURL
	callback.RawQuery = ""
	ident, err := impl.Authenticate(ctx, tx, authenticator.Request{
		Client:      client,
		Application: app,
		Config:      cfg,
		Params:      req.Params,
		CallbackURL: &callback,
	})
	if err != nil {
		if oe, ok := authenticatorError(err); ok {
			slogx.FromContext(ctx).Info("authentication failed", "authenticator", cfg.Type, "err", err)
			return "", fail(oe)
		}
		return "", err
	}

	role, err := identityRole(ctx, tx, ident)
	if err != nil {
		return "", err
	}
	scopes := NarrowScopes(state.Scopes, role)

	switch client.Type {
	case domain.ClientAuthorizationGrant:
		code, err := issueToken(ctx, tx, s.IDs, issueParams{
			Type:        domain.TokenAuthorization,
			ClientID:    client.ID,
			IdentityID:  ident.ID,
			Scopes:      scopes,
			TTL:         client.Config.CodeTTL(s.CodeTTL),
			RedirectURI: state.RedirectURI,
		})
		if err != nil {
			return "", err
		}

		params := url.Values{"code": {code.ID.String()}}
		if state.ClientState != "" {
			params.Set("state", state.ClientState)
		}
		return redirectWith(redirect, params, false), nil

	case domain.ClientImplicit:
		tok, err := issueToken(ctx, tx, s.IDs, issueParams{
			Type:       domain.TokenBearer,
			ClientID:   client.ID,
			IdentityID: ident.ID,
			Scopes:     scopes,
			TTL:        client.Config.AccessTTL(s.AccessTTL),
		})
		if err != nil {
			return "", err
		}

		params := url.Values{
			"access_token": {tok.ID.String()},
			"token_type":   {string(domain.TokenBearer)},
			"expires_in":   {expiresIn(tok.ExpiresIn)},
		}
		if state.ClientState != "" {
			params.Set("state", state.ClientState)
		}
		if len(tok.Scopes) > 0 {
			params.Set("scope", tok.Scope())
		}
		return redirectWith(redirect, params, true), nil
	}

	return "", fail(authsdk.ErrInvalidRequest.WithDescription("client type cannot use the authorization endpoint"))
}
