package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// Default lifetimes used when a client does not override them.
const (
	DefaultCodeTTL    = 10 * time.Minute
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	DefaultStateTTL   = 10 * time.Minute
)

// issueParams describes one token to mint.
type issueParams struct {
	Type        domain.TokenType
	ClientID    string
	IdentityID  string
	Scopes      []string
	TTL         time.Duration
	AuthTokenID *idx.SecureID
	RedirectURI string
}

// issueToken persists a new token with a fresh id. st is expected to be the
// caller's transaction.
func issueToken(ctx context.Context, st store.Store, ids *idx.Generator, p issueParams) (domain.OAuthToken, error) {
	id, err := ids.NextUnique(ctx, idx.ExistenceFunc(st.Tokens().TokenExists))
	if err != nil {
		return domain.OAuthToken{}, fmt.Errorf("generate token id: %w", err)
	}

	tok := domain.OAuthToken{
		ID:          id,
		Type:        p.Type,
		ClientID:    p.ClientID,
		IdentityID:  p.IdentityID,
		Scopes:      p.Scopes,
		ExpiresIn:   int64(p.TTL / time.Second),
		CreatedAt:   time.Now().UTC(),
		AuthTokenID: p.AuthTokenID,
		RedirectURI: p.RedirectURI,
	}
	if err := st.Tokens().CreateToken(ctx, tok); err != nil {
		return domain.OAuthToken{}, fmt.Errorf("create token: %w", err)
	}

	slogx.FromContext(ctx).Debug("token issued",
		"type", string(tok.Type),
		"client_id", tok.ClientID,
		"token", cryptox.FingerprintToken(tok.ID.String()),
	)
	return tok, nil
}

// Resolve loads a token by its string id.
func (s *TokenService) Resolve(ctx context.Context, raw string) (domain.OAuthToken, error) {
	id, err := idx.FromString(raw)
	if err != nil || id == nil {
		return domain.OAuthToken{}, ErrTokenNotFound
	}

	tok, err := s.Store.Tokens().GetToken(ctx, *id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.OAuthToken{}, ErrTokenNotFound
	}
	if err != nil {
		return domain.OAuthToken{}, err
	}
	return tok, nil
}

// Introspect reports the state of any token (RFC 7662). Unknown, expired and
// unreadable tokens are all simply inactive.
func (s *TokenService) Introspect(ctx context.Context, raw string) authsdk.IntrospectionResponse {
	l := slogx.FromContext(ctx)

	tok, err := s.Resolve(ctx, raw)
	if err != nil {
		if !errors.Is(err, ErrTokenNotFound) {
			l.Error("introspect: token lookup failed", "err", err)
		}
		return authsdk.IntrospectionResponse{Active: false}
	}
	if tok.IsExpired() {
		return authsdk.IntrospectionResponse{Active: false}
	}

	resp := authsdk.IntrospectionResponse{
		Active:    true,
		Scope:     tok.Scope(),
		ClientID:  tok.ClientID,
		TokenType: string(tok.Type),
		Exp:       tok.ExpiresAt().Unix(),
		Iat:       tok.CreatedAt.Unix(),
		Sub:       tok.IdentityID,
	}
	if resp.Sub == "" {
		resp.Sub = tok.ClientID
	}
	return resp
}

// IntrospectFor is Introspect on behalf of an authenticated caller. Public
// clients prove nothing beyond their id, so they only see their own tokens.
func (s *TokenService) IntrospectFor(ctx context.Context, caller domain.Client, raw string) authsdk.IntrospectionResponse {
	resp := s.Introspect(ctx, raw)
	if resp.Active && !caller.Confidential() && resp.ClientID != caller.ID {
		slogx.FromContext(ctx).Warn("introspect: public client asked about another client's token",
			"client_id", caller.ID,
		)
		return authsdk.IntrospectionResponse{Active: false}
	}
	return resp
}

// Revoke deletes a token owned by clientID (RFC 7009). Unknown tokens and
// tokens of other clients are ignored. Revoking a refresh token also revokes
// the access token issued with it.
func (s *TokenService) Revoke(ctx context.Context, clientID, raw string) error {
	l := slogx.FromContext(ctx)

	tok, err := s.Resolve(ctx, raw)
	if errors.Is(err, ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if tok.ClientID != clientID {
		l.Warn("revoke: token belongs to another client", "client_id", clientID)
		return nil
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Tokens().DeleteToken(ctx, tok.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if tok.Type == domain.TokenRefresh && tok.AuthTokenID != nil {
			if err := tx.Tokens().DeleteToken(ctx, *tok.AuthTokenID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		l.Info("token revoked",
			"client_id", clientID,
			"type", string(tok.Type),
			"token", cryptox.FingerprintToken(tok.ID.String()),
		)
		return nil
	})
}

// Validate checks that raw is a live bearer token carrying every scope.
func (s *TokenService) Validate(ctx context.Context, raw string, scopes ...string) (domain.OAuthToken, error) {
	tok, err := s.Resolve(ctx, raw)
	if err != nil {
		return domain.OAuthToken{}, err
	}
	if tok.Type != domain.TokenBearer {
		return domain.OAuthToken{}, ErrTokenNotFound
	}
	if tok.IsExpired() {
		return domain.OAuthToken{}, ErrTokenExpired
	}
	for _, sc := range scopes {
		if !tok.HasScope(sc) {
			return domain.OAuthToken{}, ErrInsufficientScope
		}
	}
	return tok, nil
}

// ValidateBearer adapts Validate to httpx.RequireBearer.
func (s *TokenService) ValidateBearer(ctx context.Context, raw string, scopes ...string) (httpx.Principal, error) {
	tok, err := s.Validate(ctx, raw, scopes...)
	switch {
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
		return httpx.Principal{}, httpx.ErrInvalidToken
	case errors.Is(err, ErrInsufficientScope):
		return httpx.Principal{}, httpx.ErrInsufficientScope
	case err != nil:
		return httpx.Principal{}, err
	}

	return httpx.Principal{
		TokenID:    tok.ID.String(),
		ClientID:   tok.ClientID,
		IdentityID: tok.IdentityID,
		Scopes:     tok.Scopes,
	}, nil
}

// UserInfo describes the owner of a validated bearer token.
func (s *TokenService) UserInfo(ctx context.Context, p httpx.Principal) (authsdk.UserInfoResponse, error) {
	resp := authsdk.UserInfoResponse{
		Sub:      p.ClientID,
		ClientID: p.ClientID,
		Scope:    (domain.OAuthToken{Scopes: p.Scopes}).Scope(),
	}
	if p.IdentityID == "" {
		return resp, nil
	}

	ident, err := s.Store.Identities().GetIdentityByID(ctx, p.IdentityID)
	if err != nil {
		return authsdk.UserInfoResponse{}, fmt.Errorf("load identity: %w", err)
	}
	user, err := s.Store.Users().GetUserByID(ctx, ident.UserID)
	if err != nil {
		return authsdk.UserInfoResponse{}, fmt.Errorf("load user: %w", err)
	}
	role, err := s.Store.Roles().GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return authsdk.UserInfoResponse{}, fmt.Errorf("load role: %w", err)
	}

	resp.Sub = ident.ID
	resp.UserID = user.ID
	resp.Role = role.Name
	resp.IdentityType = ident.Type
	resp.Claims = ident.Claims
	return resp, nil
}
