package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/authenticator"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// PasswordVerifier checks local username/password credentials.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, st store.Store, app domain.Application, username, password string) (domain.UserIdentity, error)
}

// TokenService implements the token endpoint grants and the token lifecycle
// (resolve, introspect, revoke, validate).
type TokenService struct {
	Store     store.Store
	Hasher    *cryptox.Hasher
	Passwords PasswordVerifier
	IDs       *idx.Generator

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenRequest is the parsed form of a token endpoint call.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
	Username     string
	Password     string
	Scope        string
}

// Exchange dispatches on the grant type. Returned errors are
// *authsdk.OAuth2Error values except for store failures.
func (s *TokenService) Exchange(ctx context.Context, req TokenRequest) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	grant := domain.GrantType(strings.TrimSpace(req.GrantType))
	switch grant {
	case "":
		return nil, authsdk.ErrInvalidRequest.WithDescription("grant_type is required")
	case domain.GrantAuthorizationCode, domain.GrantClientCredentials,
		domain.GrantPassword, domain.GrantOwnerCredentials, domain.GrantRefreshToken:
	default:
		return nil, authsdk.ErrUnsupportedGrantType
	}

	client, err := s.AuthenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if grant == domain.GrantClientCredentials && !client.Confidential() {
		return nil, authsdk.ErrInvalidClient.WithDescription("client_credentials requires a confidential client")
	}
	if !client.Type.Allows(grant) {
		l.Info("grant not allowed for client type",
			slog.String("client_id", client.ID),
			slog.String("client_type", string(client.Type)),
			slog.String("grant_type", string(grant)),
		)
		return nil, authsdk.ErrUnauthorizedClient
	}

	var pair *domain.TokenPair
	switch grant {
	case domain.GrantClientCredentials:
		pair, err = s.clientCredentials(ctx, client, req)
	case domain.GrantPassword, domain.GrantOwnerCredentials:
		pair, err = s.password(ctx, client, req)
	case domain.GrantAuthorizationCode:
		pair, err = s.authorizationCode(ctx, client, req)
	case domain.GrantRefreshToken:
		pair, err = s.refresh(ctx, client, req)
	}
	if err != nil {
		return nil, err
	}

	l.Info("token granted",
		slog.String("grant_type", string(grant)),
		slog.String("client_id", client.ID),
		slog.String("token", cryptox.FingerprintToken(pair.Access.ID.String())),
	)
	return pair, nil
}

// AuthenticateClient resolves the client and checks its secret when it has
// one. Public clients authenticate with their id alone.
func (s *TokenService) AuthenticateClient(ctx context.Context, clientID, secret string) (domain.Client, error) {
	if clientID == "" {
		return domain.Client{}, authsdk.ErrInvalidClient.WithDescription("client_id is required")
	}

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, authsdk.ErrInvalidClient
	}
	if err != nil {
		return domain.Client{}, err
	}

	if client.Confidential() {
		if secret == "" || s.Hasher.Verify(secret, client.SecretHash) != nil {
			slogx.FromContext(ctx).Info("client authentication failed", slog.String("client_id", clientID))
			return domain.Client{}, authsdk.ErrInvalidClient
		}
	}
	return client, nil
}

func (s *TokenService) clientCredentials(ctx context.Context, client domain.Client, req TokenRequest) (*domain.TokenPair, error) {
	app, err := s.Store.Applications().GetApplicationByID(ctx, client.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}

	requested, err := ResolveScopes(req.Scope, app.Scopes)
	if err != nil {
		return nil, err
	}

	scopes := client.Scopes
	if len(requested) > 0 {
		scopes = intersect(requested, client.Scopes)
		if len(scopes) == 0 {
			return nil, authsdk.ErrInvalidScope.WithDescription("no requested scope is granted to this client")
		}
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		access, err := issueToken(ctx, tx, s.IDs, issueParams{
			Type:     domain.TokenBearer,
			ClientID: client.ID,
			Scopes:   scopes,
			TTL:      client.Config.AccessTTL(s.AccessTTL),
		})
		if err != nil {
			return err
		}
		pair.Access = access
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *TokenService) password(ctx context.Context, client domain.Client, req TokenRequest) (*domain.TokenPair, error) {
	app, err := s.Store.Applications().GetApplicationByID(ctx, client.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}

	requested, err := ResolveScopes(req.Scope, app.Scopes)
	if err != nil {
		return nil, err
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ident, err := s.Passwords.VerifyPassword(ctx, tx, app, req.Username, req.Password)
		if errors.Is(err, authenticator.ErrInvalidCredentials) {
			return authsdk.ErrInvalidGrant.WithDescription("invalid username or password")
		}
		if err != nil {
			return err
		}

		role, err := identityRole(ctx, tx, ident)
		if err != nil {
			return err
		}

		// No explicit request means everything the role grants within the
		// application.
		scopes := NarrowScopes(requested, role)
		if len(requested) == 0 {
			scopes = intersect(role.Scopes, app.Scopes)
		}

		pair, err = s.issuePair(ctx, tx, client, ident.ID, scopes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) authorizationCode(ctx context.Context, client domain.Client, req TokenRequest) (*domain.TokenPair, error) {
	id, err := idx.FromString(strings.TrimSpace(req.Code))
	if err != nil || id == nil {
		return nil, authsdk.ErrInvalidGrant.WithDescription("code is missing or malformed")
	}

	redirect, err := RequireValidRedirect(req.RedirectURI, client.RedirectURIs)
	if err != nil {
		return nil, authsdk.ErrInvalidGrant.WithDescription("redirect_uri does not match")
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		code, err := tx.Tokens().GetToken(ctx, *id)
		if errors.Is(err, store.ErrNotFound) {
			return authsdk.ErrInvalidGrant
		}
		if err != nil {
			return err
		}

		if code.Type != domain.TokenAuthorization || code.ClientID != client.ID {
			return authsdk.ErrInvalidGrant
		}
		if code.IsExpired() {
			return authsdk.ErrInvalidGrant.WithDescription("code expired")
		}
		if code.RedirectURI != redirect.String() {
			return authsdk.ErrInvalidGrant.WithDescription("redirect_uri does not match")
		}

		// Deleting first makes a concurrent redemption of the same code fail.
		if err := tx.Tokens().DeleteToken(ctx, code.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return authsdk.ErrInvalidGrant
			}
			return err
		}

		pair, err = s.issuePair(ctx, tx, client, code.IdentityID, code.Scopes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) refresh(ctx context.Context, client domain.Client, req TokenRequest) (*domain.TokenPair, error) {
	id, err := idx.FromString(strings.TrimSpace(req.RefreshToken))
	if err != nil || id == nil {
		return nil, authsdk.ErrInvalidGrant.WithDescription("refresh_token is missing or malformed")
	}

	var pair *domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		old, err := tx.Tokens().GetToken(ctx, *id)
		if errors.Is(err, store.ErrNotFound) {
			return authsdk.ErrInvalidGrant
		}
		if err != nil {
			return err
		}

		if old.Type != domain.TokenRefresh || old.ClientID != client.ID {
			return authsdk.ErrInvalidGrant
		}
		if old.IsExpired() {
			return authsdk.ErrInvalidGrant.WithDescription("refresh token expired")
		}

		// A narrower scope may be requested, never a wider one.
		scopes := old.Scopes
		if req.Scope != "" {
			scopes, err = ResolveScopes(req.Scope, old.Scopes)
			if err != nil {
				return err
			}
		}

		ident, err := tx.Identities().GetIdentityByID(ctx, old.IdentityID)
		if errors.Is(err, store.ErrNotFound) {
			return authsdk.ErrInvalidGrant
		}
		if err != nil {
			return err
		}
		role, err := identityRole(ctx, tx, ident)
		if err != nil {
			return err
		}

		if err := tx.Tokens().DeleteToken(ctx, old.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return authsdk.ErrInvalidGrant
			}
			return err
		}

		pair, err = s.issuePair(ctx, tx, client, old.IdentityID, NarrowScopes(scopes, role))
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// issuePair mints a bearer token and a refresh token linked to it.
func (s *TokenService) issuePair(ctx context.Context, tx store.Store, client domain.Client, identityID string, scopes []string) (*domain.TokenPair, error) {
	access, err := issueToken(ctx, tx, s.IDs, issueParams{
		Type:       domain.TokenBearer,
		ClientID:   client.ID,
		IdentityID: identityID,
		Scopes:     scopes,
		TTL:        client.Config.AccessTTL(s.AccessTTL),
	})
	if err != nil {
		return nil, err
	}

	refresh, err := issueToken(ctx, tx, s.IDs, issueParams{
		Type:        domain.TokenRefresh,
		ClientID:    client.ID,
		IdentityID:  identityID,
		Scopes:      scopes,
		TTL:         client.Config.RefreshTTL(s.RefreshTTL),
		AuthTokenID: &access.ID,
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{Access: access, Refresh: &refresh}, nil
}

// identityRole loads the role of the user behind ident.
func identityRole(ctx context.Context, st store.Store, ident domain.UserIdentity) (domain.Role, error) {
	user, err := st.Users().GetUserByID(ctx, ident.UserID)
	if err != nil {
		return domain.Role{}, fmt.Errorf("load user: %w", err)
	}
	role, err := st.Roles().GetRoleByID(ctx, user.RoleID)
	if err != nil {
		return domain.Role{}, fmt.Errorf("load role: %w", err)
	}
	return role, nil
}
