package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

type tokensRepo struct {
	q dbtx
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.OAuthToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO oauth_tokens (id, type, client_id, identity_id, scopes, expires_in, expires_at, created_at, auth_token_id, redirect_uri)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), string(t.Type), t.ClientID, mapStringNull(t.IdentityID), joinFields(t.Scopes),
		t.ExpiresIn, toMillis(t.ExpiresAt()), toMillis(t.CreatedAt),
		mapStringNull(idx.ToString(t.AuthTokenID)), mapStringNull(t.RedirectURI),
	)
	return mapConstraint(err)
}

func (r *tokensRepo) GetToken(ctx context.Context, id idx.SecureID) (domain.OAuthToken, error) {
	var (
		t                            domain.OAuthToken
		typ, scopes                  string
		identityID, authID, redirect sql.NullString
		createdAt                    int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT type, client_id, identity_id, scopes, expires_in, created_at, auth_token_id, redirect_uri
		 FROM oauth_tokens WHERE id = ?`, id.String(),
	).Scan(&typ, &t.ClientID, &identityID, &scopes, &t.ExpiresIn, &createdAt, &authID, &redirect)
	if err != nil {
		return domain.OAuthToken{}, mapNotFound(err)
	}

	t.ID = id
	t.Type = domain.TokenType(typ)
	t.IdentityID = mapNullString(identityID)
	t.Scopes = splitFields(scopes)
	t.CreatedAt = fromMillis(createdAt)
	t.RedirectURI = mapNullString(redirect)
	if t.AuthTokenID, err = idx.FromString(mapNullString(authID)); err != nil {
		return domain.OAuthToken{}, fmt.Errorf("token %s: %w", id, err)
	}
	return t, nil
}

func (r *tokensRepo) DeleteToken(ctx context.Context, id idx.SecureID) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *tokensRepo) TokenExists(ctx context.Context, id idx.SecureID) (bool, error) {
	return exists(ctx, r.q, `SELECT 1 FROM oauth_tokens WHERE id = ?`, id.String())
}

func (r *tokensRepo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
