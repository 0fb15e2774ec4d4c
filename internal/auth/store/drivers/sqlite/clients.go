package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type clientsRepo struct {
	q dbtx
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	var (
		c                              domain.Client
		typ                            string
		secret                         sql.NullString
		redirects, referrers, scopes   string
		codeTTL, accessTTL, refreshTTL int64
		createdAt                      int64
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, application_id, name, type, secret_hash, redirect_uris, referrer_uris, scopes,
		       code_ttl_sec, access_ttl_sec, refresh_ttl_sec, created_at
		FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.ApplicationID, &c.Name, &typ, &secret, &redirects, &referrers, &scopes,
		&codeTTL, &accessTTL, &refreshTTL, &createdAt)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}

	c.Type = domain.ClientType(typ)
	c.SecretHash = mapNullString(secret)
	c.RedirectURIs = splitFields(redirects)
	c.ReferrerURIs = splitFields(referrers)
	c.Scopes = splitFields(scopes)
	c.Config = domain.ClientConfig{
		AuthorizationCodeTTL: time.Duration(codeTTL) * time.Second,
		AccessTokenTTL:       time.Duration(accessTTL) * time.Second,
		RefreshTokenTTL:      time.Duration(refreshTTL) * time.Second,
	}
	c.CreatedAt = fromMillis(createdAt)

	c.Authenticators, err = r.listAuthenticators(ctx, c.ID)
	if err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (r *clientsRepo) listAuthenticators(ctx context.Context, clientID string) ([]domain.ClientAuthenticator, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, client_id, type, config FROM client_authenticators WHERE client_id = ? ORDER BY id`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ClientAuthenticator
	for rows.Next() {
		var (
			a   domain.ClientAuthenticator
			cfg string
		)
		if err := rows.Scan(&a.ID, &a.ClientID, &a.Type, &cfg); err != nil {
			return nil, err
		}
		if a.Config, err = decodeMap(cfg); err != nil {
			return nil, fmt.Errorf("decode authenticator %s config: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateClient should run inside a transaction so the client and its
// authenticators land together.
func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO clients (id, application_id, name, type, secret_hash, redirect_uris, referrer_uris, scopes,
		                     code_ttl_sec, access_ttl_sec, refresh_ttl_sec, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ApplicationID, c.Name, string(c.Type), mapStringNull(c.SecretHash),
		joinFields(c.RedirectURIs), joinFields(c.ReferrerURIs), joinFields(c.Scopes),
		int64(c.Config.AuthorizationCodeTTL.Seconds()),
		int64(c.Config.AccessTokenTTL.Seconds()),
		int64(c.Config.RefreshTokenTTL.Seconds()),
		toMillis(c.CreatedAt),
	)
	if err != nil {
		return mapConstraint(err)
	}

	for _, a := range c.Authenticators {
		cfg, err := encodeMap(a.Config)
		if err != nil {
			return fmt.Errorf("encode authenticator %s config: %w", a.Type, err)
		}
		_, err = r.q.ExecContext(ctx,
			`INSERT INTO client_authenticators (id, client_id, type, config) VALUES (?, ?, ?, ?)`,
			a.ID, c.ID, a.Type, cfg,
		)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}
