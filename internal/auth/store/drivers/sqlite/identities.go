package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type identitiesRepo struct {
	q dbtx
}

const identityColumns = `id, user_id, type, remote_id, password_hash, claims, created_at`

func scanIdentity(row interface{ Scan(...any) error }) (domain.UserIdentity, error) {
	var (
		i         domain.UserIdentity
		hash      sql.NullString
		claims    string
		createdAt int64
	)
	if err := row.Scan(&i.ID, &i.UserID, &i.Type, &i.RemoteID, &hash, &claims, &createdAt); err != nil {
		return domain.UserIdentity{}, mapNotFound(err)
	}

	var err error
	if i.Claims, err = decodeMap(claims); err != nil {
		return domain.UserIdentity{}, fmt.Errorf("decode identity %s claims: %w", i.ID, err)
	}
	i.PasswordHash = mapNullString(hash)
	i.CreatedAt = fromMillis(createdAt)
	return i, nil
}

func (r *identitiesRepo) GetIdentityByID(ctx context.Context, id string) (domain.UserIdentity, error) {
	return scanIdentity(r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM user_identities WHERE id = ?`, id))
}

func (r *identitiesRepo) GetIdentity(ctx context.Context, typ, remoteID string) (domain.UserIdentity, error) {
	return scanIdentity(r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM user_identities WHERE type = ? AND remote_id = ?`, typ, remoteID))
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, i domain.UserIdentity) error {
	claims, err := encodeMap(i.Claims)
	if err != nil {
		return fmt.Errorf("encode identity claims: %w", err)
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO user_identities (id, user_id, type, remote_id, password_hash, claims, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.UserID, i.Type, i.RemoteID, mapStringNull(i.PasswordHash), claims, toMillis(i.CreatedAt),
	)
	return mapConstraint(err)
}
