package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the owning Store keeps the database open.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) ApplyMigrations() error { return nil }

// Tx and WithTx refuse to nest. SAVEPOINTs could emulate it if ever needed.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Applications() store.Applications { return &applicationsRepo{q: t.tx} }
func (t *txStore) Clients() store.Clients           { return &clientsRepo{q: t.tx} }
func (t *txStore) Roles() store.Roles               { return &rolesRepo{q: t.tx} }
func (t *txStore) Users() store.Users               { return &usersRepo{q: t.tx} }
func (t *txStore) Identities() store.Identities     { return &identitiesRepo{q: t.tx} }
func (t *txStore) States() store.States             { return &statesRepo{q: t.tx} }
func (t *txStore) Tokens() store.Tokens             { return &tokensRepo{q: t.tx} }
