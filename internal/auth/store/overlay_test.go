package store_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestWithStatesOverridesInsideTransactions(t *testing.T) {
	ctx := context.Background()

	base, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })
	require.NoError(t, base.ApplyMigrations())

	mr := miniredis.RunT(t)
	states, err := redis.NewStates(ctx, redis.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = states.Close() })

	st := store.WithStates(base, states)
	require.Same(t, states, st.States())

	id, err := idx.NewGenerator(rand.Reader).Next()
	require.NoError(t, err)

	// No client row exists; the redis backend has no foreign keys to trip.
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		require.Same(t, states, tx.States())
		return tx.States().CreateState(ctx, domain.AuthenticatorState{
			ID: id, ClientID: "c", Authenticator: "test", RedirectURI: "https://x/cb", CreatedAt: time.Now(),
		})
	}))

	// The sqlite table never saw it.
	found, err := base.States().StateExists(ctx, id)
	require.NoError(t, err)
	require.False(t, found)

	tx, err := st.Tx(ctx)
	require.NoError(t, err)
	got, err := tx.States().TakeState(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "c", got.ClientID)
	require.NoError(t, tx.Rollback())
}

func TestWithStatesTxCommitsAndRollsBackBase(t *testing.T) {
	ctx := context.Background()

	base, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })
	require.NoError(t, base.ApplyMigrations())

	mr := miniredis.RunT(t)
	states, err := redis.NewStates(ctx, redis.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = states.Close() })

	st := store.WithStates(base, states)

	var tx store.Tx
	tx, err = st.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Applications().CreateApplication(ctx, domain.Application{
		ID: "kept", Name: "kept", CreatedAt: time.Now(),
	}))
	require.NoError(t, tx.Commit())

	tx, err = st.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Applications().CreateApplication(ctx, domain.Application{
		ID: "dropped", Name: "dropped", CreatedAt: time.Now(),
	}))
	require.NoError(t, tx.Rollback())

	_, err = base.Applications().GetApplicationByID(ctx, "kept")
	require.NoError(t, err)
	_, err = base.Applications().GetApplicationByID(ctx, "dropped")
	require.ErrorIs(t, err, store.ErrNotFound)
}
