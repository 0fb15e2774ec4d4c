package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live, err := f.tokens.IDs.Next()
	require.NoError(t, err)
	dead, err := f.tokens.IDs.Next()
	require.NoError(t, err)
	for id, age := range map[idx.SecureID]time.Duration{live: 0, dead: time.Hour} {
		require.NoError(t, f.st.Tokens().CreateToken(ctx, domain.OAuthToken{
			ID: id, Type: domain.TokenBearer, ClientID: serviceClient, ExpiresIn: 60, CreatedAt: now.Add(-age),
		}))
	}

	fresh, err := f.tokens.IDs.Next()
	require.NoError(t, err)
	stale, err := f.tokens.IDs.Next()
	require.NoError(t, err)
	require.NoError(t, f.st.States().CreateState(ctx, domain.AuthenticatorState{ID: fresh, ClientID: implicitClient, Authenticator: "test", RedirectURI: implicitRedirect, CreatedAt: now}))
	require.NoError(t, f.st.States().CreateState(ctx, domain.AuthenticatorState{ID: stale, ClientID: implicitClient, Authenticator: "test", RedirectURI: implicitRedirect, CreatedAt: now.Add(-time.Hour)}))

	hk := NewHousekeepingService(f.st, slogx.Discard(), time.Hour, 10*time.Minute)
	hk.Cleanup(ctx)

	ok, err := f.st.Tokens().TokenExists(ctx, live)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.st.Tokens().TokenExists(ctx, dead)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.st.States().StateExists(ctx, fresh)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.st.States().StateExists(ctx, stale)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	hk := NewHousekeepingService(f.st, slogx.Discard(), 0, 0)
	require.Equal(t, time.Hour, hk.Interval)
	require.Equal(t, DefaultStateTTL, hk.StateTTL)

	hk.Start()
	hk.Stop()
}
