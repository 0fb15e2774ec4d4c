//go:build e2e

package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestPasswordGrantAndRefresh walks a token pair through its lifetime:
// 1. Password grant for a user
// 2. Refresh issues a new pair
// 3. The old refresh token is spent
// 4. A narrower scope can be requested on refresh
func TestPasswordGrantAndRefresh(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()
	cli := authsdk.NewClient(baseURL, cliClientID, cliClientSecret)

	pair, err := cli.Password(ctx, userUsername, userPassword)
	require.NoError(t, err)
	assertTokenResponse(t, pair)
	require.Equal(t, "profile:read profile:write", pair.Scope)

	next, err := cli.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, next)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = cli.Refresh(ctx, pair.RefreshToken)
	assertOAuth2Error(t, err, authsdk.ErrorCodeInvalidGrant, http.StatusBadRequest)
}

// TestPasswordGrantRoleLimitsScope verifies that a user never receives
// scopes beyond their role.
func TestPasswordGrantRoleLimitsScope(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()
	cli := authsdk.NewClient(baseURL, cliClientID, cliClientSecret)

	user, err := cli.Password(ctx, userUsername, userPassword, "profile:read", "admin:write")
	require.NoError(t, err)
	require.Equal(t, "profile:read", user.Scope)
	assertScopeNotGranted(t, user.Scope, "admin:write")

	admin, err := cli.Password(ctx, adminUsername, adminPassword, "profile:read", "admin:write")
	require.NoError(t, err)
	require.Equal(t, "profile:read admin:write", admin.Scope)
}

// TestRefreshTokenBelongsToClient verifies that one client cannot spend
// another client's refresh token.
func TestRefreshTokenBelongsToClient(t *testing.T) {
	baseURL := setupAuthContainer(t)
	ctx := t.Context()

	pair, err := authsdk.NewClient(baseURL, cliClientID, cliClientSecret).Password(ctx, userUsername, userPassword)
	require.NoError(t, err)

	_, err = authsdk.NewClient(baseURL, webClientID, webClientSecret).Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
}
