//go:build e2e

package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLoginUserInfo tests the complete flow:
// 1. Login with password grant
// 2. Fetch user info with access token
func TestLoginUserInfo(t *testing.T) {
	baseURL := setupAuthContainer(t)
	cli := authsdk.NewClient(baseURL, cliClientID, cliClientSecret)

	pair, err := cli.Password(t.Context(), adminUsername, adminPassword)
	require.NoError(t, err)

	userInfo, err := cli.UserInfo(t.Context(), pair.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, userInfo.UserID)
	require.NotEmpty(t, userInfo.Sub)
	require.Equal(t, cliClientID, userInfo.ClientID)
	require.Equal(t, "admin", userInfo.Role)
	require.Equal(t, "password", userInfo.IdentityType)
	require.Equal(t, pair.Scope, userInfo.Scope)

	t.Logf("UserInfo: sub=%s, user_id=%s, role=%s", userInfo.Sub, userInfo.UserID, userInfo.Role)
}
