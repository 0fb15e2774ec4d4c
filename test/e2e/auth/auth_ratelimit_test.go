//go:build e2e

package auth_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitTokenEndpoint verifies that /token is rate limited.
// This endpoint has strict limits (5 req/min) to prevent brute force attacks.
func TestRateLimitTokenEndpoint(t *testing.T) {
	baseURL := setupAuthContainerWithDefaultRateLimits(t)
	cli := authsdk.NewClient(baseURL, cliClientID, cliClientSecret)

	// The first 5 fail on credentials, the 6th on the limit.
	var lastErr error
	for i := range 6 {
		_, err := cli.Password(t.Context(), "wronguser", "wrongpass")
		require.Error(t, err)

		var oe *authsdk.OAuth2Error
		require.True(t, errors.As(err, &oe))
		if i < 5 {
			require.NotEqual(t, http.StatusTooManyRequests, oe.StatusCode, "Should not be rate limited yet (request %d)", i+1)
		}
		lastErr = err
	}

	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, lastErr, &oe)
	require.Equal(t, http.StatusTooManyRequests, oe.StatusCode, "Should be rate limited after 5 requests")
}

// TestRateLimitHealthEndpoint verifies the health endpoint has a high limit.
func TestRateLimitHealthEndpoint(t *testing.T) {
	baseURL := setupAuthContainerWithDefaultRateLimits(t)
	client := authsdk.NewClient(baseURL, "", "")

	for i := range 50 {
		_, err := client.Health(t.Context())
		require.NoError(t, err, "request %d should not be rate limited", i+1)
	}
}
