//go:build e2e

package auth_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	baseURL := setupAuthContainer(t)

	health, err := authsdk.NewClient(baseURL, "", "").Health(t.Context())
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)
}

// TestReadyzEndpoint verifies the readiness check endpoint.
func TestReadyzEndpoint(t *testing.T) {
	baseURL := setupAuthContainer(t)

	resp, err := http.Get(baseURL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assertHealthy(t, &health, nil)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
}

// TestSwaggerDocs verifies that the API description is served.
func TestSwaggerDocs(t *testing.T) {
	baseURL := setupAuthContainer(t)

	resp, err := http.Get(baseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
