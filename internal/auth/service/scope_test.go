package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

func TestResolveScopes(t *testing.T) {
	t.Parallel()

	available := []string{"one", "two"}

	got, err := ResolveScopes("  one\ttwo one ", available)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, got)

	got, err = ResolveScopes("", available)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = ResolveScopes("one three", available)
	require.ErrorIs(t, err, authsdk.ErrInvalidScope)
	require.Contains(t, err.Error(), "three")
}

func TestNarrowScopes(t *testing.T) {
	t.Parallel()

	role := domain.Role{Scopes: []string{"one"}}
	require.Equal(t, []string{"one"}, NarrowScopes([]string{"one", "two"}, role))
	require.Empty(t, NarrowScopes([]string{"two"}, role))
	require.Empty(t, NarrowScopes(nil, role))
}

func TestRequireValidRedirect(t *testing.T) {
	t.Parallel()

	one := []string{"https://a.example/cb"}
	two := []string{"https://a.example/cb", "https://b.example/cb"}

	u, err := RequireValidRedirect("", one)
	require.NoError(t, err)
	require.Equal(t, "https://a.example/cb", u.String())

	_, err = RequireValidRedirect("", two)
	require.ErrorIs(t, err, authsdk.ErrInvalidRequest)

	u, err = RequireValidRedirect("https://b.example/cb", two)
	require.NoError(t, err)
	require.Equal(t, "b.example", u.Host)

	// Exact match only: no prefix or trailing slash tolerance.
	_, err = RequireValidRedirect("https://a.example/cb/", one)
	require.ErrorIs(t, err, authsdk.ErrInvalidRequest)
	_, err = RequireValidRedirect("https://a.example/cb?x=1", one)
	require.ErrorIs(t, err, authsdk.ErrInvalidRequest)

	_, err = RequireValidRedirect("", nil)
	require.ErrorIs(t, err, authsdk.ErrInvalidRequest)
}

func TestValidateResponseTypeAndAuthenticator(t *testing.T) {
	t.Parallel()

	code := domain.Client{Type: domain.ClientAuthorizationGrant, Authenticators: []domain.ClientAuthenticator{{Type: "test"}}}
	require.NoError(t, ValidateResponseType(code, "code"))
	require.ErrorIs(t, ValidateResponseType(code, "token"), authsdk.ErrUnsupportedResponseType)
	require.ErrorIs(t, ValidateResponseType(domain.Client{Type: domain.ClientCredentials}, ""), authsdk.ErrUnsupportedResponseType)

	cfg, err := ValidateAuthenticator(code, "")
	require.NoError(t, err)
	require.Equal(t, "test", cfg.Type)

	_, err = ValidateAuthenticator(code, "oidc")
	require.ErrorIs(t, err, authsdk.ErrInvalidRequest)
}

func TestRedirectWithPreservesQuery(t *testing.T) {
	t.Parallel()

	u, err := RequireValidRedirect("https://a.example/cb?tenant=7", []string{"https://a.example/cb?tenant=7"})
	require.NoError(t, err)

	require.Equal(t, "https://a.example/cb?code=abc&tenant=7", redirectWith(u, map[string][]string{"code": {"abc"}}, false))
	require.Equal(t, "https://a.example/cb?tenant=7#access_token=abc", redirectWith(u, map[string][]string{"access_token": {"abc"}}, true))
}
