//go:build e2e

package auth_test

import (
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

var formAction = regexp.MustCompile(`action="([^"]+)"`)

// TestAuthorizationCodeWithTestAuthenticator runs the interactive flow with
// the test authenticator and redeems the code.
func TestAuthorizationCodeWithTestAuthenticator(t *testing.T) {
	baseURL := setupAuthContainer(t)
	web := authsdk.NewClient(baseURL, webClientID, webClientSecret)

	final := authorizeWithTest(t, baseURL, web, authsdk.AuthorizeParams{
		ResponseType:  "code",
		Scope:         "profile:read",
		State:         "opaque-123",
		Authenticator: "test",
	}, "bob")
	require.Equal(t, "localhost", final.Hostname())
	require.Equal(t, "/callback", final.Path)
	require.Equal(t, "opaque-123", final.Query().Get("state"))

	code := final.Query().Get("code")
	require.NotEmpty(t, code)

	pair, err := web.ExchangeCode(t.Context(), code, webRedirect)
	require.NoError(t, err)
	assertTokenResponse(t, pair)
	require.Equal(t, "profile:read", pair.Scope)

	info, err := web.UserInfo(t.Context(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "test", info.IdentityType)
	require.Equal(t, "bob", info.Claims["login"])
	require.Equal(t, "user", info.Role, "new users get the default role")

	// Codes are single use.
	_, err = web.ExchangeCode(t.Context(), code, webRedirect)
	assertOAuth2Error(t, err, authsdk.ErrorCodeInvalidGrant, http.StatusBadRequest)
}

// TestAuthorizationCodeWithPasswordForm drives the password login form.
func TestAuthorizationCodeWithPasswordForm(t *testing.T) {
	baseURL := setupAuthContainer(t)
	web := authsdk.NewClient(baseURL, webClientID, webClientSecret)

	resp, err := noRedirectClient().Get(web.AuthorizeURL(authsdk.AuthorizeParams{
		ResponseType:  "code",
		Authenticator: "password",
	}))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	m := formAction.FindSubmatch(body)
	require.Len(t, m, 2, "login form should post back to the callback")
	action, err := url.Parse(html.UnescapeString(string(m[1])))
	require.NoError(t, err)

	post, err := noRedirectClient().PostForm(rebase(baseURL, action), url.Values{
		"username": {adminUsername},
		"password": {adminPassword},
	})
	require.NoError(t, err)
	_ = post.Body.Close()
	require.Equal(t, http.StatusSeeOther, post.StatusCode)

	final, err := post.Location()
	require.NoError(t, err)

	pair, err := web.ExchangeCode(t.Context(), final.Query().Get("code"), webRedirect)
	require.NoError(t, err)
	require.Contains(t, pair.Scope, "admin:write")
}

// TestImplicitFlow verifies that implicit clients receive the access token in
// the fragment and never a refresh token.
func TestImplicitFlow(t *testing.T) {
	baseURL := setupAuthContainer(t)
	spa := authsdk.NewClient(baseURL, spaClientID, "")

	final := authorizeWithTest(t, baseURL, spa, authsdk.AuthorizeParams{
		ResponseType: "token",
		State:        "s",
	}, "")
	require.Equal(t, "/spa", final.Path)
	require.Empty(t, final.RawQuery)

	frag, err := url.ParseQuery(final.Fragment)
	require.NoError(t, err)
	require.NotEmpty(t, frag.Get("access_token"))
	require.Equal(t, "Bearer", frag.Get("token_type"))
	require.Equal(t, "s", frag.Get("state"))
	require.Empty(t, frag.Get("refresh_token"))

	info, err := spa.UserInfo(t.Context(), frag.Get("access_token"))
	require.NoError(t, err)
	require.Equal(t, spaClientID, info.ClientID)
}
