package authsdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestClientTokenRequests(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","token_type":"Bearer","expires_in":3600,"refresh_token":"r","scope":"read"}`))
	}))
	t.Cleanup(srv.Close)

	c := authsdk.NewClient(srv.URL+"/", "web", "s3cret")
	ctx := context.Background()

	tok, err := c.Password(ctx, "alice", "pw", "read")
	require.NoError(t, err)
	require.Equal(t, "a", tok.AccessToken)
	require.Equal(t, "r", tok.RefreshToken)
	require.EqualValues(t, 3600, tok.ExpiresIn)
	require.Equal(t, "password", got.Get("grant_type"))
	require.Equal(t, "web", got.Get("client_id"))
	require.Equal(t, "s3cret", got.Get("client_secret"))
	require.Equal(t, "read", got.Get("scope"))

	_, err = c.ClientCredentials(ctx)
	require.NoError(t, err)
	require.Equal(t, "client_credentials", got.Get("grant_type"))
	_, hasScope := got["scope"]
	require.False(t, hasScope)

	_, err = c.ExchangeCode(ctx, "code-1", "https://app.example/cb")
	require.NoError(t, err)
	require.Equal(t, "code-1", got.Get("code"))
	require.Equal(t, "https://app.example/cb", got.Get("redirect_uri"))

	_, err = c.Refresh(ctx, "r")
	require.NoError(t, err)
	require.Equal(t, "refresh_token", got.Get("grant_type"))
}

func TestClientDecodesOAuth2Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authsdk.ErrInvalidGrant.WithDescription("code already used").WriteError(w)
	}))
	t.Cleanup(srv.Close)

	_, err := authsdk.NewClient(srv.URL, "web", "").ExchangeCode(context.Background(), "x", "")

	var oerr *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, http.StatusBadRequest, oerr.StatusCode)
	require.Equal(t, "code already used", oerr.Description)
	require.True(t, errors.Is(err, authsdk.ErrInvalidGrant))
	require.False(t, errors.Is(err, authsdk.ErrInvalidClient))
}

func TestClientNonOAuthErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := authsdk.NewClient(srv.URL, "web", "").Health(context.Background())
	require.ErrorIs(t, err, authsdk.ErrServerError)
}

func TestAuthorizeURL(t *testing.T) {
	c := authsdk.NewClient("https://auth.example", "spa", "")
	raw := c.AuthorizeURL(authsdk.AuthorizeParams{
		ResponseType:  "token",
		RedirectURI:   "https://spa.example/cb",
		State:         "xyz",
		Authenticator: "test",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/authorize", u.Path)
	q := u.Query()
	require.Equal(t, "token", q.Get("response_type"))
	require.Equal(t, "spa", q.Get("client_id"))
	require.Equal(t, "xyz", q.Get("state"))
	require.Equal(t, "test", q.Get("authenticator"))
	require.False(t, q.Has("scope"))
}
