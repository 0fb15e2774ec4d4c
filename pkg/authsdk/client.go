package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a gatehouse server on behalf of one registered client.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	ClientID     string
	ClientSecret string // empty for public clients
}

// NewClient returns a Client with a 10 second HTTP timeout.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		BaseURL:      strings.TrimSuffix(baseURL, "/"),
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// AuthorizeParams are the query parameters of an /authorize request.
type AuthorizeParams struct {
	ResponseType  string // "code" or "token"
	RedirectURI   string
	Scope         string
	State         string
	Authenticator string
}

// AuthorizeURL builds the URL to send the user agent to.
func (c *Client) AuthorizeURL(p AuthorizeParams) string {
	q := url.Values{
		"response_type": {p.ResponseType},
		"client_id":     {c.ClientID},
		"authenticator": {p.Authenticator},
	}
	if p.RedirectURI != "" {
		q.Set("redirect_uri", p.RedirectURI)
	}
	if p.Scope != "" {
		q.Set("scope", p.Scope)
	}
	if p.State != "" {
		q.Set("state", p.State)
	}
	return c.BaseURL + "/authorize?" + q.Encode()
}

// ClientCredentials runs the client_credentials grant. No refresh token is
// issued.
func (c *Client) ClientCredentials(ctx context.Context, scopes ...string) (*TokenResponse, error) {
	return c.token(ctx, url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {strings.Join(scopes, " ")},
	})
}

// Password runs the resource owner password grant.
func (c *Client) Password(ctx context.Context, username, password string, scopes ...string) (*TokenResponse, error) {
	return c.token(ctx, url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
		"scope":      {strings.Join(scopes, " ")},
	})
}

// ExchangeCode redeems an authorization code. redirectURI must equal the one
// sent to /authorize.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return c.token(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	})
}

// Refresh trades a refresh token for a new pair. The old refresh token stops
// working.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

// Introspect reports whether token is active.
func (c *Client) Introspect(ctx context.Context, token string) (*IntrospectionResponse, error) {
	var out IntrospectionResponse
	if err := c.postForm(ctx, "/introspect", url.Values{"token": {token}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Revoke deletes token. Unknown tokens are not an error.
func (c *Client) Revoke(ctx context.Context, token string) error {
	return c.postForm(ctx, "/revoke", url.Values{"token": {token}}, nil)
}

// UserInfo describes the bearer of accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var out UserInfoResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls /livez.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/livez", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out HealthResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) token(ctx context.Context, data url.Values) (*TokenResponse, error) {
	if data.Get("scope") == "" {
		data.Del("scope")
	}

	var out TokenResponse
	if err := c.postForm(ctx, "/token", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postForm(ctx context.Context, path string, data url.Values, out any) error {
	data.Set("client_id", c.ClientID)
	if c.ClientSecret != "" {
		data.Set("client_secret", c.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := parseErrorResponse(resp, body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
