/*
Package authsdk is the Go client for the gatehouse authorization server, and
holds the wire types and OAuth2 error values shared with the server.

# Client

Create a Client with the server URL and the client's own credentials:

	c := authsdk.NewClient("https://auth.example.com", "my-client", "my-secret")

Machine to machine callers use the client_credentials grant:

	tok, err := c.ClientCredentials(ctx, "read", "write")

First party apps holding a user's password use the password grant:

	tok, err := c.Password(ctx, "alice", "hunter2", "read")

Browser based apps send the user to AuthorizeURL and redeem the code that
comes back on their redirect URI:

	u := c.AuthorizeURL(authsdk.AuthorizeParams{
		ResponseType:  "code",
		RedirectURI:   "https://app.example/callback",
		Scope:         "read",
		State:         csrfToken,
		Authenticator: "oidc",
	})
	// ... later, on the callback
	tok, err := c.ExchangeCode(ctx, code, "https://app.example/callback")

Refresh tokens rotate; always keep the newest one:

	tok, err = c.Refresh(ctx, tok.RefreshToken)

Resource servers check tokens with Introspect, and clients give tokens up
with Revoke.

# Errors

Every non-2xx OAuth2 response decodes into an *OAuth2Error. Use errors.Is
against the predefined values to branch on the error code:

	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// refresh token expired or already used, start over
	}
*/
package authsdk
