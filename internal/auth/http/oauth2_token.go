package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// TokenHandler serves POST /token.
// Accepts application/x-www-form-urlencoded per RFC 6749.
type TokenHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Issues tokens for the authorization_code, client_credentials, password (alias owner_credentials) and refresh_token grants.
//	@Description	Clients authenticate with client_id/client_secret form fields or HTTP Basic.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, client_credentials, password, owner_credentials, refresh_token)
//	@Param			client_id		formData	string					false	"Client identifier (unless HTTP Basic is used)"
//	@Param			client_secret	formData	string					false	"Client secret (confidential clients)"
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI used at /authorize (authorization_code grant)"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			username		formData	string					false	"Username (password grant)"
//	@Param			password		formData	string					false	"Password (password grant)"
//	@Param			scope			formData	string					false	"Space-delimited list of scopes"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/token [post]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := httpx.ParseForm(r); err != nil {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	clientID, secret, basic := clientCredentials(r)
	pair, err := h.TokenService.Exchange(r.Context(), service.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		ClientID:     clientID,
		ClientSecret: secret,
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Username:     r.PostForm.Get("username"),
		Password:     r.PostForm.Get("password"),
		Scope:        r.PostForm.Get("scope"),
	})
	if err != nil {
		writeOAuth2Error(w, r, err, basic)
		return
	}

	response := authsdk.TokenResponse{
		AccessToken: pair.Access.ID.String(),
		TokenType:   "Bearer",
		ExpiresIn:   pair.Access.ExpiresIn,
		Scope:       pair.Access.Scope(),
	}
	if pair.Refresh != nil {
		response.RefreshToken = pair.Refresh.ID.String()
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

// clientCredentials reads client authentication from HTTP Basic or, failing
// that, the form body.
func clientCredentials(r *http.Request) (id, secret string, basic bool) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret, true
	}
	return r.PostForm.Get("client_id"), r.PostForm.Get("client_secret"), false
}

func writeOAuth2Error(w http.ResponseWriter, r *http.Request, err error, basic bool) {
	var oe *authsdk.OAuth2Error
	if !errors.As(err, &oe) {
		slogx.FromContext(r.Context()).Error("token endpoint failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	if basic && oe.Code == authsdk.ErrorCodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}
	oe.WriteError(w)
}
