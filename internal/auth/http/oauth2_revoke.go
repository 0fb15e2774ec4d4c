package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// RevokeHandler serves POST /revoke following RFC 7009. Unknown tokens and
// tokens of other clients still return 200 OK so the endpoint cannot be used
// to probe for tokens.
type RevokeHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes an access or refresh token owned by the calling client (RFC 7009).
//	@Description	Revoking a refresh token also revokes the access token issued with it.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Param			client_id		formData	string	false	"Client identifier (unless HTTP Basic is used)"
//	@Param			client_secret	formData	string	false	"Client secret"
//	@Success		200				"Token revoked (or was already invalid)"
//	@Failure		400				{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401				{object}	authsdk.ErrorResponse	"invalid_client"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/revoke [post]
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := httpx.ParseForm(r); err != nil {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	clientID, secret, basic := clientCredentials(r)
	client, err := h.TokenService.AuthenticateClient(ctx, clientID, secret)
	if err != nil {
		writeOAuth2Error(w, r, err, basic)
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WithDescription("token is required").WriteError(w)
		return
	}

	if err := h.TokenService.Revoke(ctx, client.ID, token); err != nil {
		slogx.FromContext(ctx).Error("revoke failed", "client_id", client.ID, "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
