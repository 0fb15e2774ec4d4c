package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

// IntrospectHandler serves POST /introspect (RFC 7662). Callers
// authenticate as a client the same way as at /token.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Introspection
//	@Description	Reports whether a token is active and, if so, its scope, client, type and lifetime. Public clients only see their own tokens.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string							true	"Token to introspect"
//	@Param			client_id		formData	string							false	"Client identifier (unless HTTP Basic is used)"
//	@Param			client_secret	formData	string							false	"Client secret"
//	@Success		200				{object}	authsdk.IntrospectionResponse	"active and token metadata"
//	@Failure		400				{object}	authsdk.ErrorResponse			"invalid_request"
//	@Failure		401				{object}	authsdk.ErrorResponse			"invalid_client"
//	@Router			/introspect [post]
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	httpx.WriteJSON(w, http.StatusOK, h.TokenService.IntrospectFor(ctx, client, token))
}
