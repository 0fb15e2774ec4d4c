package http

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// AuthorizeHandler serves the authorization endpoint and its callback.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	CallbackURL      *url.URL
}

// HandleAuthorize starts an interactive authorization.
//
//	@Summary		OAuth2 authorization endpoint
//	@Description	Validates the request, stores its state and hands the user agent to the selected authenticator.
//	@Description
//	@Description	An unknown client or unregistered redirect_uri is answered with a JSON error. Every later error is redirected
//	@Description	to the redirect_uri, in the fragment for Implicit clients and in the query otherwise.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type	query		string					true	"code or token, depending on the client type"	Enums(code, token)
//	@Param			client_id		query		string					true	"Client identifier"
//	@Param			redirect_uri	query		string					false	"Registered redirect URI (optional when exactly one is registered)"
//	@Param			scope			query		string					false	"Space-delimited list of scopes"
//	@Param			state			query		string					false	"Opaque value echoed back to the client"
//	@Param			authenticator	query		string					false	"Authenticator type (optional when the client has exactly one)"	Enums(password, oidc, test)
//	@Success		302				{string}	string					"Redirect to the authenticator"
//	@Success		200				{string}	string					"Login form (password authenticator)"
//	@Failure		400				{object}	authsdk.ErrorResponse	"invalid_request"
//	@Failure		401				{object}	authsdk.ErrorResponse	"invalid_client"
//	@Router			/authorize [get]
func (h *AuthorizeHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	d, err := h.AuthorizeService.Authorize(r.Context(), service.AuthorizeRequest{
		ClientID:      q.Get("client_id"),
		ResponseType:  q.Get("response_type"),
		RedirectURI:   q.Get("redirect_uri"),
		Scope:         q.Get("scope"),
		State:         q.Get("state"),
		Authenticator: q.Get("authenticator"),
		CallbackURL:   h.CallbackURL,
	})
	if err != nil {
		writeAuthorizeError(w, r, err)
		return
	}

	d.Handler.ServeHTTP(w, r)
}

// HandleCallback completes an authorization once the authenticator sends the
// user agent back.
//
//	@Summary		OAuth2 authorization callback
//	@Description	Redeems the stored authorization state and redirects to the client with a code (query) or an access token (fragment).
//	@Description	A state can be redeemed once. Unknown or reused states are answered with a JSON invalid_request.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			state		query		string					true	"State id issued by /authorize"
//	@Param			username	formData	string					false	"Username (password authenticator)"
//	@Param			password	formData	string					false	"Password (password authenticator)"
//	@Success		302			{string}	string					"Redirect to the client's redirect_uri"
//	@Failure		400			{object}	authsdk.ErrorResponse	"invalid_request"
//	@Router			/authorize/callback [get]
//	@Router			/authorize/callback [post]
func (h *AuthorizeHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if err := httpx.ParseForm(r); err != nil {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	location, err := h.AuthorizeService.Callback(r.Context(), service.CallbackRequest{
		StateID:     r.Form.Get("state"),
		Params:      r.Form,
		CallbackURL: h.CallbackURL,
	})
	if err != nil {
		writeAuthorizeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, location, redirectStatus(r))
}

// writeAuthorizeError redirects when the error carries a validated target
// and writes JSON otherwise.
func writeAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *service.AuthorizeError
	if !errors.As(err, &ae) {
		slogx.FromContext(r.Context()).Error("authorization failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	if !ae.Redirectable() {
		ae.Err.WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, ae.Location(), redirectStatus(r))
}

// redirectStatus turns a form POST into a GET on the target.
func redirectStatus(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusSeeOther
	}
	return http.StatusFound
}
