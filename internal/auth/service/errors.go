package service

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aussiebroadwan/gatehouse/internal/auth/authenticator"
	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

var (
	// ErrTokenNotFound covers malformed, unknown and deleted token ids.
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenExpired      = errors.New("token expired")
	ErrInsufficientScope = errors.New("token lacks required scope")
)

// AuthorizeError is the outcome of a failed authorization request. Once a
// redirect URI has been validated the error is delivered to it, otherwise
// it is written directly as JSON.
type AuthorizeError struct {
	Err         *authsdk.OAuth2Error
	RedirectURI *url.URL
	Fragment    bool // encode in the fragment instead of the query
	State       string
}

func (e *AuthorizeError) Error() string {
	if e.RedirectURI == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (redirect %s)", e.Err.Error(), e.RedirectURI)
}

func (e *AuthorizeError) Unwrap() error { return e.Err }

// Redirectable reports whether the error may be sent to the client's
// redirect URI.
func (e *AuthorizeError) Redirectable() bool { return e.RedirectURI != nil }

// Location builds the error redirect. It is only meaningful when
// Redirectable is true.
func (e *AuthorizeError) Location() string {
	params := url.Values{"error": {e.Err.Code}}
	if e.Err.Description != "" {
		params.Set("error_description", e.Err.Description)
	}
	if e.State != "" {
		params.Set("state", e.State)
	}
	return redirectWith(e.RedirectURI, params, e.Fragment)
}

func directError(err *authsdk.OAuth2Error) *AuthorizeError {
	return &AuthorizeError{Err: err}
}

// redirectWith appends params to u, in the fragment or merged into the
// existing query.
func redirectWith(u *url.URL, params url.Values, fragment bool) string {
	target := *u
	if fragment {
		target.Fragment = ""
		target.RawFragment = ""
		return target.String() + "#" + params.Encode()
	}

	q := target.Query()
	for k, vs := range params {
		q[k] = vs
	}
	target.RawQuery = q.Encode()
	return target.String()
}

// authenticatorError maps an authenticator failure onto an OAuth2 error.
// ok is false for errors that are not protocol outcomes (store failures).
func authenticatorError(err error) (oe *authsdk.OAuth2Error, ok bool) {
	var tpe *authenticator.ThirdPartyError
	switch {
	case errors.As(err, &oe):
		return oe, true
	case errors.Is(err, authenticator.ErrAccessDenied):
		return authsdk.ErrAccessDenied, true
	case errors.Is(err, authenticator.ErrInvalidCredentials):
		return authsdk.ErrAccessDenied.WithDescription("authentication failed"), true
	case errors.Is(err, authenticator.ErrForeignIdentity):
		return authsdk.ErrAccessDenied.WithDescription("identity is registered with another application"), true
	case errors.As(err, &tpe):
		return authsdk.ErrServerError.WithDescription("identity provider error"), true
	}
	return nil, false
}

// AsOAuth2Error returns the wire error for err. Anything that is not
// already an OAuth2 error is a server_error.
func AsOAuth2Error(err error) *authsdk.OAuth2Error {
	var oe *authsdk.OAuth2Error
	if errors.As(err, &oe) {
		return oe
	}
	return authsdk.ErrServerError
}

func expiresIn(seconds int64) string { return strconv.FormatInt(seconds, 10) }
