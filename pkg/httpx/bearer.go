package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

var (
	// ErrInvalidToken means the token is unknown, malformed or expired.
	ErrInvalidToken = errors.New("invalid_token")
	// ErrInsufficientScope means the token is valid but lacks a required scope.
	ErrInsufficientScope = errors.New("insufficient_scope")
)

// TokenValidator checks a bearer token and the scopes it must carry.
type TokenValidator interface {
	ValidateBearer(ctx context.Context, token string, scopes ...string) (Principal, error)
}

// RequireBearer rejects requests without a valid bearer token carrying every
// scope in scopes. The resulting Principal is available downstream through
// PrincipalFromContext.
func RequireBearer(v TokenValidator, scopes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := BearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer`)
				WriteJSON(w, http.StatusUnauthorized, bearerError{Error: "invalid_request", Description: "missing bearer token"})
				return
			}

			p, err := v.ValidateBearer(ctx, raw, scopes...)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
			case errors.Is(err, ErrInsufficientScope):
				w.Header().Set("WWW-Authenticate",
					fmt.Sprintf(`Bearer error="insufficient_scope", scope=%q`, strings.Join(scopes, " ")))
				WriteJSON(w, http.StatusForbidden, bearerError{Error: "insufficient_scope", Description: "token lacks a required scope"})
			case errors.Is(err, ErrInvalidToken):
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				WriteJSON(w, http.StatusUnauthorized, bearerError{Error: "invalid_token", Description: "token is invalid or expired"})
			default:
				slogx.FromContext(ctx).Error("bearer validation failed", "err", err)
				WriteJSON(w, http.StatusInternalServerError, bearerError{Error: "server_error"})
			}
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type bearerError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}
