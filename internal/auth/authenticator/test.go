package authenticator

import (
	"context"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

// DefaultTestLogin is the remote id used when no login parameter is given.
const DefaultTestLogin = "test"

// Test is a synchronous authenticator for development and automated tests.
// It sends the user agent straight back to the callback and accepts whoever
// it claims to be via the login parameter.
type Test struct{}

func NewTest() *Test { return &Test{} }

func (Test) Delegate(_ context.Context, _ domain.ClientAuthenticator, callback *url.URL) (http.Handler, error) {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := *callback
		if login := r.URL.Query().Get("login"); login != "" {
			q := target.Query()
			q.Set("login", login)
			target.RawQuery = q.Encode()
		}
		http.Redirect(w, r, target.String(), http.StatusFound)
	}), nil
}

func (Test) Authenticate(ctx context.Context, st store.Store, req Request) (domain.UserIdentity, error) {
	login := req.Params.Get("login")
	if login == "" {
		login = DefaultTestLogin
	}
	return FindOrCreateIdentity(ctx, st, req.Application, domain.IdentityTest, login,
		map[string]string{"login": login})
}
