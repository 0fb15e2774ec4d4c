package authenticator

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<form method="post" action="{{.Action}}">
  <label>Username <input name="username" autocomplete="username" required></label>
  <label>Password <input name="password" type="password" autocomplete="current-password" required></label>
  <button type="submit">Sign in</button>
</form>
</body>
</html>
`))

// Password authenticates local users by username and argon2id password hash.
// The username is the identity's remote id.
type Password struct {
	Hasher *cryptox.Hasher
}

func NewPassword(h *cryptox.Hasher) *Password {
	return &Password{Hasher: h}
}

// Delegate renders a login form that posts back to callback.
func (p *Password) Delegate(_ context.Context, _ domain.ClientAuthenticator, callback *url.URL) (http.Handler, error) {
	action := callback.String()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = loginPage.Execute(w, struct{ Action string }{action})
	}), nil
}

func (p *Password) Authenticate(ctx context.Context, st store.Store, req Request) (domain.UserIdentity, error) {
	return p.VerifyPassword(ctx, st, req.Application,
		req.Params.Get("username"),
		req.Params.Get("password"),
	)
}

// VerifyPassword checks a username/password pair against the password
// identities of app. Any mismatch is reported as ErrInvalidCredentials.
func (p *Password) VerifyPassword(ctx context.Context, st store.Store, app domain.Application, username, password string) (domain.UserIdentity, error) {
	if username == "" || password == "" {
		return domain.UserIdentity{}, ErrInvalidCredentials
	}

	ident, err := st.Identities().GetIdentity(ctx, domain.IdentityPassword, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserIdentity{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("lookup identity: %w", err)
	}

	if err := p.Hasher.Verify(password, ident.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return domain.UserIdentity{}, ErrInvalidCredentials
		}
		return domain.UserIdentity{}, fmt.Errorf("verify password: %w", err)
	}

	user, err := st.Users().GetUserByID(ctx, ident.UserID)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("load user: %w", err)
	}
	if user.ApplicationID != app.ID {
		return domain.UserIdentity{}, ErrInvalidCredentials
	}
	return ident, nil
}
