package authenticator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/authenticator"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedApp(t *testing.T, st store.Store, name string) domain.Application {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	app := domain.Application{ID: idx.New().String(), Name: name, Scopes: []string{"read"}, CreatedAt: now}
	role := domain.Role{ID: idx.New().String(), ApplicationID: app.ID, Name: "member", Scopes: []string{"read"}, CreatedAt: now}
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Applications().CreateApplication(ctx, app); err != nil {
			return err
		}
		if err := tx.Roles().CreateRole(ctx, role); err != nil {
			return err
		}
		return tx.Applications().SetDefaultRole(ctx, app.ID, role.ID)
	}))

	app.DefaultRoleID = role.ID
	return app
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := authenticator.NewRegistry()
	reg.Register(domain.IdentityTest, authenticator.NewTest())

	a, err := reg.Lookup(domain.IdentityTest)
	require.NoError(t, err)
	require.NotNil(t, a)

	_, err = reg.Lookup("saml")
	require.ErrorIs(t, err, authenticator.ErrUnknownAuthenticator)
	require.Equal(t, []string{"test"}, reg.Types())
}

func TestFindOrCreateIdentityIsIdempotent(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	ctx := context.Background()
	app := seedApp(t, st, "bar")

	first, err := authenticator.FindOrCreateIdentity(ctx, st, app, domain.IdentityTest, "alice", map[string]string{"login": "alice"})
	require.NoError(t, err)

	second, err := authenticator.FindOrCreateIdentity(ctx, st, app, domain.IdentityTest, "alice", nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	user, err := st.Users().GetUserByID(ctx, first.UserID)
	require.NoError(t, err)
	require.Equal(t, app.DefaultRoleID, user.RoleID)

	other := seedApp(t, st, "other")
	_, err = authenticator.FindOrCreateIdentity(ctx, st, other, domain.IdentityTest, "alice", nil)
	require.ErrorIs(t, err, authenticator.ErrForeignIdentity)
}

func TestTestAuthenticator(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	ctx := context.Background()
	app := seedApp(t, st, "bar")

	callback, _ := url.Parse("https://auth.example/authorize/callback?state=abc")
	a := authenticator.NewTest()

	h, err := a.Delegate(ctx, domain.ClientAuthenticator{Type: "test"}, callback)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize?login=bob", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "abc", loc.Query().Get("state"))
	require.Equal(t, "bob", loc.Query().Get("login"))

	ident, err := a.Authenticate(ctx, st, authenticator.Request{Application: app, Params: loc.Query()})
	require.NoError(t, err)
	require.Equal(t, "bob", ident.RemoteID)
	require.Equal(t, domain.IdentityTest, ident.Type)

	ident, err = a.Authenticate(ctx, st, authenticator.Request{Application: app, Params: url.Values{}})
	require.NoError(t, err)
	require.Equal(t, authenticator.DefaultTestLogin, ident.RemoteID)
}

func TestPasswordAuthenticator(t *testing.T) {
	t.Parallel()
	st := newStore(t)
	ctx := context.Background()
	app := seedApp(t, st, "bar")
	hasher := cryptox.NewHasher("pepper")

	hash, err := hasher.Hash("hunter2")
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{ID: idx.New().String(), ApplicationID: app.ID, RoleID: app.DefaultRoleID, CreatedAt: now}
	require.NoError(t, st.Users().CreateUser(ctx, user))
	require.NoError(t, st.Identities().CreateIdentity(ctx, domain.UserIdentity{
		ID: idx.New().String(), UserID: user.ID, Type: domain.IdentityPassword,
		RemoteID: "alice", PasswordHash: hash, CreatedAt: now,
	}))

	p := authenticator.NewPassword(hasher)

	t.Run("login form posts to callback", func(t *testing.T) {
		callback, _ := url.Parse("https://auth.example/authorize/callback?state=abc")
		h, err := p.Delegate(ctx, domain.ClientAuthenticator{}, callback)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		require.Contains(t, rec.Body.String(), `action="https://auth.example/authorize/callback?state=abc"`)
	})

	t.Run("valid credentials", func(t *testing.T) {
		ident, err := p.Authenticate(ctx, st, authenticator.Request{
			Application: app,
			Params:      url.Values{"username": {"alice"}, "password": {"hunter2"}},
		})
		require.NoError(t, err)
		require.Equal(t, user.ID, ident.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := p.VerifyPassword(ctx, st, app, "alice", "wrong")
		require.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := p.VerifyPassword(ctx, st, app, "mallory", "hunter2")
		require.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
	})

	t.Run("user of another application", func(t *testing.T) {
		other := seedApp(t, st, "other")
		_, err := p.VerifyPassword(ctx, st, other, "alice", "hunter2")
		require.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
	})

	t.Run("empty fields", func(t *testing.T) {
		_, err := p.VerifyPassword(ctx, st, app, "", "")
		require.ErrorIs(t, err, authenticator.ErrInvalidCredentials)
	})
}

func TestPasswordLoginFormEscapesAction(t *testing.T) {
	t.Parallel()

	callback := &url.URL{Scheme: "https", Host: "auth.example", Path: "/authorize/callback", RawQuery: `state="><script>`}
	h, err := authenticator.NewPassword(cryptox.NewHasher("")).Delegate(context.Background(), domain.ClientAuthenticator{}, callback)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize", nil))
	require.False(t, strings.Contains(rec.Body.String(), "<script>"))
}
