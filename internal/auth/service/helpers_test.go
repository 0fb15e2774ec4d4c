package service

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/authenticator"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
)

const (
	codeClient     = "web"
	implicitClient = "spa"
	serviceClient  = "worker"
	ownerClient    = "cli"

	codeSecret    = "web-secret"
	serviceSecret = "worker-secret"
	ownerSecret   = "cli-secret"

	codeRedirect     = "https://app.example/cb"
	implicitRedirect = "https://spa.example/cb"
)

const testSeed = `
applications:
  - name: bar
    scopes: [one, two, admin]
    default_role: member
    roles:
      - name: member
        scopes: [one, two]
      - name: admin
        scopes: [one, two, admin]
    clients:
      - id: web
        name: web
        type: AuthorizationGrant
        secret: web-secret
        redirect_uris: [https://app.example/cb]
        authenticators:
          - type: test
          - type: password
      - id: spa
        name: spa
        type: Implicit
        redirect_uris: [https://spa.example/cb]
        authenticators:
          - type: test
      - id: worker
        name: worker
        type: ClientCredentials
        secret: worker-secret
        scopes: [one, admin]
        access_ttl: 5m
      - id: cli
        name: cli
        type: OwnerCredentials
        secret: cli-secret
    users:
      - username: alice
        password: hunter2
        role: member
`

var callbackURL = &url.URL{Scheme: "https", Host: "auth.example", Path: "/authorize/callback"}

type fixture struct {
	st     *sqlite.Store
	hasher *cryptox.Hasher
	authz  *AuthorizeService
	tokens *TokenService
}

func newEmptyStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

// newFileStore opens a WAL database on disk with the pragmas the server
// uses, so that transactions from several goroutines really contend.
func newFileStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") +
		"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, newEmptyStore(t))
}

func newFixtureWithStore(t *testing.T, st *sqlite.Store) *fixture {
	t.Helper()

	hasher := cryptox.NewHasher("test-pepper")
	prov := &ProvisionService{Store: st, Hasher: hasher}
	_, err := prov.LoadSeed(context.Background(), strings.NewReader(testSeed))
	require.NoError(t, err)

	password := authenticator.NewPassword(hasher)
	reg := authenticator.NewRegistry()
	reg.Register(domain.IdentityTest, authenticator.NewTest())
	reg.Register(domain.IdentityPassword, password)

	ids := idx.NewGenerator(rand.Reader)
	return &fixture{
		st:     st,
		hasher: hasher,
		authz: &AuthorizeService{
			Store:          st,
			Authenticators: reg,
			IDs:            ids,
			CodeTTL:        DefaultCodeTTL,
			AccessTTL:      DefaultAccessTTL,
			StateTTL:       DefaultStateTTL,
		},
		tokens: &TokenService{
			Store:      st,
			Hasher:     hasher,
			Passwords:  password,
			IDs:        ids,
			AccessTTL:  DefaultAccessTTL,
			RefreshTTL: DefaultRefreshTTL,
		},
	}
}

// delegate runs Authorize and serves the returned handler, returning the
// response recorder.
func (f *fixture) delegate(t *testing.T, req AuthorizeRequest) *httptest.ResponseRecorder {
	t.Helper()

	if req.CallbackURL == nil {
		req.CallbackURL = callbackURL
	}
	d, err := f.authz.Authorize(context.Background(), req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/authorize", nil))
	return rec
}

// authorizeWithTest runs /authorize through the test authenticator and
// returns the callback query it redirects to.
func (f *fixture) authorizeWithTest(t *testing.T, req AuthorizeRequest) url.Values {
	t.Helper()

	rec := f.delegate(t, req)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, callbackURL.Path, loc.Path)
	return loc.Query()
}

func (f *fixture) callback(params url.Values) (string, error) {
	return f.authz.Callback(context.Background(), CallbackRequest{
		StateID:     params.Get("state"),
		Params:      params,
		CallbackURL: callbackURL,
	})
}

func requireAuthorizeError(t *testing.T, err error, code string, redirectable bool) *AuthorizeError {
	t.Helper()

	var ae *AuthorizeError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, code, ae.Err.Code)
	require.Equal(t, redirectable, ae.Redirectable())
	return ae
}
