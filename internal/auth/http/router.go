package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"

	_ "github.com/aussiebroadwan/gatehouse/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// CallbackPath is where authenticators send the user agent back to.
const CallbackPath = "/authorize/callback"

// Pinger is an optional dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateLimits holds the per-IP profiles applied to each route group. A zero
// profile disables limiting for its routes.
type RateLimits struct {
	Strict   httpx.RateLimitConfig // credential checks: /token, callback
	Moderate httpx.RateLimitConfig // /introspect, /revoke, /userinfo
	Lenient  httpx.RateLimitConfig // /authorize, health
}

// DefaultRateLimits returns the httpx default profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	baseURL      *url.URL
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store  store.Store
	states Pinger

	RateLimits       RateLimits
	AuthorizeService *service.AuthorizeService
	TokenService     *service.TokenService
}

// NewRouter builds a router. baseURL is the externally visible address of
// the service and is used to build callback URLs.
func NewRouter(baseURL *url.URL, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slogx.Discard()
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		baseURL:      baseURL,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		RateLimits:   DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// WithStatesCheck adds a readiness check for an external state store.
func (r *Router) WithStatesCheck(p Pinger) *Router {
	r.states = p
	return r
}

// CallbackURL is the absolute URL of the authorization callback.
func (r *Router) CallbackURL() *url.URL {
	return r.baseURL.JoinPath(CallbackPath)
}

func (r *Router) ApplyRoutes() {
	r.registerOAuth2()
	r.registerUserInfo()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatehouse Authorization Service API
//	@version		0.1.0
//	@description	OAuth2 authorization server issuing opaque access, refresh and authorization code tokens.
//	@description
//	@description				Users authenticate through pluggable authenticators (password, oidc, test) selected per client.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatehouse
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Opaque access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOAuth2() {
	authorizeHandler := &AuthorizeHandler{
		AuthorizeService: r.AuthorizeService,
		CallbackURL:      r.CallbackURL(),
	}

	r.Mux.Handle("GET /authorize",
		httpx.Chain(http.HandlerFunc(authorizeHandler.HandleAuthorize),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)

	// The password login form posts here, so it is limited like /token.
	callback := httpx.Chain(http.HandlerFunc(authorizeHandler.HandleCallback),
		httpx.RateLimitByIP(r.RateLimits.Strict),
	)
	r.Mux.Handle("GET "+CallbackPath, callback)
	r.Mux.Handle("POST "+CallbackPath, callback)

	tokenHandler := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(r.RateLimits.Strict),
		),
	)

	introspectHandler := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(r.RateLimits.Moderate),
		),
	)

	revokeHandler := &RevokeHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(r.RateLimits.Moderate),
		),
	)
}

func (r *Router) registerUserInfo() {
	h := &UserInfoHandler{TokenService: r.TokenService}

	secured := httpx.Chain(h,
		httpx.RequireBearer(r.TokenService),
		httpx.RateLimitByIP(r.RateLimits.Moderate),
	)
	r.Mux.Handle("GET /userinfo", secured)
}

func (r *Router) registerSystem() {
	// Monitoring polls these frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.states),
			httpx.RateLimitByIP(r.RateLimits.Lenient),
		),
	)
}
