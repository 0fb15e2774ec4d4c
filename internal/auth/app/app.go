package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/authenticator"
	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/gatehouse/internal/auth/http"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/idx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg     Config
	logger  *slog.Logger
	baseURL *url.URL

	// Core dependencies
	sqlStore *sqlite.Store
	states   *redis.States // nil unless AUTH_REDIS_ADDR is set
	db       store.Store
	hasher   *cryptox.Hasher

	// Services
	authenticators      *authenticator.Registry
	tokenService        *service.TokenService
	authorizeService    *service.AuthorizeService
	provisionService    *service.ProvisionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || !baseURL.IsAbs() {
		return nil, fmt.Errorf("invalid AUTH_BASE_URL %q: must be an absolute URL", cfg.BaseURL)
	}
	app.baseURL = baseURL

	pepper, err := cryptox.LoadPepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper)

	ctx := context.Background()
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	app.initServices()

	if err := app.provision(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"base_url", app.baseURL.String(),
		"authenticators", app.authenticators.Types(),
		"version", BuildVersion,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeStores() error {
	if app.states != nil {
		if err := app.states.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
		}
	}

	if err := app.sqlStore.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase opens SQLite, applies migrations and, when configured,
// moves authorization states to Redis.
func (app *Application) initDatabase(ctx context.Context) error {
	host := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		app.cfg.DatabaseFile, BusyTimeout.Milliseconds())
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.sqlStore = db
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully")

	if app.cfg.RedisAddr == "" {
		return nil
	}

	states, err := redis.NewStates(ctx, redis.Config{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
		TTL:      app.cfg.StateTTL,
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.states = states
	app.db = store.WithStates(db, states)
	app.logger.Info("authorization states stored in redis", "addr", app.cfg.RedisAddr)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	password := authenticator.NewPassword(app.hasher)

	app.authenticators = authenticator.NewRegistry()
	app.authenticators.Register(domain.IdentityPassword, password)
	app.authenticators.Register(domain.IdentityOIDC, authenticator.NewOIDC(app.cfg.UpstreamTimeout))
	if app.cfg.Env != "prod" {
		// Clients can only use it when their seed configures it.
		app.authenticators.Register(domain.IdentityTest, authenticator.NewTest())
	}

	ids := idx.NewGenerator(rand.Reader)

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Hasher:     app.hasher,
		Passwords:  password,
		IDs:        ids,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
	}
	app.authorizeService = &service.AuthorizeService{
		Store:          app.db,
		Authenticators: app.authenticators,
		IDs:            ids,
		CodeTTL:        app.cfg.CodeTTL,
		AccessTTL:      app.cfg.AccessTTL,
		StateTTL:       app.cfg.StateTTL,
	}
	app.provisionService = &service.ProvisionService{
		Store:  app.db,
		Hasher: app.hasher,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.StateTTL,
	)
}

// provision loads the seed file into an empty database.
func (app *Application) provision(ctx context.Context) error {
	if app.cfg.SeedFile == "" {
		return nil
	}

	f, err := os.Open(app.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	ctx = slogx.WithContext(ctx, app.logger)
	clients, err := app.provisionService.LoadSeed(ctx, f)
	if errors.Is(err, service.ErrAlreadyProvisioned) {
		app.logger.Info("database already provisioned, seed file ignored", "file", app.cfg.SeedFile)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to provision seed file: %w", err)
	}

	app.logger.Info("seed file provisioned", "file", app.cfg.SeedFile, "clients", len(clients))
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.baseURL, BuildVersion, app.db, app.logger)
	if app.states != nil {
		router.WithStatesCheck(app.states)
	}

	// Wire services to router
	router.RateLimits = app.cfg.RateLimits
	router.AuthorizeService = app.authorizeService
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
