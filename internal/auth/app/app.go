package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/warden/internal/auth/http"
	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/warden/pkg/cryptox"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/observability"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the warden service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	verifier jwtx.Verifier
	codec    *cryptox.SecretCodec
	resolver *rbac.Resolver
	redis    *redis.Client // nil without REDIS_URL
	registry *prometheus.Registry
	metrics  *observability.Metrics

	// Services
	userService         *service.UserService
	credentialService   *service.CredentialService
	verificationService *service.VerificationService
	recoveryService     *service.RecoveryService
	settingsService     *service.SettingsService
	apiKeyService       *service.APIKeyService
	rolesService        *service.RolesService
	bootstrapService    *service.BootstrapService
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
			Service: "warden",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	verifier, err := InitVerifier(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.verifier = verifier

	key, err := cryptox.LoadSecretKey(cfg.SecretKeyPath, app.logger)
	if err != nil {
		return nil, err
	}
	if app.codec, err = cryptox.NewSecretCodec(key); err != nil {
		return nil, fmt.Errorf("failed to initialize secret codec: %w", err)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initRedis(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initMetrics()
	app.initServices()

	if err := app.bootstrap(context.Background()); err != nil {
		app.closeBackends()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Handler exposes the routed handler, mainly for in-process tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("warden starting", "port", app.cfg.Port, "version", BuildVersion)

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
			app.housekeepingService.Stop()
			app.closeBackends()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down warden...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeBackends(); err != nil {
		return err
	}

	app.logger.Info("warden stopped")
	return nil
}

// Close releases the database and Redis without touching the HTTP server.
func (app *Application) Close() error { return app.closeBackends() }

func (app *Application) closeBackends() error {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := app.cfg.DatabaseFile
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	}

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRedis connects the shared rate limiter backend when REDIS_URL is set.
// An unreachable Redis is logged, not fatal: the limiter fails open.
func (app *Application) initRedis() error {
	if app.cfg.RedisURL == "" {
		app.logger.Info("rate limiting is per process (no REDIS_URL)")
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	app.redis = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.logger.Warn("redis unreachable at startup, rate limits fail open until it returns", "addr", opts.Addr, "error", err)
	} else {
		app.logger.Info("shared rate limiter connected", "addr", opts.Addr)
	}
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = observability.NewMetrics(app.registry)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	cache := rbac.NewRoleCache(rbac.CacheConfig{
		TTL:  app.cfg.RoleCacheTTL,
		Size: app.cfg.RoleCacheSize,
	})
	app.resolver = rbac.NewResolver(store.NewUserSourceAdapter(app.db), cache)
	observability.RegisterRoleCache(app.registry, cache)

	app.userService = &service.UserService{Store: app.db}
	app.credentialService = &service.CredentialService{Store: app.db}
	app.verificationService = &service.VerificationService{
		Codec:    app.codec,
		Mailer:   service.LogMailer{},
		TTL:      app.cfg.VerificationCodeTTL,
		Observer: app.metrics,
	}
	app.recoveryService = &service.RecoveryService{
		Store:       app.db,
		Codes:       app.verificationService,
		Credentials: app.credentialService,
	}
	app.settingsService = &service.SettingsService{Store: app.db}
	app.apiKeyService = &service.APIKeyService{Store: app.db}
	app.rolesService = &service.RolesService{Store: app.db, Cache: app.resolver}
	app.bootstrapService = &service.BootstrapService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// bootstrap creates the first admin from the environment on an empty
// user table. Later starts leave the table alone.
func (app *Application) bootstrap(ctx context.Context) error {
	if app.cfg.BootstrapEmail == "" || app.cfg.BootstrapPass == "" {
		return nil
	}

	ctx = slogx.WithContext(ctx, app.logger)
	_, err := app.bootstrapService.Bootstrap(ctx, domain.BootstrapData{
		AdminEmail:    app.cfg.BootstrapEmail,
		AdminPassword: app.cfg.BootstrapPass,
	})
	if errors.Is(err, service.ErrBootstrapAlready) {
		app.logger.Info("users exist, skipping admin bootstrap")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	return nil
}

// limiterFactory picks the shared Redis limiter when configured.
func (app *Application) limiterFactory() httpapi.LimiterFactory {
	if app.redis == nil {
		return httpapi.MemoryLimiters
	}
	return func(name string, cfg httpx.RateLimitConfig) httpx.Limiter {
		return httpx.NewRedisLimiter(app.redis, cfg,
			httpx.WithLimiterPrefix(httpx.DefaultRedisLimiterPrefix+":"+name))
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	csrf := httpx.CSRFConfig{Secure: app.cfg.CookieSecure}
	router.Policy = &httpx.Policy{
		Identity: app.resolver,
		APIKeys:  app.apiKeyService,
		Switches: app.settingsService,
		CSRF:     csrf,
		Observer: app.metrics,
	}
	router.Gate = httpx.GateConfig{
		LoginPath:   app.cfg.LoginPath,
		LandingPath: app.cfg.LandingPath,
	}
	router.SessionCookie = app.cfg.SessionCookie
	router.NewLimiter = app.limiterFactory()
	if app.redis != nil {
		router.LimiterPing = func(ctx context.Context) error { return app.redis.Ping(ctx).Err() }
	}
	router.Registry = app.registry
	router.Metrics = app.metrics

	// Wire services to router
	router.UserService = app.userService
	router.CredentialService = app.credentialService
	router.VerificationService = app.verificationService
	router.RecoveryService = app.recoveryService
	router.SettingsService = app.settingsService
	router.APIKeyService = app.apiKeyService
	router.RolesService = app.rolesService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
