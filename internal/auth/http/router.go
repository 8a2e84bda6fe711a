package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/service"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/observability"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

// LimiterFactory builds the limiter for one route. name keeps routes that
// share a backend in separate key spaces.
type LimiterFactory func(name string, cfg httpx.RateLimitConfig) httpx.Limiter

// MemoryLimiters is the single-process LimiterFactory.
func MemoryLimiters(_ string, cfg httpx.RateLimitConfig) httpx.Limiter {
	return httpx.NewMemoryLimiter(cfg)
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Policy        *httpx.Policy
	Routes        []httpx.RouteRule
	Gate          httpx.GateConfig
	SessionCookie string
	NewLimiter    LimiterFactory
	LimiterPing   func(context.Context) error // Optional: shared limiter health

	Registry *prometheus.Registry // Optional: serves /metrics
	Metrics  *observability.Metrics

	UserService         *service.UserService
	CredentialService   *service.CredentialService
	VerificationService *service.VerificationService
	RecoveryService     *service.RecoveryService
	SettingsService     *service.SettingsService
	APIKeyService       *service.APIKeyService
	RolesService        *service.RolesService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Routes:       httpx.DefaultRoutes,
		NewLimiter:   MemoryLimiters,
	}
}

func (r *Router) ApplyRoutes() {
	// Request logging first, then the bearer becomes a principal for every
	// route. Metrics sit innermost so they see the mux pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.AuthnMiddleware(r.verifier, r.SessionCookie),
	}
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, observability.HTTPMetricsMiddleware(r.Metrics))
	}

	r.registerAccount()
	r.registerVerification()
	r.registerRecovery()
	r.registerIntegrations()
	r.registerAdmin()
	r.registerPages()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Warden Access Control API
//	@version		0.1.0
//	@description	Credential management, verification codes and role-based access control for the storefront.
//	@description
//	@description				Every response is a JSON envelope {success, message, error, data}.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/warden
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
//	@description				Session JWT from the identity provider. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated wraps h for a signed-in user: cookie sessions must carry a
// CSRF token, then the policy resolves the user, then the per-user limit.
func (r *Router) authenticated(h http.Handler, limiter httpx.Limiter) http.Handler {
	return httpx.Chain(
		r.Policy.Authenticated(httpx.Chain(h,
			httpx.RateLimitMiddleware(limiter, httpx.UserIDKeyExtractor),
		)),
		httpx.CookieSessionCSRF(r.Policy.CSRF, r.SessionCookie),
	)
}

func (r *Router) admin(h http.Handler, limiter httpx.Limiter) http.Handler {
	return httpx.Chain(
		r.Policy.AdminOnly(httpx.Chain(h,
			httpx.RateLimitMiddleware(limiter, httpx.UserIDKeyExtractor),
		)),
		httpx.CookieSessionCSRF(r.Policy.CSRF, r.SessionCookie),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		UserService:       r.UserService,
		CredentialService: r.CredentialService,
	}

	// GET /me - lenient rate limit by user
	r.Mux.Handle("GET /api/v1/me",
		r.authenticated(http.HandlerFunc(h.HandleMe), r.NewLimiter("me", httpx.LenientLimit)))

	// POST /account/password - strict rate limit by user (guessing the current password)
	r.Mux.Handle("POST /api/v1/account/password",
		r.authenticated(http.HandlerFunc(h.HandleChangePassword), r.NewLimiter("password_change", httpx.StrictLimit)))
}

func (r *Router) registerVerification() {
	h := &VerificationHandler{VerificationService: r.VerificationService}

	// POST /verification/codes - moderate rate limit by user (each call sends mail)
	r.Mux.Handle("POST /api/v1/verification/codes",
		r.authenticated(http.HandlerFunc(h.HandleIssue), r.NewLimiter("verification_issue", httpx.ModerateLimit)))

	// POST /verification/verify - strict rate limit by IP (6 digits are guessable)
	r.Mux.Handle("POST /api/v1/verification/verify",
		r.Policy.Public(http.HandlerFunc(h.HandleVerify),
			httpx.WithRateLimit(r.NewLimiter("verification_verify", httpx.StrictLimit), httpx.IPKeyExtractor),
			httpx.WithCSRF(),
		),
	)
}

func (r *Router) registerRecovery() {
	h := &RecoveryHandler{RecoveryService: r.RecoveryService}

	r.Mux.Handle("POST /api/v1/password/forgot",
		r.Policy.Public(http.HandlerFunc(h.HandleForgot),
			httpx.WithRateLimit(r.NewLimiter("password_forgot", httpx.StrictLimit), httpx.IPKeyExtractor),
		),
	)

	r.Mux.Handle("POST /api/v1/password/reset",
		r.Policy.Public(http.HandlerFunc(h.HandleReset),
			httpx.WithRateLimit(r.NewLimiter("password_reset", httpx.StrictLimit), httpx.IPKeyExtractor),
			httpx.WithCSRF(),
		),
	)
}

func (r *Router) registerIntegrations() {
	r.Mux.Handle("GET /api/v1/csrf",
		r.Policy.Public(CSRFHandler(r.Policy.CSRF),
			httpx.WithRateLimit(r.NewLimiter("csrf", httpx.PublicLimit), httpx.IPKeyExtractor),
		),
	)

	// Rate limited before the key check so key guessing spends quota
	r.Mux.Handle("GET /api/v1/integrations/scope",
		r.Policy.Public(http.HandlerFunc(IntegrationScopeHandler),
			httpx.WithRateLimit(r.NewLimiter("integrations", httpx.ModerateLimit), httpx.IPKeyExtractor),
			httpx.WithAPIKey(),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		RolesService:    r.RolesService,
		SettingsService: r.SettingsService,
		APIKeyService:   r.APIKeyService,
	}
	roles := &RolesHandler{RolesService: r.RolesService}

	// Admin operations share one moderate limit by user
	lim := r.NewLimiter("admin", httpx.ModerateLimit)

	r.Mux.Handle("POST /api/admin/cache/clear", r.admin(http.HandlerFunc(h.HandleClearCache), lim))
	r.Mux.Handle("GET /api/admin/settings/{collection}", r.admin(http.HandlerFunc(h.HandleGetSettings), lim))
	r.Mux.Handle("PUT /api/admin/settings/{collection}", r.admin(http.HandlerFunc(h.HandlePutSettings), lim))
	r.Mux.Handle("POST /api/admin/api-keys", r.admin(http.HandlerFunc(h.HandleMintAPIKey), lim))
	r.Mux.Handle("GET /api/admin/api-keys", r.admin(http.HandlerFunc(h.HandleListAPIKeys), lim))
	r.Mux.Handle("DELETE /api/admin/api-keys/{id}", r.admin(http.HandlerFunc(h.HandleRevokeAPIKey), lim))
	r.Mux.Handle("PUT /api/admin/users/{id}/role", r.admin(roles, lim))
}

func (r *Router) registerPages() {
	gate := httpx.Gate(r.Routes, r.Gate)

	pages := []struct{ pattern, title string }{
		{"GET /{$}", "Storefront"},
		{"GET /login", "Sign in"},
		{"GET /account", "Account"},
		{"GET /account/", "Account"},
		{"GET /checkout", "Checkout"},
		{"GET /checkout/", "Checkout"},
		{"GET /orders", "Orders"},
		{"GET /orders/", "Orders"},
		{"GET /admin", "Administration"},
		{"GET /admin/", "Administration"},
	}
	for _, p := range pages {
		r.Mux.Handle(p.pattern, gate(PageHandler(p.title)))
	}
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitMiddleware(r.NewLimiter("livez", httpx.LenientLimit), httpx.IPKeyExtractor),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.verifier, r.LimiterPing),
			httpx.RateLimitMiddleware(r.NewLimiter("readyz", httpx.LenientLimit), httpx.IPKeyExtractor),
		),
	)

	if r.Registry != nil {
		r.Mux.Handle("GET /metrics", observability.Handler(r.Registry))
	}
}
