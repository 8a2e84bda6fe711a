package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// Identity is what the policy needs from the identity resolver.
type Identity interface {
	Resolve(ctx context.Context, p rbac.Principal) (rbac.User, error)
	RoleOf(ctx context.Context, id string) (rbac.Role, error)
}

// Switches are the global toggles for the public-tier sub-checks. A switch
// can only turn off a check a route asked for, never add one.
type Switches struct {
	APIKeys   bool `json:"api_keys_enabled"`
	CSRF      bool `json:"csrf_enabled"`
	RateLimit bool `json:"rate_limit_enabled"`
}

// AllSwitchesOn is used when no switch source is configured or it fails.
var AllSwitchesOn = Switches{APIKeys: true, CSRF: true, RateLimit: true}

// SwitchSource supplies the current Switches.
type SwitchSource interface {
	SecuritySwitches(ctx context.Context) (Switches, error)
}

// Decision outcomes reported to a PolicyObserver.
const (
	OutcomeAllowed      = "allowed"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
	OutcomeRateLimited  = "rate_limited"
	OutcomeInvalidCSRF  = "invalid_csrf"
	OutcomeInvalidKey   = "invalid_api_key"
	OutcomeError        = "error"
)

// PolicyObserver is told about every policy decision.
type PolicyObserver interface {
	ObserveDecision(tier rbac.Tier, outcome string)
}

// Policy builds the public, authenticated and admin-only wrappers. The zero
// value of every optional field is usable: no Switches means all on, no
// Observer means decisions go unrecorded.
type Policy struct {
	Identity Identity
	APIKeys  APIKeyLookup
	Switches SwitchSource
	CSRF     CSRFConfig
	Observer PolicyObserver
}

type publicChecks struct {
	apiKey  bool
	csrf    bool
	limiter Limiter
	keyFn   KeyExtractor
}

// PublicOption enables a sub-check on a public route.
type PublicOption func(*publicChecks)

// WithAPIKey requires a valid X-API-Key and attaches its scopes.
func WithAPIKey() PublicOption {
	return func(c *publicChecks) { c.apiKey = true }
}

// WithCSRF requires the double-submit token on state-changing methods.
func WithCSRF() PublicOption {
	return func(c *publicChecks) { c.csrf = true }
}

// WithRateLimit applies limiter keyed by keyFn. A nil keyFn keys by IP.
func WithRateLimit(limiter Limiter, keyFn KeyExtractor) PublicOption {
	return func(c *publicChecks) {
		c.limiter = limiter
		c.keyFn = keyFn
		if c.keyFn == nil {
			c.keyFn = IPKeyExtractor
		}
	}
}

// Public runs h with no identity requirement. Enabled sub-checks run in this
// order: rate limit, API key, CSRF. The rate limit goes first so rejected
// key guesses still spend quota.
func (p *Policy) Public(h http.Handler, opts ...PublicOption) http.Handler {
	var checks publicChecks
	for _, opt := range opts {
		opt(&checks)
	}
	csrfCfg := p.CSRF.withDefaults()

	return p.guard(rbac.TierPublic, func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx)

		sw := AllSwitchesOn
		if (checks.apiKey || checks.csrf || checks.limiter != nil) && p.Switches != nil {
			got, err := p.Switches.SecuritySwitches(ctx)
			if err != nil {
				log.Error("policy: security switches unavailable, enforcing all checks", "err", err)
			} else {
				sw = got
			}
		}

		if checks.limiter != nil && sw.RateLimit {
			if !enforceRateLimit(w, r, checks.limiter, checks.keyFn) {
				p.observe(rbac.TierPublic, OutcomeRateLimited)
				return
			}
		}

		if checks.apiKey && sw.APIKeys {
			raw := presentedAPIKey(r)
			if raw == "" || p.APIKeys == nil {
				log.Warn("policy: api key missing")
				p.deny(w, rbac.TierPublic, OutcomeInvalidKey, ErrInvalidAPIKey)
				return
			}

			key, ok, err := p.APIKeys.LookupAPIKey(ctx, raw)
			if err != nil {
				log.Error("policy: api key lookup failed", "err", err)
				p.deny(w, rbac.TierPublic, OutcomeError, ErrInternal)
				return
			}
			if !ok {
				log.Warn("policy: api key rejected")
				p.deny(w, rbac.TierPublic, OutcomeInvalidKey, ErrInvalidAPIKey)
				return
			}

			ctx = ContextWithAPIKey(ctx, key)
			ctx = slogx.With(ctx, "api_key_id", key.ID)
			r = r.WithContext(ctx)
		}

		if checks.csrf && sw.CSRF && !checkCSRF(r, csrfCfg) {
			log.Warn("policy: csrf check failed", "method", r.Method)
			p.deny(w, rbac.TierPublic, OutcomeInvalidCSRF, ErrInvalidCSRF)
			return
		}

		p.observe(rbac.TierPublic, OutcomeAllowed)
		h.ServeHTTP(w, r)
	})
}

// Authenticated requires a principal and attaches the stored user record.
func (p *Policy) Authenticated(h http.Handler) http.Handler {
	return p.guard(rbac.TierAuthenticated, func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		principal, ok := rbac.PrincipalFrom(ctx)
		if !ok {
			p.unauthenticated(w, rbac.TierAuthenticated)
			return
		}

		user, ok := p.resolve(w, r, rbac.TierAuthenticated, principal)
		if !ok {
			return
		}

		p.observe(rbac.TierAuthenticated, OutcomeAllowed)
		h.ServeHTTP(w, r.WithContext(rbac.WithUser(ctx, user)))
	})
}

// AdminOnly requires a principal whose stored role is admin. The bearer's
// role claim is never consulted.
func (p *Policy) AdminOnly(h http.Handler) http.Handler {
	return p.guard(rbac.TierAdmin, func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx)

		principal, ok := rbac.PrincipalFrom(ctx)
		if !ok {
			p.unauthenticated(w, rbac.TierAdmin)
			return
		}

		role, err := p.Identity.RoleOf(ctx, principal.ID)
		if err != nil {
			p.identityError(w, r, rbac.TierAdmin, err)
			return
		}
		if !rbac.Satisfies(role, rbac.TierAdmin) {
			log.Warn("policy: admin required", "role", role.String())
			p.deny(w, rbac.TierAdmin, OutcomeForbidden, ErrForbidden)
			return
		}

		user, ok := p.resolve(w, r, rbac.TierAdmin, principal)
		if !ok {
			return
		}

		p.observe(rbac.TierAdmin, OutcomeAllowed)
		h.ServeHTTP(w, r.WithContext(rbac.WithUser(ctx, user)))
	})
}

func (p *Policy) resolve(w http.ResponseWriter, r *http.Request, tier rbac.Tier, principal rbac.Principal) (rbac.User, bool) {
	user, err := p.Identity.Resolve(r.Context(), principal)
	if err != nil {
		p.identityError(w, r, tier, err)
		return rbac.User{}, false
	}
	return user, true
}

// identityError maps resolver failures onto the status contract. Anything
// unrecognised is a 500 and never a grant.
func (p *Policy) identityError(w http.ResponseWriter, r *http.Request, tier rbac.Tier, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, rbac.ErrUserNotFound):
		log.Warn("policy: principal has no user record", "tier", tier.String())
		p.deny(w, tier, OutcomeUnauthorized, ErrUnauthorized)
	case errors.Is(err, rbac.ErrInvalidRole):
		log.Error("policy: stored role invalid", "tier", tier.String(), "err", err)
		p.deny(w, tier, OutcomeForbidden, ErrForbidden)
	default:
		log.Error("policy: identity lookup failed", "tier", tier.String(), "err", err)
		p.deny(w, tier, OutcomeError, ErrInternal)
	}
}

func (p *Policy) unauthenticated(w http.ResponseWriter, tier rbac.Tier) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="warden"`)
	p.deny(w, tier, OutcomeUnauthorized, ErrUnauthorized)
}

func (p *Policy) deny(w http.ResponseWriter, tier rbac.Tier, outcome string, apiErr *APIError) {
	p.observe(tier, outcome)
	apiErr.WriteError(w)
}

func (p *Policy) observe(tier rbac.Tier, outcome string) {
	if p.Observer != nil {
		p.Observer.ObserveDecision(tier, outcome)
	}
}

// guard recovers panics from the checks and the handler into a 500 envelope.
// If the handler already wrote its header the connection is left as is.
func (p *Policy) guard(tier rbac.Tier, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slogx.FromContext(r.Context()).Error("policy: panic recovered", "tier", tier.String(), "panic", rec)
			p.observe(tier, OutcomeError)
			if !tw.wroteHeader {
				ErrInternal.WriteError(tw)
			}
		}()
		fn(tw, r)
	})
}

type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter { return tw.ResponseWriter }
