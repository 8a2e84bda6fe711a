package httpx

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst caps how many of the window's requests may arrive back to back.
	// Zero, or anything above RequestsPerWindow, means no extra cap. Only the
	// in-memory limiter uses it.
	Burst int
}

// Rate limit profiles. Each can be overridden via environment variables
// (see init() below).
var (
	// StrictLimit for credential and verification endpoints.
	// Override with: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC, RATELIMIT_STRICT_BURST
	StrictLimit = RateLimitConfig{
		RequestsPerWindow: 5,
		Window:            time.Minute,
		Burst:             5,
	}

	// ModerateLimit for authenticated operations.
	ModerateLimit = RateLimitConfig{
		RequestsPerWindow: 20,
		Window:            time.Minute,
		Burst:             20,
	}

	// LenientLimit for integration (API key) traffic.
	LenientLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		Burst:             100,
	}

	// PublicLimit for public read-only endpoints.
	PublicLimit = RateLimitConfig{
		RequestsPerWindow: 1000,
		Window:            time.Minute,
		Burst:             1000,
	}
)

func init() {
	StrictLimit = ParseRateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = ParseRateLimitFromEnv("MODERATE", ModerateLimit)
	LenientLimit = ParseRateLimitFromEnv("LENIENT", LenientLimit)
	PublicLimit = ParseRateLimitFromEnv("PUBLIC", PublicLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_STRICT_REQUESTS, RATELIMIT_STRICT_WINDOW_SEC, RATELIMIT_STRICT_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Window     time.Duration
	RetryAfter time.Duration
}

// Limiter counts requests per caller key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, user ID, form field).
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// UserIDKeyExtractor returns the principal id attached by AuthnMiddleware,
// or "" for anonymous requests.
func UserIDKeyExtractor(r *http.Request) string {
	if p, ok := rbac.PrincipalFrom(r.Context()); ok {
		return p.ID
	}
	return ""
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", IPKeyExtractor, UserIDKeyExtractor)
// would produce keys like "192.168.1.1:01J..."
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// FormFieldKeyExtractor extracts a key from a form field (works for both GET and POST).
func FormFieldKeyExtractor(fieldName string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err == nil {
			return r.FormValue(fieldName)
		}
		return ""
	}
}

// MemoryLimiter is a per-process sliding-window limiter. Each key keeps the
// timestamps of its accepted requests; at most RequestsPerWindow of them fall
// inside any Window. When Burst is below RequestsPerWindow a token bucket
// refilling at RequestsPerWindow/Window additionally caps back to back spikes.
type MemoryLimiter struct {
	config RateLimitConfig
	now    func() time.Time

	mu          sync.Mutex
	windows     map[string]*memoryWindow
	lastCleanup time.Time
}

type memoryWindow struct {
	hits   []time.Time // accepted requests, oldest first
	bucket *rate.Limiter
}

// MemoryLimiterOption customises a MemoryLimiter.
type MemoryLimiterOption func(*MemoryLimiter)

// WithMemoryLimiterClock overrides the clock used to timestamp requests.
func WithMemoryLimiterClock(now func() time.Time) MemoryLimiterOption {
	return func(ml *MemoryLimiter) { ml.now = now }
}

// NewMemoryLimiter returns an in-process limiter for config. A zero Burst
// means the whole window quota is available at once.
func NewMemoryLimiter(config RateLimitConfig, opts ...MemoryLimiterOption) *MemoryLimiter {
	if config.Burst <= 0 || config.Burst > config.RequestsPerWindow {
		config.Burst = config.RequestsPerWindow
	}
	ml := &MemoryLimiter{
		config:  config,
		now:     time.Now,
		windows: make(map[string]*memoryWindow),
	}
	for _, opt := range opts {
		opt(ml)
	}
	ml.lastCleanup = ml.now()
	return ml
}

// Allow records one request for key when it fits. Rejected requests are not
// recorded.
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := ml.now()

	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.maybeCleanup(now)

	w, ok := ml.windows[key]
	if !ok {
		w = &memoryWindow{}
		if ml.config.Burst < ml.config.RequestsPerWindow {
			perSec := float64(ml.config.RequestsPerWindow) / ml.config.Window.Seconds()
			w.bucket = rate.NewLimiter(rate.Limit(perSec), ml.config.Burst)
		}
		ml.windows[key] = w
	}
	w.trim(now.Add(-ml.config.Window))

	d := Decision{
		Limit:  ml.config.RequestsPerWindow,
		Window: ml.config.Window,
	}

	if len(w.hits) >= ml.config.RequestsPerWindow {
		d.RetryAfter = max(w.hits[0].Add(ml.config.Window).Sub(now), time.Millisecond)
		return d, nil
	}

	if w.bucket != nil {
		r := w.bucket.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			d.RetryAfter = delay
			return d, nil
		}
	}

	w.hits = append(w.hits, now)
	d.Allowed = true
	d.Remaining = ml.config.RequestsPerWindow - len(w.hits)
	return d, nil
}

// trim drops hits at or before cutoff.
func (w *memoryWindow) trim(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	w.hits = w.hits[i:]
}

// maybeCleanup drops keys with no request inside the window, so ephemeral
// keys do not accumulate. Their buckets have refilled by then. Callers hold
// ml.mu.
func (ml *MemoryLimiter) maybeCleanup(now time.Time) {
	if now.Sub(ml.lastCleanup) < time.Minute {
		return
	}
	ml.lastCleanup = now

	cutoff := now.Add(-ml.config.Window)
	for key, w := range ml.windows {
		if n := len(w.hits); n == 0 || !w.hits[n-1].After(cutoff) {
			delete(ml.windows, key)
		}
	}
}

// RateLimitMiddleware rejects requests once the caller's quota is spent.
// The keyExtractor determines how requests are grouped.
func RateLimitMiddleware(limiter Limiter, keyExtractor KeyExtractor) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforceRateLimit(w, r, limiter, keyExtractor) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// enforceRateLimit reports whether the request may proceed, writing the 429
// itself when it may not. A limiter backend failure lets the request
// through; the failure is logged.
func enforceRateLimit(w http.ResponseWriter, r *http.Request, limiter Limiter, keyExtractor KeyExtractor) bool {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	key := keyExtractor(r)
	if key == "" {
		log.Warn("rate limit: unable to extract key, allowing request")
		return true
	}

	d, err := limiter.Allow(ctx, key)
	if err != nil {
		log.Error("rate limit: limiter unavailable, allowing request", "err", err)
		return true
	}

	if d.Allowed {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		return true
	}

	retryAfter := max(int((d.RetryAfter+time.Second-1)/time.Second), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Window", d.Window.String())

	log.Warn("rate limit exceeded",
		"key", key,
		"endpoint", r.URL.Path,
		"retry_after", retryAfter,
	)

	ErrTooManyRequests.WriteError(w)
	return false
}

// RateLimitByIP limits by client IP using an in-memory limiter.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(NewMemoryLimiter(config), IPKeyExtractor)
}

// RateLimitByUser limits by authenticated principal, falling back to IP.
func RateLimitByUser(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(NewMemoryLimiter(config), CompositeKeyExtractor(":",
		UserIDKeyExtractor,
		IPKeyExtractor,
	))
}

// RateLimitByIPAndFormField limits by IP + form field, e.g. IP + email on
// credential endpoints.
func RateLimitByIPAndFormField(config RateLimitConfig, fieldName string) Middleware {
	return RateLimitMiddleware(NewMemoryLimiter(config), CompositeKeyExtractor(":",
		IPKeyExtractor,
		FormFieldKeyExtractor(fieldName),
	))
}
