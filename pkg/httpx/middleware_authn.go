package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/warden/pkg/jwtx"
	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// DefaultSessionCookie is where browsers carry the session bearer.
const DefaultSessionCookie = "warden_session"

// AuthnMiddleware verifies the session bearer from the Authorization header
// or, failing that, the session cookie, and attaches the resulting
// rbac.Principal to the request context.
//
// It never rejects: a missing or unverifiable bearer just means no
// principal, and the policy or gate further down decides what that means.
func AuthnMiddleware(v jwtx.Verifier, cookieName string) Middleware {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r, cookieName)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := slogx.FromContext(ctx)

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("bearer rejected", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			// An unknown role claim still authenticates, it just satisfies
			// nothing above the public tier.
			role, err := rbac.ParseRole(claims.Role)
			if err != nil && claims.Role != "" {
				log.Warn("bearer carries unknown role", "sub", claims.Subject, "role", claims.Role)
			}

			ctx = rbac.WithPrincipal(ctx, rbac.Principal{
				ID:    claims.Subject,
				Email: claims.Email,
				Role:  role,
			})
			ctx = slogx.With(ctx, "user_id", claims.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request, cookieName string) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, token, ok := strings.Cut(authz, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
