package httpx

import (
	"net/http"
	"strings"
)

// RequireAnyScope the API key must carry at least one of the provided scopes.
// Runs behind Public(..., WithAPIKey()).
func RequireAnyScope(required ...string) Middleware {
	want := make(map[string]struct{}, len(required))
	for _, s := range required {
		want[s] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, s := range scopesFromCtx(r.Context()) {
				if _, ok := want[s]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeScopeError(w, required...)
		})
	}
}

// RequireAllScopes the API key must carry every scope listed.
func RequireAllScopes(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := make(map[string]struct{})
			for _, s := range scopesFromCtx(r.Context()) {
				have[s] = struct{}{}
			}

			for _, req := range required {
				if _, ok := have[req]; !ok {
					writeScopeError(w, required...)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeScopeError(w http.ResponseWriter, required ...string) {
	w.Header().Set("WWW-Authenticate", `ApiKey error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
	ErrForbidden.WithMessage("insufficient scope").WriteError(w)
}
