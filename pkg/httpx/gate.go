package httpx

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// RouteClass is the coarse page classification the gate acts on.
type RouteClass int

const (
	RoutePublic RouteClass = iota
	RoutePrivate
	RouteAdmin
)

func (c RouteClass) String() string {
	switch c {
	case RoutePrivate:
		return "private"
	case RouteAdmin:
		return "admin"
	default:
		return "public"
	}
}

// RouteRule classifies every path under Prefix. AllowedRoles widens an admin
// rule to extra roles; it is empty by default.
type RouteRule struct {
	Prefix       string
	Class        RouteClass
	AllowedRoles []rbac.Role
}

// DefaultRoutes is the storefront's page table. First match wins.
var DefaultRoutes = []RouteRule{
	{Prefix: "/admin", Class: RouteAdmin},
	{Prefix: "/account", Class: RoutePrivate},
	{Prefix: "/checkout", Class: RoutePrivate},
	{Prefix: "/orders", Class: RoutePrivate},
}

// GateConfig controls where the gate redirects.
type GateConfig struct {
	LoginPath   string
	LandingPath string
}

// Classify returns the first rule matching path, or a public rule.
func Classify(routes []RouteRule, path string) RouteRule {
	for _, rule := range routes {
		if matchPrefix(rule.Prefix, path) {
			return rule
		}
	}
	return RouteRule{Class: RoutePublic}
}

// matchPrefix matches whole path segments, so /admin covers /admin and
// /admin/x but not /administrator.
func matchPrefix(prefix, path string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || strings.HasSuffix(prefix, "/") || path[len(prefix)] == '/'
}

// Gate redirects page navigations the caller cannot use. It trusts the role
// on the verified bearer and never consults the role cache; handlers behind
// it still run their own policy.
func Gate(routes []RouteRule, cfg GateConfig) Middleware {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule := Classify(routes, r.URL.Path)
			if rule.Class == RoutePublic {
				next.ServeHTTP(w, r)
				return
			}

			log := slogx.FromContext(r.Context())

			principal, ok := rbac.PrincipalFrom(r.Context())
			if !ok {
				log.Debug("gate: login required", "class", rule.Class.String(), "path", r.URL.Path)
				http.Redirect(w, r, loginRedirect(cfg.LoginPath, r.URL), http.StatusFound)
				return
			}

			if rule.Class == RouteAdmin && !roleAllowed(principal.Role, rule.AllowedRoles) {
				log.Info("gate: admin page refused", "role", principal.Role.String(), "path", r.URL.Path)
				http.Redirect(w, r, cfg.LandingPath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func roleAllowed(role rbac.Role, extra []rbac.Role) bool {
	if rbac.Satisfies(role, rbac.TierAdmin) {
		return true
	}
	for _, allowed := range extra {
		if role.Valid() && role == allowed {
			return true
		}
	}
	return false
}

func loginRedirect(loginPath string, u *url.URL) string {
	callback := u.Path
	if u.RawQuery != "" {
		callback += "?" + u.RawQuery
	}
	return loginPath + "?" + url.Values{"callbackUrl": {callback}}.Encode()
}
