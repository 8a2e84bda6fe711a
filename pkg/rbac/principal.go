package rbac

import (
	"context"
	"time"
)

// Principal is the caller identity derived from a verified bearer credential.
// Role here is whatever the bearer claimed and is only good for coarse
// decisions; the stored record is authoritative.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

// User is the stored identity record as seen by the authorization layer.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Salt              string
	Role              Role
	PasswordUpdatedAt time.Time
}

type principalKey struct{}
type userKey struct{}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached to ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}

// WithUser attaches a resolved user record to ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the resolved user record attached to ctx, if any.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}
