package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUserNotFound is returned when the principal has no stored record.
var ErrUserNotFound = errors.New("rbac: user not found")

// DefaultLookupTimeout bounds a shared role read.
const DefaultLookupTimeout = 5 * time.Second

// UserSource is the read side of the user store.
type UserSource interface {
	UserByID(ctx context.Context, id string) (User, error)
}

// Resolver maps principals to stored user records and roles. Role lookups go
// through the RoleCache; full record lookups always hit the store.
type Resolver struct {
	// LookupTimeout bounds a shared store read in RoleOf. Zero means
	// DefaultLookupTimeout.
	LookupTimeout time.Duration

	source UserSource
	cache  *RoleCache
	group  singleflight.Group
}

// NewResolver returns a Resolver. A nil cache gets a default one.
func NewResolver(source UserSource, cache *RoleCache) *Resolver {
	if cache == nil {
		cache = NewRoleCache(CacheConfig{})
	}
	return &Resolver{source: source, cache: cache}
}

// Cache exposes the underlying RoleCache.
func (r *Resolver) Cache() *RoleCache { return r.cache }

// Resolve loads the stored record for p. The role on the result comes from
// the store, never from the principal. The RoleCache is not refreshed here.
func (r *Resolver) Resolve(ctx context.Context, p Principal) (User, error) {
	if p.ID == "" {
		return User{}, ErrUserNotFound
	}

	u, err := r.source.UserByID(ctx, p.ID)
	if err != nil {
		return User{}, err
	}
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("%w: stored role %q for user %s", ErrInvalidRole, u.Role, u.ID)
	}
	return u, nil
}

// RoleOf returns the role for a principal id, cache first. Concurrent misses
// for the same id share one store read, which does not inherit any single
// caller's cancellation; each caller stops waiting when its own ctx ends.
// Errors are never cached and never turned into a default role.
func (r *Resolver) RoleOf(ctx context.Context, id string) (Role, error) {
	if id == "" {
		return RoleNone, ErrUserNotFound
	}

	if e, ok := r.cache.Get(id); ok {
		return e.Role, nil
	}

	// Keying the flight on the generation keeps callers that arrive after an
	// invalidation off a read that started before it.
	gen := r.cache.Generation(id)
	key := id + "@" + strconv.FormatUint(gen, 10)

	timeout := r.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}

	ch := r.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		u, err := r.source.UserByID(lookupCtx, id)
		if err != nil {
			return RoleNone, err
		}
		if !u.Role.Valid() {
			return RoleNone, fmt.Errorf("%w: stored role %q for user %s", ErrInvalidRole, u.Role, id)
		}
		r.cache.Store(id, u.Role, gen)
		return u.Role, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return RoleNone, res.Err
		}
		return res.Val.(Role), nil
	case <-ctx.Done():
		return RoleNone, ctx.Err()
	}
}

// Invalidate drops cached roles for ids, or everything when none are given.
func (r *Resolver) Invalidate(ids ...string) {
	r.cache.Invalidate(ids...)
}
