package rbac_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/stretchr/testify/require"
)

// memSource is an in-memory UserSource that counts reads and can hold them.
type memSource struct {
	mu    sync.Mutex
	users map[string]rbac.User
	err   error
	reads atomic.Int64

	// gate, when set, blocks every read until closed.
	gate chan struct{}
}

func newMemSource(users ...rbac.User) *memSource {
	s := &memSource{users: make(map[string]rbac.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memSource) UserByID(ctx context.Context, id string) (rbac.User, error) {
	s.reads.Add(1)

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return rbac.User{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return rbac.User{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrUserNotFound
	}
	return u, nil
}

func (s *memSource) setRole(id string, role rbac.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.Role = role
	s.users[id] = u
}

func TestResolver_Resolve(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Email: "a@example.com", Role: rbac.RoleUser})
	r := rbac.NewResolver(src, nil)
	ctx := context.Background()

	t.Run("role comes from the store, not the principal", func(t *testing.T) {
		u, err := r.Resolve(ctx, rbac.Principal{ID: "u1", Role: rbac.RoleAdmin})
		require.NoError(t, err)
		require.Equal(t, rbac.RoleUser, u.Role)
		require.Equal(t, "a@example.com", u.Email)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := r.Resolve(ctx, rbac.Principal{ID: "ghost"})
		require.ErrorIs(t, err, rbac.ErrUserNotFound)
	})

	t.Run("empty principal", func(t *testing.T) {
		_, err := r.Resolve(ctx, rbac.Principal{})
		require.ErrorIs(t, err, rbac.ErrUserNotFound)
	})

	t.Run("does not populate the role cache", func(t *testing.T) {
		_, ok := r.Cache().Get("u1")
		require.False(t, ok)
	})
}

func TestResolver_RoleOf_CachesAndFailsClosed(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleAdmin})
	r := rbac.NewResolver(src, rbac.NewRoleCache(rbac.CacheConfig{}))
	ctx := context.Background()

	role, err := r.RoleOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, role)

	role, err = r.RoleOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, role)
	require.Equal(t, int64(1), src.reads.Load(), "second lookup is served from cache")

	t.Run("store error propagates", func(t *testing.T) {
		src.mu.Lock()
		src.err = errors.New("database is locked")
		src.mu.Unlock()
		defer func() {
			src.mu.Lock()
			src.err = nil
			src.mu.Unlock()
		}()

		role, err := r.RoleOf(ctx, "u2")
		require.Error(t, err)
		require.Equal(t, rbac.RoleNone, role)
	})

	t.Run("invalid stored role fails closed", func(t *testing.T) {
		src.mu.Lock()
		src.users["u3"] = rbac.User{ID: "u3", Role: rbac.Role("root")}
		src.mu.Unlock()

		role, err := r.RoleOf(ctx, "u3")
		require.ErrorIs(t, err, rbac.ErrInvalidRole)
		require.Equal(t, rbac.RoleNone, role)

		_, ok := r.Cache().Get("u3")
		require.False(t, ok)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := r.RoleOf(ctx, "")
		require.ErrorIs(t, err, rbac.ErrUserNotFound)
	})
}

func TestResolver_DowngradeWindow(t *testing.T) {
	clock := newFakeClock()
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleAdmin})
	r := rbac.NewResolver(src, rbac.NewRoleCache(rbac.CacheConfig{TTL: 30 * time.Second, Clock: clock.Now}))
	ctx := context.Background()

	role, err := r.RoleOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, role)

	src.setRole("u1", rbac.RoleUser)

	// Within the TTL the cached admin role is still served.
	clock.Advance(10 * time.Second)
	role, err = r.RoleOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleAdmin, role)

	// Past the TTL the downgrade is visible.
	clock.Advance(21 * time.Second)
	role, err = r.RoleOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleUser, role)
}

func TestResolver_InvalidateIsImmediate(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleAdmin})
	r := rbac.NewResolver(src, nil)
	ctx := context.Background()

	_, err := r.RoleOf(ctx, "u1")
	require.NoError(t, err)

	src.setRole("u1", rbac.RoleUser)
	r.Invalidate("u1")

	role, err := r.RoleOf(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleUser, role)
}

func TestResolver_CoalescesConcurrentMisses(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleUser})
	src.gate = make(chan struct{})
	r := rbac.NewResolver(src, nil)
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	results := make(chan rbac.Role, callers)

	for range callers {
		wg.Go(func() {
			role, err := r.RoleOf(ctx, "u1")
			if err == nil {
				results <- role
			}
		})
	}

	// Let the callers pile up on the held read.
	require.Eventually(t, func() bool { return src.reads.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(results)

	n := 0
	for role := range results {
		require.Equal(t, rbac.RoleUser, role)
		n++
	}
	require.Equal(t, callers, n)
	require.Less(t, src.reads.Load(), int64(callers), "misses should share store reads")
}

func TestResolver_InvalidationDuringReadDoesNotRepopulate(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleAdmin})
	src.gate = make(chan struct{})
	r := rbac.NewResolver(src, nil)
	ctx := context.Background()

	done := make(chan rbac.Role, 1)
	go func() {
		role, _ := r.RoleOf(ctx, "u1")
		done <- role
	}()

	require.Eventually(t, func() bool { return src.reads.Load() == 1 }, time.Second, time.Millisecond)

	// The read is in flight with the old role; invalidate underneath it.
	r.Invalidate("u1")
	close(src.gate)
	<-done

	_, ok := r.Cache().Get("u1")
	require.False(t, ok, "a read that raced an invalidation must not be cached")
}

func TestResolver_RoleOfRespectsContext(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleUser})
	src.gate = make(chan struct{})
	defer close(src.gate)
	r := rbac.NewResolver(src, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	role, err := r.RoleOf(ctx, "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, rbac.RoleNone, role)
}

func TestResolver_CallerCancelDoesNotFailSharedRead(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleAdmin})
	src.gate = make(chan struct{})
	r := rbac.NewResolver(src, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := r.RoleOf(ctxA, "u1")
		errA <- err
	}()
	require.Eventually(t, func() bool { return src.reads.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		role rbac.Role
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		role, err := r.RoleOf(context.Background(), "u1")
		resB <- result{role, err}
	}()

	// Let B join the held read, then A's client goes away.
	time.Sleep(20 * time.Millisecond)
	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(src.gate)
	b := <-resB
	require.NoError(t, b.err)
	require.Equal(t, rbac.RoleAdmin, b.role)
	require.EqualValues(t, 1, src.reads.Load(), "B should have shared A's read")

	_, ok := r.Cache().Get("u1")
	require.True(t, ok)
}

func TestResolver_SharedReadIsBounded(t *testing.T) {
	src := newMemSource(rbac.User{ID: "u1", Role: rbac.RoleUser})
	src.gate = make(chan struct{})
	defer close(src.gate)
	r := rbac.NewResolver(src, nil)
	r.LookupTimeout = 20 * time.Millisecond

	role, err := r.RoleOf(context.Background(), "u1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, rbac.RoleNone, role)
}
