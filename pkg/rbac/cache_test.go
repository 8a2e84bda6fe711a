package rbac_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/warden/pkg/rbac"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRoleCache_GetStore(t *testing.T) {
	clock := newFakeClock()
	c := rbac.NewRoleCache(rbac.CacheConfig{TTL: 30 * time.Second, Clock: clock.Now})

	_, ok := c.Get("u1")
	require.False(t, ok)

	require.True(t, c.Store("u1", rbac.RoleAdmin, c.Generation("u1")))

	e, ok := c.Get("u1")
	require.True(t, ok)
	require.Equal(t, rbac.RoleAdmin, e.Role)
	require.Equal(t, "u1", e.PrincipalID)
	require.Equal(t, clock.Now(), e.CachedAt)
}

func TestRoleCache_TTL(t *testing.T) {
	clock := newFakeClock()
	c := rbac.NewRoleCache(rbac.CacheConfig{TTL: 30 * time.Second, Clock: clock.Now})
	c.Store("u1", rbac.RoleAdmin, c.Generation("u1"))

	clock.Advance(29 * time.Second)
	_, ok := c.Get("u1")
	require.True(t, ok, "entry younger than TTL is served")

	clock.Advance(time.Second)
	_, ok = c.Get("u1")
	require.False(t, ok, "entry at TTL is a miss")
}

func TestRoleCache_Invalidate(t *testing.T) {
	c := rbac.NewRoleCache(rbac.CacheConfig{})

	for i := range 5 {
		id := fmt.Sprintf("u%d", i)
		c.Store(id, rbac.RoleUser, c.Generation(id))
	}

	t.Run("single id", func(t *testing.T) {
		c.Invalidate("u0")
		_, ok := c.Get("u0")
		require.False(t, ok)
		_, ok = c.Get("u1")
		require.True(t, ok)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		require.NotPanics(t, func() { c.Invalidate("nobody") })
		_, ok := c.Get("u1")
		require.True(t, ok)
	})

	t.Run("flush all", func(t *testing.T) {
		c.Invalidate()
		for i := range 5 {
			_, ok := c.Get(fmt.Sprintf("u%d", i))
			require.False(t, ok)
		}
		require.Equal(t, 0, c.Stats().Entries)
	})

	t.Run("idempotent", func(t *testing.T) {
		c.Invalidate()
		c.Invalidate()
		require.Equal(t, 0, c.Stats().Entries)
	})
}

func TestRoleCache_StaleGenerationIsDropped(t *testing.T) {
	c := rbac.NewRoleCache(rbac.CacheConfig{})

	gen := c.Generation("u1")
	c.Invalidate("u1")

	require.False(t, c.Store("u1", rbac.RoleAdmin, gen))
	_, ok := c.Get("u1")
	require.False(t, ok)

	gen = c.Generation("u1")
	c.Invalidate()
	require.False(t, c.Store("u1", rbac.RoleAdmin, gen))
}

func TestRoleCache_SizeBound(t *testing.T) {
	c := rbac.NewRoleCache(rbac.CacheConfig{Size: 32})

	for i := range 1000 {
		id := fmt.Sprintf("user-%d", i)
		c.Store(id, rbac.RoleUser, c.Generation(id))
	}

	// 16 shards of 2 entries each
	require.LessOrEqual(t, c.Stats().Entries, 32)
}

func TestRoleCache_Stats(t *testing.T) {
	c := rbac.NewRoleCache(rbac.CacheConfig{})

	c.Get("u1")
	c.Store("u1", rbac.RoleUser, c.Generation("u1"))
	c.Get("u1")
	c.Get("u1")
	c.Invalidate("u1")

	stats := c.Stats()
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, uint64(1), stats.Invalidations)
	require.Equal(t, 0, stats.Entries)
}

func TestRoleCache_Concurrent(t *testing.T) {
	c := rbac.NewRoleCache(rbac.CacheConfig{Size: 128})

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Go(func() {
			for i := range 500 {
				id := fmt.Sprintf("u%d", (w*500+i)%64)
				c.Store(id, rbac.RoleUser, c.Generation(id))
				c.Get(id)
				if i%50 == 0 {
					c.Invalidate(id)
				}
			}
		})
	}
	wg.Wait()
}
