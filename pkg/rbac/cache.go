package rbac

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultCacheTTL bounds how long a downgraded role can keep working.
	DefaultCacheTTL = 30 * time.Second

	// DefaultCacheSize is the total entry budget across all shards.
	DefaultCacheSize = 10_000

	cacheShards = 16
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// CacheEntry is a cached principal to role mapping.
type CacheEntry struct {
	PrincipalID string
	Role        Role
	CachedAt    time.Time
}

// CacheConfig configures a RoleCache. Zero values fall back to defaults.
type CacheConfig struct {
	TTL   time.Duration
	Size  int
	Clock Clock
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits          uint64
	Misses        uint64
	Invalidations uint64
	Entries       int
}

// RoleCache is a sharded, size-bounded, TTL-bounded map of principal id to
// role. Each shard carries a generation counter that is bumped on
// invalidation; a Store carrying an older generation is dropped, so a store
// read that raced an invalidation never re-populates a stale role.
type RoleCache struct {
	shards [cacheShards]*cacheShard
	ttl    time.Duration
	clock  Clock

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

type cacheShard struct {
	mu    sync.Mutex
	gen   uint64
	items *lru.LRU[string, CacheEntry]
}

// NewRoleCache builds a RoleCache.
func NewRoleCache(cfg CacheConfig) *RoleCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultCacheSize
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	perShard := max((cfg.Size+cacheShards-1)/cacheShards, 1)

	c := &RoleCache{ttl: cfg.TTL, clock: cfg.Clock}
	for i := range c.shards {
		c.shards[i] = &cacheShard{
			items: lru.NewLRU[string, CacheEntry](perShard, nil, cfg.TTL),
		}
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *RoleCache) TTL() time.Duration { return c.ttl }

func (c *RoleCache) shard(id string) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return c.shards[h.Sum32()%cacheShards]
}

// Get returns the cached entry for id if present and younger than the TTL.
func (c *RoleCache) Get(id string) (CacheEntry, bool) {
	s := c.shard(id)

	s.mu.Lock()
	e, ok := s.items.Get(id)
	if ok && c.clock().Sub(e.CachedAt) >= c.ttl {
		s.items.Remove(id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return CacheEntry{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Generation returns the current generation of the shard owning id. Callers
// snapshot it before a store read and hand it back to Store.
func (c *RoleCache) Generation(id string) uint64 {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Store caches role for id unless the shard was invalidated after gen was
// taken. It reports whether the entry was written.
func (c *RoleCache) Store(id string, role Role, gen uint64) bool {
	s := c.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return false
	}
	s.items.Add(id, CacheEntry{PrincipalID: id, Role: role, CachedAt: c.clock()})
	return true
}

// Invalidate drops the given ids, or every entry when none are given.
// Unknown ids are ignored.
func (c *RoleCache) Invalidate(ids ...string) {
	c.invalidations.Add(1)

	if len(ids) == 0 {
		for _, s := range c.shards {
			s.mu.Lock()
			s.gen++
			s.items.Purge()
			s.mu.Unlock()
		}
		return
	}

	for _, id := range ids {
		s := c.shard(id)
		s.mu.Lock()
		s.gen++
		s.items.Remove(id)
		s.mu.Unlock()
	}
}

// Stats returns the current counters.
func (c *RoleCache) Stats() CacheStats {
	n := 0
	for _, s := range c.shards {
		n += s.items.Len()
	}
	return CacheStats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
		Entries:       n,
	}
}
