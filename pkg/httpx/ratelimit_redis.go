package httpx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/warden/pkg/idx"
	"github.com/redis/go-redis/v9"
)

// ErrLimiterUnavailable wraps failures talking to the limiter backend.
var ErrLimiterUnavailable = errors.New("rate limiter unavailable")

// DefaultRedisLimiterPrefix namespaces limiter keys in a shared Redis.
const DefaultRedisLimiterPrefix = "warden:ratelimit"

// RedisLimiter is a sliding-window limiter shared by every instance pointed at
// the same Redis. Each key is a sorted set of request timestamps; entries older
// than the window are trimmed before counting.
type RedisLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
	now    func() time.Time
}

// RedisLimiterOption customises a RedisLimiter.
type RedisLimiterOption func(*RedisLimiter)

// WithLimiterPrefix overrides DefaultRedisLimiterPrefix.
func WithLimiterPrefix(prefix string) RedisLimiterOption {
	return func(l *RedisLimiter) { l.prefix = prefix }
}

// WithLimiterClock overrides the clock used to timestamp requests.
func WithLimiterClock(now func() time.Time) RedisLimiterOption {
	return func(l *RedisLimiter) { l.now = now }
}

func NewRedisLimiter(client *redis.Client, config RateLimitConfig, opts ...RedisLimiterOption) *RedisLimiter {
	l := &RedisLimiter{
		redis:  client,
		config: config,
		prefix: DefaultRedisLimiterPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// slidingWindowScript trims, counts and conditionally records in one step so
// concurrent callers never see a rejected request in the count. Scores are
// unix microseconds.
//
// KEYS[1] window key
// ARGV    now, window, limit, member, ttl in ms
// returns {allowed, count, retry after in us}
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count < limit then
	redis.call('ZADD', KEYS[1], now, ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
	return {1, count + 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
end
return {0, count, retry}
`)

// Allow records one request for key and reports whether it fits in the
// window. Rejected requests are not recorded, so a caller regains capacity
// exactly one window after its oldest accepted request.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()

	d := Decision{
		Limit:  l.config.RequestsPerWindow,
		Window: l.config.Window,
	}

	res, err := slidingWindowScript.Run(ctx, l.redis,
		[]string{l.prefix + ":" + key},
		now.UnixMicro(),
		l.config.Window.Microseconds(),
		l.config.RequestsPerWindow,
		idx.NewAt(now).String(),
		max(l.config.Window.Milliseconds(), 1),
	).Int64Slice()
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if len(res) != 3 {
		return d, fmt.Errorf("%w: unexpected script reply %v", ErrLimiterUnavailable, res)
	}

	if res[0] == 1 {
		d.Allowed = true
		d.Remaining = l.config.RequestsPerWindow - int(res[1])
		return d, nil
	}

	d.RetryAfter = max(time.Duration(res[2])*time.Microsecond, time.Millisecond)
	return d, nil
}

// Reset clears the recorded requests for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.prefix+":"+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
