package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/campus-events/internal/models"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Decision is the result of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimit throttles requests per client IP under scope. Limiter errors
// fail open.
func RateLimit(l Limiter, scope string, logger *slog.Logger) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		d, err := l.Allow(c.Request.Context(), "rl:"+scope+":"+ip)
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable", "scope", scope, "error", err)
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.Error(models.NewRateLimitedError())
			c.Abort()
			return
		}
		c.Next()
	}
}

// MemoryLimiter keeps one token bucket per key in process.
type MemoryLimiter struct {
	perMinute int

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	stop     chan struct{}
	once     sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMemoryLimiter allows perMinute requests per key with an equal burst.
// A non-positive perMinute disables limiting.
func NewMemoryLimiter(perMinute int) *MemoryLimiter {
	m := &MemoryLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*limiterEntry),
		stop:      make(chan struct{}),
	}
	if perMinute > 0 {
		go m.cleanupLoop(5*time.Minute, 15*time.Minute)
	}
	return m
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if m.perMinute <= 0 {
		return Decision{Allowed: true}, nil
	}

	m.mu.Lock()
	entry, ok := m.limiters[key]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute),
		}
		m.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	m.mu.Unlock()

	r := entry.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return Decision{Allowed: false, Limit: m.perMinute, RetryAfter: delay}, nil
	}
	remaining := int(entry.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: m.perMinute, Remaining: remaining}, nil
}

func (m *MemoryLimiter) cleanupLoop(every, ttl time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanup(ttl)
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryLimiter) cleanup(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, entry := range m.limiters {
		if now.Sub(entry.lastSeen) > ttl {
			delete(m.limiters, key)
		}
	}
}

// Stop ends the background cleanup.
func (m *MemoryLimiter) Stop() {
	m.once.Do(func() { close(m.stop) })
}

// atomic INCR, with the expiry set on the first hit of a window
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter is a fixed window counter shared by every API instance.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, max: max, window: window}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if r.max <= 0 {
		return Decision{Allowed: true}, nil
	}
	res, err := incrExpireScript.Run(ctx, r.rdb, []string{key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	remaining := r.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= r.max,
		Limit:      r.max,
		Remaining:  remaining,
		RetryAfter: ttl,
	}, nil
}
