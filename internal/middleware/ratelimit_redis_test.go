package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()
	l := NewRedisLimiter(rdb, 3, time.Second)

	for want := 2; want >= 0; want-- {
		d, err := l.Allow(ctx, "rl:auth:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, want, d.Remaining)
	}

	d, err := l.Allow(ctx, "rl:auth:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Second)

	other, err := l.Allow(ctx, "rl:auth:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	// the key expires with the window
	require.Eventually(t, func() bool {
		d, err := l.Allow(ctx, "rl:auth:10.0.0.1")
		return err == nil && d.Allowed
	}, 5*time.Second, 100*time.Millisecond)
}

func TestRateLimitRedisMiddleware(t *testing.T) {
	rdb := startRedis(t)
	r := newEngine(RateLimit(NewRedisLimiter(rdb, 2, time.Minute), "auth", discard))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w, _ := do(r, http.MethodPost, "/login", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
	w, body := do(r, http.MethodPost, "/login", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded, try again later", body["error"])
}
