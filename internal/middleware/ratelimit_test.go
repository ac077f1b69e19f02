package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparelink/parts-marketplace/internal/config"
)

func testBucketConfig(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Minute, // long enough that tests never refill
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "authrl",
	}
}

func fireLogin(t *testing.T, mw echo.MiddlewareFunc, ip string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/admins/login", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := mw(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "through"})
	})
	require.NoError(t, h(c))
	return rec
}

func TestTokenBucketAllowsWithinCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := NewTokenBucket(testBucketConfig(3), rdb)

	for i := 0; i < 3; i++ {
		rec := fireLogin(t, mw, "10.0.0.1")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
}

func TestTokenBucketBlocksOverCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := NewTokenBucket(testBucketConfig(2), rdb)

	fireLogin(t, mw, "10.0.0.1")
	fireLogin(t, mw, "10.0.0.1")
	rec := fireLogin(t, mw, "10.0.0.1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "too many requests")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketKeysByIP(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := NewTokenBucket(testBucketConfig(1), rdb)

	rec := fireLogin(t, mw, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = fireLogin(t, mw, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client is unaffected by the first one's empty bucket.
	rec = fireLogin(t, mw, "10.0.0.2")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucketSetsRateHeaders(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := NewTokenBucket(testBucketConfig(5), rdb)

	rec := fireLogin(t, mw, "10.0.0.1")
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTokenBucketDisabledPassesThrough(t *testing.T) {
	cfg := testBucketConfig(1)
	cfg.Enabled = false
	mw := NewTokenBucket(cfg, nil)

	for i := 0; i < 10; i++ {
		rec := fireLogin(t, mw, "10.0.0.1")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestTokenBucketFailsOpenWhenRedisGone(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mw := NewTokenBucket(testBucketConfig(1), rdb)
	mr.Close()

	// Broker trouble must not lock users out of login entirely.
	rec := fireLogin(t, mw, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
}
