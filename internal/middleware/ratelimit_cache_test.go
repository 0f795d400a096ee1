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

	"github.com/iliyamo/jewelry-storefront/internal/apperr"
	"github.com/iliyamo/jewelry-storefront/internal/config"
)

func limitCfg(capacity int) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       capacity,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "client_ip",
		Prefix:         "rl",
	}
}

func limitedEcho(t *testing.T, cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
	t.Helper()
	resolver, _, _ := testTenants(t)
	e := newEcho()
	g := e.Group("/api", ResolveClient(resolver, nil, nil), NewTokenBucket(cfg, rdb, nil))
	g.GET("/products", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func hit(e *echo.Echo, client string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products?sort=price", nil)
	req.Header.Set(ClientHeader, client)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	e := limitedEcho(t, limitCfg(2), rdb)

	assert.Equal(t, http.StatusOK, hit(e, "shop1").Code)
	rec := hit(e, "shop1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit(e, "shop1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperr.CodeTooManyRequests, decodeBody(t, rec)["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Buckets are per client.
	assert.Equal(t, http.StatusOK, hit(e, "shop2").Code)
	assert.NotEmpty(t, mr.Keys())
}

func TestTokenBucket_LocalFallback(t *testing.T) {
	e := limitedEcho(t, limitCfg(1), nil)

	assert.Equal(t, http.StatusOK, hit(e, "shop1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "shop1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "shop2").Code)
}

func TestTokenBucket_RedisDownUsesLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()
	e := limitedEcho(t, limitCfg(1), rdb)

	assert.Equal(t, http.StatusOK, hit(e, "shop1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "shop1").Code)
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := limitCfg(1)
	cfg.Enabled = false
	e := limitedEcho(t, cfg, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "shop1").Code)
	}
}

func TestLocalBuckets_Refill(t *testing.T) {
	l := newLocalBuckets(limitCfg(1))
	now := time.Now()
	assert.True(t, l.take("k", now).allowed)
	d := l.take("k", now)
	assert.False(t, d.allowed)
	assert.InDelta(t, time.Minute.Seconds(), d.retry.Seconds(), 1)
	assert.True(t, l.take("k", now.Add(time.Minute)).allowed)
}

func cachedEcho(t *testing.T, rdb *redis.Client, calls *int) *echo.Echo {
	t.Helper()
	resolver, _, _ := testTenants(t)
	e := newEcho()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20}
	g := e.Group("/api", ResolveClient(resolver, nil, nil), NewRedisCache(cfg, rdb))
	g.GET("/products", func(c echo.Context) error {
		*calls++
		tn, _ := TenantFrom(c)
		return c.JSON(http.StatusOK, map[string]string{"client": tn.ID})
	})
	return e
}

func TestRedisCache_MissThenHitPerClient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	calls := 0
	e := cachedEcho(t, rdb, &calls)

	first := hit(e, "shop1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := hit(e, "shop1")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := hit(e, "shop2")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Contains(t, other.Body.String(), "shop2")
	assert.Equal(t, 2, calls)
}

func TestRedisCache_SkipsAuthenticatedRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	calls := 0
	e := cachedEcho(t, rdb, &calls)

	hit(e, "shop1", echo.HeaderAuthorization, "Bearer x")
	hit(e, "shop1", echo.HeaderAuthorization, "Bearer x")
	assert.Equal(t, 2, calls)
	assert.Empty(t, mr.Keys())
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestSkipOnReplay(t *testing.T) {
	assert.True(t, skipOnReplay("content-encoding"))
	assert.True(t, skipOnReplay(echo.HeaderContentLength))
	assert.True(t, skipOnReplay(echo.HeaderVary))
	assert.False(t, skipOnReplay(echo.HeaderContentType))
}
