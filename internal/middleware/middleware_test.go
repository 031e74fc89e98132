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
	"go.uber.org/zap"

	"github.com/iliyamo/flash-sale/internal/config"
	"github.com/iliyamo/flash-sale/internal/utils"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func do(e *echo.Echo, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSession(t *testing.T) {
	e := echo.New()
	e.Use(Session())
	e.GET("/who", func(c echo.Context) error { return c.String(http.StatusOK, SessionID(c)) })

	assert.Equal(t, DefaultSession, do(e, http.MethodGet, "/who", nil).Body.String())
	assert.Equal(t, "abc", do(e, http.MethodGet, "/who", map[string]string{SessionHeader: " abc "}).Body.String())

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	rec := do(e, http.MethodGet, "/who", map[string]string{SessionHeader: string(long)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenBucket(t *testing.T) {
	rdb, _ := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "session",
		Prefix:         "rl",
	}
	e := echo.New()
	e.Use(Session())
	e.POST("/enter", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, zap.NewNop()))

	alice := map[string]string{SessionHeader: "alice"}
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/enter", alice).Code)
	rec := do(e, http.MethodPost, "/enter", alice)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(e, http.MethodPost, "/enter", alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Buckets are per session.
	assert.Equal(t, http.StatusOK, do(e, http.MethodPost, "/enter", map[string]string{SessionHeader: "bob"}).Code)
}

func TestTokenBucket_FailsOpenWithoutRedis(t *testing.T) {
	rdb, mr := newRedis(t)
	mr.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, zap.NewNop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", nil).Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/queue/enter", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/queue/enter")
	c.Set(sessionKey, "s1")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_session"}
	assert.Equal(t, "rl:ip:10.0.0.1:session:s1", buildRateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.1:session:s1:route:POST /api/queue/enter", buildRateKey(cfg, c))
}

func TestRedisCache(t *testing.T) {
	rdb, mr := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache:products",
	}
	calls := 0
	e := echo.New()
	e.GET("/products/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb, zap.NewNop()))

	first := do(e, http.MethodGet, "/products/1", nil)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, http.MethodGet, "/products/1", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	// Different path params are different entries.
	do(e, http.MethodGet, "/products/2", nil)
	assert.Equal(t, 2, calls)

	// Flushing the prefix forces a reload.
	for _, k := range mr.Keys() {
		mr.Del(k)
	}
	assert.Equal(t, "MISS", do(e, http.MethodGet, "/products/1", nil).Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrors(t *testing.T) {
	rdb, mr := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute, Prefix: "cache:products"}
	e := echo.New()
	e.GET("/products/:id", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}, NewRedisCache(cfg, rdb, zap.NewNop()))

	do(e, http.MethodGet, "/products/9", nil)
	assert.Empty(t, mr.Keys())
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	e.POST("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth("secret"), RequireRole("ADMIN"))

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodPost, "/admin", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(e, http.MethodPost, "/admin", map[string]string{"Authorization": "Bearer garbage"}).Code)

	admin, err := utils.NewAccessToken("secret", "root", "ADMIN", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent,
		do(e, http.MethodPost, "/admin", map[string]string{"Authorization": "Bearer " + admin.Token}).Code)

	other, err := utils.NewAccessToken("secret", "x", "VIEWER", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden,
		do(e, http.MethodPost, "/admin", map[string]string{"Authorization": "Bearer " + other.Token}).Code)

	forged, err := utils.NewAccessToken("wrong", "root", "ADMIN", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized,
		do(e, http.MethodPost, "/admin", map[string]string{"Authorization": "Bearer " + forged.Token}).Code)
}
