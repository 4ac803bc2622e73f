package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/learning-api/internal/config"
)

func TestRedisCache_HitAfterMiss(t *testing.T) {
	mr, rdb := newRedis(t)
	logger, _ := test.NewNullLogger()
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/products", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"success": true, "count": calls})
	}, NewRedisCache(cfg, rdb, logger))

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	miss := get("/products")
	require.Equal(t, http.StatusOK, miss.Code)
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))

	hit := get("/products")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, miss.Header().Get(echo.HeaderContentType), hit.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	assert.Equal(t, "MISS", get("/products?page=2").Header().Get("X-Cache"), "query is part of the key")
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Minute)
	assert.Equal(t, "MISS", get("/products").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrorsAndOtherMethods(t *testing.T) {
	_, rdb := newRedis(t)
	logger, _ := test.NewNullLogger()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, Prefix: "cache"}
	calls := 0
	e := echo.New()
	mw := NewRedisCache(cfg, rdb, logger)
	e.GET("/broken", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"success": false})
	}, mw)
	e.POST("/products", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	}, mw)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products", nil))
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 4, calls)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}
