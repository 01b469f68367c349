package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

type recordingLimiter struct {
	keys []string
}

func (l *recordingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return true, nil
}

func newLimitedEngine(cfg RateLimitConfig, limiter RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg, limiter))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

func TestRateLimitDisabled(t *testing.T) {
	r := newLimitedEngine(RateLimitConfig{}, failingLimiter{})
	for range 5 {
		assert.Equal(t, http.StatusOK, get(r, "/ping"))
	}
}

func TestRateLimitLocalBucket(t *testing.T) {
	r := newLimitedEngine(RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 2}, nil)

	assert.Equal(t, http.StatusOK, get(r, "/ping"))
	assert.Equal(t, http.StatusOK, get(r, "/ping"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "/ping"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newLimitedEngine(RateLimitConfig{Enabled: true}, failingLimiter{})
	assert.Equal(t, http.StatusOK, get(r, "/ping"))
}

func TestRateLimitKeyUsesRoute(t *testing.T) {
	l := &recordingLimiter{}
	r := newLimitedEngine(RateLimitConfig{Enabled: true, KeyPrefix: "rl"}, l)

	get(r, "/ping")
	require.Len(t, l.keys, 1)
	assert.Equal(t, "rl:192.0.2.1:/ping", l.keys[0])
}
