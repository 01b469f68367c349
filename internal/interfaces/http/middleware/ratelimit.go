// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"crm-rag-api/pkg/errors"
	"crm-rag-api/pkg/logger"
	"crm-rag-api/pkg/metrics"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerSecond 每秒请求数
	RequestsPerSecond int
	// Burst 突发容量（仅本地令牌桶使用）
	Burst int
	// KeyPrefix 限流 Key 前缀
	KeyPrefix string
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由限流。limiter 为 nil 时使用进程内令牌桶。
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	if limiter == nil {
		limiter = NewLocalLimiter(cfg.Burst)
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := cfg.KeyPrefix + ":" + c.ClientIP() + ":" + path

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.RequestsPerSecond, time.Second)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		if !allowed {
			metrics.RateLimitedTotal.WithLabelValues(path).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"code":     errors.CodeTooManyRequests,
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

// LocalLimiter 进程内令牌桶限流，每个 key 一个桶
type LocalLimiter struct {
	mu      sync.Mutex
	burst   int
	buckets map[string]*rate.Limiter
}

func NewLocalLimiter(burst int) *LocalLimiter {
	return &LocalLimiter{burst: burst, buckets: make(map[string]*rate.Limiter)}
}

// Allow limit/window 换算为令牌速率
func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		r := rate.Limit(float64(limit) / window.Seconds())
		b = rate.NewLimiter(r, max(l.burst, 1))
		l.buckets[key] = b
	}
	l.mu.Unlock()
	return b.Allow(), nil
}
