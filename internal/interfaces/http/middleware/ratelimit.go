package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"prd-generator-api/internal/config"
	"prd-generator-api/internal/infrastructure/persistence/redis"
	"prd-generator-api/internal/interfaces/http/dto"
	"prd-generator-api/pkg/logger"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由限流
// 未启用或没有限流器时直接放行
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.GenerateRequests <= 0 {
		cfg.GenerateRequests = 5
	}
	if cfg.GenerateWindow <= 0 {
		cfg.GenerateWindow = time.Minute
	}

	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		key := redis.BuildRateLimitKey(c.ClientIP(), endpoint)

		allowed, err := limiter.Allow(c.Request.Context(), key, cfg.GenerateRequests, cfg.GenerateWindow)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}
		if !allowed {
			dto.TooManyRequests(c, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
