package redis

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "prd-generator-api/pkg/errors"
	"prd-generator-api/pkg/logger"
)

const tokenCountPrefix = "prdgen:tokens:"

// TokenCountCache 按内容摘要缓存 token 计数
type TokenCountCache struct {
	client *Client
}

// NewTokenCountCache 创建 token 计数缓存；client 为 nil 时返回 nil
func NewTokenCountCache(client *Client) *TokenCountCache {
	if client == nil {
		return nil
	}
	return &TokenCountCache{client: client}
}

// GetCount 读取缓存的 token 数，未命中或出错时 ok 为 false
func (c *TokenCountCache) GetCount(ctx context.Context, key string) (int, bool) {
	ctx, span := tracer.Start(ctx, "cache.GetCount",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := c.client.Get(ctx, tokenCountPrefix+key)
	if err != nil {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		if !IsNil(err) {
			logCacheError(ctx, "token count cache read failed", err)
		}
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		span.RecordError(err)
		logCacheError(ctx, "token count cache holds a non-numeric value", err)
		return 0, false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return n, true
}

// SetCount 写入 token 数；写入失败不影响估算结果
func (c *TokenCountCache) SetCount(ctx context.Context, key string, n int, ttl time.Duration) {
	if err := c.client.Set(ctx, tokenCountPrefix+key, strconv.Itoa(n), ttl); err != nil {
		logCacheError(ctx, "token count cache write failed", err)
	}
}

func logCacheError(ctx context.Context, msg string, err error) {
	logger.Warn(ctx, msg, "error", apperrors.Wrap(err, apperrors.CodeCacheError, "cache error").Error())
}
