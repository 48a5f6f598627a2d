package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prd-generator-api/internal/config"
	apperrors "prd-generator-api/pkg/errors"
	"prd-generator-api/pkg/logger"
)

func TestNewClientDisabled(t *testing.T) {
	c, err := NewClient(&config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, c.Close())

	assert.Nil(t, NewRateLimiter(c))
	assert.Nil(t, NewTokenCountCache(c))
}

func TestBuildRateLimitKey(t *testing.T) {
	assert.Equal(t, "prdgen:ratelimit:127.0.0.1:generate", BuildRateLimitKey("127.0.0.1", "generate"))
}

func TestTokenCountCacheReportsUnreachableServer(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter("debug", "json", &buf)
	t.Cleanup(func() { logger.Init("info", "json") })

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewTokenCountCache(&Client{rdb: rdb, config: &config.RedisConfig{}})

	n, ok := cache.GetCount(context.Background(), "k")
	assert.False(t, ok)
	assert.Zero(t, n)
	cache.SetCount(context.Background(), "k", 3, time.Minute)

	out := buf.String()
	assert.Contains(t, out, "token count cache read failed")
	assert.Contains(t, out, "token count cache write failed")
	assert.Contains(t, out, "["+string(apperrors.CodeCacheError)+"]")
}
