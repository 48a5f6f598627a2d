package wire

import (
	"prd-generator-api/internal/application/estimate"
	"prd-generator-api/internal/config"
	"prd-generator-api/internal/infrastructure/persistence/filestore"
	"prd-generator-api/internal/infrastructure/persistence/redis"
	"prd-generator-api/internal/interfaces/http/handler"
	"prd-generator-api/internal/interfaces/http/middleware"
)

// ProvideStore 提供本地配置存储
func ProvideStore(cfg *config.Config) (*filestore.Store, error) {
	return filestore.NewStore(&cfg.Store)
}

// ProvideRedisClient 提供 Redis 客户端，未启用时为 nil
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideCountCache 提供 token 计数缓存，未启用 Redis 时返回 nil 接口
func ProvideCountCache(client *redis.Client) estimate.CountCache {
	if client == nil {
		return nil
	}
	return redis.NewTokenCountCache(client)
}

// ProvideRateLimiter 提供限流器，未启用 Redis 时返回 nil 接口
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideTokenizer 按配置的编码创建分词器
func ProvideTokenizer(cfg *config.Config) estimate.Tokenizer {
	return estimate.NewTokenizer(cfg.Estimate.Encoding)
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, store handler.WritableChecker, client *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(store, client, cfg.App.Version)
}

// ProvideEstimateHandler 提供估算处理器
func ProvideEstimateHandler(cfg *config.Config, estimator handler.ContentEstimator) *handler.EstimateHandler {
	return handler.NewEstimateHandler(estimator, cfg.LLM.DefaultModel, cfg.Output.DefaultMaxTokens)
}

// ProvideGenerateHandler 提供生成处理器
func ProvideGenerateHandler(cfg *config.Config, pipeline handler.Generator) *handler.GenerateHandler {
	return handler.NewGenerateHandler(pipeline, cfg.LLM.DefaultModel, cfg.Server.HTTP.MaxUploadBytes)
}
