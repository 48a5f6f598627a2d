//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"prd-generator-api/internal/application/estimate"
	"prd-generator-api/internal/application/generation"
	"prd-generator-api/internal/config"
	"prd-generator-api/internal/infrastructure/llm"
	"prd-generator-api/internal/infrastructure/persistence/filestore"
	"prd-generator-api/internal/interfaces/http/handler"
	"prd-generator-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StoreSet,
		RedisSet,
		EstimateSet,
		LLMSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// StoreSet 本地配置存储提供者集合
var StoreSet = wire.NewSet(
	ProvideStore,
	wire.Bind(new(llm.KeySource), new(*filestore.Store)),
	wire.Bind(new(generation.PathRecorder), new(*filestore.Store)),
	wire.Bind(new(handler.ConfigStore), new(*filestore.Store)),
	wire.Bind(new(handler.WritableChecker), new(*filestore.Store)),
)

// RedisSet Redis 提供者集合（可选）
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideCountCache,
	ProvideRateLimiter,
)

// EstimateSet 估算提供者集合
var EstimateSet = wire.NewSet(
	ProvideTokenizer,
	estimate.NewEstimator,
	wire.Bind(new(llm.TokenCounter), new(*estimate.Estimator)),
	wire.Bind(new(generation.CostEstimator), new(*estimate.Estimator)),
	wire.Bind(new(handler.ContentEstimator), new(*estimate.Estimator)),
)

// LLMSet 模型客户端提供者集合
var LLMSet = wire.NewSet(
	llm.NewRegistry,
	wire.Bind(new(generation.ModelGateway), new(*llm.Registry)),
	wire.Bind(new(handler.EnvKeySource), new(*llm.Registry)),
)

// GenerationSet 生成流水线提供者集合
var GenerationSet = wire.NewSet(
	generation.NewPipeline,
	wire.Bind(new(handler.Generator), new(*generation.Pipeline)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewConfigHandler,
	ProvideEstimateHandler,
	ProvideGenerateHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
