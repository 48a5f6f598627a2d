package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"prd-generator-api/internal/config"
	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/pkg/logger"
	"prd-generator-api/pkg/metrics"
	"prd-generator-api/pkg/tracer"
)

// KeySource 已保存的 API Key
type KeySource interface {
	GetKey(ctx context.Context, name string) string
}

// Registry 管理各模型的客户端实例
type Registry struct {
	config  *config.LLMConfig
	counter TokenCounter
	keys    KeySource
	clients map[entity.Model]ModelClient
	mu      sync.RWMutex
}

// NewRegistry 创建模型客户端注册表
func NewRegistry(cfg *config.Config, counter TokenCounter, keys KeySource) *Registry {
	return &Registry{
		config:  &cfg.LLM,
		counter: counter,
		keys:    keys,
		clients: make(map[entity.Model]ModelClient),
	}
}

// Register 注册（或替换）指定模型的客户端
func (r *Registry) Register(model entity.Model, client ModelClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[model] = client
}

// Get 获取指定模型的客户端，首次使用时创建
func (r *Registry) Get(model entity.Model) (ModelClient, error) {
	r.mu.RLock()
	c, ok := r.clients[model]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	// 惰性加载
	r.mu.Lock()
	defer r.mu.Unlock()

	// 再次检查防止竞态
	if c, ok = r.clients[model]; ok {
		return c, nil
	}

	providerCfg, ok := r.config.Provider(string(model))
	if !ok {
		return nil, fmt.Errorf("model %s not found in LLM config", model)
	}

	switch model {
	case entity.ModelGemini:
		c = NewOpenRouterClient(providerCfg)
	case entity.ModelKimi:
		c = NewMoonshotClient(providerCfg, r.counter)
	default:
		return nil, fmt.Errorf("unsupported model %s", model)
	}

	r.clients[model] = c
	return c, nil
}

// EnvKey 返回配置或环境变量提供的 API Key
func (r *Registry) EnvKey(model entity.Model) string {
	p, _ := r.config.Provider(string(model))
	return p.APIKey
}

// ResolveKey 按 请求 > 已保存 > 环境变量 的顺序选取 API Key
func (r *Registry) ResolveKey(ctx context.Context, model entity.Model, requestKey string) string {
	if requestKey != "" {
		return requestKey
	}
	if r.keys != nil {
		if k := r.keys.GetKey(ctx, model.KeyName()); k != "" {
			return k
		}
	}
	return r.EnvKey(model)
}

// Generate 调用模型并记录指标与追踪
func (r *Registry) Generate(ctx context.Context, model entity.Model, prompt string, maxTokens int, apiKey string) (*Completion, error) {
	client, err := r.Get(model)
	if err != nil {
		return nil, err
	}

	provider := client.Provider()
	ctx, span := tracer.Start(ctx, "llm.Generate")
	span.SetAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", string(model)),
		attribute.Int("llm.max_tokens", maxTokens),
	)

	start := time.Now()
	completion, err := client.Generate(ctx, prompt, maxTokens, apiKey)
	metrics.LLMCallDuration.WithLabelValues(provider, string(model)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(provider, string(model), "error").Inc()
		logger.Error(ctx, "llm call failed", err, "provider", provider)
		tracer.Finish(span, err)
		return nil, err
	}

	// 提供商未返回 usage 时使用本地估算
	if completion.InputTokens == 0 && r.counter != nil {
		completion.InputTokens = r.counter.Count(ctx, prompt)
	}

	metrics.LLMCallTotal.WithLabelValues(provider, string(model), "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(provider, string(model), "prompt").Add(float64(completion.InputTokens))
	metrics.LLMTokensUsed.WithLabelValues(provider, string(model), "completion").Add(float64(completion.OutputTokens))
	span.SetAttributes(
		attribute.Int("llm.input_tokens", completion.InputTokens),
		attribute.Int("llm.output_tokens", completion.OutputTokens),
	)
	tracer.Finish(span, nil)

	logger.Info(ctx, "llm call completed",
		"provider", provider,
		"input_tokens", completion.InputTokens,
		"output_tokens", completion.OutputTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return completion, nil
}
