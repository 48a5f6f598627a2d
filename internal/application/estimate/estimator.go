// Package estimate 提供 token 估算与费用计算
package estimate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"prd-generator-api/internal/config"
	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/pkg/metrics"
)

// Pricing 单个模型的价格（美元 / 百万 token）与上下文窗口
type Pricing struct {
	InputPrice   float64
	OutputPrice  float64
	ContextLimit int
}

// CountCache token 计数的外部缓存
type CountCache interface {
	GetCount(ctx context.Context, key string) (int, bool)
	SetCount(ctx context.Context, key string, n int, ttl time.Duration)
}

// Result 估算结果
type Result struct {
	Model                 entity.Model `json:"model"`
	InputTokens           int          `json:"input_tokens"`
	EstimatedOutputTokens int          `json:"estimated_output_tokens"`
	AvailableOutputTokens int          `json:"available_output_tokens"`
	ContextLimit          int          `json:"context_limit"`
	InputCostUSD          float64      `json:"input_cost_usd"`
	OutputCostUSD         float64      `json:"output_cost_usd"`
	CostUSD               float64      `json:"cost_usd"`
	Tokenizer             string       `json:"tokenizer"`
}

// Estimator token 估算器，不阻塞也不返回错误
type Estimator struct {
	tokenizer Tokenizer
	prices    map[entity.Model]Pricing
	minLimit  int
	cache     CountCache
	cacheTTL  time.Duration
	group     singleflight.Group
}

// DefaultPrices 内置价格表
func DefaultPrices() map[entity.Model]Pricing {
	return map[entity.Model]Pricing{
		entity.ModelGemini: {InputPrice: 1.25, OutputPrice: 10.00, ContextLimit: 2000000},
		entity.ModelKimi:   {InputPrice: 0.60, OutputPrice: 2.50, ContextLimit: 128000},
	}
}

// NewEstimator 创建估算器，配置中的价格与上下文窗口覆盖内置值
// cache 可为 nil
func NewEstimator(cfg *config.Config, tokenizer Tokenizer, cache CountCache) *Estimator {
	if tokenizer == nil {
		tokenizer = HeuristicTokenizer{}
	}
	prices := DefaultPrices()
	var ttl time.Duration
	if cfg != nil {
		for name, p := range cfg.LLM.Providers {
			m, ok := entity.ParseModel(name)
			if !ok {
				continue
			}
			cur := prices[m]
			if p.InputPrice > 0 {
				cur.InputPrice = p.InputPrice
			}
			if p.OutputPrice > 0 {
				cur.OutputPrice = p.OutputPrice
			}
			if p.ContextLimit > 0 {
				cur.ContextLimit = p.ContextLimit
			}
			prices[m] = cur
		}
		ttl = cfg.Estimate.CacheTTL
	}

	minLimit := 0
	for _, p := range prices {
		if minLimit == 0 || p.ContextLimit < minLimit {
			minLimit = p.ContextLimit
		}
	}

	return &Estimator{
		tokenizer: tokenizer,
		prices:    prices,
		minLimit:  minLimit,
		cache:     cache,
		cacheTTL:  ttl,
	}
}

// TokenizerName 当前使用的分词器
func (e *Estimator) TokenizerName() string {
	return e.tokenizer.Name()
}

// Count 计算文本 token 数
// 相同内容的并发请求共享一次分词
func (e *Estimator) Count(ctx context.Context, text string) int {
	if text == "" {
		return 0
	}
	key := contentKey(e.tokenizer.Name(), text)

	if e.cache != nil {
		if n, ok := e.cache.GetCount(ctx, key); ok {
			metrics.EstimateCacheHits.Inc()
			return n
		}
	}

	v, _, _ := e.group.Do(key, func() (interface{}, error) {
		n := e.tokenizer.Count(text)
		if e.cache != nil && e.cacheTTL > 0 {
			e.cache.SetCount(ctx, key, n, e.cacheTTL)
		}
		return n, nil
	})
	return v.(int)
}

// Cost 按价格表线性计算费用（美元）
func (e *Estimator) Cost(model entity.Model, inputTokens, outputTokens int) float64 {
	p := e.prices[model]
	return float64(inputTokens)*p.InputPrice/1e6 + float64(outputTokens)*p.OutputPrice/1e6
}

// ContextLimit 返回模型上下文窗口，未知模型取最小值
func (e *Estimator) ContextLimit(model entity.Model) int {
	if p, ok := e.prices[model]; ok {
		return p.ContextLimit
	}
	return e.minLimit
}

// Estimate 估算输入 token、可用输出 token 与费用
func (e *Estimator) Estimate(ctx context.Context, text string, model entity.Model, maxTokens int) Result {
	input := e.Count(ctx, text)
	limit := e.ContextLimit(model)

	available := limit - input
	if maxTokens > 0 && maxTokens < available {
		available = maxTokens
	}
	if available < 0 {
		available = 0
	}

	p := e.prices[model]
	inCost := float64(input) * p.InputPrice / 1e6
	outCost := float64(available) * p.OutputPrice / 1e6

	metrics.EstimateTotal.WithLabelValues(string(model), e.tokenizer.Name()).Inc()

	return Result{
		Model:                 model,
		InputTokens:           input,
		EstimatedOutputTokens: available,
		AvailableOutputTokens: available,
		ContextLimit:          limit,
		InputCostUSD:          inCost,
		OutputCostUSD:         outCost,
		CostUSD:               inCost + outCost,
		Tokenizer:             e.tokenizer.Name(),
	}
}

func contentKey(tokenizer, text string) string {
	sum := sha256.Sum256([]byte(text))
	return tokenizer + ":" + strconv.Itoa(len(text)) + ":" + hex.EncodeToString(sum[:])
}
