package llm

import (
	"context"

	"prd-generator-api/internal/config"
)

// OpenRouterClient 通过 OpenRouter 调用 Gemini
type OpenRouterClient struct {
	endpoint     *chatEndpoint
	model        string
	temperature  float64
	contextLimit int
}

type openRouterRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// NewOpenRouterClient 创建 OpenRouter 客户端
func NewOpenRouterClient(cfg config.ProviderConfig) *OpenRouterClient {
	headers := map[string]string{}
	if cfg.Referer != "" {
		headers["HTTP-Referer"] = cfg.Referer
	}
	if cfg.Title != "" {
		headers["X-Title"] = cfg.Title
	}
	return &OpenRouterClient{
		endpoint:     newChatEndpoint("openrouter", cfg.BaseURL, cfg.Timeout, headers),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		contextLimit: cfg.ContextLimit,
	}
}

func (c *OpenRouterClient) Name() string      { return config.ModelGemini }
func (c *OpenRouterClient) Provider() string  { return "openrouter" }
func (c *OpenRouterClient) ContextLimit() int { return c.contextLimit }

// Generate 以单条 user 消息发送 prompt
func (c *OpenRouterClient) Generate(ctx context.Context, prompt string, maxTokens int, apiKey string) (*Completion, error) {
	return c.endpoint.post(ctx, openRouterRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}, apiKey)
}
