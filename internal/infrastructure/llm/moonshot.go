package llm

import (
	"context"

	"prd-generator-api/internal/config"
)

const moonshotSystemPrompt = "You are Kimi, an AI assistant created by Moonshot AI. " +
	"You are an expert software developer who creates complete, production-ready code based on requirements. " +
	"You always respond with valid JSON containing the complete project structure and all file contents."

// 为 prompt 估算误差预留的 token
const moonshotReserve = 1000

// MoonshotClient 直连 Moonshot 调用 Kimi
type MoonshotClient struct {
	endpoint     *chatEndpoint
	model        string
	temperature  float64
	contextLimit int
	counter      TokenCounter
}

type moonshotRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	N                int           `json:"n"`
	Stream           bool          `json:"stream"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
}

// NewMoonshotClient 创建 Moonshot 客户端
func NewMoonshotClient(cfg config.ProviderConfig, counter TokenCounter) *MoonshotClient {
	return &MoonshotClient{
		endpoint:     newChatEndpoint("moonshot", cfg.BaseURL, cfg.Timeout, nil),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		contextLimit: cfg.ContextLimit,
		counter:      counter,
	}
}

func (c *MoonshotClient) Name() string      { return config.ModelKimi }
func (c *MoonshotClient) Provider() string  { return "moonshot" }
func (c *MoonshotClient) ContextLimit() int { return c.contextLimit }

// ClampMaxTokens 将输出上限限制在剩余上下文窗口内
func (c *MoonshotClient) ClampMaxTokens(ctx context.Context, prompt string, maxTokens int) int {
	if c.counter == nil || c.contextLimit <= 0 {
		return maxTokens
	}
	room := c.contextLimit - c.counter.Count(ctx, prompt) - moonshotReserve
	if maxTokens <= 0 || maxTokens > room {
		return room
	}
	return maxTokens
}

// Generate 以 system + user 两条消息发送 prompt
func (c *MoonshotClient) Generate(ctx context.Context, prompt string, maxTokens int, apiKey string) (*Completion, error) {
	maxTokens = c.ClampMaxTokens(ctx, prompt, maxTokens)
	if maxTokens <= 0 {
		return nil, &UpstreamError{Provider: c.Provider(), Message: "prompt leaves no room for output in the context window"}
	}

	return c.endpoint.post(ctx, moonshotRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: moonshotSystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		TopP:        1,
		N:           1,
		Stream:      false,
	}, apiKey)
}
