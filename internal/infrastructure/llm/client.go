// Package llm 提供 LLM 提供商客户端
package llm

import (
	"context"
	"fmt"
)

// Completion 一次模型调用的结果
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	// Raw 提供商返回的原始响应体
	Raw string
}

// ModelClient 模型客户端能力接口
type ModelClient interface {
	// Name 返回模型标识（gemini / kimi）
	Name() string
	// Provider 返回提供商名称
	Provider() string
	// ContextLimit 返回上下文窗口大小
	ContextLimit() int
	// Generate 发送一次阻塞调用，不做重试
	Generate(ctx context.Context, prompt string, maxTokens int, apiKey string) (*Completion, error)
}

// TokenCounter 计算 prompt 的 token 数
type TokenCounter interface {
	Count(ctx context.Context, text string) int
}

// UpstreamError 提供商调用失败
// 网络错误时 StatusCode 为 0
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error 实现 error 接口
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap 返回底层错误
func (e *UpstreamError) Unwrap() error {
	return e.Err
}
