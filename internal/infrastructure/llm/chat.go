package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// 错误响应体截断长度
const maxErrorBody = 2048

// fieldMap 响应字段的 gjson 路径
type fieldMap struct {
	Text             string
	PromptTokens     string
	CompletionTokens string
	ErrorMessage     string
}

// 兼容 OpenAI Chat Completions 的响应字段
var openAIFields = fieldMap{
	Text:             "choices.0.message.content",
	PromptTokens:     "usage.prompt_tokens",
	CompletionTokens: "usage.completion_tokens",
	ErrorMessage:     "error.message",
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatEndpoint 单个 Chat Completions 端点
type chatEndpoint struct {
	provider string
	url      string
	headers  map[string]string
	fields   fieldMap
	http     *http.Client
}

func newChatEndpoint(provider, url string, timeout time.Duration, headers map[string]string) *chatEndpoint {
	return &chatEndpoint{
		provider: provider,
		url:      url,
		headers:  headers,
		fields:   openAIFields,
		http:     &http.Client{Timeout: timeout},
	}
}

// post 发送请求并按字段映射解析响应
func (c *chatEndpoint) post(ctx context.Context, body any, apiKey string) (*Completion, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &UpstreamError{Provider: c.provider, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return nil, &UpstreamError{Provider: c.provider, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: c.provider, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: c.provider, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, c.fields.ErrorMessage).String()
		if msg == "" {
			msg = truncate(string(raw), maxErrorBody)
		}
		if msg == "" {
			msg = resp.Status
		}
		return nil, &UpstreamError{Provider: c.provider, StatusCode: resp.StatusCode, Message: msg}
	}

	if !gjson.ValidBytes(raw) {
		return nil, &UpstreamError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    "malformed response: " + truncate(string(raw), 256),
		}
	}

	doc := gjson.ParseBytes(raw)
	text := doc.Get(c.fields.Text)
	if !text.Exists() || text.String() == "" {
		msg := doc.Get(c.fields.ErrorMessage).String()
		if msg == "" {
			msg = "response has no content"
		}
		return nil, &UpstreamError{Provider: c.provider, StatusCode: resp.StatusCode, Message: msg}
	}

	return &Completion{
		Text:         text.String(),
		InputTokens:  int(doc.Get(c.fields.PromptTokens).Int()),
		OutputTokens: int(doc.Get(c.fields.CompletionTokens).Int()),
		Raw:          string(raw),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("...(%d bytes truncated)", len(s)-n)
}
