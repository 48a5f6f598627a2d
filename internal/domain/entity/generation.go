// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// Model 可选的生成模型
type Model string

const (
	ModelGemini Model = "gemini"
	ModelKimi   Model = "kimi"
)

// Models 所有支持的模型
var Models = []Model{ModelGemini, ModelKimi}

// ParseModel 解析模型标识，忽略大小写与首尾空白
func ParseModel(s string) (Model, bool) {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Models {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// KeyName 返回模型对应的 API Key 存储名
func (m Model) KeyName() string {
	switch m {
	case ModelGemini:
		return "openrouter_api_key"
	case ModelKimi:
		return "moonshot_api_key"
	default:
		return ""
	}
}

// Provider 返回模型对应的提供商名
func (m Model) Provider() string {
	switch m {
	case ModelGemini:
		return "openrouter"
	case ModelKimi:
		return "moonshot"
	default:
		return "unknown"
	}
}

// PipelineState 生成流水线状态
type PipelineState string

const (
	StateValidating PipelineState = "validating"
	StateEstimating PipelineState = "estimating"
	StateCalling    PipelineState = "calling"
	StateParsing    PipelineState = "parsing"
	StateWriting    PipelineState = "writing"
	StateDone       PipelineState = "done"
	StateFailed     PipelineState = "failed"
)

// SourceFile 上传的 PRD 文件
type SourceFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// GenerationRequest 单次生成请求，校验后不再修改
type GenerationRequest struct {
	PRDText     string       `json:"prd_text"`
	Files       []SourceFile `json:"files,omitempty"`
	Model       Model        `json:"model"`
	OutputDir   string       `json:"output_dir"`
	MaxTokens   int          `json:"max_tokens"`
	APIKey      string       `json:"-"`
	ProjectName string       `json:"project_name,omitempty"`
}

// GeneratedFile 模型返回的单个文件
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GenerationResult 一次成功（或部分成功）的流水线结果
type GenerationResult struct {
	ProjectName          string        `json:"project_name"`
	ProjectDir           string        `json:"project_dir"`
	Model                Model         `json:"model"`
	FilesWritten         []string      `json:"files_written"`
	SkippedFiles         []string      `json:"skipped_files,omitempty"`
	EstimatedInputTokens int           `json:"estimated_input_tokens"`
	InputTokens          int           `json:"input_tokens"`
	OutputTokens         int           `json:"output_tokens"`
	CostUSD              float64       `json:"cost_usd"`
	TotalBytes           int           `json:"total_size_bytes"`
	Parsed               bool          `json:"parsed"`
	ParseError           string        `json:"parse_error,omitempty"`
	RawResponse          string        `json:"-"`
	State                PipelineState `json:"state"`
	StartedAt            time.Time     `json:"started_at"`
	CompletedAt          time.Time     `json:"completed_at"`
}

// TotalTokens 输入与输出 token 之和
func (r *GenerationResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// DurationMs 流水线耗时
func (r *GenerationResult) DurationMs() int64 {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt).Milliseconds()
}
