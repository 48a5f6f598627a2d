package dto

import (
	"prd-generator-api/internal/domain/entity"
)

// SourceFileRequest JSON 方式提交的 PRD 文件
type SourceFileRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// GenerateRequest JSON 方式的生成请求
// multipart 方式使用同名表单字段，文件字段为 prdFiles
type GenerateRequest struct {
	PRDText     string              `json:"prdText" form:"prdText"`
	Files       []SourceFileRequest `json:"files" form:"-"`
	Model       string              `json:"model" form:"model"`
	OutputDir   string              `json:"outputDir" form:"outputDir"`
	MaxTokens   int                 `json:"maxTokens" form:"maxTokens"`
	APIKey      string              `json:"apiKey" form:"apiKey"`
	ProjectName string              `json:"projectName" form:"projectName"`
}

// ToEntity 转换为领域请求
func (r *GenerateRequest) ToEntity() *entity.GenerationRequest {
	files := make([]entity.SourceFile, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, entity.SourceFile{Name: f.Name, Content: f.Content})
	}
	return &entity.GenerationRequest{
		PRDText:     r.PRDText,
		Files:       files,
		Model:       entity.Model(r.Model),
		OutputDir:   r.OutputDir,
		MaxTokens:   r.MaxTokens,
		APIKey:      r.APIKey,
		ProjectName: r.ProjectName,
	}
}

// TokenUsage token 用量
type TokenUsage struct {
	EstimatedInput int `json:"estimatedInput"`
	Input          int `json:"input"`
	Output         int `json:"output"`
	Total          int `json:"total"`
}

// GenerateResponse 生成结果
type GenerateResponse struct {
	Success        bool       `json:"success"`
	ProjectName    string     `json:"projectName"`
	ProjectPath    string     `json:"projectPath"`
	Model          string     `json:"model"`
	State          string     `json:"state"`
	FilesCreated   int        `json:"filesCreated"`
	Files          []string   `json:"files"`
	SkippedFiles   []string   `json:"skippedFiles,omitempty"`
	Parsed         bool       `json:"parsed"`
	ParseError     string     `json:"parseError,omitempty"`
	TokenUsage     TokenUsage `json:"tokenUsage"`
	EstimatedCost  float64    `json:"estimatedCost"`
	TotalSizeBytes int        `json:"totalSizeBytes"`
	DurationMs     int64      `json:"durationMs"`
}

// ToGenerateResponse 转换生成结果
func ToGenerateResponse(r *entity.GenerationResult) *GenerateResponse {
	if r == nil {
		return nil
	}
	return &GenerateResponse{
		Success:      r.State == entity.StateDone,
		ProjectName:  r.ProjectName,
		ProjectPath:  r.ProjectDir,
		Model:        string(r.Model),
		State:        string(r.State),
		FilesCreated: len(r.FilesWritten),
		Files:        r.FilesWritten,
		SkippedFiles: r.SkippedFiles,
		Parsed:       r.Parsed,
		ParseError:   r.ParseError,
		TokenUsage: TokenUsage{
			EstimatedInput: r.EstimatedInputTokens,
			Input:          r.InputTokens,
			Output:         r.OutputTokens,
			Total:          r.TotalTokens(),
		},
		EstimatedCost:  r.CostUSD,
		TotalSizeBytes: r.TotalBytes,
		DurationMs:     r.DurationMs(),
	}
}
