package dto

import (
	"unicode/utf8"

	"prd-generator-api/internal/application/estimate"
)

// EstimateRequest token 估算请求
type EstimateRequest struct {
	Content   string `json:"content"`
	Model     string `json:"model"`
	MaxTokens int    `json:"maxTokens"`
}

// EstimateResponse token 估算响应
type EstimateResponse struct {
	ContentSize           int     `json:"contentSize"`
	EstimatedTokens       int     `json:"estimatedTokens"`
	AvailableOutputTokens int     `json:"availableOutputTokens"`
	ContextLimit          int     `json:"contextLimit"`
	EstimatedInputCost    float64 `json:"estimatedInputCost"`
	EstimatedOutputCost   float64 `json:"estimatedOutputCost"`
	EstimatedTotalCost    float64 `json:"estimatedTotalCost"`
	Model                 string  `json:"model"`
	Tokenizer             string  `json:"tokenizer"`
}

// ToEstimateResponse 转换估算结果
func ToEstimateResponse(content string, r estimate.Result) *EstimateResponse {
	return &EstimateResponse{
		ContentSize:           utf8.RuneCountInString(content),
		EstimatedTokens:       r.InputTokens,
		AvailableOutputTokens: r.AvailableOutputTokens,
		ContextLimit:          r.ContextLimit,
		EstimatedInputCost:    r.InputCostUSD,
		EstimatedOutputCost:   r.OutputCostUSD,
		EstimatedTotalCost:    r.CostUSD,
		Model:                 string(r.Model),
		Tokenizer:             r.Tokenizer,
	}
}
