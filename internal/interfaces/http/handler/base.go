package handler

import (
	"strings"

	"prd-generator-api/internal/domain/entity"
	apperrors "prd-generator-api/pkg/errors"
)

// resolveModel 解析模型标识，为空时使用默认模型
func resolveModel(name, defaultModel string) (entity.Model, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		n = defaultModel
	}
	m, ok := entity.ParseModel(n)
	if !ok {
		return "", apperrors.New(apperrors.CodeInvalidParam, "unsupported model").
			WithDetail("model must be one of gemini, kimi")
	}
	return m, nil
}
