package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"prd-generator-api/internal/application/estimate"
	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/internal/interfaces/http/dto"
)

// ContentEstimator token 估算
type ContentEstimator interface {
	Estimate(ctx context.Context, text string, model entity.Model, maxTokens int) estimate.Result
}

// EstimateHandler 估算处理器
type EstimateHandler struct {
	estimator        ContentEstimator
	defaultModel     string
	defaultMaxTokens int
}

// NewEstimateHandler 创建估算处理器
// 请求未给出 maxTokens 时使用 defaultMaxTokens，与生成流水线一致
func NewEstimateHandler(estimator ContentEstimator, defaultModel string, defaultMaxTokens int) *EstimateHandler {
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = 100000
	}
	return &EstimateHandler{
		estimator:        estimator,
		defaultModel:     defaultModel,
		defaultMaxTokens: defaultMaxTokens,
	}
}

// Estimate 估算内容的 token 数与费用
// @Summary 估算 token 与费用
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.EstimateRequest true "待估算内容"
// @Success 200 {object} dto.Response[dto.EstimateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/estimate [post]
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req dto.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	model, err := resolveModel(req.Model, h.defaultModel)
	if err != nil {
		dto.AppError(c, err, nil)
		return
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = h.defaultMaxTokens
	}

	res := h.estimator.Estimate(c.Request.Context(), req.Content, model, maxTokens)
	dto.Success(c, dto.ToEstimateResponse(req.Content, res))
}
