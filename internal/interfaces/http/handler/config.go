package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/internal/interfaces/http/dto"
	apperrors "prd-generator-api/pkg/errors"
)

// ConfigStore 本地配置存储
type ConfigStore interface {
	GetKeys(ctx context.Context) map[string]string
	SaveKey(ctx context.Context, name, value string) bool
	GetSettings(ctx context.Context) map[string]any
	SaveSetting(ctx context.Context, name string, value any) bool
	GetPathHistory(ctx context.Context) []string
	AddPath(ctx context.Context, path string) bool
	RemovePath(ctx context.Context, path string) bool
	ClearAll(ctx context.Context) bool
}

// EnvKeySource 环境变量中的 API Key
type EnvKeySource interface {
	EnvKey(model entity.Model) string
}

// ConfigHandler 配置处理器
type ConfigHandler struct {
	store ConfigStore
	env   EnvKeySource
}

// NewConfigHandler 创建配置处理器
func NewConfigHandler(store ConfigStore, env EnvKeySource) *ConfigHandler {
	return &ConfigHandler{store: store, env: env}
}

func storageError() error {
	return apperrors.New(apperrors.CodeStorageError, "failed to save configuration")
}

// GetEnvConfig 返回环境变量提供的默认 Key
// @Summary 获取环境默认配置
// @Tags Config
// @Produce json
// @Success 200 {object} dto.Response[dto.EnvKeysResponse]
// @Router /api/config [get]
func (h *ConfigHandler) GetEnvConfig(c *gin.Context) {
	dto.Success(c, &dto.EnvKeysResponse{
		OpenRouterAPIKey: h.env.EnvKey(entity.ModelGemini),
		MoonshotAPIKey:   h.env.EnvKey(entity.ModelKimi),
	})
}

// GetKeys 返回已保存的 Key，未保存时回退到环境变量
// @Summary 获取 API Key
// @Tags Config
// @Produce json
// @Success 200 {object} dto.Response[map[string]string]
// @Router /api/config/keys [get]
func (h *ConfigHandler) GetKeys(c *gin.Context) {
	keys := h.store.GetKeys(c.Request.Context())
	for _, m := range entity.Models {
		if keys[m.KeyName()] == "" {
			keys[m.KeyName()] = h.env.EnvKey(m)
		}
	}
	dto.Success(c, keys)
}

// SaveKeys 保存请求体中的每个 Key
// @Summary 保存 API Key
// @Tags Config
// @Accept json
// @Produce json
// @Param body body map[string]string true "Key 名称到值"
// @Success 200 {object} dto.Response[dto.SaveResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/config/keys [post]
func (h *ConfigHandler) SaveKeys(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	known := make(map[string]bool, len(entity.Models))
	for _, m := range entity.Models {
		known[m.KeyName()] = true
	}
	for name := range body {
		if !known[name] {
			dto.AppError(c, apperrors.New(apperrors.CodeInvalidParam, "unknown key name").WithDetail(name), nil)
			return
		}
	}

	ctx := c.Request.Context()
	for name, value := range body {
		if !h.store.SaveKey(ctx, name, value) {
			dto.AppError(c, storageError(), nil)
			return
		}
	}
	dto.Success(c, &dto.SaveResponse{Success: true})
}

// GetSettings 返回全部设置
// @Summary 获取设置
// @Tags Config
// @Produce json
// @Success 200 {object} dto.Response[map[string]any]
// @Router /api/config/settings [get]
func (h *ConfigHandler) GetSettings(c *gin.Context) {
	dto.Success(c, h.store.GetSettings(c.Request.Context()))
}

// SaveSettings 保存请求体中的每个设置
// @Summary 保存设置
// @Tags Config
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.SaveResponse]
// @Router /api/config/settings [post]
func (h *ConfigHandler) SaveSettings(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	for name, value := range body {
		if !h.store.SaveSetting(ctx, name, value) {
			dto.AppError(c, storageError(), nil)
			return
		}
	}
	dto.Success(c, &dto.SaveResponse{Success: true})
}

// GetPaths 返回输出路径历史
// @Summary 获取路径历史
// @Tags Config
// @Produce json
// @Success 200 {object} dto.Response[dto.PathsResponse]
// @Router /api/config/paths [get]
func (h *ConfigHandler) GetPaths(c *gin.Context) {
	dto.Success(c, &dto.PathsResponse{Paths: h.store.GetPathHistory(c.Request.Context())})
}

// AddPath 添加输出路径
// @Summary 添加路径
// @Tags Config
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.PathsResponse]
// @Router /api/config/paths [post]
func (h *ConfigHandler) AddPath(c *gin.Context) {
	var req dto.PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if !h.store.AddPath(ctx, req.Path) {
		dto.AppError(c, storageError(), nil)
		return
	}
	dto.Success(c, &dto.PathsResponse{Paths: h.store.GetPathHistory(ctx)})
}

// RemovePath 移除输出路径
// @Summary 移除路径
// @Tags Config
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.PathsResponse]
// @Router /api/config/paths/remove [post]
func (h *ConfigHandler) RemovePath(c *gin.Context) {
	var req dto.PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if !h.store.RemovePath(ctx, req.Path) {
		dto.AppError(c, storageError(), nil)
		return
	}
	dto.Success(c, &dto.PathsResponse{Paths: h.store.GetPathHistory(ctx)})
}

// ClearAll 重置全部配置
// @Summary 重置配置
// @Tags Config
// @Produce json
// @Success 200 {object} dto.Response[dto.SaveResponse]
// @Router /api/config/clear [post]
func (h *ConfigHandler) ClearAll(c *gin.Context) {
	if !h.store.ClearAll(c.Request.Context()) {
		dto.AppError(c, storageError(), nil)
		return
	}
	dto.Success(c, &dto.SaveResponse{Success: true})
}
