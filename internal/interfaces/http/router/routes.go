package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes 注册 /api 路由，generateLimit 仅作用于生成接口
func RegisterAPIRoutes(api *gin.RouterGroup, h *Handlers, generateLimit gin.HandlerFunc) {
	// 配置管理
	cfg := api.Group("/config")
	{
		cfg.GET("", h.Config.GetEnvConfig)
		cfg.GET("/keys", h.Config.GetKeys)
		cfg.POST("/keys", h.Config.SaveKeys)
		cfg.GET("/settings", h.Config.GetSettings)
		cfg.POST("/settings", h.Config.SaveSettings)
		cfg.GET("/paths", h.Config.GetPaths)
		cfg.POST("/paths", h.Config.AddPath)
		cfg.POST("/paths/remove", h.Config.RemovePath)
		cfg.POST("/clear", h.Config.ClearAll)
	}

	// 生成
	api.POST("/estimate", h.Estimate.Estimate)
	api.POST("/generate", generateLimit, h.Generate.Generate)
}
