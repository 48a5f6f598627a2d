package dto

// EnvKeysResponse 环境变量提供的默认 API Key
type EnvKeysResponse struct {
	OpenRouterAPIKey string `json:"openrouterApiKey"`
	MoonshotAPIKey   string `json:"moonshotApiKey"`
}

// PathRequest 路径历史请求
type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

// PathsResponse 路径历史
type PathsResponse struct {
	Paths []string `json:"paths"`
}

// SaveResponse 保存结果
type SaveResponse struct {
	Success bool `json:"success"`
}
