// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// 模型标识，同时作为 llm.providers 的键
const (
	ModelGemini = "gemini"
	ModelKimi   = "kimi"
)

// envKeyBindings 额外的环境变量别名（沿用提供商官方变量名）
var envKeyBindings = map[string]string{
	"llm.providers.gemini.api_key": "OPENROUTER_API_KEY",
	"llm.providers.kimi.api_key":   "MOONSHOT_API_KEY",
}

var envPattern = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "configs"
	}
	return LoadFrom(dir)
}

// LoadFrom 从指定目录加载配置，目录或文件不存在时仅使用默认值与环境变量
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, filepath.Join(dir, "config.yaml"), true); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if err := loadConfigFile(v, envFile, true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envName := range envKeyBindings {
		if err := v.BindEnv(key, envName); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", envName, err)
		}
	}

	// 设置默认值 (兜底)
	setDefaults(v)

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// 执行环境变量替换
	expanded := expandEnv(string(content))

	// 加载到 viper
	reader := strings.NewReader(expanded)
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，防止后续 ReadInConfig 报错
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPattern.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "prd-generator-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值；生成请求可能持续数分钟，写超时放宽
	v.SetDefault("server.http.host", "127.0.0.1")
	v.SetDefault("server.http.port", 5000)
	v.SetDefault("server.http.read_timeout", "60s")
	v.SetDefault("server.http.write_timeout", "15m")
	v.SetDefault("server.http.idle_timeout", "120s")
	v.SetDefault("server.http.max_upload_bytes", 32<<20)

	// 本地配置存储
	v.SetDefault("store.dir", "config")
	v.SetDefault("store.max_path_items", 20)

	// 输出默认值
	v.SetDefault("output.default_dir", "output")
	v.SetDefault("output.default_max_tokens", 100000)
	v.SetDefault("output.prd_summary_chars", 500)

	// Redis 默认值（可选）
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.min_idle_conns", 1)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	// LLM 默认值
	v.SetDefault("llm.default_model", ModelKimi)

	v.SetDefault("llm.providers.gemini.base_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("llm.providers.gemini.model", "google/gemini-2.5-pro")
	v.SetDefault("llm.providers.gemini.temperature", 0.7)
	v.SetDefault("llm.providers.gemini.timeout", "10m")
	v.SetDefault("llm.providers.gemini.context_limit", 2000000)
	v.SetDefault("llm.providers.gemini.input_price", 1.25)
	v.SetDefault("llm.providers.gemini.output_price", 10.0)
	v.SetDefault("llm.providers.gemini.referer", "http://localhost:3000")
	v.SetDefault("llm.providers.gemini.title", "PRD Generator")

	v.SetDefault("llm.providers.kimi.base_url", "https://api.moonshot.cn/v1/chat/completions")
	v.SetDefault("llm.providers.kimi.model", "kimi-k2-0711-preview")
	v.SetDefault("llm.providers.kimi.temperature", 0.6)
	v.SetDefault("llm.providers.kimi.timeout", "2m")
	v.SetDefault("llm.providers.kimi.context_limit", 128000)
	v.SetDefault("llm.providers.kimi.input_price", 0.60)
	v.SetDefault("llm.providers.kimi.output_price", 2.50)

	// 估算默认值
	v.SetDefault("estimate.encoding", "cl100k_base")
	v.SetDefault("estimate.cache_ttl", "10m")

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.rate_limit.enabled", false)
	v.SetDefault("security.rate_limit.generate_requests", 5)
	v.SetDefault("security.rate_limit.generate_window", "1m")
}
