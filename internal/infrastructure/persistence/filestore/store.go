// Package filestore 提供基于本地 JSON 文件的配置存储
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"prd-generator-api/internal/config"
	"prd-generator-api/pkg/logger"
	"prd-generator-api/pkg/metrics"
	"prd-generator-api/pkg/utils"
)

// 配置文件名
const (
	APIKeysFile     = "API-KEYS.json"
	SettingsFile    = "SETTINGS.json"
	PathHistoryFile = "path-history.json"
)

// 默认输出目录不计入历史
const defaultOutputDir = "output"

// pathHistory path-history.json 的结构
type pathHistory struct {
	RecentPaths []string `json:"recent_paths"`
	MaxPaths    int      `json:"max_paths"`
}

// Store 文件配置存储
// 每次写入都是完整的 读-改-写，写操作互斥，读操作共享
type Store struct {
	dir      string
	maxPaths int
	mu       sync.RWMutex
}

// NewStore 创建存储并补齐缺失的默认文件
func NewStore(cfg *config.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "config"
	}
	maxPaths := cfg.MaxPathItems
	if maxPaths <= 0 {
		maxPaths = 20
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config dir %s: %w", dir, err)
	}

	s := &Store{dir: dir, maxPaths: maxPaths}
	s.initialize(context.Background(), false)
	return s, nil
}

// Dir 返回存储目录
func (s *Store) Dir() string {
	return s.dir
}

func defaultKeys() map[string]string {
	return map[string]string{
		"openrouter_api_key": "",
		"moonshot_api_key":   "",
	}
}

func defaultSettings() map[string]any {
	return map[string]any{
		"selected_model": "kimi",
		"max_tokens":     100000,
		"temperature":    0.6,
		"output_dir":     defaultOutputDir,
	}
}

func (s *Store) defaultPaths() pathHistory {
	return pathHistory{RecentPaths: []string{}, MaxPaths: s.maxPaths}
}

// initialize 写入默认文件；overwrite 为 false 时只补齐不存在的文件
func (s *Store) initialize(ctx context.Context, overwrite bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := true
	files := []struct {
		name string
		data any
	}{
		{APIKeysFile, defaultKeys()},
		{SettingsFile, defaultSettings()},
		{PathHistoryFile, s.defaultPaths()},
	}
	for _, f := range files {
		if !overwrite {
			if _, err := os.Stat(s.path(f.name)); err == nil {
				continue
			}
		}
		if err := s.save(f.name, f.data); err != nil {
			logger.Error(ctx, "failed to write default config file", err, "file", f.name)
			ok = false
		}
	}
	return ok
}

// GetKeys 返回全部 API Key
func (s *Store) GetKeys(ctx context.Context) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadKeys(ctx)
}

// GetKey 返回单个 API Key，不存在时为空串
func (s *Store) GetKey(ctx context.Context, name string) string {
	return s.GetKeys(ctx)[name]
}

// SaveKey 保存单个 API Key
func (s *Store) SaveKey(ctx context.Context, name, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.loadKeys(ctx)
	keys[name] = value
	return s.persist(ctx, APIKeysFile, keys)
}

// GetSettings 返回全部设置
func (s *Store) GetSettings(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSettings(ctx)
}

// GetSetting 返回单个设置
func (s *Store) GetSetting(ctx context.Context, name string) (any, bool) {
	v, ok := s.GetSettings(ctx)[name]
	return v, ok
}

// SaveSetting 保存单个设置
func (s *Store) SaveSetting(ctx context.Context, name string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.loadSettings(ctx)
	settings[name] = value
	return s.persist(ctx, SettingsFile, settings)
}

// GetPathHistory 返回最近使用的输出路径（最近的在前）
func (s *Store) GetPathHistory(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadPaths(ctx).RecentPaths
}

// AddPath 将路径移到历史最前，空路径与默认输出目录被忽略
func (s *Store) AddPath(ctx context.Context, path string) bool {
	path = utils.SanitizePath(path)
	if path == "" || path == defaultOutputDir {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.loadPaths(ctx)
	paths := make([]string, 0, len(h.RecentPaths)+1)
	paths = append(paths, path)
	for _, p := range h.RecentPaths {
		if p != path {
			paths = append(paths, p)
		}
	}
	limit := h.MaxPaths
	if limit <= 0 {
		limit = s.maxPaths
	}
	if len(paths) > limit {
		paths = paths[:limit]
	}
	h.RecentPaths = paths
	h.MaxPaths = limit
	return s.persist(ctx, PathHistoryFile, h)
}

// RemovePath 从历史中移除路径
func (s *Store) RemovePath(ctx context.Context, path string) bool {
	path = utils.SanitizePath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.loadPaths(ctx)
	kept := make([]string, 0, len(h.RecentPaths))
	for _, p := range h.RecentPaths {
		if p != path {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(h.RecentPaths) {
		return true
	}
	h.RecentPaths = kept
	return s.persist(ctx, PathHistoryFile, h)
}

// ClearAll 将全部配置重置为默认值
func (s *Store) ClearAll(ctx context.Context) bool {
	return s.initialize(ctx, true)
}

// Writable 检查存储目录是否可写
func (s *Store) Writable() error {
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *Store) loadKeys(ctx context.Context) map[string]string {
	keys := defaultKeys()
	var stored map[string]string
	if s.load(ctx, APIKeysFile, &stored) {
		for k, v := range stored {
			keys[k] = v
		}
	}
	return keys
}

func (s *Store) loadSettings(ctx context.Context) map[string]any {
	var stored map[string]any
	if !s.load(ctx, SettingsFile, &stored) || stored == nil {
		return defaultSettings()
	}
	return stored
}

func (s *Store) loadPaths(ctx context.Context) pathHistory {
	h := s.defaultPaths()
	if !s.load(ctx, PathHistoryFile, &h) {
		return s.defaultPaths()
	}
	if h.RecentPaths == nil {
		h.RecentPaths = []string{}
	}
	return h
}

// load 读取 JSON 文件；文件不存在或损坏时返回 false
func (s *Store) load(ctx context.Context, name string, out any) bool {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error(ctx, "failed to read config file", err, "file", name)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Error(ctx, "failed to decode config file", err, "file", name)
		return false
	}
	return true
}

// persist 保存并记录结果
func (s *Store) persist(ctx context.Context, name string, data any) bool {
	if err := s.save(name, data); err != nil {
		metrics.ConfigStoreWrites.WithLabelValues(name, "error").Inc()
		logger.Error(ctx, "failed to save config file", err, "file", name)
		return false
	}
	metrics.ConfigStoreWrites.WithLabelValues(name, "ok").Inc()
	return true
}

// save 先写临时文件再重命名，避免留下半截 JSON
func (s *Store) save(name string, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}
