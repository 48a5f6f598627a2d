package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaultsWithoutFiles(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "prd-generator-api", cfg.App.Name)
	assert.Equal(t, 5000, cfg.Server.HTTP.Port)
	assert.Equal(t, "output", cfg.Output.DefaultDir)
	assert.Equal(t, 20, cfg.Store.MaxPathItems)

	gemini, ok := cfg.LLM.Provider(ModelGemini)
	require.True(t, ok)
	assert.Equal(t, 2000000, gemini.ContextLimit)
	assert.Equal(t, 10*time.Minute, gemini.Timeout)

	kimi, ok := cfg.LLM.Provider(ModelKimi)
	require.True(t, ok)
	assert.Equal(t, 128000, kimi.ContextLimit)
	assert.InDelta(t, 0.6, kimi.Temperature, 1e-9)
}

func TestLoadFromProviderKeysFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("MOONSHOT_API_KEY", "sk-ms-env")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "sk-or-env", cfg.LLM.Providers[ModelGemini].APIKey)
	assert.Equal(t, "sk-ms-env", cfg.LLM.Providers[ModelKimi].APIKey)
}

func TestLoadFromFileWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	t.Setenv("TEST_OUTPUT_DIR", "/srv/generated")

	base := []byte("output:\n  default_dir: ${TEST_OUTPUT_DIR:fallback}\nserver:\n  http:\n    port: 7000\n")
	overlay := []byte("server:\n  http:\n    port: 7100\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), base, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), overlay, 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/generated", cfg.Output.DefaultDir)
	assert.Equal(t, 7100, cfg.Server.HTTP.Port)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")
	assert.Equal(t, "a=value", expandEnv("a=${EXPAND_SET}"))
	assert.Equal(t, "b=dflt", expandEnv("b=${EXPAND_UNSET_VAR:dflt}"))
	assert.Equal(t, "c=${EXPAND_UNSET_VAR}", expandEnv("c=${EXPAND_UNSET_VAR}"))
}
