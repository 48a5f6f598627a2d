package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prd-generator-api/internal/config"
)

func newTestStore(t *testing.T, maxPaths int) *Store {
	t.Helper()
	s, err := NewStore(&config.StoreConfig{Dir: filepath.Join(t.TempDir(), "config"), MaxPathItems: maxPaths})
	require.NoError(t, err)
	return s
}

func TestNewStoreCreatesDefaults(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	for _, name := range []string{APIKeysFile, SettingsFile, PathHistoryFile} {
		_, err := os.Stat(filepath.Join(s.Dir(), name))
		require.NoError(t, err, name)
	}

	keys := s.GetKeys(ctx)
	assert.Equal(t, "", keys["openrouter_api_key"])
	assert.Equal(t, "", keys["moonshot_api_key"])

	settings := s.GetSettings(ctx)
	assert.Equal(t, "kimi", settings["selected_model"])
	assert.Equal(t, "output", settings["output_dir"])
	assert.EqualValues(t, 100000, settings["max_tokens"])

	assert.Empty(t, s.GetPathHistory(ctx))
}

func TestNewStoreKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, APIKeysFile), []byte(`{"moonshot_api_key":"sk-kept"}`), 0o644))

	s, err := NewStore(&config.StoreConfig{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "sk-kept", s.GetKey(context.Background(), "moonshot_api_key"))
}

func TestSaveKeyRoundTrip(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.True(t, s.SaveKey(ctx, "openrouter_api_key", "sk-or-123"))
	assert.Equal(t, "sk-or-123", s.GetKeys(ctx)["openrouter_api_key"])
	assert.Equal(t, "", s.GetKey(ctx, "moonshot_api_key"))

	reopened, err := NewStore(&config.StoreConfig{Dir: s.Dir()})
	require.NoError(t, err)
	assert.Equal(t, "sk-or-123", reopened.GetKey(ctx, "openrouter_api_key"))
}

func TestSaveSetting(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.True(t, s.SaveSetting(ctx, "selected_model", "gemini"))
	v, ok := s.GetSetting(ctx, "selected_model")
	require.True(t, ok)
	assert.Equal(t, "gemini", v)

	_, ok = s.GetSetting(ctx, "missing")
	assert.False(t, ok)
}

func TestAddPathOrdering(t *testing.T) {
	s := newTestStore(t, 3)
	ctx := context.Background()

	require.True(t, s.AddPath(ctx, "/a"))
	require.True(t, s.AddPath(ctx, "/b"))
	require.True(t, s.AddPath(ctx, `"/c"`))
	assert.Equal(t, []string{"/c", "/b", "/a"}, s.GetPathHistory(ctx))

	require.True(t, s.AddPath(ctx, "/a"))
	assert.Equal(t, []string{"/a", "/c", "/b"}, s.GetPathHistory(ctx))

	require.True(t, s.AddPath(ctx, "/d"))
	assert.Equal(t, []string{"/d", "/a", "/c"}, s.GetPathHistory(ctx))
}

func TestAddPathIgnoresDefaultAndEmpty(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	assert.True(t, s.AddPath(ctx, ""))
	assert.True(t, s.AddPath(ctx, "  "))
	assert.True(t, s.AddPath(ctx, "output"))
	assert.True(t, s.AddPath(ctx, `"output"`))
	assert.Empty(t, s.GetPathHistory(ctx))
}

func TestRemovePath(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	s.AddPath(ctx, "/x")
	s.AddPath(ctx, "/y")
	require.True(t, s.RemovePath(ctx, `'/x'`))
	assert.Equal(t, []string{"/y"}, s.GetPathHistory(ctx))

	assert.True(t, s.RemovePath(ctx, "/not-there"))
	assert.Equal(t, []string{"/y"}, s.GetPathHistory(ctx))
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	s.SaveKey(ctx, "moonshot_api_key", "sk-ms")
	s.SaveSetting(ctx, "selected_model", "gemini")
	s.AddPath(ctx, "/p")

	require.True(t, s.ClearAll(ctx))
	assert.Equal(t, "", s.GetKey(ctx, "moonshot_api_key"))
	v, _ := s.GetSetting(ctx, "selected_model")
	assert.Equal(t, "kimi", v)
	assert.Empty(t, s.GetPathHistory(ctx))
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), SettingsFile), []byte("{not json"), 0o644))
	assert.Equal(t, "kimi", s.GetSettings(ctx)["selected_model"])

	require.True(t, s.SaveSetting(ctx, "temperature", 0.2))
	v, _ := s.GetSetting(ctx, "temperature")
	assert.InDelta(t, 0.2, v, 1e-9)
}

func TestWriteFailureReturnsFalse(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	// 用同名普通文件替换目录，使后续写入失败
	require.NoError(t, os.RemoveAll(s.Dir()))
	require.NoError(t, os.WriteFile(s.Dir(), []byte("x"), 0o644))

	assert.False(t, s.SaveKey(ctx, "moonshot_api_key", "sk"))
	assert.False(t, s.AddPath(ctx, "/somewhere"))
	assert.False(t, s.ClearAll(ctx))
	assert.Error(t, s.Writable())
	assert.Equal(t, "", s.GetKey(ctx, "moonshot_api_key"))
}

func TestConcurrentWritesKeepValidJSON(t *testing.T) {
	s := newTestStore(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SaveKey(ctx, fmt.Sprintf("key_%d", i), "v")
			s.AddPath(ctx, fmt.Sprintf("/p/%d", i))
		}(i)
	}
	wg.Wait()

	raw, err := os.ReadFile(filepath.Join(s.Dir(), APIKeysFile))
	require.NoError(t, err)
	var keys map[string]string
	require.NoError(t, json.Unmarshal(raw, &keys))
	for i := 0; i < 20; i++ {
		assert.Equal(t, "v", keys[fmt.Sprintf("key_%d", i)])
	}
	assert.Len(t, s.GetPathHistory(ctx), 20)
}
