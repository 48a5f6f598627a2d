package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prd-generator-api/internal/application/estimate"
	"prd-generator-api/internal/domain/entity"
	apperrors "prd-generator-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		ErrorCode string `json:"error_code"`
		Details   string `json:"details"`
	} `json:"error"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

type memStore struct {
	mu       sync.Mutex
	keys     map[string]string
	settings map[string]any
	paths    []string
	fail     bool
}

func newMemStore() *memStore {
	return &memStore{
		keys:     map[string]string{"openrouter_api_key": "", "moonshot_api_key": ""},
		settings: map[string]any{"selected_model": "kimi"},
		paths:    []string{},
	}
}

func (s *memStore) GetKeys(context.Context) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out
}

func (s *memStore) SaveKey(_ context.Context, name, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false
	}
	s.keys[name] = value
	return true
}

func (s *memStore) GetSettings(context.Context) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *memStore) SaveSetting(_ context.Context, name string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false
	}
	s.settings[name] = value
	return true
}

func (s *memStore) GetPathHistory(context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.paths...)
}

func (s *memStore) AddPath(_ context.Context, p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return false
	}
	s.paths = append([]string{p}, s.paths...)
	return true
}

func (s *memStore) RemovePath(_ context.Context, p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.paths[:0]
	for _, x := range s.paths {
		if x != p {
			kept = append(kept, x)
		}
	}
	s.paths = kept
	return true
}

func (s *memStore) ClearAll(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = map[string]string{"openrouter_api_key": "", "moonshot_api_key": ""}
	s.paths = []string{}
	return !s.fail
}

type envKeys map[entity.Model]string

func (e envKeys) EnvKey(m entity.Model) string { return e[m] }

func configRouter(store ConfigStore, env EnvKeySource) *gin.Engine {
	h := NewConfigHandler(store, env)
	r := gin.New()
	g := r.Group("/api/config")
	g.GET("", h.GetEnvConfig)
	g.GET("/keys", h.GetKeys)
	g.POST("/keys", h.SaveKeys)
	g.GET("/settings", h.GetSettings)
	g.POST("/settings", h.SaveSettings)
	g.GET("/paths", h.GetPaths)
	g.POST("/paths", h.AddPath)
	g.POST("/paths/remove", h.RemovePath)
	g.POST("/clear", h.ClearAll)
	return r
}

func TestConfigHandlerEnvConfig(t *testing.T) {
	r := configRouter(newMemStore(), envKeys{entity.ModelGemini: "or-env"})

	w, env := doJSON(t, r, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "or-env", data["openrouterApiKey"])
	assert.Equal(t, "", data["moonshotApiKey"])
}

func TestConfigHandlerKeysFallBackToEnv(t *testing.T) {
	store := newMemStore()
	store.keys["moonshot_api_key"] = "ms-saved"
	r := configRouter(store, envKeys{entity.ModelGemini: "or-env", entity.ModelKimi: "ms-env"})

	_, env := doJSON(t, r, http.MethodGet, "/api/config/keys", nil)
	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "or-env", data["openrouter_api_key"])
	assert.Equal(t, "ms-saved", data["moonshot_api_key"])
}

func TestConfigHandlerSaveKeys(t *testing.T) {
	store := newMemStore()
	r := configRouter(store, envKeys{})

	w, _ := doJSON(t, r, http.MethodPost, "/api/config/keys", map[string]string{"moonshot_api_key": "sk-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sk-1", store.keys["moonshot_api_key"])

	w, env := doJSON(t, r, http.MethodPost, "/api/config/keys", map[string]string{"other_key": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeInvalidParam), env.Error.ErrorCode)
	assert.NotContains(t, store.keys, "other_key")
}

func TestConfigHandlerStorageFailure(t *testing.T) {
	store := newMemStore()
	store.fail = true
	r := configRouter(store, envKeys{})

	w, env := doJSON(t, r, http.MethodPost, "/api/config/settings", map[string]any{"max_tokens": 5000})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeStorageError), env.Error.ErrorCode)

	w, _ = doJSON(t, r, http.MethodPost, "/api/config/paths", map[string]string{"path": "/tmp/x"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestConfigHandlerPaths(t *testing.T) {
	r := configRouter(newMemStore(), envKeys{})

	doJSON(t, r, http.MethodPost, "/api/config/paths", map[string]string{"path": "/a"})
	_, env := doJSON(t, r, http.MethodPost, "/api/config/paths", map[string]string{"path": "/b"})

	var data struct {
		Paths []string `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []string{"/b", "/a"}, data.Paths)

	_, env = doJSON(t, r, http.MethodPost, "/api/config/paths/remove", map[string]string{"path": "/b"})
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, []string{"/a"}, data.Paths)

	w, _ := doJSON(t, r, http.MethodPost, "/api/config/paths", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/config/clear", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	_, env = doJSON(t, r, http.MethodGet, "/api/config/paths", nil)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Empty(t, data.Paths)
}

type stubEstimator struct {
	gotModel entity.Model
	gotMax   int
}

func (s *stubEstimator) Estimate(_ context.Context, text string, model entity.Model, maxTokens int) estimate.Result {
	s.gotModel = model
	s.gotMax = maxTokens
	return estimate.Result{
		Model:                 model,
		InputTokens:           len(text) / 4,
		AvailableOutputTokens: 1000,
		ContextLimit:          128000,
		InputCostUSD:          0.01,
		Tokenizer:             "heuristic",
	}
}

func TestEstimateHandler(t *testing.T) {
	est := &stubEstimator{}
	h := NewEstimateHandler(est, "kimi", 100000)
	r := gin.New()
	r.POST("/api/estimate", h.Estimate)

	w, env := doJSON(t, r, http.MethodPost, "/api/estimate", map[string]any{"content": "abcdefgh", "maxTokens": 500})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.ModelKimi, est.gotModel)
	assert.Equal(t, 500, est.gotMax)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.EqualValues(t, 8, data["contentSize"])
	assert.EqualValues(t, 2, data["estimatedTokens"])
	assert.EqualValues(t, 1000, data["availableOutputTokens"])

	w, env = doJSON(t, r, http.MethodPost, "/api/estimate", map[string]any{"content": "x", "model": "gpt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(apperrors.CodeInvalidParam), env.Error.ErrorCode)
}

func TestEstimateHandlerDefaultsMaxTokens(t *testing.T) {
	est := &stubEstimator{}
	r := gin.New()
	r.POST("/api/estimate", NewEstimateHandler(est, "kimi", 4096).Estimate)

	w, _ := doJSON(t, r, http.MethodPost, "/api/estimate", map[string]any{"content": "abc"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4096, est.gotMax)
}

func TestEstimateHandlerCapsOutputLikeGeneration(t *testing.T) {
	estimator := estimate.NewEstimator(nil, estimate.HeuristicTokenizer{}, nil)
	r := gin.New()
	r.POST("/api/estimate", NewEstimateHandler(estimator, "kimi", 100000).Estimate)

	w, env := doJSON(t, r, http.MethodPost, "/api/estimate", map[string]any{
		"content": strings.Repeat("a", 4000),
		"model":   "gemini",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		EstimatedTokens       int     `json:"estimatedTokens"`
		AvailableOutputTokens int     `json:"availableOutputTokens"`
		EstimatedTotalCost    float64 `json:"estimatedTotalCost"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1000, data.EstimatedTokens)
	assert.Equal(t, 100000, data.AvailableOutputTokens)
	assert.InDelta(t, 1000*1.25/1e6+100000*10.0/1e6, data.EstimatedTotalCost, 1e-9)
}

type stubGenerator struct {
	got    *entity.GenerationRequest
	result *entity.GenerationResult
	err    error
}

func (s *stubGenerator) Run(_ context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error) {
	s.got = req
	return s.result, s.err
}

func generateRouter(gen Generator) *gin.Engine {
	h := NewGenerateHandler(gen, "kimi", 1<<20)
	r := gin.New()
	r.POST("/api/generate", h.Generate)
	return r
}

func TestGenerateHandlerJSON(t *testing.T) {
	gen := &stubGenerator{result: &entity.GenerationResult{
		ProjectName:  "todo_app",
		ProjectDir:   "output/todo_app",
		Model:        entity.ModelGemini,
		FilesWritten: []string{"main.go"},
		InputTokens:  10,
		OutputTokens: 20,
		Parsed:       true,
		State:        entity.StateDone,
	}}
	r := generateRouter(gen)

	w, env := doJSON(t, r, http.MethodPost, "/api/generate", map[string]any{
		"prdText":   "# Todo",
		"model":     "Gemini",
		"outputDir": "output",
		"apiKey":    "sk",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, entity.ModelGemini, gen.got.Model)
	assert.Equal(t, "sk", gen.got.APIKey)

	var data map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "output/todo_app", data["projectPath"])
	assert.EqualValues(t, 1, data["filesCreated"])
	assert.EqualValues(t, 30, data["tokenUsage"].(map[string]any)["total"])
}

func TestGenerateHandlerMultipart(t *testing.T) {
	gen := &stubGenerator{result: &entity.GenerationResult{State: entity.StateDone}}
	r := generateRouter(gen)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("model", "kimi"))
	require.NoError(t, mw.WriteField("maxTokens", "4000"))
	for name, content := range map[string]string{"a.md": "# A", "b.md": "# B"} {
		fw, err := mw.CreateFormFile("prdFiles", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, gen.got)
	assert.Equal(t, 4000, gen.got.MaxTokens)
	assert.Equal(t, entity.ModelKimi, gen.got.Model)
	require.Len(t, gen.got.Files, 2)
	byName := map[string]string{}
	for _, f := range gen.got.Files {
		byName[f.Name] = f.Content
	}
	assert.Equal(t, "# A", byName["a.md"])
	assert.Equal(t, "# B", byName["b.md"])
}

func TestGenerateHandlerErrors(t *testing.T) {
	t.Run("invalid model", func(t *testing.T) {
		gen := &stubGenerator{}
		w, _ := doJSON(t, generateRouter(gen), http.MethodPost, "/api/generate", map[string]any{"prdText": "x", "model": "gpt"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, gen.got)
	})

	t.Run("upstream failure", func(t *testing.T) {
		gen := &stubGenerator{
			result: &entity.GenerationResult{State: entity.StateFailed},
			err:    apperrors.Wrap(errors.New("boom"), apperrors.CodeLLMProviderError, "model call failed").WithDetail("moonshot: upstream status 401: bad key"),
		}
		w, env := doJSON(t, generateRouter(gen), http.MethodPost, "/api/generate", map[string]any{"prdText": "x"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "moonshot: upstream status 401: bad key", env.Error.Details)
		assert.Empty(t, env.Data)
	})

	t.Run("write failure keeps partial result", func(t *testing.T) {
		gen := &stubGenerator{
			result: &entity.GenerationResult{FilesWritten: []string{"a.txt"}, State: entity.StateFailed},
			err:    apperrors.New(apperrors.CodeWriteFailed, "failed to write project files"),
		}
		w, env := doJSON(t, generateRouter(gen), http.MethodPost, "/api/generate", map[string]any{"prdText": "x"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var data map[string]any
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, false, data["success"])
		assert.EqualValues(t, 1, data["filesCreated"])
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		generateRouter(&stubGenerator{}).ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

type stubWritable struct{ err error }

func (s stubWritable) Writable() error { return s.err }

func TestHealthHandlerReady(t *testing.T) {
	r := gin.New()
	r.GET("/ready", NewHealthHandler(stubWritable{}, nil, "v1").Ready)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":{"status":"disabled"}`)

	r = gin.New()
	r.GET("/ready", NewHealthHandler(stubWritable{err: errors.New("read-only")}, nil, "v1").Ready)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "read-only")
}
