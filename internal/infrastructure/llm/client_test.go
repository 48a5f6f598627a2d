package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prd-generator-api/internal/config"
)

const okBody = `{"id":"x","choices":[{"message":{"role":"assistant","content":"{\"files\":[]}"}}],"usage":{"prompt_tokens":120,"completion_tokens":45,"total_tokens":165}}`

type fixedCounter int

func (f fixedCounter) Count(context.Context, string) int { return int(f) }

func captureServer(t *testing.T, status int, body string, seen *http.Request, payload *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.Clone(context.Background())
		}
		if payload != nil {
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openRouterConfig(url string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:      url,
		Model:        "google/gemini-2.5-pro",
		Temperature:  0.7,
		Timeout:      5 * time.Second,
		ContextLimit: 2000000,
		Referer:      "http://localhost:3000",
		Title:        "PRD Generator",
	}
}

func TestOpenRouterRequestShape(t *testing.T) {
	var seen http.Request
	var payload map[string]any
	srv := captureServer(t, http.StatusOK, okBody, &seen, &payload)

	c := NewOpenRouterClient(openRouterConfig(srv.URL))
	out, err := c.Generate(context.Background(), "build it", 5000, "sk-or")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "Bearer sk-or", seen.Header.Get("Authorization"))
	assert.Equal(t, "http://localhost:3000", seen.Header.Get("HTTP-Referer"))
	assert.Equal(t, "PRD Generator", seen.Header.Get("X-Title"))
	assert.Equal(t, "application/json", seen.Header.Get("Content-Type"))

	assert.Equal(t, "google/gemini-2.5-pro", payload["model"])
	assert.InDelta(t, 0.7, payload["temperature"], 1e-9)
	assert.EqualValues(t, 5000, payload["max_tokens"])
	msgs := payload["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "build it", msgs[0].(map[string]any)["content"])

	assert.Equal(t, `{"files":[]}`, out.Text)
	assert.Equal(t, 120, out.InputTokens)
	assert.Equal(t, 45, out.OutputTokens)
	assert.Equal(t, okBody, out.Raw)
}

func TestMoonshotRequestShapeAndClamp(t *testing.T) {
	var seen http.Request
	var payload map[string]any
	srv := captureServer(t, http.StatusOK, okBody, &seen, &payload)

	c := NewMoonshotClient(config.ProviderConfig{
		BaseURL:      srv.URL,
		Model:        "kimi-k2-0711-preview",
		Temperature:  0.6,
		Timeout:      5 * time.Second,
		ContextLimit: 128000,
	}, fixedCounter(100000))

	_, err := c.Generate(context.Background(), "prd", 100000, "sk-ms")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-ms", seen.Header.Get("Authorization"))
	assert.Empty(t, seen.Header.Get("X-Title"))
	assert.EqualValues(t, 27000, payload["max_tokens"])
	assert.EqualValues(t, 1, payload["top_p"])
	assert.EqualValues(t, 1, payload["n"])
	assert.Equal(t, false, payload["stream"])
	msgs := payload["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Contains(t, msgs[0].(map[string]any)["content"], "valid JSON")
}

func TestMoonshotNoRoomLeft(t *testing.T) {
	c := NewMoonshotClient(config.ProviderConfig{BaseURL: "http://127.0.0.1:1", ContextLimit: 128000}, fixedCounter(127500))

	_, err := c.Generate(context.Background(), "prd", 1000, "sk")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "moonshot", upErr.Provider)
	assert.Zero(t, upErr.StatusCode)
}

func TestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"unauthorized with error object", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, 401, "invalid api key"},
		{"server error plain text", http.StatusBadGateway, "bad gateway", 502, "bad gateway"},
		{"malformed json", http.StatusOK, `{"choices":[`, 200, "malformed response"},
		{"missing content", http.StatusOK, `{"choices":[]}`, 200, "response has no content"},
		{"error in 200 body", http.StatusOK, `{"error":{"message":"quota exceeded"}}`, 200, "quota exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := captureServer(t, tt.status, tt.body, nil, nil)
			c := NewOpenRouterClient(openRouterConfig(srv.URL))

			_, err := c.Generate(context.Background(), "p", 10, "k")
			var upErr *UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, "openrouter", upErr.Provider)
			assert.Equal(t, tt.wantStatus, upErr.StatusCode)
			assert.Contains(t, upErr.Message, tt.wantMsg)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewOpenRouterClient(openRouterConfig(url))
	_, err := c.Generate(context.Background(), "p", 10, "k")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Zero(t, upErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...(3 bytes truncated)", truncate("abcde", 2))
}
