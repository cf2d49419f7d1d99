package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docqd/internal/config"
)

func newChatServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "Context from documents:")
		assert.Contains(t, req.Messages[1].Content, "Question:")

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": answer},
					"finish_reason": "stop",
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestGenerator(t *testing.T, baseURL string) *OpenAIGenerator {
	t.Helper()
	g, err := NewOpenAIGenerator(OpenAIConfig{
		Model:   "gpt-4o-mini",
		BaseURL: baseURL + "/v1",
		APIKey:  "test-key",
	})
	require.NoError(t, err)
	return g
}

func TestNewOpenAIGenerator_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{Model: "gpt-4o-mini"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := newChatServer(t, "Revenue grew 12% (see Page 3).")
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)
	answer, err := g.Generate(context.Background(), "How did revenue change?", "From report.pdf, Page 3:\nrevenue grew 12%\n")
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew 12% (see Page 3).", answer)
}

func TestOpenAIGenerator_GenerateEmptyQuestion(t *testing.T) {
	g := newTestGenerator(t, "http://127.0.0.1:0")
	_, err := g.Generate(context.Background(), "   ", "evidence")
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestOpenAIGenerator_GenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)
	_, err := g.Generate(context.Background(), "question", "evidence")
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestOpenAIGenerator_GenerateEmptyCompletion(t *testing.T) {
	srv := newChatServer(t, "   ")
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)
	_, err := g.Generate(context.Background(), "question", "evidence")
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestNewGenerator_Factory(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		cfg := config.GenerationConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}
		g, err := NewGenerator(cfg)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIGenerator{}, g)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.GenerationConfig{Provider: "mystery"}
		_, err := NewGenerator(cfg)
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}
