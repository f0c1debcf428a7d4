package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServer starts a fake OpenAI-compatible API serving handler under /v1.
func newServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL + "/v1"
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestEmbedder_EmbedDocuments(t *testing.T) {
	t.Parallel()

	t.Run("returns vectors in input order", func(t *testing.T) {
		t.Parallel()

		var got struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"object": "list",
				"model":  got.Model,
				"data": []map[string]any{
					{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
					{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
				},
			})
		})

		e, err := openai.NewEmbedder(openai.Config{APIKey: "sk-test", BaseURL: baseURL})
		require.NoError(t, err)

		vectors, err := e.EmbedDocuments(context.Background(), []string{"BRCA1", "TP53"})

		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
		assert.Equal(t, []string{"BRCA1", "TP53"}, got.Input)
		assert.Equal(t, openai.DefaultEmbeddingModel, got.Model)
		assert.Equal(t, openai.DefaultEmbeddingModel, e.ModelName())
	})

	t.Run("returns nil without calling the API for no texts", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})
		e, err := openai.NewEmbedder(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		vectors, err := e.EmbedDocuments(context.Background(), nil)

		require.NoError(t, err)
		assert.Nil(t, vectors)
	})

	t.Run("embeds queries with a custom model", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{0.5, 0.5}}},
			})
		})
		e, err := openai.NewEmbedder(openai.Config{BaseURL: baseURL, Model: "bge-small-en"})
		require.NoError(t, err)

		vector, err := e.EmbedQuery(context.Background(), "query")

		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.5}, vector)
		assert.Equal(t, "bge-small-en", e.ModelName())
	})

	t.Run("maps rate limiting to EUNAVAILABLE", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"message": "rate limit reached", "type": "requests"},
			})
		})
		e, err := openai.NewEmbedder(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		_, err = e.EmbedDocuments(context.Background(), []string{"x"})

		assert.Equal(t, ragchat.EUNAVAILABLE, ragchat.ErrorCode(err))
		assert.Contains(t, ragchat.ErrorMessage(err), "rate limit reached")
	})

	t.Run("maps bad requests to EINVALID", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"message": "input too long", "type": "invalid_request_error"},
			})
		})
		e, err := openai.NewEmbedder(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		_, err = e.EmbedDocuments(context.Background(), []string{"x"})

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("rejects mismatched result counts", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"data": []map[string]any{{"index": 0, "embedding": []float32{1}}},
			})
		})
		e, err := openai.NewEmbedder(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		_, err = e.EmbedDocuments(context.Background(), []string{"a", "b"})

		assert.Equal(t, ragchat.EINTERNAL, ragchat.ErrorCode(err))
	})
}

func TestNewEmbedder_RequiresKeyForOpenAI(t *testing.T) {
	t.Parallel()

	_, err := openai.NewEmbedder(openai.Config{})

	assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
}

func TestChatService_Chat(t *testing.T) {
	t.Parallel()

	t.Run("sends system messages before the user message", func(t *testing.T) {
		t.Parallel()

		var got struct {
			Model    string `json:"model"`
			User     string `json:"user"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  got.Model,
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": "Gene, Protein"},
					"finish_reason": "stop",
				}},
				"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
			})
		})
		s, err := openai.NewChatService(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		resp, err := s.Chat(context.Background(), &ragchat.ChatRequest{
			User:    "entity_selector",
			System:  []string{"first", "second"},
			Message: "Which entities?",
		})

		require.NoError(t, err)
		assert.Equal(t, "Gene, Protein", resp.Content)
		assert.Equal(t, ragchat.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, resp.Usage)
		assert.Equal(t, openai.DefaultChatModel, got.Model)
		assert.Equal(t, "entity_selector", got.User)
		require.Len(t, got.Messages, 3)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "first", got.Messages[0].Content)
		assert.Equal(t, "second", got.Messages[1].Content)
		assert.Equal(t, "user", got.Messages[2].Role)
		assert.Equal(t, "Which entities?", got.Messages[2].Content)
	})

	t.Run("request model overrides the default", func(t *testing.T) {
		t.Parallel()

		var model string
		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Model string `json:"model"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			model = body.Model
			writeJSON(t, w, http.StatusOK, map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "ok"}}},
			})
		})
		s, err := openai.NewChatService(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		_, err = s.Chat(context.Background(), &ragchat.ChatRequest{Model: "gpt-4o", Message: "hi"})

		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", model)
	})

	t.Run("returns EINTERNAL when no choices are returned", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{"choices": []any{}})
		})
		s, err := openai.NewChatService(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		_, err = s.Chat(context.Background(), &ragchat.ChatRequest{Message: "hi"})

		assert.Equal(t, ragchat.EINTERNAL, ragchat.ErrorCode(err))
	})

	t.Run("maps server errors to EUNAVAILABLE", func(t *testing.T) {
		t.Parallel()

		baseURL := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]any{
				"error": map[string]any{"message": "overloaded"},
			})
		})
		s, err := openai.NewChatService(openai.Config{APIKey: "k", BaseURL: baseURL})
		require.NoError(t, err)

		_, err = s.Chat(context.Background(), &ragchat.ChatRequest{Message: "hi"})

		assert.Equal(t, ragchat.EUNAVAILABLE, ragchat.ErrorCode(err))
	})

	t.Run("rejects empty messages", func(t *testing.T) {
		t.Parallel()

		s, err := openai.NewChatService(openai.Config{APIKey: "k"})
		require.NoError(t, err)

		_, err = s.Chat(context.Background(), &ragchat.ChatRequest{Message: " "})

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})
}
