package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyumbani/smartsearch/internal/config"
	"github.com/nyumbani/smartsearch/internal/model"
)

func newOpenAITestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(&config.OpenAIConfig{
		APIKey:          "test-key",
		APIBase:         srv.URL,
		ChatModel:       "gpt-4o-mini",
		ChatTemperature: 0.3,
		ChatMaxTokens:   512,
		EmbeddingModel:  "text-embedding-3-small",
		Enabled:         true,
	}, nil)
}

func TestOpenAIClient_Embed(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, []any{"villa in Runda"}, body["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.1,0.2,0.3],"index":0}],` +
			`"model":"text-embedding-3-small","usage":{"prompt_tokens":3,"total_tokens":3}}`))
	})

	vec, err := client.Embed(context.Background(), "villa in Runda")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIClient_EmbedErrors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
		})
		_, err := client.Embed(context.Background(), "villa")
		assert.ErrorIs(t, err, model.ErrProviderUnavailable)
		assert.ErrorContains(t, err, "Incorrect API key provided")
	})

	t.Run("empty data", func(t *testing.T) {
		client := newOpenAITestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"m"}`))
		})
		_, err := client.Embed(context.Background(), "villa")
		assert.ErrorIs(t, err, model.ErrProviderUnavailable)
	})

	t.Run("not configured", func(t *testing.T) {
		client := NewOpenAIClient(&config.OpenAIConfig{}, nil)
		_, err := client.Embed(context.Background(), "villa")
		assert.ErrorIs(t, err, model.ErrProviderUnavailable)
	})
}

func TestOpenAIClient_GenerateIntentJSON(t *testing.T) {
	client := newOpenAITestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		assert.Equal(t, "json_object", body.ResponseFormat.Type)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "apartment with pool in westlands", body.Messages[1].Content)

		resp := map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": westlandsIntent},
				"finish_reason": "stop",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	raw, err := client.GenerateIntentJSON(context.Background(), "apartment with pool in westlands")
	require.NoError(t, err)

	intent, err := ParseIntent(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"Westlands"}, intent.Locations)
}

func TestExtractDetail(t *testing.T) {
	assert.Equal(t, "model not found", extractDetail([]byte(`{"detail":"model not found"}`)))
	assert.Equal(t, "quota exceeded", extractDetail([]byte(`{"error":{"message":"quota exceeded"}}`)))
	assert.Empty(t, extractDetail([]byte(`<html>bad gateway</html>`)))
}
