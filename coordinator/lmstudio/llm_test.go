package lmstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sageagent"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "local-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestClient_Invoke(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("Recipes with garlic: pesto.md"))
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{BaseURL: srv.URL + "/v1", APIKey: "lm-studio", ModelID: "qwen2.5-7b-instruct", HTTPClient: srv.Client()})
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), sageagent.Prompt{
		Messages: []sageagent.Message{
			{Role: "system", Content: "You are Sage."},
			{Role: "user", Content: "What has garlic?"},
			{Role: "tool", Content: "coerced"},
		},
		Temperature: 0.1,
		MaxTokens:   1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Recipes with garlic: pesto.md", out)

	assert.Equal(t, "Bearer lm-studio", auth)
	assert.Equal(t, "qwen2.5-7b-instruct", got.Model)
	assert.InDelta(t, 0.1, got.Temperature, 1e-6)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[2].Role)
}

func TestClient_InvokeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
			},
			wantErr: "model not loaded",
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
			},
			wantErr: ErrNoChoices.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := NewClient(ClientOpts{BaseURL: srv.URL + "/v1", APIKey: "lm-studio", HTTPClient: srv.Client()})
			require.NoError(t, err)

			_, err = c.Invoke(context.Background(), sageagent.Prompt{Messages: []sageagent.Message{{Role: "user", Content: "hi"}}})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientOpts{})
	assert.Error(t, err)
}
