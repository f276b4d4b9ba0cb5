package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
)

func TestLLMComplete(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "Generated copy here.",
			"usage": map[string]any{
				"input_tokens":  120,
				"output_tokens": 45,
			},
		})
	}))
	defer server.Close()

	llm := NewLLMClient(newTestClient(server, nil))
	res := llm.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You write SEO copy.",
		UserPrompt:   "Write about trail shoes.",
		MaxTokens:    800,
		Temperature:  0.4,
	})

	require.True(t, res.Success, "unexpected error: %s", res.Error)
	assert.Equal(t, "Generated copy here.", res.Text)
	assert.Equal(t, 120, res.InputTokens)
	assert.Equal(t, 45, res.OutputTokens)
	assert.Equal(t, "You write SEO copy.", gotBody["system"])
	assert.Equal(t, "Write about trail shoes.", gotBody["prompt"])
}

func TestLLMCompleteFailureIsResultNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	llm := NewLLMClient(newTestClient(server, func(cfg *config.ProviderConfig) { cfg.MaxRetries = 0 }))
	res := llm.Complete(context.Background(), CompletionRequest{UserPrompt: "x", MaxTokens: 10})

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Empty(t, res.Text)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare json passes through",
			in:   `  {"labels": ["a"]}  `,
			want: `{"labels": ["a"]}`,
		},
		{
			name: "json fence",
			in:   "```json\n{\"labels\": [\"a\"]}\n```",
			want: `{"labels": ["a"]}`,
		},
		{
			name: "anonymous fence",
			in:   "```\n{\"x\": 1}\n```",
			want: `{"x": 1}`,
		},
		{
			name: "prose around the fence",
			in:   "Here you go:\n```json\n{\"x\": 1}\n```\nLet me know!",
			want: `{"x": 1}`,
		},
		{
			name: "uppercase info string",
			in:   "```JSON\n[1, 2]\n```",
			want: `[1, 2]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
