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

func TestNLPClientAnalyzeEntitiesQueryCredential(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entities": []map[string]any{
				{"name": "trail running shoes", "type": "CONSUMER_GOOD", "salience": 0.61,
					"metadata": map[string]string{"mid": "/m/0abc12"}},
				{"name": "Vibram", "type": "ORGANIZATION", "salience": 0.12},
			},
		})
	}))
	defer server.Close()

	client := NewNLPClient(newTestClient(server, func(cfg *config.ProviderConfig) {
		cfg.Auth = config.AuthQueryParam
	}))
	entities, err := client.AnalyzeEntities(context.Background(),
		"Trail running shoes with Vibram outsoles grip wet rock.")
	require.NoError(t, err)

	assert.Equal(t, "sk-test-credential-42", gotKey, "credential travels as a query parameter")
	assert.Empty(t, gotAuth, "no Authorization header for query-param providers")

	doc, ok := gotBody["document"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PLAIN_TEXT", doc["type"])
	assert.Equal(t, "Trail running shoes with Vibram outsoles grip wet rock.", doc["content"])
	assert.Equal(t, "UTF8", gotBody["encodingType"])

	require.Len(t, entities, 2)
	assert.Equal(t, "trail running shoes", entities[0].Name)
	assert.Equal(t, "CONSUMER_GOOD", entities[0].Type)
	assert.InDelta(t, 0.61, entities[0].Salience, 0.001)
	assert.Equal(t, "/m/0abc12", entities[0].Metadata["mid"])
}

func TestNLPClientUnconfigured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer server.Close()

	client := NewNLPClient(newTestClient(server, func(cfg *config.ProviderConfig) {
		cfg.Auth = config.AuthQueryParam
		cfg.APIKey = ""
	}))
	assert.False(t, client.Available())

	_, err := client.AnalyzeEntities(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
