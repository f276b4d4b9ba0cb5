package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/masking"
)

func newTestClient(server *httptest.Server, mutate func(*config.ProviderConfig)) *Client {
	cfg := config.ProviderConfig{
		Name:                    "testprov",
		APIKey:                  "sk-test-credential-42",
		BaseURL:                 server.URL,
		Auth:                    config.AuthBearer,
		Timeout:                 2 * time.Second,
		MaxRetries:              2,
		RetryDelay:              time.Millisecond,
		CircuitFailureThreshold: 10,
		CircuitRecoveryTimeout:  50 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewClient(cfg, masking.NewMasker(cfg.APIKey))
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	res, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)
	require.NoError(t, err)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientServerErrorAfterRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server, func(cfg *config.ProviderConfig) { cfg.MaxRetries = 1 })
	_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusBadGateway, serverErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)

	var authErr *AuthFailedError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"keyword missing"}`))
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	_, err := client.Do(context.Background(), http.MethodPost, "/thing", map[string]any{})

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusUnprocessableEntity, clientErr.StatusCode)
	assert.Contains(t, clientErr.Body, "keyword missing")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientRateLimiting(t *testing.T) {
	t.Run("honors numeric Retry-After", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server, nil)
		_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("excessive Retry-After fails immediately", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "120")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(server, nil)
		_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)

		var rlErr *RateLimitedError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, 120*time.Second, rlErr.RetryAfter)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("date Retry-After treated as absent", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server, nil)
		_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("exhaustion returns RateLimited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(server, func(cfg *config.ProviderConfig) { cfg.MaxRetries = 1 })
		_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)

		var rlErr *RateLimitedError
		require.ErrorAs(t, err, &rlErr)
	})
}

func TestClientCredentialPlacement(t *testing.T) {
	t.Run("bearer header", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server, nil)
		_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)
		require.NoError(t, err)
		assert.Equal(t, "Bearer sk-test-credential-42", gotAuth)
	})

	t.Run("body apiKey field", func(t *testing.T) {
		var gotBody map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server, func(cfg *config.ProviderConfig) { cfg.Auth = config.AuthBodyField })
		original := map[string]any{"keyword": "trail shoes"}
		_, err := client.Do(context.Background(), http.MethodPost, "/get-terms", original)
		require.NoError(t, err)
		assert.Equal(t, "sk-test-credential-42", gotBody["apiKey"])
		assert.Equal(t, "trail shoes", gotBody["keyword"])
		// The caller's map must not pick up the credential.
		assert.NotContains(t, original, "apiKey")
	})

	t.Run("query parameter key", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.URL.Query().Get("key")
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		client := newTestClient(server, func(cfg *config.ProviderConfig) { cfg.Auth = config.AuthQueryParam })
		_, err := client.Do(context.Background(), http.MethodPost, "/v1/documents:analyzeEntities", map[string]any{"x": 1})
		require.NoError(t, err)
		assert.Equal(t, "sk-test-credential-42", gotKey)
	})
}

func TestClientEmptyBodyReturnsEmptyObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server, nil)
	res, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestClientCircuitOpensMidRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server, func(cfg *config.ProviderConfig) {
		cfg.MaxRetries = 3
		cfg.CircuitFailureThreshold = 2
	})
	_, err := client.Do(context.Background(), http.MethodGet, "/thing", nil)

	var openErr *CircuitOpenError
	require.ErrorAs(t, err, &openErr)
	// Two failures trip the breaker; the third attempt is rejected before
	// reaching the server.
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server, func(cfg *config.ProviderConfig) {
		cfg.Timeout = 20 * time.Millisecond
		cfg.MaxRetries = 0
	})
	_, err := client.Do(context.Background(), http.MethodGet, "/slow", nil)

	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestClientTelemetryNeverLeaksCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		// A provider that echoes the credential back in its error body.
		_, _ = w.Write([]byte(`{"error":"bad key sk-test-credential-42"}`))
	}))
	defer server.Close()

	var logs bytes.Buffer
	client := newTestClient(server, func(cfg *config.ProviderConfig) { cfg.Auth = config.AuthBodyField })
	client.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := client.Do(context.Background(), http.MethodPost, "/thing", map[string]any{"keyword": "x"})
	require.Error(t, err)

	assert.NotContains(t, logs.String(), "sk-test-credential-42")
	assert.NotContains(t, err.Error(), "sk-test-credential-42")
	assert.True(t, strings.Contains(logs.String(), masking.Placeholder) ||
		strings.Contains(err.Error(), masking.Placeholder))
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, Retryable(&TimeoutError{Provider: "p"}))
	assert.True(t, Retryable(&ServerError{Provider: "p", StatusCode: 502}))
	assert.True(t, Retryable(&TransportError{Provider: "p"}))
	assert.True(t, Retryable(&RateLimitedError{Provider: "p"}))
	assert.False(t, Retryable(&CircuitOpenError{Provider: "p"}))
	assert.False(t, Retryable(&AuthFailedError{Provider: "p", StatusCode: 401}))
	assert.False(t, Retryable(&ClientError{Provider: "p", StatusCode: 404}))
}
