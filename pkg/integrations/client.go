// Package integrations talks to the third-party providers behind the
// pipeline. Retry with exponential backoff, rate-limit honoring, circuit
// breaking, credential masking, and per-call telemetry all live in the base
// client so the per-provider adapters stay thin.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/masking"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/version"
)

// maxHonoredRetryAfter caps how long a 429 Retry-After is worth sleeping on.
// Anything longer fails the call instead of stalling a pipeline slot.
const maxHonoredRetryAfter = 60 * time.Second

// Client is the shared HTTP base under every provider adapter. One instance
// per provider per process; the breaker state is therefore shared across all
// in-flight calls to that provider.
type Client struct {
	cfg     config.ProviderConfig
	httpc   *http.Client
	breaker *Breaker
	masker  *masking.Masker
	logger  *slog.Logger
}

// NewClient builds a provider client from its config. The masker must know
// this provider's key so telemetry and error bodies come out scrubbed.
func NewClient(cfg config.ProviderConfig, masker *masking.Masker) *Client {
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(cfg.Name, cfg.CircuitFailureThreshold, cfg.CircuitRecoveryTimeout),
		masker:  masker,
		logger:  slog.Default().With("provider", cfg.Name),
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.cfg.Name }

// Available reports whether the provider has a credential configured.
func (c *Client) Available() bool { return c.cfg.Configured() }

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() string { return c.breaker.State() }

// Close releases pooled connections.
func (c *Client) Close() { c.httpc.CloseIdleConnections() }

// Do issues a JSON request and returns the parsed response object. body, when
// non-nil, is JSON-encoded; for body-credential providers the apiKey field is
// injected into map bodies. labels are extra key/value pairs carried on every
// log line for this call.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, labels ...any) (map[string]any, error) {
	var payload []byte
	contentType := ""
	if body != nil {
		if c.cfg.Auth == config.AuthBodyField && c.cfg.APIKey != "" {
			if m, ok := body.(map[string]any); ok {
				withKey := make(map[string]any, len(m)+1)
				for k, v := range m {
					withKey[k] = v
				}
				withKey["apiKey"] = c.cfg.APIKey
				body = withKey
			}
		}
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.cfg.Name, err)
		}
		payload = encoded
		contentType = "application/json"
	}
	return c.do(ctx, method, endpoint, contentType, payload, labels)
}

// DoForm issues a form-encoded POST, for providers that do not speak JSON on
// the way in.
func (c *Client) DoForm(ctx context.Context, endpoint string, form url.Values, labels ...any) (map[string]any, error) {
	return c.do(ctx, http.MethodPost, endpoint, "application/x-www-form-urlencoded",
		[]byte(form.Encode()), labels)
}

// do runs the retry loop around one logical call. Every attempt passes the
// breaker gate exactly once and settles it exactly once.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, payload []byte, labels []any) (map[string]any, error) {
	if c.cfg.Auth != config.AuthNone && c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: provider not configured", c.cfg.Name)
	}

	fullURL, err := c.buildURL(endpoint)
	if err != nil {
		return nil, err
	}
	logBody := c.masker.Body(payload)
	baseArgs := append([]any{"method", method, "endpoint", endpoint}, labels...)

	var wait time.Duration
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, &TimeoutError{Provider: c.cfg.Name, Err: err}
			}
		}

		var reqBody io.Reader
		if len(payload) > 0 {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("%s: create request: %w", c.cfg.Name, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if c.cfg.Auth == config.AuthBearer {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		done, err := c.breaker.CanExecute()
		if err != nil {
			return nil, err
		}

		c.logger.Debug("Provider request", append(baseArgs, "attempt", attempt, "body", logBody)...)

		start := time.Now()
		resp, err := c.httpc.Do(req)
		duration := time.Since(start)
		if err != nil {
			done(false)
			timedOut := isTimeoutErr(err)
			if attempt < c.cfg.MaxRetries {
				wait = c.backoff(attempt)
				c.logger.Warn("Provider call failed, will retry",
					append(baseArgs, "attempt", attempt,
						"duration_ms", duration.Milliseconds(),
						"error", c.masker.Scrub(err.Error()),
						"retry_in", wait)...)
				continue
			}
			if timedOut {
				return nil, &TimeoutError{Provider: c.cfg.Name, Err: err}
			}
			return nil, &TransportError{Provider: c.cfg.Name, Err: err}
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			done(false)
			if attempt < c.cfg.MaxRetries {
				wait = c.backoff(attempt)
				c.logger.Warn("Provider response read failed, will retry",
					append(baseArgs, "attempt", attempt, "error", readErr.Error())...)
				continue
			}
			return nil, &TransportError{Provider: c.cfg.Name, Err: readErr}
		}

		c.logger.Info("Provider response",
			append(baseArgs, "status", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"attempt", attempt,
				"request_id", resp.Header.Get("X-Request-Id"))...)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			done(true)
			return parseJSONObject(c.cfg.Name, body)

		case resp.StatusCode == http.StatusTooManyRequests:
			done(false)
			retryAfter, honored := parseRetryAfter(resp.Header.Get("Retry-After"))
			if attempt < c.cfg.MaxRetries {
				if honored && retryAfter <= maxHonoredRetryAfter {
					wait = retryAfter
					c.logger.Warn("Provider rate limited, honoring Retry-After",
						append(baseArgs, "attempt", attempt, "retry_after", retryAfter)...)
					continue
				}
				if !honored {
					wait = c.backoff(attempt)
					c.logger.Warn("Provider rate limited, backing off",
						append(baseArgs, "attempt", attempt, "retry_in", wait)...)
					continue
				}
			}
			return nil, &RateLimitedError{Provider: c.cfg.Name, RetryAfter: retryAfter}

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			done(false)
			return nil, &AuthFailedError{Provider: c.cfg.Name, StatusCode: resp.StatusCode}

		case resp.StatusCode >= 500:
			done(false)
			if attempt < c.cfg.MaxRetries {
				wait = c.backoff(attempt)
				c.logger.Warn("Provider server error, will retry",
					append(baseArgs, "attempt", attempt, "status", resp.StatusCode, "retry_in", wait)...)
				continue
			}
			return nil, &ServerError{Provider: c.cfg.Name, StatusCode: resp.StatusCode}

		default:
			// Remaining 4xx: the request is wrong, not the provider. Settled
			// as success so a burst of bad inputs cannot open the breaker.
			done(true)
			return nil, &ClientError{
				Provider:   c.cfg.Name,
				StatusCode: resp.StatusCode,
				Body:       c.masker.Body(body),
			}
		}
	}
	return nil, &TransportError{Provider: c.cfg.Name, Err: errors.New("retry budget exhausted")}
}

// buildURL joins the endpoint to the base URL and appends the query-param
// credential when the provider uses one. Absolute endpoints pass through.
func (c *Client) buildURL(endpoint string) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: parse endpoint %q: %w", c.cfg.Name, endpoint, err)
	}
	if c.cfg.Auth == config.AuthQueryParam && c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("key", c.cfg.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.RetryDelay * time.Duration(1<<attempt)
}

// parseJSONObject decodes a 2xx body. Empty bodies come back as an empty
// object so callers never branch on nil.
func parseJSONObject(provider string, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return parsed, nil
}

// parseRetryAfter reads a Retry-After header as whole seconds. HTTP-date
// values are treated as absent.
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// sleepCtx waits d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// decodeInto converts a parsed JSON map into a typed struct via a
// marshal/unmarshal round trip.
func decodeInto(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
