package integrations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// CrawlOptions tunes a crawl service request. The zero value asks for plain
// extraction.
type CrawlOptions struct {
	CacheMode          string `json:"cache_mode,omitempty"`
	WordCountThreshold int    `json:"word_count_threshold,omitempty"`
	OnlyText           bool   `json:"only_text,omitempty"`
}

// CrawlResult is one fetched page. Markdown is only present when the crawl
// service produced it; the plain-GET fallback yields HTML alone.
type CrawlResult struct {
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	HTML       string `json:"html"`
	Markdown   string `json:"markdown"`
	Error      string `json:"error"`
}

// CrawlClient fetches pages through the crawl service when configured, and
// degrades to plain HTTP GETs when not.
type CrawlClient struct {
	client *Client
	plain  *http.Client
	logger *slog.Logger
}

// NewCrawlClient wires the adapter over the shared base client.
func NewCrawlClient(client *Client) *CrawlClient {
	return &CrawlClient{
		client: client,
		plain:  &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default().With("provider", client.Name()),
	}
}

// Available reports whether the crawl service is configured. Crawl itself
// works either way; callers only need this to predict markdown support.
func (c *CrawlClient) Available() bool { return c.client.Available() }

// Close releases both connection pools.
func (c *CrawlClient) Close() {
	c.client.Close()
	c.plain.CloseIdleConnections()
}

// Crawl fetches one URL.
func (c *CrawlClient) Crawl(ctx context.Context, pageURL string, opts CrawlOptions) (*CrawlResult, error) {
	if !c.client.Available() {
		return c.plainGet(ctx, pageURL)
	}
	results, err := c.CrawlMany(ctx, []string{pageURL}, opts)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("crawl: empty result set for %s", pageURL)
	}
	return &results[0], nil
}

// CrawlMany fetches a batch of URLs in one provider request. The fallback
// path fetches them sequentially.
func (c *CrawlClient) CrawlMany(ctx context.Context, urls []string, opts CrawlOptions) ([]CrawlResult, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	if !c.client.Available() {
		results := make([]CrawlResult, 0, len(urls))
		for _, u := range urls {
			res, err := c.plainGet(ctx, u)
			if err != nil {
				return nil, err
			}
			results = append(results, *res)
		}
		return results, nil
	}

	body := map[string]any{
		"urls":    urls,
		"options": opts,
	}
	res, err := c.client.Do(ctx, http.MethodPost, "/crawl", body, "urls", len(urls))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []CrawlResult `json:"results"`
	}
	if err := decodeInto(res, &parsed); err != nil {
		return nil, fmt.Errorf("crawl: decode results: %w", err)
	}
	return parsed.Results, nil
}

// plainGet is the unconfigured fallback: raw HTML, no derived markdown. Never
// returns a transport failure as an error; it lands in the result so batch
// callers keep going.
func (c *CrawlClient) plainGet(ctx context.Context, pageURL string) (*CrawlResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("crawl fallback: create request: %w", err)
	}

	start := time.Now()
	resp, err := c.plain.Do(req)
	if err != nil {
		c.logger.Warn("Plain-GET fallback failed", "url", pageURL, "error", err)
		return &CrawlResult{URL: pageURL, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return &CrawlResult{URL: pageURL, StatusCode: resp.StatusCode, Error: err.Error()}, nil
	}
	c.logger.Debug("Plain-GET fallback fetched page",
		"url", pageURL, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	return &CrawlResult{
		URL:        pageURL,
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		HTML:       string(html),
	}, nil
}
