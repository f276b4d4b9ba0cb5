package integrations

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// keywordBatchLimit is the provider's per-request keyword cap.
const keywordBatchLimit = 100

// KeywordData is the volume record for one keyword.
type KeywordData struct {
	Keyword     string  `json:"keyword"`
	Volume      int     `json:"vol"`
	CPC         float64 `json:"-"`
	Competition float64 `json:"competition"`
}

// KeywordClient fetches search-volume data. Requests are form-encoded with
// the keyword list repeated under kw[].
type KeywordClient struct {
	client      *Client
	concurrency int
	credits     atomic.Int64
	logger      *slog.Logger
}

// NewKeywordClient wires the adapter over the shared base client.
// concurrency bounds how many batch requests run at once.
func NewKeywordClient(client *Client, concurrency int) *KeywordClient {
	if concurrency < 1 {
		concurrency = 1
	}
	return &KeywordClient{
		client:      client,
		concurrency: concurrency,
		logger:      slog.Default().With("provider", client.Name()),
	}
}

// Available reports whether the provider is configured.
func (c *KeywordClient) Available() bool { return c.client.Available() }

// Close releases the underlying connection pool.
func (c *KeywordClient) Close() { c.client.Close() }

// Credits returns the provider credit balance seen on the most recent
// response.
func (c *KeywordClient) Credits() int64 { return c.credits.Load() }

// GetKeywordData fetches volume data for up to keywordBatchLimit keywords in
// one request.
func (c *KeywordClient) GetKeywordData(ctx context.Context, keywords []string, country, currency, dataSource string) ([]KeywordData, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if len(keywords) > keywordBatchLimit {
		return nil, fmt.Errorf("keyword batch of %d exceeds limit %d", len(keywords), keywordBatchLimit)
	}

	form := url.Values{
		"country":    {country},
		"currency":   {currency},
		"dataSource": {dataSource},
		"kw[]":       keywords,
	}
	res, err := c.client.DoForm(ctx, "/v1/get_keyword_data", form, "keywords", len(keywords))
	if err != nil {
		return nil, err
	}

	if credits, ok := res["credits"].(float64); ok {
		c.credits.Store(int64(credits))
		c.logger.Debug("Keyword provider credits", "remaining", int64(credits))
	}

	rows, _ := res["data"].([]any)
	data := make([]KeywordData, 0, len(rows))
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		data = append(data, KeywordData{
			Keyword:     stringField(m, "keyword"),
			Volume:      intField(m, "vol"),
			CPC:         cpcValue(m["cpc"]),
			Competition: floatField(m, "competition"),
		})
	}
	return data, nil
}

// GetKeywordDataBatch splits an arbitrarily large keyword list into
// provider-sized batches, fetches them concurrently under the configured
// bound, and reassembles results in input order.
func (c *KeywordClient) GetKeywordDataBatch(ctx context.Context, keywords []string, country, currency, dataSource string) ([]KeywordData, error) {
	if len(keywords) <= keywordBatchLimit {
		return c.GetKeywordData(ctx, keywords, country, currency, dataSource)
	}

	var chunks [][]string
	for start := 0; start < len(keywords); start += keywordBatchLimit {
		end := start + keywordBatchLimit
		if end > len(keywords) {
			end = len(keywords)
		}
		chunks = append(chunks, keywords[start:end])
	}

	results := make([][]KeywordData, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			data, err := c.GetKeywordData(gctx, chunk, country, currency, dataSource)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]KeywordData, 0, len(keywords))
	for _, part := range results {
		merged = append(merged, part...)
	}
	return merged, nil
}

// cpcValue handles both the flat and the {currency, value} CPC shapes.
func cpcValue(v any) float64 {
	switch cpc := v.(type) {
	case float64:
		return cpc
	case map[string]any:
		switch inner := cpc["value"].(type) {
		case float64:
			return inner
		case string:
			f, _ := strconv.ParseFloat(inner, 64)
			return f
		}
	}
	return 0
}

func intField(m map[string]any, key string) int {
	f, _ := m[key].(float64)
	return int(f)
}

func floatField(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}
