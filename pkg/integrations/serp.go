package integrations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SERPOptions filters a search. Zero values mean unfiltered.
type SERPOptions struct {
	Subreddit string
	TimeRange string
	Limit     int
}

// SERPPost is one search result, tagged with the keyword that produced it so
// downstream scoring can group posts per query.
type SERPPost struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Snippet       string  `json:"snippet"`
	Subreddit     string  `json:"subreddit"`
	Score         float64 `json:"score"`
	SearchKeyword string  `json:"search_keyword"`
}

// SERPClient searches the SERP provider.
type SERPClient struct {
	client *Client
}

// NewSERPClient wires the adapter over the shared base client.
func NewSERPClient(client *Client) *SERPClient {
	return &SERPClient{client: client}
}

// Available reports whether the provider is configured.
func (c *SERPClient) Available() bool { return c.client.Available() }

// Close releases the underlying connection pool.
func (c *SERPClient) Close() { c.client.Close() }

// Search runs one keyword query and tags every returned post with it.
func (c *SERPClient) Search(ctx context.Context, keyword string, opts SERPOptions) ([]SERPPost, error) {
	q := url.Values{"q": {keyword}}
	if opts.Subreddit != "" {
		q.Set("subreddit", opts.Subreddit)
	}
	if opts.TimeRange != "" {
		q.Set("t", opts.TimeRange)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}

	res, err := c.client.Do(ctx, http.MethodGet, "/search?"+q.Encode(), nil,
		"keyword", keyword)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []SERPPost `json:"data"`
	}
	if err := decodeInto(res, &parsed); err != nil {
		return nil, fmt.Errorf("serp: decode results: %w", err)
	}
	posts := parsed.Data
	for i := range posts {
		posts[i].SearchKeyword = keyword
	}
	return posts, nil
}
