package integrations

import (
	"context"
	"fmt"
	"net/http"
)

// Entity is one NLP-recognized entity with its salience in the analyzed
// text.
type Entity struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Salience float64           `json:"salience"`
	Mentions []map[string]any  `json:"mentions"`
	Metadata map[string]string `json:"metadata"`
}

// NLPClient analyzes text through the language provider. The credential
// travels as a query parameter, not a header.
type NLPClient struct {
	client *Client
}

// NewNLPClient wires the adapter over the shared base client.
func NewNLPClient(client *Client) *NLPClient {
	return &NLPClient{client: client}
}

// Available reports whether the provider is configured.
func (c *NLPClient) Available() bool { return c.client.Available() }

// Close releases the underlying connection pool.
func (c *NLPClient) Close() { c.client.Close() }

// AnalyzeEntities extracts entities from plain text.
func (c *NLPClient) AnalyzeEntities(ctx context.Context, text string) ([]Entity, error) {
	body := map[string]any{
		"document": map[string]any{
			"type":    "PLAIN_TEXT",
			"content": text,
		},
		"encodingType": "UTF8",
	}
	res, err := c.client.Do(ctx, http.MethodPost, "/v1/documents:analyzeEntities", body,
		"text_len", len(text))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Entities []Entity `json:"entities"`
	}
	if err := decodeInto(res, &parsed); err != nil {
		return nil, fmt.Errorf("nlp: decode entities: %w", err)
	}
	return parsed.Entities, nil
}
