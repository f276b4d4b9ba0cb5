package integrations

import (
	"context"
	"net/http"
	"strings"
)

// CompletionRequest is one LLM call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// CompletionResult is a result type, not an error channel: the pipeline
// treats writer failures as data and decides per page what to do with them.
type CompletionResult struct {
	Success      bool
	Text         string
	InputTokens  int
	OutputTokens int
	Error        string
}

// LLMClient is the completion adapter. The provider is a black box that
// takes a prompt and returns text.
type LLMClient struct {
	client *Client
}

// NewLLMClient wires the adapter over the shared base client.
func NewLLMClient(client *Client) *LLMClient {
	return &LLMClient{client: client}
}

// Available reports whether the provider is configured.
func (c *LLMClient) Available() bool { return c.client.Available() }

// Close releases the underlying connection pool.
func (c *LLMClient) Close() { c.client.Close() }

// Complete performs one completion. All failures, including transport and
// breaker rejections, come back inside the result.
func (c *LLMClient) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	body := map[string]any{
		"prompt":     req.UserPrompt,
		"max_tokens": req.MaxTokens,
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}

	res, err := c.client.Do(ctx, http.MethodPost, "/v1/complete", body,
		"max_tokens", req.MaxTokens)
	if err != nil {
		return CompletionResult{Error: err.Error()}
	}

	var parsed struct {
		Text  string `json:"text"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := decodeInto(res, &parsed); err != nil {
		return CompletionResult{Error: "decode completion: " + err.Error()}
	}
	if parsed.Text == "" {
		return CompletionResult{Error: "empty completion"}
	}
	return CompletionResult{
		Success:      true,
		Text:         parsed.Text,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}
}

// ExtractJSON strips a fenced code block from LLM output, leaving the JSON
// payload. Text without a fence passes through trimmed.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start == -1 {
		return trimmed
	}
	rest := trimmed[start+3:]
	// Drop the fence info string ("json", "JSON") if present.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		info := strings.TrimSpace(rest[:nl])
		if info == "" || strings.EqualFold(info, "json") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.LastIndex(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
