package integrations

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
)

// POP task poll statuses.
const (
	popTaskSuccess = "success"
	popTaskFailure = "failure"
)

// keywordVariationsKey preserves the step-1 variations across the later
// steps, which overwrite the variations field with differently shaped
// objects.
const keywordVariationsKey = "_keyword_variations"

// POPClient drives the optimization provider's task-based report flow:
// submit terms, poll, submit report, poll, then fetch recommendations. The
// merged response feeds the brief parser.
type POPClient struct {
	client       *Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
}

// NewPOPClient wires the adapter over the shared base client.
func NewPOPClient(client *Client, cfg *config.PipelineConfig) *POPClient {
	return &POPClient{
		client:       client,
		pollInterval: cfg.POPTaskPollInterval,
		pollTimeout:  cfg.POPTaskTimeout,
		logger:       slog.Default().With("provider", client.Name()),
	}
}

// Available reports whether the provider is configured.
func (p *POPClient) Available() bool { return p.client.Available() }

// Close releases the underlying connection pool.
func (p *POPClient) Close() { p.client.Close() }

// FetchReport runs the full three-step flow for one keyword/URL pair and
// returns the merged response plus the step-1 task id. Steps 1 and 2 failing
// fail the flow; a step-3 failure degrades to a report without custom
// recommendations.
func (p *POPClient) FetchReport(ctx context.Context, keyword, pageURL string) (map[string]any, string, error) {
	terms, taskID, err := p.getTerms(ctx, keyword, pageURL)
	if err != nil {
		return nil, "", err
	}

	merged := make(map[string]any, len(terms)+8)
	mergeInto(merged, terms)
	merged[keywordVariationsKey] = terms["variations"]

	report, reportID, err := p.createReport(ctx, terms, keyword)
	if err != nil {
		return nil, taskID, err
	}
	mergeInto(merged, report)
	flattenKey(merged, "report")

	recs, err := p.getCustomRecommendations(ctx, reportID, keyword)
	if err != nil {
		p.logger.Warn("Custom recommendations failed, continuing without them",
			"keyword", keyword, "report_id", reportID, "error", err)
	} else {
		mergeInto(merged, recs)
		flattenKey(merged, "recommendations")
	}

	return merged, taskID, nil
}

// getTerms runs step 1 and returns the polled result plus the task id.
func (p *POPClient) getTerms(ctx context.Context, keyword, pageURL string) (map[string]any, string, error) {
	res, err := p.client.Do(ctx, http.MethodPost, "/get-terms",
		map[string]any{"keyword": keyword, "url": pageURL},
		"step", "get-terms", "keyword", keyword)
	if err != nil {
		return nil, "", fmt.Errorf("get-terms: %w", err)
	}
	taskID := stringField(res, "task_id")
	if taskID == "" {
		return nil, "", fmt.Errorf("get-terms: response missing task_id")
	}
	terms, err := p.pollTask(ctx, taskID, "get-terms", keyword)
	if err != nil {
		return nil, taskID, fmt.Errorf("get-terms: %w", err)
	}
	return terms, taskID, nil
}

// createReport runs step 2 using the step-1 output and returns the polled
// report plus the report id for step 3.
func (p *POPClient) createReport(ctx context.Context, terms map[string]any, keyword string) (map[string]any, string, error) {
	res, err := p.client.Do(ctx, http.MethodPost, "/create-report",
		map[string]any{
			"prepareId":  terms["prepareId"],
			"variations": terms["variations"],
			"lsaPhrases": terms["lsaPhrases"],
		},
		"step", "create-report", "keyword", keyword)
	if err != nil {
		return nil, "", fmt.Errorf("create-report: %w", err)
	}
	taskID := stringField(res, "task_id")
	if taskID == "" {
		return nil, "", fmt.Errorf("create-report: response missing task_id")
	}
	reportID := stringField(res, "reportId")

	report, err := p.pollTask(ctx, taskID, "create-report", keyword)
	if err != nil {
		return nil, reportID, fmt.Errorf("create-report: %w", err)
	}
	if reportID == "" {
		reportID = stringField(report, "reportId")
	}
	return report, reportID, nil
}

// getCustomRecommendations runs step 3. No task polling; the provider
// answers this one inline.
func (p *POPClient) getCustomRecommendations(ctx context.Context, reportID, keyword string) (map[string]any, error) {
	if reportID == "" {
		return nil, fmt.Errorf("get-custom-recommendations: no report id")
	}
	return p.client.Do(ctx, http.MethodPost, "/get-custom-recommendations",
		map[string]any{"reportId": reportID},
		"step", "get-custom-recommendations", "keyword", keyword)
}

// pollTask polls GET /task/{id} until the task settles or the configured
// total timeout elapses.
func (p *POPClient) pollTask(ctx context.Context, taskID, step, keyword string) (map[string]any, error) {
	deadline := time.Now().Add(p.pollTimeout)
	for {
		res, err := p.client.Do(ctx, http.MethodGet, "/task/"+taskID, nil,
			"step", step, "task_id", taskID, "keyword", keyword)
		if err != nil {
			return nil, err
		}
		switch stringField(res, "status") {
		case popTaskSuccess:
			return res, nil
		case popTaskFailure:
			return nil, fmt.Errorf("task %s failed: %s", taskID, stringField(res, "message"))
		}

		if time.Now().After(deadline) {
			return nil, &TimeoutError{
				Provider: p.client.Name(),
				Err:      fmt.Errorf("task %s not settled after %s", taskID, p.pollTimeout),
			}
		}
		if err := sleepCtx(ctx, p.pollInterval); err != nil {
			return nil, &TimeoutError{Provider: p.client.Name(), Err: err}
		}
	}
}

// mergeInto copies src's entries over dst.
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// flattenKey lifts the named sub-object's entries to the top level and drops
// the nested key.
func flattenKey(m map[string]any, key string) {
	sub, ok := m[key].(map[string]any)
	if !ok {
		return
	}
	delete(m, key)
	mergeInto(m, sub)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
