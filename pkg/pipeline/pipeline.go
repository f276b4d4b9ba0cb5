// Package pipeline runs the two-phase content generation flow: an ungated
// brief prefetch across every page that needs work, then a concurrency-gated
// write-and-check pass driving each page through its status machine. One
// durable job row tracks every run so the recovery sweep can close out runs
// orphaned by a crash.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/briefs"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/quality"
)

// PageLister loads the approved pages a run works from.
type PageLister interface {
	ListApprovedGenerationPages(ctx context.Context, projectID uuid.UUID) ([]models.GenerationPage, error)
}

// ContentStore is the slice of the content service the pipeline drives.
type ContentStore interface {
	EnsureForPage(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error)
	ResetForRefresh(ctx context.Context, pageIDs []uuid.UUID) error
	BatchSetGeneratingBrief(ctx context.Context, pageIDs []uuid.UUID) error
	StartGeneration(ctx context.Context, pageID uuid.UUID) error
	SetWriting(ctx context.Context, pageID uuid.UUID) error
	SaveDraft(ctx context.Context, pageID uuid.UUID, draft models.PageContent) (*models.PageContent, error)
	SaveQAResults(ctx context.Context, pageID uuid.UUID, qaResults models.JSONMap, status string) error
	MarkFailed(pageID uuid.UUID, errMsg string) error
}

// BrandConfigSource loads the project's brand configuration.
type BrandConfigSource interface {
	GetBrandConfig(ctx context.Context, projectID uuid.UUID) (*models.BrandConfig, error)
}

// JobStore drives the run's durable job record.
type JobStore interface {
	Create(ctx context.Context, projectID uuid.UUID, jobType string) (*models.CrawlJob, error)
	Start(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, pagesCrawled, pagesFailed int) error
	Complete(ctx context.Context, id uuid.UUID, stats models.JSONMap) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

// PromptRecorder appends prompt/response exchanges to the page's log.
type PromptRecorder interface {
	Append(ctx context.Context, pageContentID uuid.UUID, step, role, promptText, responseText string) error
}

// BriefFetcher is the cache-first brief source (phase 1 and phase 2).
type BriefFetcher interface {
	Fetch(ctx context.Context, pageID uuid.UUID, keyword, pageURL string, forceRefresh bool) briefs.Result
}

// ContentWriter produces a draft for one page.
type ContentWriter interface {
	Write(ctx context.Context, page models.GenerationPage, brief *models.ContentBrief, brand models.BrandSchema, brandName string) (WriteOutput, error)
}

// Deps bundles the collaborators an Orchestrator drives.
type Deps struct {
	Pages   PageLister
	Content ContentStore
	Brands  BrandConfigSource
	Jobs    JobStore
	Prompts PromptRecorder
	Briefs  BriefFetcher
	Writer  ContentWriter
	Checker *quality.Checker
}

// Orchestrator owns the run lifecycle for all projects in this process.
type Orchestrator struct {
	cfg      *config.PipelineConfig
	registry *Registry
	progress *Tracker

	pages   PageLister
	content ContentStore
	brands  BrandConfigSource
	jobs    JobStore
	prompts PromptRecorder
	briefs  BriefFetcher
	writer  ContentWriter
	checker *quality.Checker

	logger *slog.Logger
}

func NewOrchestrator(cfg *config.PipelineConfig, registry *Registry, progress *Tracker, deps Deps) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		progress: progress,
		pages:    deps.Pages,
		content:  deps.Content,
		brands:   deps.Brands,
		jobs:     deps.Jobs,
		prompts:  deps.Prompts,
		briefs:   deps.Briefs,
		writer:   deps.Writer,
		checker:  deps.Checker,
		logger:   slog.Default().With("component", "pipeline"),
	}
}

// Registry exposes the at-most-one guard so the HTTP layer can report
// activity without running anything.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// Progress exposes the live tracker for the status endpoint.
func (o *Orchestrator) Progress() *Tracker { return o.progress }

// Start launches a run in the background and returns immediately. ctx must
// be the process context, not the request context: the run has to outlive
// the trigger call. ErrAlreadyActive is returned when the project's slot is
// taken.
func (o *Orchestrator) Start(ctx context.Context, projectID uuid.UUID, forceRefresh, refreshBriefs bool) error {
	if !o.registry.TryAcquire(projectID) {
		return ErrAlreadyActive
	}
	go func() {
		defer o.registry.Release(projectID)
		if _, err := o.run(ctx, projectID, forceRefresh, refreshBriefs); err != nil {
			o.logger.Error("Generation run failed",
				"project_id", projectID,
				"error", err)
		}
	}()
	return nil
}

// Run executes a run synchronously, holding the project's slot for the
// duration.
func (o *Orchestrator) Run(ctx context.Context, projectID uuid.UUID, forceRefresh, refreshBriefs bool) (*Result, error) {
	if !o.registry.TryAcquire(projectID) {
		return nil, ErrAlreadyActive
	}
	defer o.registry.Release(projectID)
	return o.run(ctx, projectID, forceRefresh, refreshBriefs)
}

// runState is the shared context of one run, passed to page workers.
type runState struct {
	projectID    uuid.UUID
	jobID        uuid.UUID
	brandName    string
	brand        models.BrandSchema
	forceRefresh bool
	processed    atomic.Int32
	failed       atomic.Int32
}

func (o *Orchestrator) run(ctx context.Context, projectID uuid.UUID, forceRefresh, refreshBriefs bool) (*Result, error) {
	startedAt := time.Now()
	logger := o.logger.With("project_id", projectID)
	logger.Info("Generation run starting",
		"force_refresh", forceRefresh,
		"refresh_briefs", refreshBriefs)

	job, err := o.jobs.Create(ctx, projectID, models.JobTypeContentGeneration)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation job: %w", err)
	}
	if err := o.jobs.Start(ctx, job.ID); err != nil {
		return nil, o.abortRun(projectID, job.ID, fmt.Errorf("failed to start generation job: %w", err))
	}

	pages, err := o.pages.ListApprovedGenerationPages(ctx, projectID)
	if err != nil {
		return nil, o.abortRun(projectID, job.ID, fmt.Errorf("failed to load approved pages: %w", err))
	}

	brandName, brand := o.loadBrand(ctx, projectID)

	// Phase 1 set: everything not already complete, or everything under a
	// force refresh.
	var prefetch []models.GenerationPage
	for _, page := range pages {
		if forceRefresh || page.ContentStatus != models.ContentStatusComplete {
			prefetch = append(prefetch, page)
		}
	}
	prefetchIDs := make([]uuid.UUID, len(prefetch))
	for i, page := range prefetch {
		prefetchIDs[i] = page.PageID
		if _, err := o.content.EnsureForPage(ctx, page.PageID); err != nil {
			return nil, o.abortRun(projectID, job.ID, fmt.Errorf("failed to ensure content row for page %s: %w", page.PageID, err))
		}
	}
	if forceRefresh {
		if err := o.content.ResetForRefresh(ctx, prefetchIDs); err != nil {
			return nil, o.abortRun(projectID, job.ID, fmt.Errorf("failed to reset pages for refresh: %w", err))
		}
	}
	if err := o.content.BatchSetGeneratingBrief(ctx, prefetchIDs); err != nil {
		return nil, o.abortRun(projectID, job.ID, fmt.Errorf("failed to batch-set brief status: %w", err))
	}

	o.progress.Set(projectID, Snapshot{
		Phase:      PhaseBriefPrefetch,
		TotalPages: len(pages),
		StartedAt:  startedAt,
	})

	// Phase 1: prefetch briefs with unbounded concurrency. Failures are
	// swallowed; the page worker retries in phase 2.
	var prefetchGroup errgroup.Group
	for _, page := range prefetch {
		page := page
		prefetchGroup.Go(func() error {
			res := o.briefs.Fetch(ctx, page.PageID, page.Keyword, page.URL, refreshBriefs)
			if res.Success {
				o.progress.Update(projectID, func(s *Snapshot) { s.BriefsFetched++ })
			} else {
				logger.Warn("Brief prefetch failed; the page worker will retry",
					"page_id", page.PageID,
					"error", res.Error)
			}
			return nil
		})
	}
	_ = prefetchGroup.Wait()

	// Phase 2: write and check under the concurrency gate.
	o.progress.Update(projectID, func(s *Snapshot) { s.Phase = PhaseWriting })

	rs := &runState{
		projectID:    projectID,
		jobID:        job.ID,
		brandName:    brandName,
		brand:        brand,
		forceRefresh: forceRefresh,
	}
	results := make([]PageResult, len(pages))

	var writeGroup errgroup.Group
	writeGroup.SetLimit(max(1, o.cfg.ContentGenerationConcurrency))
	for i, page := range pages {
		i, page := i, page
		// Cancellation is advisory: pages already in flight finish their
		// current step, pages not yet started are abandoned.
		if ctx.Err() != nil {
			results[i] = PageResult{
				PageID: page.PageID,
				URL:    page.URL,
				Error:  "run cancelled before this page started",
			}
			continue
		}
		writeGroup.Go(func() error {
			results[i] = o.processPage(ctx, rs, page)
			return nil
		})
	}
	_ = writeGroup.Wait()

	result := &Result{
		ProjectID:   projectID,
		JobID:       job.ID,
		TotalPages:  len(pages),
		PageResults: results,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
	}
	for _, pr := range results {
		switch {
		case pr.Skipped:
			result.Skipped++
		case pr.Success:
			result.Succeeded++
		default:
			result.Failed++
		}
	}

	o.finalizeJob(job.ID, result)
	o.progress.Update(projectID, func(s *Snapshot) { s.Phase = PhaseComplete })

	logger.Info("Generation run finished",
		"job_id", job.ID,
		"total_pages", result.TotalPages,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration_ms", result.CompletedAt.Sub(startedAt).Milliseconds())
	return result, nil
}

// processPage drives one page through the status machine. It never returns
// an error; failures land in the result and on the page row.
func (o *Orchestrator) processPage(ctx context.Context, rs *runState, page models.GenerationPage) (res PageResult) {
	res = PageResult{PageID: page.PageID, URL: page.URL}

	if !rs.forceRefresh && page.ContentStatus == models.ContentStatusComplete {
		res.Success = true
		res.Skipped = true
		o.progress.Update(rs.projectID, func(s *Snapshot) { s.Skipped++ })
		return res
	}

	// A panic in any step must not take down the run: mark the page failed
	// in a fresh scope and keep going.
	defer func() {
		if r := recover(); r != nil {
			res = o.failPage(res, rs, "uncaught", fmt.Errorf("panic: %v", r))
		}
	}()

	content, err := o.content.EnsureForPage(ctx, page.PageID)
	if err != nil {
		return o.failPage(res, rs, "load", err)
	}
	if err := o.content.StartGeneration(ctx, page.PageID); err != nil {
		return o.failPage(res, rs, "start", err)
	}

	// Usually a cache hit from phase 1; a fresh fetch here is the retry
	// path for pages whose prefetch failed.
	briefRes := o.briefs.Fetch(ctx, page.PageID, page.Keyword, page.URL, false)
	var brief *models.ContentBrief
	brand := rs.brand
	if briefRes.Success {
		brief = briefRes.Brief
		brand = enrichCompetitors(brand, brief)
		o.logBrief(ctx, content.ID, page, brief, briefRes.Cached)
	} else {
		o.logger.Warn("Writing without a brief",
			"page_id", page.PageID,
			"error", briefRes.Error)
	}

	if err := o.content.SetWriting(ctx, page.PageID); err != nil {
		return o.failPage(res, rs, "write", err)
	}

	out, err := o.writer.Write(ctx, page, brief, brand, rs.brandName)
	if logErr := o.prompts.Append(ctx, content.ID, models.PromptStepWriting, "assistant", out.Prompt, out.Response); logErr != nil {
		o.logger.Warn("Prompt log write failed",
			"page_id", page.PageID,
			"error", logErr)
	}
	if err != nil {
		return o.failPage(res, rs, "write", err)
	}

	updated, err := o.content.SaveDraft(ctx, page.PageID, models.PageContent{
		PageTitle:         out.Draft.PageTitle,
		MetaDescription:   out.Draft.MetaDescription,
		TopDescription:    out.Draft.TopDescription,
		BottomDescription: out.Draft.BottomDescription,
	})
	if err != nil {
		return o.failPage(res, rs, "write", err)
	}

	check := o.checker.Check(updated, brand)
	if err := o.content.SaveQAResults(ctx, page.PageID, updated.QAResults, models.ContentStatusComplete); err != nil {
		return o.failPage(res, rs, "check", err)
	}

	res.Success = true
	o.recordProcessed(rs, false)
	o.progress.Update(rs.projectID, func(s *Snapshot) { s.Processed++; s.Succeeded++ })
	o.logger.Info("Page content generated",
		"page_id", page.PageID,
		"url", page.URL,
		"word_count", updated.WordCount,
		"qa_passed", check.Passed,
		"qa_issues", len(check.Issues))
	return res
}

// failPage records a per-page failure everywhere it needs to land: the page
// row (via a fresh scope), the job counters, the progress tracker, and the
// returned result.
func (o *Orchestrator) failPage(res PageResult, rs *runState, step string, err error) PageResult {
	stepErr := &StepError{Step: step, Err: err}
	o.logger.Error("Page generation failed",
		"page_id", res.PageID,
		"url", res.URL,
		"step", step,
		"error", err)
	if markErr := o.content.MarkFailed(res.PageID, stepErr.Error()); markErr != nil {
		o.logger.Error("Failed-page status write failed",
			"page_id", res.PageID,
			"error", markErr)
	}
	res.Success = false
	res.Error = stepErr.Error()
	o.recordProcessed(rs, true)
	o.progress.Update(rs.projectID, func(s *Snapshot) { s.Processed++; s.Failed++ })
	return res
}

// recordProcessed updates the job row after each page. Besides the counts,
// the write refreshes updated_at, which keeps a long active run out of the
// recovery sweep's stale window.
func (o *Orchestrator) recordProcessed(rs *runState, failed bool) {
	failedCount := rs.failed.Load()
	if failed {
		failedCount = rs.failed.Add(1)
	}
	done := rs.processed.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.jobs.UpdateProgress(ctx, rs.jobID, int(done), int(failedCount)); err != nil {
		o.logger.Warn("Job progress write failed",
			"job_id", rs.jobID,
			"error", err)
	}
}

func (o *Orchestrator) finalizeJob(jobID uuid.UUID, result *Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := o.jobs.Complete(ctx, jobID, models.JSONMap{
		"total_pages": result.TotalPages,
		"succeeded":   result.Succeeded,
		"failed":      result.Failed,
		"skipped":     result.Skipped,
		"duration_ms": result.CompletedAt.Sub(result.StartedAt).Milliseconds(),
	})
	if err != nil {
		o.logger.Error("Job completion write failed",
			"job_id", jobID,
			"error", err)
	}
}

// abortRun finalizes a run that died before page processing. It uses a
// fresh scope so the job row gets its terminal status even when the run
// context is already cancelled.
func (o *Orchestrator) abortRun(projectID, jobID uuid.UUID, err error) error {
	o.logger.Error("Generation run aborted",
		"project_id", projectID,
		"job_id", jobID,
		"error", err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if failErr := o.jobs.Fail(ctx, jobID, err.Error()); failErr != nil {
		o.logger.Error("Job failure write failed",
			"job_id", jobID,
			"error", failErr)
	}
	o.progress.Update(projectID, func(s *Snapshot) { s.Phase = PhaseFailed })
	return err
}

func (o *Orchestrator) loadBrand(ctx context.Context, projectID uuid.UUID) (string, models.BrandSchema) {
	cfg, err := o.brands.GetBrandConfig(ctx, projectID)
	if err != nil {
		o.logger.Warn("Brand config unavailable; using defaults",
			"project_id", projectID,
			"error", err)
		return "", models.BrandSchema{}
	}
	schema, err := models.ParseBrandSchema(cfg.V2Schema)
	if err != nil {
		o.logger.Warn("Brand schema malformed; using defaults",
			"project_id", projectID,
			"error", err)
		return cfg.BrandName, models.BrandSchema{}
	}
	return cfg.BrandName, schema
}

// enrichCompetitors merges the brief's competitor URLs into the writer's
// view of the brand schema. Per page only; nothing is persisted.
func enrichCompetitors(brand models.BrandSchema, brief *models.ContentBrief) models.BrandSchema {
	if brief == nil || len(brief.Competitors) == 0 {
		return brand
	}
	seen := make(map[string]bool, len(brand.Competitors))
	merged := make([]string, 0, len(brand.Competitors)+len(brief.Competitors))
	for _, u := range brand.Competitors {
		if u != "" && !seen[u] {
			seen[u] = true
			merged = append(merged, u)
		}
	}
	for _, c := range brief.Competitors {
		if c.URL != "" && !seen[c.URL] {
			seen[c.URL] = true
			merged = append(merged, c.URL)
		}
	}
	brand.Competitors = merged
	return brand
}

func (o *Orchestrator) logBrief(ctx context.Context, contentID uuid.UUID, page models.GenerationPage, brief *models.ContentBrief, cached bool) {
	summary, err := json.Marshal(brief)
	if err != nil {
		return
	}
	prompt := fmt.Sprintf("content brief for %s (keyword %q, cached=%t)", page.URL, page.Keyword, cached)
	if err := o.prompts.Append(ctx, contentID, models.PromptStepContentBrief, "system", prompt, string(summary)); err != nil {
		o.logger.Warn("Prompt log write failed",
			"page_id", page.PageID,
			"error", err)
	}
}
