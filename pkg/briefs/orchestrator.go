package briefs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// ReportFetcher runs the multi-step optimization flow and returns the merged
// response plus the provider task id of the first step.
type ReportFetcher interface {
	FetchReport(ctx context.Context, keyword, pageURL string) (map[string]any, string, error)
}

// Store persists briefs, one row per page.
type Store interface {
	GetByPageID(ctx context.Context, pageID uuid.UUID) (*models.ContentBrief, error)
	Upsert(ctx context.Context, brief *models.ContentBrief) (*models.ContentBrief, error)
}

// Result is the fetch outcome. Failures travel as a message instead of an
// error so a brief problem can never abort a pipeline run.
type Result struct {
	Success bool
	Brief   *models.ContentBrief
	Cached  bool
	Error   string
}

// Orchestrator is the cache-first brief source used by both pipeline phases.
type Orchestrator struct {
	fetcher ReportFetcher
	store   Store
	logger  *slog.Logger
}

func NewOrchestrator(fetcher ReportFetcher, store Store) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		store:   store,
		logger:  slog.Default().With("component", "brief_orchestrator"),
	}
}

// Fetch returns the brief for a page, reusing the stored row unless
// forceRefresh is set. A provider or storage failure is reported in the
// result; callers decide whether to proceed without a brief.
func (o *Orchestrator) Fetch(ctx context.Context, pageID uuid.UUID, keyword, pageURL string, forceRefresh bool) Result {
	if !forceRefresh {
		cached, err := o.store.GetByPageID(ctx, pageID)
		if err == nil {
			return Result{Success: true, Brief: cached, Cached: true}
		}
		if !errors.Is(err, services.ErrNotFound) {
			// A broken cache read is not fatal; fetch fresh.
			o.logger.Warn("Brief cache lookup failed",
				"page_id", pageID,
				"error", err)
		}
	}

	merged, taskID, err := o.fetcher.FetchReport(ctx, keyword, pageURL)
	if err != nil {
		o.logger.Error("Brief fetch failed",
			"page_id", pageID,
			"keyword", keyword,
			"error", err)
		return Result{Error: err.Error()}
	}

	brief := ParseBrief(merged, keyword)
	brief.PageID = pageID
	brief.POPTaskID = taskID

	saved, err := o.store.Upsert(ctx, brief)
	if err != nil {
		o.logger.Error("Brief save failed",
			"page_id", pageID,
			"error", err)
		return Result{Error: err.Error()}
	}

	o.logger.Info("Brief ready",
		"page_id", pageID,
		"keyword", keyword,
		"lsi_terms", len(saved.LSITerms),
		"competitors", len(saved.Competitors),
		"pop_task_id", saved.POPTaskID)
	return Result{Success: true, Brief: saved}
}
