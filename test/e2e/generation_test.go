package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// TestContentGenerationHappyPath drives the full two-phase run over three
// approved pages: briefs from the POP stub, drafts from the LLM stub, QA,
// and the terminal job bookkeeping.
func TestContentGenerationHappyPath(t *testing.T) {
	pop := NewPOPStub(t)
	llm := NewLLMStub(t)
	app := NewTestApp(t, WithPOP(pop), WithLLM(llm))

	project := app.CreateProject(t, "happy-path")
	app.SetBrand(t, project.ID, "Summit Gear", models.JSONMap{
		"tone": "confident and concrete",
		"vocabulary": map[string]any{
			"banned": []any{"best in class"},
		},
	})
	pageIDs := []uuid.UUID{
		app.CreateApprovedPage(t, project.ID, "https://happy-path.example/trail-shoes", "trail running shoes"),
		app.CreateApprovedPage(t, project.ID, "https://happy-path.example/road-shoes", "road running shoes"),
		app.CreateApprovedPage(t, project.ID, "https://happy-path.example/socks", "running socks"),
	}

	resp := app.postJSON(t, fmt.Sprintf("/api/projects/%s/content/generate", project.ID), nil, http.StatusAccepted)
	assert.Equal(t, "started", resp["status"])
	assert.Equal(t, project.ID.String(), resp["project_id"])

	status := app.WaitForOverallStatus(t, project.ID, "complete")
	summary, ok := status["summary"].(map[string]any)
	require.True(t, ok, "status response missing summary: %v", status)
	assert.EqualValues(t, 3, summary["total"])
	assert.EqualValues(t, 3, summary["complete"])
	assert.EqualValues(t, 0, summary["failed"])

	ctx := context.Background()
	for _, pageID := range pageIDs {
		content, err := app.Content.GetByPageID(ctx, pageID)
		require.NoError(t, err, "page %s has no content row", pageID)
		assert.Equal(t, models.ContentStatusComplete, content.Status)
		assert.NotEmpty(t, content.PageTitle)
		assert.NotEmpty(t, content.MetaDescription)
		assert.NotEmpty(t, content.TopDescription)
		assert.NotEmpty(t, content.BottomDescription)
		assert.Greater(t, content.WordCount, 0)
		passed, _ := content.QAResults["passed"].(bool)
		assert.True(t, passed, "QA should pass for the stub draft: %v", content.QAResults)
		require.NotNil(t, content.GenerationCompletedAt)

		brief, err := app.Briefs.GetByPageID(ctx, pageID)
		require.NoError(t, err, "page %s has no brief", pageID)
		assert.Equal(t, popTermsTaskID, brief.POPTaskID)
		assert.Equal(t, 800, brief.WordCountTarget)
		assert.Equal(t, 650, brief.WordCountMin, "competitor word counts should win over the report dict")
		assert.Equal(t, 950, brief.WordCountMax)
		assert.Len(t, brief.LSITerms, 2)
		assert.Equal(t, models.StringList{"trail running shoes", "trail runners"}, brief.RelatedSearches,
			"step-1 variations should survive the later merge steps")
		assert.Len(t, brief.Competitors, 2)

		logs, err := app.Prompts.ListByPageContent(ctx, content.ID)
		require.NoError(t, err)
		steps := make([]string, 0, len(logs))
		for _, l := range logs {
			steps = append(steps, l.Step)
		}
		assert.Contains(t, steps, models.PromptStepContentBrief)
		assert.Contains(t, steps, models.PromptStepWriting)
	}

	jobs, err := app.Jobs.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	job := jobs[0]
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, models.JobTypeContentGeneration, job.JobType)
	require.NotNil(t, job.CompletedAt)
	assert.EqualValues(t, 3, job.Stats["total_pages"])
	assert.EqualValues(t, 3, job.Stats["succeeded"])
	assert.EqualValues(t, 0, job.Stats["failed"])
	assert.EqualValues(t, 0, job.Stats["skipped"])

	// Each page runs the full three-step provider flow exactly once.
	assert.Equal(t, 3, pop.GetTermsCalls())
	assert.Equal(t, 3, pop.ReportCalls())
	assert.Equal(t, 3, pop.RecommendationCalls())
	assert.Zero(t, pop.BadAuthCount(), "every POP request must carry the configured apiKey")

	assert.Equal(t, 3, llm.CallCount())
	assert.Zero(t, llm.BadAuthCount(), "every completion must carry the bearer token")
	for _, call := range llm.Calls() {
		assert.Contains(t, call.Prompt, "between 650 and 950 words",
			"writer prompt should carry the brief's word bounds")
		assert.Contains(t, call.System, "Summit Gear")
	}
}

// TestContentGenerationSkipsCompletePages re-triggers a finished project and
// expects a skip-only run: no provider calls, no rewrites.
func TestContentGenerationSkipsCompletePages(t *testing.T) {
	pop := NewPOPStub(t)
	llm := NewLLMStub(t)
	app := NewTestApp(t, WithPOP(pop), WithLLM(llm))

	project := app.CreateProject(t, "rerun")
	app.CreateApprovedPage(t, project.ID, "https://rerun.example/shoes", "trail running shoes")

	path := fmt.Sprintf("/api/projects/%s/content/generate", project.ID)
	app.postJSON(t, path, nil, http.StatusAccepted)
	app.WaitForOverallStatus(t, project.ID, "complete")
	require.Equal(t, 1, pop.GetTermsCalls())
	require.Equal(t, 1, llm.CallCount())

	app.postJSON(t, path, nil, http.StatusAccepted)
	app.WaitForOverallStatus(t, project.ID, "complete")

	assert.Equal(t, 1, pop.GetTermsCalls(), "complete pages must not refetch briefs")
	assert.Equal(t, 1, llm.CallCount(), "complete pages must not be rewritten")

	jobs, err := app.Jobs.ListByProject(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	rerun := jobs[0] // newest first
	assert.Equal(t, models.JobStatusCompleted, rerun.Status)
	assert.EqualValues(t, 1, rerun.Stats["skipped"])
	assert.EqualValues(t, 0, rerun.Stats["succeeded"])
}

// TestContentGenerationWithoutOptimizationProvider exercises the degraded
// path: no POP configured, so pages are written from the keyword alone.
func TestContentGenerationWithoutOptimizationProvider(t *testing.T) {
	llm := NewLLMStub(t)
	app := NewTestApp(t, WithLLM(llm))

	project := app.CreateProject(t, "no-pop")
	pageID := app.CreateApprovedPage(t, project.ID, "https://no-pop.example/shoes", "trail running shoes")

	app.postJSON(t, fmt.Sprintf("/api/projects/%s/content/generate", project.ID), nil, http.StatusAccepted)
	app.WaitForOverallStatus(t, project.ID, "complete")

	ctx := context.Background()
	content, err := app.Content.GetByPageID(ctx, pageID)
	require.NoError(t, err)
	assert.Equal(t, models.ContentStatusComplete, content.Status)

	_, err = app.Briefs.GetByPageID(ctx, pageID)
	assert.True(t, errors.Is(err, services.ErrNotFound), "no brief should exist without a provider")

	require.Equal(t, 1, llm.CallCount())
	assert.Contains(t, llm.Calls()[0].Prompt, "No optimization data is available",
		"writer prompt should state that no brief backs this page")
}

// TestContentGenerationDegradesWithoutRecommendations fails only step 3 of
// the provider flow. The brief must still land, minus the custom placement
// targets.
func TestContentGenerationDegradesWithoutRecommendations(t *testing.T) {
	pop := NewPOPStub(t)
	pop.FailRecommendations()
	llm := NewLLMStub(t)
	app := NewTestApp(t, WithPOP(pop), WithLLM(llm))

	project := app.CreateProject(t, "no-recs")
	pageID := app.CreateApprovedPage(t, project.ID, "https://no-recs.example/shoes", "trail running shoes")

	app.postJSON(t, fmt.Sprintf("/api/projects/%s/content/generate", project.ID), nil, http.StatusAccepted)
	app.WaitForOverallStatus(t, project.ID, "complete")

	brief, err := app.Briefs.GetByPageID(context.Background(), pageID)
	require.NoError(t, err)
	assert.Empty(t, brief.KeywordTargets, "placements come only from the failed step")
	assert.Equal(t, 800, brief.WordCountTarget, "report fields must survive the step-3 failure")
	// Heading targets fall back to the report's raw tag counts.
	require.Len(t, brief.HeadingTargets, 1)
	assert.Equal(t, "h3", brief.HeadingTargets[0].Tag)
	assert.Equal(t, "report", brief.HeadingTargets[0].Source)

	assert.GreaterOrEqual(t, pop.RecommendationCalls(), 1)
}

// TestContentGenerationIsolatesPageFailures feeds one page a malformed draft
// and expects the run to finish with the other page complete.
func TestContentGenerationIsolatesPageFailures(t *testing.T) {
	pop := NewPOPStub(t)
	llm := NewLLMStub(t)
	llm.Script("this is not a draft") // first writer call gets garbage
	app := NewTestApp(t, WithPOP(pop), WithLLM(llm), WithConcurrency(1))

	project := app.CreateProject(t, "partial-fail")
	pageIDs := []uuid.UUID{
		app.CreateApprovedPage(t, project.ID, "https://partial-fail.example/a", "trail running shoes"),
		app.CreateApprovedPage(t, project.ID, "https://partial-fail.example/b", "road running shoes"),
	}

	app.postJSON(t, fmt.Sprintf("/api/projects/%s/content/generate", project.ID), nil, http.StatusAccepted)
	status := app.WaitForOverallStatus(t, project.ID, "failed")
	summary := status["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["failed"])
	assert.EqualValues(t, 1, summary["complete"])

	ctx := context.Background()
	var failed, complete int
	for _, pageID := range pageIDs {
		content, err := app.Content.GetByPageID(ctx, pageID)
		require.NoError(t, err)
		switch content.Status {
		case models.ContentStatusFailed:
			failed++
			errMsg, _ := content.QAResults["error"].(string)
			assert.Contains(t, errMsg, "malformed JSON")
		case models.ContentStatusComplete:
			complete++
		default:
			t.Fatalf("page %s left in status %q", pageID, content.Status)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, complete)

	jobs, err := app.Jobs.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCompleted, jobs[0].Status,
		"a partial failure still completes the job; the counters carry the damage")
	assert.EqualValues(t, 1, jobs[0].Stats["failed"])
	assert.EqualValues(t, 1, jobs[0].Stats["succeeded"])
}

// TestContentGenerationRequiresApprovedKeywords rejects a project with
// nothing to generate.
func TestContentGenerationRequiresApprovedKeywords(t *testing.T) {
	llm := NewLLMStub(t)
	app := NewTestApp(t, WithLLM(llm))

	project := app.CreateProject(t, "no-keywords")

	resp := app.postJSON(t, fmt.Sprintf("/api/projects/%s/content/generate", project.ID), nil, http.StatusBadRequest)
	errMsg, _ := resp["error"].(string)
	assert.Contains(t, errMsg, "no approved keyword assignments")
}
