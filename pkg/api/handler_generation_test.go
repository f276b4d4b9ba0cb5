package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

func TestTriggerGeneration(t *testing.T) {
	t.Run("accepts and starts a run", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.pages.approved = 3

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/content/generate",
			GenerateRequest{ForceRefresh: true})

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		resp := decodeBody[GenerateResponse](t, rec)
		assert.Equal(t, projectID, resp.ProjectID)
		assert.Equal(t, "started", resp.Status)
		assert.True(t, resp.ForceRefresh)
		assert.False(t, resp.RefreshBriefs)

		require.Len(t, f.runner.starts, 1)
		assert.Equal(t, startCall{projectID, true, false}, f.runner.starts[0])
	})

	t.Run("body is optional", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.pages.approved = 1

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/content/generate", nil)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		require.Len(t, f.runner.starts, 1)
		assert.Equal(t, startCall{projectID, false, false}, f.runner.starts[0])
	})

	t.Run("rejects a project with no approved keywords", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.pages.approved = 0

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/content/generate", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "approved keyword")
		assert.Empty(t, f.runner.starts)
	})

	t.Run("conflict while a run is active", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.pages.approved = 2
		f.runner.startErr = pipeline.ErrAlreadyActive

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/content/generate", nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already active")
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newServerFixture(t)

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+uuid.NewString()+"/content/generate", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.pages.approved = 1

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/content/generate",
			map[string]any{"force_refresh": "yes"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid request body")
	})
}

func TestGenerationStatus(t *testing.T) {
	t.Run("generating while a run is active", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.content.summary = &services.StatusSummary{Total: 4, Pending: 2, InFlight: 1, Complete: 1}

		require.True(t, f.runner.registry.TryAcquire(projectID))
		f.runner.tracker.Set(projectID, pipeline.Snapshot{
			Phase:      pipeline.PhaseWriting,
			TotalPages: 4,
			Processed:  1,
			Succeeded:  1,
			StartedAt:  time.Now().UTC(),
		})

		rec := doRequest(t, f.router, http.MethodGet,
			"/api/projects/"+projectID.String()+"/content/status", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[StatusResponse](t, rec)
		assert.Equal(t, "generating", resp.OverallStatus)
		require.NotNil(t, resp.Summary)
		assert.Equal(t, 4, resp.Summary.Total)
		require.NotNil(t, resp.Progress)
		assert.Equal(t, pipeline.PhaseWriting, resp.Progress.Phase)
		assert.Equal(t, 1, resp.Progress.Succeeded)
	})

	t.Run("complete when every page is done", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.content.summary = &services.StatusSummary{Total: 2, Complete: 2}

		rec := doRequest(t, f.router, http.MethodGet,
			"/api/projects/"+projectID.String()+"/content/status", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeBody[StatusResponse](t, rec)
		assert.Equal(t, "complete", resp.OverallStatus)
		assert.Nil(t, resp.Progress)
	})

	t.Run("failed when any page failed", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.content.summary = &services.StatusSummary{Total: 3, Complete: 2, Failed: 1}

		rec := doRequest(t, f.router, http.MethodGet,
			"/api/projects/"+projectID.String()+"/content/status", nil)

		resp := decodeBody[StatusResponse](t, rec)
		assert.Equal(t, "failed", resp.OverallStatus)
	})

	t.Run("idle with no pages", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)

		rec := doRequest(t, f.router, http.MethodGet,
			"/api/projects/"+projectID.String()+"/content/status", nil)

		resp := decodeBody[StatusResponse](t, rec)
		assert.Equal(t, "idle", resp.OverallStatus)
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newServerFixture(t)

		rec := doRequest(t, f.router, http.MethodGet,
			"/api/projects/"+uuid.NewString()+"/content/status", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOverallStatus(t *testing.T) {
	cases := []struct {
		name    string
		active  bool
		summary services.StatusSummary
		want    string
	}{
		{"active run wins", true, services.StatusSummary{Total: 5, Failed: 3}, "generating"},
		{"no pages", false, services.StatusSummary{}, "idle"},
		{"partial progress", false, services.StatusSummary{Total: 5, Complete: 2, Pending: 3}, "idle"},
		{"all complete", false, services.StatusSummary{Total: 5, Complete: 5}, "complete"},
		{"any failure", false, services.StatusSummary{Total: 5, Complete: 4, Failed: 1}, "failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, overallStatus(tc.active, &tc.summary))
		})
	}
}
