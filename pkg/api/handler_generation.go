package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// triggerGenerationHandler handles POST /api/projects/:id/content/generate.
// The run executes in the background; the response only confirms admission.
func (s *Server) triggerGenerationHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondServiceError(c, err)
		return
	}

	approved, err := s.pages.CountApprovedKeywords(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if approved == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project has no approved keyword assignments; approve keywords before generating content"})
		return
	}

	// The run outlives this request, so it gets the process context.
	if err := s.runner.Start(s.appCtx, projectID, req.ForceRefresh, req.RefreshBriefs); err != nil {
		respondServiceError(c, err)
		return
	}

	s.logger.Info("Generation run accepted",
		"project_id", projectID,
		"force_refresh", req.ForceRefresh,
		"refresh_briefs", req.RefreshBriefs)

	c.JSON(http.StatusAccepted, &GenerateResponse{
		ProjectID:     projectID,
		Status:        "started",
		ForceRefresh:  req.ForceRefresh,
		RefreshBriefs: req.RefreshBriefs,
	})
}

// generationStatusHandler handles GET /api/projects/:id/content/status.
func (s *Server) generationStatusHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondServiceError(c, err)
		return
	}

	summary, err := s.content.GetStatusSummary(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resp := &StatusResponse{
		ProjectID:     projectID,
		OverallStatus: overallStatus(s.runner.Registry().Active(projectID), summary),
		Summary:       summary,
	}
	if snap, ok := s.runner.Progress().Get(projectID); ok {
		resp.Progress = &snap
	}

	c.JSON(http.StatusOK, resp)
}

// overallStatus collapses the registry flag and the per-page counts into a
// single project-level state. A live run always wins; otherwise the page
// counts decide.
func overallStatus(active bool, summary *services.StatusSummary) string {
	switch {
	case active:
		return "generating"
	case summary.Total == 0:
		return "idle"
	case summary.Failed > 0:
		return "failed"
	case summary.Complete == summary.Total:
		return "complete"
	default:
		return "idle"
	}
}
