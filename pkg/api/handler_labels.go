package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// generateTaxonomyHandler handles POST /api/projects/:id/labels/taxonomy.
// Regenerating replaces the stored taxonomy; existing page labels are left
// alone until the next assignment pass.
func (s *Server) generateTaxonomyHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondServiceError(c, err)
		return
	}

	taxonomy, err := s.labels.GenerateTaxonomy(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, taxonomy)
}

// assignLabelsHandler handles POST /api/projects/:id/labels/assign.
func (s *Server) assignLabelsHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondServiceError(c, err)
		return
	}

	summary, err := s.labels.AssignLabels(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// updatePageLabelsHandler handles PUT /api/pages/:pageId/labels.
// Manual label edits go through the same taxonomy validation as the
// automatic assignment; an invalid set is rejected without a write.
func (s *Server) updatePageLabelsHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	var req UpdateLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	page, err := s.pages.GetPage(c.Request.Context(), pageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result, err := s.labels.ValidateForProject(c.Request.Context(), page.ProjectID, req.Labels)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !result.Valid {
		c.JSON(http.StatusBadRequest, &PageLabelsResponse{
			PageID: pageID,
			Valid:  false,
			Errors: result.Errors,
		})
		return
	}

	if err := s.pages.UpdateLabels(c.Request.Context(), pageID, result.Labels); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, &PageLabelsResponse{
		PageID: pageID,
		Valid:  true,
		Labels: result.Labels,
	})
}
