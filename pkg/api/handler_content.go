package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// getPageContentHandler handles GET /api/projects/:id/content/pages/:pageId.
func (s *Server) getPageContentHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	content, err := s.content.GetByPageID(c.Request.Context(), pageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, content)
}

// updatePageContentHandler handles PUT /api/projects/:id/content/pages/:pageId.
// Any edit clears the approval flag; the editor re-approves afterwards.
func (s *Server) updatePageContentHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	updates := req.updates()
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body has no editable fields"})
		return
	}

	content, err := s.content.UpdateFields(c.Request.Context(), pageID, updates)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, content)
}

// approvePageContentHandler handles POST /api/projects/:id/content/pages/:pageId/approve.
func (s *Server) approvePageContentHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	content, err := s.content.Approve(c.Request.Context(), pageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, content)
}

// recheckPageContentHandler handles POST /api/projects/:id/content/pages/:pageId/recheck.
// It reruns the quality rules over the stored content, including manual
// edits, and persists the fresh verdict without touching the page status.
func (s *Server) recheckPageContentHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	content, err := s.content.GetByPageID(c.Request.Context(), pageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	schema := s.brandSchema(c, projectID)
	results := s.checker.Check(content, schema)

	if err := s.content.RecheckQAResults(c.Request.Context(), pageID, content.QAResults); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, &RecheckResponse{
		PageID:    pageID,
		QAResults: results,
	})
}

// brandSchema loads the project's brand rules, degrading to the zero schema
// when none are configured or the stored blob does not parse.
func (s *Server) brandSchema(c *gin.Context, projectID uuid.UUID) models.BrandSchema {
	cfg, err := s.projects.GetBrandConfig(c.Request.Context(), projectID)
	if err != nil {
		s.logger.Warn("Brand config unavailable; rechecking without brand rules",
			"project_id", projectID, "error", err)
		return models.BrandSchema{}
	}

	schema, err := models.ParseBrandSchema(cfg.V2Schema)
	if err != nil {
		s.logger.Warn("Brand schema malformed; rechecking without brand rules",
			"project_id", projectID, "error", err)
		return models.BrandSchema{}
	}
	return schema
}
