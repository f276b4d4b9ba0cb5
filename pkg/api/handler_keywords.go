package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/keywords"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

const (
	defaultRelatedThreshold = 0.2
	defaultRelatedLimit     = 10
)

// researchKeywordsHandler handles POST /api/projects/:id/keywords/research.
// Pages with an approved assignment are skipped; everything else gets a
// fresh primary and secondary mix from the volume provider.
func (s *Server) researchKeywordsHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var opts keywords.Options
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondServiceError(c, err)
		return
	}

	summary, err := s.research.ResearchProject(c.Request.Context(), projectID, opts)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// listKeywordsHandler handles GET /api/projects/:id/keywords.
func (s *Server) listKeywordsHandler(c *gin.Context) {
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondServiceError(c, err)
		return
	}

	assignments, err := s.keywords.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, &ProjectKeywordsResponse{
		ProjectID: projectID,
		Total:     len(assignments),
		Keywords:  assignments,
	})
}

// updatePageKeywordsHandler handles PUT /api/pages/:pageId/keywords. A manual
// edit replaces the whole assignment and clears approval; approval is a
// separate, explicit step.
func (s *Server) updatePageKeywordsHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	var req UpdateKeywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if _, err := s.pages.GetPage(c.Request.Context(), pageID); err != nil {
		respondServiceError(c, err)
		return
	}

	saved, err := s.keywords.Upsert(c.Request.Context(), &models.PageKeywords{
		CrawledPageID:     pageID,
		PrimaryKeyword:    req.PrimaryKeyword,
		SecondaryKeywords: models.StringList(req.SecondaryKeywords),
		Source:            models.KeywordSourceManual,
		IsApproved:        false,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}

// approvePageKeywordsHandler handles POST /api/pages/:pageId/keywords/approve.
func (s *Server) approvePageKeywordsHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	saved, err := s.keywords.SetApproval(c.Request.Context(), pageID, true)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, saved)
}

// relatedPagesHandler handles GET /api/pages/:pageId/related. Threshold and
// limit come from query parameters; defaults keep the list short and the
// matches meaningful.
func (s *Server) relatedPagesHandler(c *gin.Context) {
	pageID, ok := pathUUID(c, "pageId")
	if !ok {
		return
	}

	threshold, ok := queryFloat(c, "threshold", defaultRelatedThreshold)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultRelatedLimit)
	if !ok {
		return
	}

	related, err := s.research.RelatedPages(c.Request.Context(), pageID, threshold, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, &RelatedPagesResponse{
		PageID:  pageID,
		Total:   len(related),
		Related: related,
	})
}

func queryFloat(c *gin.Context, name string, fallback float64) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a number"})
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}
