package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/keywords"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// respondServiceError maps service-layer errors to HTTP error responses.
func respondServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error()})
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	if errors.Is(err, services.ErrAlreadyExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "resource already exists"})
		return
	}
	if errors.Is(err, pipeline.ErrAlreadyActive) {
		c.JSON(http.StatusConflict, gin.H{"error": "a generation run is already active for this project"})
		return
	}
	if errors.Is(err, labels.ErrNoTaxonomy) {
		c.JSON(http.StatusConflict, gin.H{"error": "no label taxonomy exists for this project; generate one first"})
		return
	}
	if errors.Is(err, labels.ErrNoCompletedPages) {
		c.JSON(http.StatusConflict, gin.H{"error": "project has no completed pages to derive a taxonomy from"})
		return
	}
	if errors.Is(err, keywords.ErrNoCompletedPages) {
		c.JSON(http.StatusConflict, gin.H{"error": "project has no completed pages to research keywords for"})
		return
	}
	if errors.Is(err, keywords.ErrProviderUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "keyword-volume provider is not configured"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
