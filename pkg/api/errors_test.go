package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

func TestRespondServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation error",
			err:        services.NewValidationError("page_title", "not an editable content field"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "page_title",
		},
		{
			name:       "not found",
			err:        services.NewNotFoundError("page_content", "abc"),
			wantStatus: http.StatusNotFound,
			wantBody:   "resource not found",
		},
		{
			name:       "wrapped not found",
			err:        fmt.Errorf("loading content: %w", services.NewNotFoundError("page_content", "abc")),
			wantStatus: http.StatusNotFound,
			wantBody:   "resource not found",
		},
		{
			name:       "duplicate",
			err:        &services.DuplicateError{Entity: "project", Detail: "site_url taken"},
			wantStatus: http.StatusConflict,
			wantBody:   "already exists",
		},
		{
			name:       "run already active",
			err:        pipeline.ErrAlreadyActive,
			wantStatus: http.StatusConflict,
			wantBody:   "already active",
		},
		{
			name:       "no taxonomy",
			err:        labels.ErrNoTaxonomy,
			wantStatus: http.StatusConflict,
			wantBody:   "taxonomy",
		},
		{
			name:       "no completed pages",
			err:        fmt.Errorf("project x: %w", labels.ErrNoCompletedPages),
			wantStatus: http.StatusConflict,
			wantBody:   "no completed pages",
		},
		{
			name:       "unexpected error",
			err:        errors.New("pq: deadlock detected"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			respondServiceError(c, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantBody)
		})
	}
}
