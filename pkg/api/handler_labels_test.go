package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

func TestGenerateTaxonomyEndpoint(t *testing.T) {
	t.Run("returns the generated taxonomy", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.labels.taxonomy = &labels.Taxonomy{
			Labels: []labels.TaxonomyLabel{
				{Name: "trail running", Description: "Off-road running collections"},
				{Name: "winter", Description: "Cold-season gear"},
			},
			Reasoning:   "catalog splits along activity and season",
			PageCount:   12,
			GeneratedAt: time.Now().UTC(),
		}

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/labels/taxonomy", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[labels.Taxonomy](t, rec)
		require.Len(t, resp.Labels, 2)
		assert.Equal(t, "trail running", resp.Labels[0].Name)
		assert.Equal(t, 12, resp.PageCount)
	})

	t.Run("conflict before any page completes", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.labels.genErr = labels.ErrNoCompletedPages

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/labels/taxonomy", nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "no completed pages")
	})

	t.Run("unknown project", func(t *testing.T) {
		f := newServerFixture(t)

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+uuid.NewString()+"/labels/taxonomy", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAssignLabelsEndpoint(t *testing.T) {
	t.Run("returns the assignment summary", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		pageID := uuid.New()
		f.labels.summary = &labels.AssignmentSummary{
			TotalPages: 2,
			Labeled:    1,
			Failed:     1,
			Results: []labels.PageAssignment{
				{PageID: pageID, URL: "https://shop.example/collections/winter", Labels: []string{"winter"}},
				{PageID: uuid.New(), URL: "https://shop.example/collections/sale", Error: "completion failed: timeout"},
			},
		}

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/labels/assign", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[labels.AssignmentSummary](t, rec)
		assert.Equal(t, 2, resp.TotalPages)
		assert.Equal(t, 1, resp.Labeled)
		require.Len(t, resp.Results, 2)
		assert.Equal(t, pageID, resp.Results[0].PageID)
	})

	t.Run("conflict before a taxonomy exists", func(t *testing.T) {
		f := newServerFixture(t)
		projectID := f.withProject(t)
		f.labels.assignErr = labels.ErrNoTaxonomy

		rec := doRequest(t, f.router, http.MethodPost,
			"/api/projects/"+projectID.String()+"/labels/assign", nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "taxonomy")
	})
}

func TestUpdatePageLabels(t *testing.T) {
	seedPage := func(f *serverFixture) *models.CrawledPage {
		page := &models.CrawledPage{
			ID:            uuid.New(),
			ProjectID:     uuid.New(),
			NormalizedURL: "https://shop.example/collections/winter-boots",
			Status:        models.PageStatusCompleted,
		}
		f.pages.page = page
		return page
	}

	t.Run("persists a valid label set", func(t *testing.T) {
		f := newServerFixture(t)
		page := seedPage(f)
		f.labels.validation = labels.ValidationResult{
			Valid:  true,
			Labels: []string{"winter", "boots"},
		}

		rec := doRequest(t, f.router, http.MethodPut,
			"/api/pages/"+page.ID.String()+"/labels",
			UpdateLabelsRequest{Labels: []string{"Winter", " boots "}})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[PageLabelsResponse](t, rec)
		assert.True(t, resp.Valid)
		assert.Equal(t, []string{"winter", "boots"}, resp.Labels)

		// The raw user input reaches the validator; the normalized set is
		// what gets written.
		require.Len(t, f.labels.validated, 1)
		assert.Equal(t, []string{"Winter", " boots "}, f.labels.validated[0])
		assert.Equal(t, []string{"winter", "boots"}, f.pages.labelWrites[page.ID])
	})

	t.Run("rejects an invalid set without writing", func(t *testing.T) {
		f := newServerFixture(t)
		page := seedPage(f)
		f.labels.validation = labels.ValidationResult{
			Valid:  false,
			Labels: []string{"snowboards"},
			Errors: []labels.ValidationError{
				{Code: labels.CodeInvalidLabels, Message: "labels not in taxonomy", Details: []string{"snowboards"}},
				{Code: labels.CodeTooFewLabels, Message: "pages need at least 2 labels"},
			},
		}

		rec := doRequest(t, f.router, http.MethodPut,
			"/api/pages/"+page.ID.String()+"/labels",
			UpdateLabelsRequest{Labels: []string{"snowboards"}})

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeBody[PageLabelsResponse](t, rec)
		assert.False(t, resp.Valid)
		require.Len(t, resp.Errors, 2)
		assert.Equal(t, labels.CodeInvalidLabels, resp.Errors[0].Code)
		assert.Empty(t, f.pages.labelWrites)
	})

	t.Run("unknown page", func(t *testing.T) {
		f := newServerFixture(t)

		rec := doRequest(t, f.router, http.MethodPut,
			"/api/pages/"+uuid.NewString()+"/labels",
			UpdateLabelsRequest{Labels: []string{"winter", "boots"}})

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, f.labels.validated)
	})
}
