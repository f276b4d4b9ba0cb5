package api

import (
	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/keywords"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/quality"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// GenerateResponse is returned by POST /api/projects/:id/content/generate.
type GenerateResponse struct {
	ProjectID     uuid.UUID `json:"project_id"`
	Status        string    `json:"status"`
	ForceRefresh  bool      `json:"force_refresh"`
	RefreshBriefs bool      `json:"refresh_briefs"`
}

// StatusResponse is returned by GET /api/projects/:id/content/status.
// Progress is only present while a run's snapshot is still live.
type StatusResponse struct {
	ProjectID     uuid.UUID               `json:"project_id"`
	OverallStatus string                  `json:"overall_status"`
	Summary       *services.StatusSummary `json:"summary"`
	Progress      *pipeline.Snapshot      `json:"progress,omitempty"`
}

// RecheckResponse is returned by POST /api/projects/:id/content/pages/:pageId/recheck.
type RecheckResponse struct {
	PageID    uuid.UUID       `json:"page_id"`
	QAResults quality.Results `json:"qa_results"`
}

// PageLabelsResponse is returned by PUT /api/pages/:pageId/labels.
type PageLabelsResponse struct {
	PageID uuid.UUID                `json:"page_id"`
	Valid  bool                     `json:"valid"`
	Labels []string                 `json:"labels,omitempty"`
	Errors []labels.ValidationError `json:"errors,omitempty"`
}

// ProjectKeywordsResponse is returned by GET /api/projects/:id/keywords.
type ProjectKeywordsResponse struct {
	ProjectID uuid.UUID                 `json:"project_id"`
	Total     int                       `json:"total"`
	Keywords  []services.ProjectKeyword `json:"keywords"`
}

// RelatedPagesResponse is returned by GET /api/pages/:pageId/related.
type RelatedPagesResponse struct {
	PageID  uuid.UUID              `json:"page_id"`
	Total   int                    `json:"total"`
	Related []keywords.RelatedPage `json:"related"`
}

// HealthCheck is one named check inside the health response.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /api/health. Providers is informational
// only and never affects Status.
type HealthResponse struct {
	Status    string                                 `json:"status"`
	Version   string                                 `json:"version"`
	Checks    map[string]HealthCheck                 `json:"checks"`
	Database  *database.PoolHealth                   `json:"database,omitempty"`
	Providers map[string]integrations.ProviderStatus `json:"providers,omitempty"`
}
