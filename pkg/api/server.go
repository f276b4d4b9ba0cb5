// Package api exposes the HTTP surface of the content generation service:
// pipeline triggering and status, content review edits, label taxonomy
// management, recovery sweeps, and health.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/keywords"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/quality"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/recovery"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// ProjectDirectory is the slice of the project service the handlers need.
type ProjectDirectory interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetBrandConfig(ctx context.Context, projectID uuid.UUID) (*models.BrandConfig, error)
}

// PageDirectory reads crawled pages and writes their labels.
type PageDirectory interface {
	GetPage(ctx context.Context, id uuid.UUID) (*models.CrawledPage, error)
	CountApprovedKeywords(ctx context.Context, projectID uuid.UUID) (int, error)
	UpdateLabels(ctx context.Context, pageID uuid.UUID, labels []string) error
}

// ContentReviewer is the review-and-approval slice of the content service.
type ContentReviewer interface {
	GetByPageID(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error)
	UpdateFields(ctx context.Context, pageID uuid.UUID, updates map[string]string) (*models.PageContent, error)
	Approve(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error)
	RecheckQAResults(ctx context.Context, pageID uuid.UUID, qaResults models.JSONMap) error
	GetStatusSummary(ctx context.Context, projectID uuid.UUID) (*services.StatusSummary, error)
}

// GenerationRunner starts pipeline runs and exposes their live state.
type GenerationRunner interface {
	Start(ctx context.Context, projectID uuid.UUID, forceRefresh, refreshBriefs bool) error
	Registry() *pipeline.Registry
	Progress() *pipeline.Tracker
}

// LabelFlows drives taxonomy generation, bulk assignment, and validation
// of user-supplied labels.
type LabelFlows interface {
	GenerateTaxonomy(ctx context.Context, projectID uuid.UUID) (*labels.Taxonomy, error)
	AssignLabels(ctx context.Context, projectID uuid.UUID) (*labels.AssignmentSummary, error)
	ValidateForProject(ctx context.Context, projectID uuid.UUID, userLabels []string) (labels.ValidationResult, error)
}

// KeywordReviewer is the review slice of the keyword assignment service.
type KeywordReviewer interface {
	Upsert(ctx context.Context, assignment *models.PageKeywords) (*models.PageKeywords, error)
	SetApproval(ctx context.Context, pageID uuid.UUID, approved bool) (*models.PageKeywords, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]services.ProjectKeyword, error)
}

// KeywordFlows runs keyword research and related-page ranking.
type KeywordFlows interface {
	ResearchProject(ctx context.Context, projectID uuid.UUID, opts keywords.Options) (*keywords.ResearchSummary, error)
	RelatedPages(ctx context.Context, pageID uuid.UUID, threshold float64, limit int) ([]keywords.RelatedPage, error)
}

// RecoveryRunner sweeps stale jobs on demand.
type RecoveryRunner interface {
	RecoverAll(ctx context.Context) (*recovery.Summary, error)
}

// Server holds the handler dependencies. Handlers are methods on it.
type Server struct {
	db        *database.Client
	projects  ProjectDirectory
	pages     PageDirectory
	content   ContentReviewer
	runner    GenerationRunner
	labels    LabelFlows
	keywords  KeywordReviewer
	research  KeywordFlows
	recovery  RecoveryRunner
	checker   *quality.Checker
	providers *integrations.Clients

	// appCtx is the process context. Background pipeline runs inherit it
	// instead of the request context, which dies when the response is sent.
	appCtx context.Context

	logger *slog.Logger
}

// Deps bundles everything a Server needs. Providers is optional; when nil
// the health payload simply omits the provider section.
type Deps struct {
	DB        *database.Client
	Projects  ProjectDirectory
	Pages     PageDirectory
	Content   ContentReviewer
	Runner    GenerationRunner
	Labels    LabelFlows
	Keywords  KeywordReviewer
	Research  KeywordFlows
	Recovery  RecoveryRunner
	Checker   *quality.Checker
	Providers *integrations.Clients
	Logger    *slog.Logger
}

// NewServer creates the API server. appCtx should be the process-lifetime
// context so generation runs survive the requests that started them.
func NewServer(appCtx context.Context, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		db:        deps.DB,
		projects:  deps.Projects,
		pages:     deps.Pages,
		content:   deps.Content,
		runner:    deps.Runner,
		labels:    deps.Labels,
		keywords:  deps.Keywords,
		research:  deps.Research,
		recovery:  deps.Recovery,
		checker:   deps.Checker,
		providers: deps.Providers,
		appCtx:    appCtx,
		logger:    logger.With("component", "api"),
	}
}

// RegisterRoutes attaches every handler to the engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.Use(securityHeaders())

	api := r.Group("/api")
	api.GET("/health", s.healthHandler)

	projects := api.Group("/projects/:id")
	projects.POST("/content/generate", s.triggerGenerationHandler)
	projects.GET("/content/status", s.generationStatusHandler)
	projects.GET("/content/pages/:pageId", s.getPageContentHandler)
	projects.PUT("/content/pages/:pageId", s.updatePageContentHandler)
	projects.POST("/content/pages/:pageId/approve", s.approvePageContentHandler)
	projects.POST("/content/pages/:pageId/recheck", s.recheckPageContentHandler)
	projects.POST("/labels/taxonomy", s.generateTaxonomyHandler)
	projects.POST("/labels/assign", s.assignLabelsHandler)
	projects.POST("/keywords/research", s.researchKeywordsHandler)
	projects.GET("/keywords", s.listKeywordsHandler)

	api.PUT("/pages/:pageId/labels", s.updatePageLabelsHandler)
	api.PUT("/pages/:pageId/keywords", s.updatePageKeywordsHandler)
	api.POST("/pages/:pageId/keywords/approve", s.approvePageKeywordsHandler)
	api.GET("/pages/:pageId/related", s.relatedPagesHandler)
	api.POST("/admin/recovery/run", s.recoveryRunHandler)
}

// pathUUID parses a UUID path parameter, writing a 400 when it is invalid.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}
