package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// PageService reads crawled pages and their keyword assignments. The crawl
// subsystem owns the rows; the only column this service writes is labels.
type PageService struct {
	db *database.Client
}

// NewPageService creates a new PageService
func NewPageService(db *database.Client) *PageService {
	return &PageService{db: db}
}

// GetPage retrieves one crawled page by ID.
func (s *PageService) GetPage(ctx context.Context, id uuid.UUID) (*models.CrawledPage, error) {
	var page models.CrawledPage
	err := s.db.GetContext(ctx, &page, `SELECT * FROM crawled_pages WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("crawled_page", id.String())
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

// ListApprovedGenerationPages projects every page with an approved keyword
// into the lightweight struct the pipeline works from. Ordering is stable
// (creation order) so a concurrency-1 run processes pages deterministically.
func (s *PageService) ListApprovedGenerationPages(ctx context.Context, projectID uuid.UUID) ([]models.GenerationPage, error) {
	var pages []models.GenerationPage
	err := s.db.SelectContext(ctx, &pages, `
		SELECT cp.id AS page_id,
		       cp.normalized_url AS url,
		       pk.primary_keyword AS keyword,
		       COALESCE(pc.status, 'pending') AS content_status
		FROM crawled_pages cp
		JOIN page_keywords pk ON pk.crawled_page_id = cp.id AND pk.is_approved
		LEFT JOIN page_contents pc ON pc.crawled_page_id = cp.id
		WHERE cp.project_id = $1
		ORDER BY cp.created_at, cp.id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved pages: %w", err)
	}
	return pages, nil
}

// ListCompletedPages returns crawled pages in completed status, the input
// set for taxonomy generation and label assignment.
func (s *PageService) ListCompletedPages(ctx context.Context, projectID uuid.UUID) ([]models.CrawledPage, error) {
	var pages []models.CrawledPage
	err := s.db.SelectContext(ctx, &pages, `
		SELECT * FROM crawled_pages
		WHERE project_id = $1 AND status = $2
		ORDER BY normalized_url`,
		projectID, models.PageStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed pages: %w", err)
	}
	return pages, nil
}

// UpdateLabels replaces a page's label set. Callers validate against the
// project taxonomy first.
func (s *PageService) UpdateLabels(ctx context.Context, pageID uuid.UUID, labels []string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE crawled_pages SET labels = $1, updated_at = NOW() WHERE id = $2`,
		models.StringList(labels), pageID)
	if err != nil {
		return fmt.Errorf("failed to update labels: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewNotFoundError("crawled_page", pageID.String())
	}
	return nil
}

// CountApprovedKeywords reports how many approved keyword assignments the
// project has; the trigger endpoint rejects runs when it is zero.
func (s *PageService) CountApprovedKeywords(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM page_keywords pk
		JOIN crawled_pages cp ON cp.id = pk.crawled_page_id
		WHERE cp.project_id = $1 AND pk.is_approved`,
		projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to count approved keywords: %w", err)
	}
	return count, nil
}
