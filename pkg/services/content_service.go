package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// ContentService owns page_contents rows and enforces the content
// invariants: word_count always matches the four fields, and any edit
// clears approval.
type ContentService struct {
	db *database.Client
}

// NewContentService creates a new ContentService
func NewContentService(db *database.Client) *ContentService {
	return &ContentService{db: db}
}

// GetByPageID retrieves the content row for a page.
func (s *ContentService) GetByPageID(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error) {
	var content models.PageContent
	err := s.db.GetContext(ctx, &content,
		`SELECT * FROM page_contents WHERE crawled_page_id = $1`, pageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("page_content", pageID.String())
		}
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}
	return &content, nil
}

// EnsureForPage lazily creates the pending content row for a page. Safe to
// call concurrently; the unique page constraint resolves races.
func (s *ContentService) EnsureForPage(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_contents (id, crawled_page_id, status, qa_results, created_at, updated_at)
		VALUES ($1, $2, $3, '{}', NOW(), NOW())
		ON CONFLICT (crawled_page_id) DO NOTHING`,
		uuid.New(), pageID, models.ContentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure page content: %w", err)
	}
	return s.GetByPageID(ctx, pageID)
}

// ResetForRefresh returns the given pages to pending and clears their
// generation timestamps, all in one transaction. Used by force-refresh runs.
func (s *ContentService) ResetForRefresh(ctx context.Context, pageIDs []uuid.UUID) error {
	if len(pageIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pageID := range pageIDs {
		_, err := tx.ExecContext(ctx, `
			UPDATE page_contents
			SET status = $1,
			    generation_started_at = NULL,
			    generation_completed_at = NULL,
			    updated_at = NOW()
			WHERE crawled_page_id = $2`,
			models.ContentStatusPending, pageID)
		if err != nil {
			return fmt.Errorf("failed to reset page %s: %w", pageID, err)
		}
	}
	return tx.Commit()
}

// BatchSetGeneratingBrief moves all given pages into generating_brief in one
// transaction, so the status endpoint shows Phase 1 starting atomically.
func (s *ContentService) BatchSetGeneratingBrief(ctx context.Context, pageIDs []uuid.UUID) error {
	if len(pageIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pageID := range pageIDs {
		_, err := tx.ExecContext(ctx, `
			UPDATE page_contents
			SET status = $1, updated_at = NOW()
			WHERE crawled_page_id = $2`,
			models.ContentStatusGeneratingBrief, pageID)
		if err != nil {
			return fmt.Errorf("failed to set generating_brief for page %s: %w", pageID, err)
		}
	}
	return tx.Commit()
}

// StartGeneration stamps the per-page run start: status generating_brief
// plus generation_started_at.
func (s *ContentService) StartGeneration(ctx context.Context, pageID uuid.UUID) error {
	return s.setStatus(ctx, pageID, models.ContentStatusGeneratingBrief,
		`generation_started_at = NOW()`)
}

// SetWriting advances a page into the writing step.
func (s *ContentService) SetWriting(ctx context.Context, pageID uuid.UUID) error {
	return s.setStatus(ctx, pageID, models.ContentStatusWriting, "")
}

// SaveDraft persists the four generated fields, recomputes the word count,
// and advances the page into checking.
func (s *ContentService) SaveDraft(ctx context.Context, pageID uuid.UUID, draft models.PageContent) (*models.PageContent, error) {
	content := &models.PageContent{
		PageTitle:         draft.PageTitle,
		MetaDescription:   draft.MetaDescription,
		TopDescription:    draft.TopDescription,
		BottomDescription: draft.BottomDescription,
	}
	wordCount := content.TotalWordCount()

	res, err := s.db.ExecContext(ctx, `
		UPDATE page_contents
		SET status = $1,
		    page_title = $2,
		    meta_description = $3,
		    top_description = $4,
		    bottom_description = $5,
		    word_count = $6,
		    updated_at = NOW()
		WHERE crawled_page_id = $7`,
		models.ContentStatusChecking,
		draft.PageTitle, draft.MetaDescription, draft.TopDescription, draft.BottomDescription,
		wordCount, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, NewNotFoundError("page_content", pageID.String())
	}
	return s.GetByPageID(ctx, pageID)
}

// SaveQAResults stores the checker output and moves the page to its
// terminal run status (complete, or failed when the checker errored).
func (s *ContentService) SaveQAResults(ctx context.Context, pageID uuid.UUID, qaResults models.JSONMap, status string) error {
	if status != models.ContentStatusComplete && status != models.ContentStatusFailed {
		return NewValidationError("status", "must be complete or failed")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE page_contents
		SET status = $1,
		    qa_results = $2,
		    generation_completed_at = NOW(),
		    updated_at = NOW()
		WHERE crawled_page_id = $3`,
		status, qaResults, pageID)
	if err != nil {
		return fmt.Errorf("failed to save qa results: %w", err)
	}
	return nil
}

// RecheckQAResults replaces qa_results without touching the page status or
// completion timestamp. Used by the on-demand recheck endpoint.
func (s *ContentService) RecheckQAResults(ctx context.Context, pageID uuid.UUID, qaResults models.JSONMap) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE page_contents SET qa_results = $1, updated_at = NOW()
		WHERE crawled_page_id = $2`,
		qaResults, pageID)
	if err != nil {
		return fmt.Errorf("failed to update qa results: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewNotFoundError("page_content", pageID.String())
	}
	return nil
}

// MarkFailed records a page failure. It uses a fresh short-lived context so
// the write succeeds even when the per-page context was cancelled or the
// page's transactional scope was poisoned mid-step.
func (s *ContentService) MarkFailed(pageID uuid.UUID, errMsg string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE page_contents
		SET status = $1,
		    qa_results = $2,
		    generation_completed_at = NOW(),
		    updated_at = NOW()
		WHERE crawled_page_id = $3`,
		models.ContentStatusFailed, models.JSONMap{"error": errMsg}, pageID)
	if err != nil {
		return fmt.Errorf("failed to mark page failed: %w", err)
	}
	return nil
}

// UpdateFields applies a review edit to any subset of the four content
// fields. Any edit clears approval and recomputes the word count.
func (s *ContentService) UpdateFields(ctx context.Context, pageID uuid.UUID, updates map[string]string) (*models.PageContent, error) {
	content, err := s.GetByPageID(ctx, pageID)
	if err != nil {
		return nil, err
	}

	for field, value := range updates {
		switch field {
		case "page_title":
			content.PageTitle = value
		case "meta_description":
			content.MetaDescription = value
		case "top_description":
			content.TopDescription = value
		case "bottom_description":
			content.BottomDescription = value
		default:
			return nil, NewValidationError(field, "not an editable content field")
		}
	}
	content.WordCount = content.TotalWordCount()

	_, err = s.db.ExecContext(ctx, `
		UPDATE page_contents
		SET page_title = $1,
		    meta_description = $2,
		    top_description = $3,
		    bottom_description = $4,
		    word_count = $5,
		    is_approved = FALSE,
		    approved_at = NULL,
		    updated_at = NOW()
		WHERE crawled_page_id = $6`,
		content.PageTitle, content.MetaDescription, content.TopDescription,
		content.BottomDescription, content.WordCount, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to update content fields: %w", err)
	}
	return s.GetByPageID(ctx, pageID)
}

// Approve marks content approved and stamps approved_at.
func (s *ContentService) Approve(ctx context.Context, pageID uuid.UUID) (*models.PageContent, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE page_contents
		SET is_approved = TRUE, approved_at = NOW(), updated_at = NOW()
		WHERE crawled_page_id = $1`,
		pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to approve content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, NewNotFoundError("page_content", pageID.String())
	}
	return s.GetByPageID(ctx, pageID)
}

// setStatus is the shared single-column transition write. extraSet, when
// non-empty, is appended to the SET clause.
func (s *ContentService) setStatus(ctx context.Context, pageID uuid.UUID, status, extraSet string) error {
	query := `UPDATE page_contents SET status = $1, updated_at = NOW()`
	if extraSet != "" {
		query += ", " + extraSet
	}
	query += ` WHERE crawled_page_id = $2`

	res, err := s.db.ExecContext(ctx, query, status, pageID)
	if err != nil {
		return fmt.Errorf("failed to set status %s: %w", status, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewNotFoundError("page_content", pageID.String())
	}
	return nil
}

// PageStatus is one row of the status endpoint's pages array.
type PageStatus struct {
	PageID       uuid.UUID `json:"page_id"`
	URL          string    `json:"url"`
	Keyword      string    `json:"keyword"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	QAPassed     *bool     `json:"qa_passed,omitempty"`
	QAIssueCount int       `json:"qa_issue_count"`
	IsApproved   bool      `json:"is_approved"`
}

// StatusSummary aggregates a project's generation state for the status
// endpoint.
type StatusSummary struct {
	Total    int          `json:"total"`
	Pending  int          `json:"pending"`
	InFlight int          `json:"in_flight"`
	Complete int          `json:"complete"`
	Failed   int          `json:"failed"`
	Pages    []PageStatus `json:"pages"`
}

type pageStatusRow struct {
	PageID     uuid.UUID      `db:"page_id"`
	URL        string         `db:"url"`
	Keyword    string         `db:"keyword"`
	Source     string         `db:"source"`
	Status     string         `db:"status"`
	QAResults  models.JSONMap `db:"qa_results"`
	IsApproved bool           `db:"is_approved"`
}

// GetStatusSummary builds the per-page status view across every approved
// page of the project.
func (s *ContentService) GetStatusSummary(ctx context.Context, projectID uuid.UUID) (*StatusSummary, error) {
	var rows []pageStatusRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT cp.id AS page_id,
		       cp.normalized_url AS url,
		       pk.primary_keyword AS keyword,
		       pk.source AS source,
		       COALESCE(pc.status, 'pending') AS status,
		       COALESCE(pc.qa_results, '{}') AS qa_results,
		       COALESCE(pc.is_approved, FALSE) AS is_approved
		FROM crawled_pages cp
		JOIN page_keywords pk ON pk.crawled_page_id = cp.id AND pk.is_approved
		LEFT JOIN page_contents pc ON pc.crawled_page_id = cp.id
		WHERE cp.project_id = $1
		ORDER BY cp.created_at, cp.id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load status summary: %w", err)
	}

	summary := &StatusSummary{Total: len(rows), Pages: make([]PageStatus, 0, len(rows))}
	for _, row := range rows {
		page := PageStatus{
			PageID:     row.PageID,
			URL:        row.URL,
			Keyword:    row.Keyword,
			Source:     row.Source,
			Status:     row.Status,
			IsApproved: row.IsApproved,
		}
		if msg, ok := row.QAResults["error"].(string); ok {
			page.Error = msg
		}
		if passed, ok := row.QAResults["passed"].(bool); ok {
			page.QAPassed = &passed
		}
		if issues, ok := row.QAResults["issues"].([]any); ok {
			page.QAIssueCount = len(issues)
		}

		switch row.Status {
		case models.ContentStatusPending:
			summary.Pending++
		case models.ContentStatusComplete:
			summary.Complete++
		case models.ContentStatusFailed:
			summary.Failed++
		default:
			summary.InFlight++
		}
		summary.Pages = append(summary.Pages, page)
	}
	return summary, nil
}
