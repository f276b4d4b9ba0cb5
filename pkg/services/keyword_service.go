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

// KeywordService persists per-page keyword assignments, one row per page.
// Research and manual edits both land here; generation reads only the
// approved rows.
type KeywordService struct {
	db *database.Client
}

// NewKeywordService creates a new KeywordService
func NewKeywordService(db *database.Client) *KeywordService {
	return &KeywordService{db: db}
}

// ProjectKeyword is one assignment joined with its page for review listings.
type ProjectKeyword struct {
	PageID            uuid.UUID         `db:"page_id" json:"page_id"`
	URL               string            `db:"url" json:"url"`
	PrimaryKeyword    string            `db:"primary_keyword" json:"primary_keyword"`
	SecondaryKeywords models.StringList `db:"secondary_keywords" json:"secondary_keywords"`
	Source            string            `db:"source" json:"source"`
	IsApproved        bool              `db:"is_approved" json:"is_approved"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// GetByPageID retrieves the assignment for a page.
func (s *KeywordService) GetByPageID(ctx context.Context, pageID uuid.UUID) (*models.PageKeywords, error) {
	var assignment models.PageKeywords
	err := s.db.GetContext(ctx, &assignment,
		`SELECT * FROM page_keywords WHERE crawled_page_id = $1`, pageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("page_keywords", pageID.String())
		}
		return nil, fmt.Errorf("failed to get keyword assignment: %w", err)
	}
	return &assignment, nil
}

// Upsert writes the assignment for a page, replacing any existing row in
// place so the page keeps a single assignment across research passes and
// manual edits. Approval always takes the incoming value: replacing an
// assignment is a content change, not a review decision.
func (s *KeywordService) Upsert(ctx context.Context, assignment *models.PageKeywords) (*models.PageKeywords, error) {
	if assignment.CrawledPageID == uuid.Nil {
		return nil, NewValidationError("crawled_page_id", "required")
	}
	if assignment.PrimaryKeyword == "" {
		return nil, NewValidationError("primary_keyword", "required")
	}
	if assignment.Source == "" {
		assignment.Source = models.KeywordSourceManual
	}
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}

	var saved models.PageKeywords
	err := s.db.GetContext(ctx, &saved, `
		INSERT INTO page_keywords (
			id, crawled_page_id, primary_keyword, secondary_keywords,
			source, is_approved, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (crawled_page_id) DO UPDATE
		SET primary_keyword = EXCLUDED.primary_keyword,
		    secondary_keywords = EXCLUDED.secondary_keywords,
		    source = EXCLUDED.source,
		    is_approved = EXCLUDED.is_approved,
		    updated_at = NOW()
		RETURNING *`,
		assignment.ID, assignment.CrawledPageID, assignment.PrimaryKeyword,
		assignment.SecondaryKeywords, assignment.Source, assignment.IsApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert keyword assignment: %w", err)
	}
	return &saved, nil
}

// SetApproval flips the review flag on an existing assignment.
func (s *KeywordService) SetApproval(ctx context.Context, pageID uuid.UUID, approved bool) (*models.PageKeywords, error) {
	var saved models.PageKeywords
	err := s.db.GetContext(ctx, &saved, `
		UPDATE page_keywords
		SET is_approved = $1, updated_at = NOW()
		WHERE crawled_page_id = $2
		RETURNING *`,
		approved, pageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("page_keywords", pageID.String())
		}
		return nil, fmt.Errorf("failed to update keyword approval: %w", err)
	}
	return &saved, nil
}

// ListByProject returns every assignment in the project joined with its
// page URL, in stable URL order.
func (s *KeywordService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]ProjectKeyword, error) {
	var rows []ProjectKeyword
	err := s.db.SelectContext(ctx, &rows, `
		SELECT cp.id AS page_id,
		       cp.normalized_url AS url,
		       pk.primary_keyword,
		       pk.secondary_keywords,
		       pk.source,
		       pk.is_approved,
		       pk.updated_at
		FROM page_keywords pk
		JOIN crawled_pages cp ON cp.id = pk.crawled_page_id
		WHERE cp.project_id = $1
		ORDER BY cp.normalized_url`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword assignments: %w", err)
	}
	return rows, nil
}

// ListPrimaries returns every primary keyword already assigned in the
// project. Research excludes these so two pages never compete for the same
// primary.
func (s *KeywordService) ListPrimaries(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	var primaries []string
	err := s.db.SelectContext(ctx, &primaries, `
		SELECT pk.primary_keyword
		FROM page_keywords pk
		JOIN crawled_pages cp ON cp.id = pk.crawled_page_id
		WHERE cp.project_id = $1
		ORDER BY pk.primary_keyword`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list primary keywords: %w", err)
	}
	return primaries, nil
}
