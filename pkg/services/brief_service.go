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

// BriefService persists content briefs, one per page.
type BriefService struct {
	db *database.Client
}

// NewBriefService creates a new BriefService
func NewBriefService(db *database.Client) *BriefService {
	return &BriefService{db: db}
}

// GetByPageID retrieves the brief for a page.
func (s *BriefService) GetByPageID(ctx context.Context, pageID uuid.UUID) (*models.ContentBrief, error) {
	var brief models.ContentBrief
	err := s.db.GetContext(ctx, &brief,
		`SELECT * FROM content_briefs WHERE page_id = $1`, pageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("content_brief", pageID.String())
		}
		return nil, fmt.Errorf("failed to get brief: %w", err)
	}
	return &brief, nil
}

// Upsert writes the brief for a page, replacing any existing row in place so
// the page keeps a single brief across refreshes.
func (s *BriefService) Upsert(ctx context.Context, brief *models.ContentBrief) (*models.ContentBrief, error) {
	if brief.PageID == uuid.Nil {
		return nil, NewValidationError("page_id", "required")
	}
	if brief.Keyword == "" {
		return nil, NewValidationError("keyword", "required")
	}
	if brief.ID == uuid.Nil {
		brief.ID = uuid.New()
	}
	now := time.Now()
	brief.CreatedAt = now
	brief.UpdatedAt = now

	var saved models.ContentBrief
	err := s.db.GetContext(ctx, &saved, `
		INSERT INTO content_briefs (
			id, page_id, keyword, lsi_terms, related_searches, competitors,
			related_questions, heading_targets, keyword_targets,
			word_count_target, word_count_min, word_count_max,
			page_score_target, raw_response, pop_task_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (page_id) DO UPDATE
		SET keyword = EXCLUDED.keyword,
		    lsi_terms = EXCLUDED.lsi_terms,
		    related_searches = EXCLUDED.related_searches,
		    competitors = EXCLUDED.competitors,
		    related_questions = EXCLUDED.related_questions,
		    heading_targets = EXCLUDED.heading_targets,
		    keyword_targets = EXCLUDED.keyword_targets,
		    word_count_target = EXCLUDED.word_count_target,
		    word_count_min = EXCLUDED.word_count_min,
		    word_count_max = EXCLUDED.word_count_max,
		    page_score_target = EXCLUDED.page_score_target,
		    raw_response = EXCLUDED.raw_response,
		    pop_task_id = EXCLUDED.pop_task_id,
		    updated_at = NOW()
		RETURNING *`,
		brief.ID, brief.PageID, brief.Keyword, brief.LSITerms, brief.RelatedSearches,
		brief.Competitors, brief.RelatedQuestions, brief.HeadingTargets, brief.KeywordTargets,
		brief.WordCountTarget, brief.WordCountMin, brief.WordCountMax,
		brief.PageScoreTarget, brief.RawResponse, brief.POPTaskID,
		brief.CreatedAt, brief.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert brief: %w", err)
	}
	return &saved, nil
}
