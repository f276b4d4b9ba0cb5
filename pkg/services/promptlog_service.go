package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
)

// PromptLogService appends prompt/response exchanges. Rows are never
// updated; the only delete path is the retention sweep.
type PromptLogService struct {
	db *database.Client
}

// NewPromptLogService creates a new PromptLogService
func NewPromptLogService(db *database.Client) *PromptLogService {
	return &PromptLogService{db: db}
}

// Append records one exchange against a page's content.
func (s *PromptLogService) Append(ctx context.Context, pageContentID uuid.UUID, step, role, promptText, responseText string) error {
	if step == "" {
		return NewValidationError("step", "required")
	}
	entry := &models.PromptLog{
		ID:            uuid.New(),
		PageContentID: pageContentID,
		Step:          step,
		Role:          role,
		PromptText:    promptText,
		ResponseText:  responseText,
		CreatedAt:     time.Now(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO prompt_logs (id, page_content_id, step, role, prompt_text, response_text, created_at)
		VALUES (:id, :page_content_id, :step, :role, :prompt_text, :response_text, :created_at)`,
		entry)
	if err != nil {
		return fmt.Errorf("failed to append prompt log: %w", err)
	}
	return nil
}

// DeleteOlderThan prunes audit entries past the retention TTL.
func (s *PromptLogService) DeleteOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompt_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune prompt logs: %w", err)
	}
	return res.RowsAffected()
}

// ListByPageContent returns the exchanges for one page in append order.
func (s *PromptLogService) ListByPageContent(ctx context.Context, pageContentID uuid.UUID) ([]models.PromptLog, error) {
	var logs []models.PromptLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM prompt_logs
		WHERE page_content_id = $1
		ORDER BY created_at, id`,
		pageContentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt logs: %w", err)
	}
	return logs, nil
}
