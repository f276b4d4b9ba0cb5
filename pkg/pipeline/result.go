package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// PageResult is the per-page outcome of a run.
type PageResult struct {
	PageID  uuid.UUID `json:"page_id"`
	URL     string    `json:"url"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Skipped bool      `json:"skipped"`
}

// Result aggregates one complete run.
type Result struct {
	ProjectID   uuid.UUID    `json:"project_id"`
	JobID       uuid.UUID    `json:"job_id"`
	TotalPages  int          `json:"total_pages"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Skipped     int          `json:"skipped"`
	PageResults []PageResult `json:"page_results"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}
