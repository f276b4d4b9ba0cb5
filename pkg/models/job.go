package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. Interrupted is a first-class terminal status distinct from
// failed: it marks work abandoned by a process restart rather than an error.
const (
	JobStatusPending     = "pending"
	JobStatusRunning     = "running"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
	JobStatusCancelled   = "cancelled"
	JobStatusInterrupted = "interrupted"
)

// Job types tracked in the jobs table.
const (
	JobTypeCrawl             = "crawl"
	JobTypeContentGeneration = "content_generation"
)

// ValidJobStatuses lists every accepted job status.
var ValidJobStatuses = []string{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
	JobStatusInterrupted,
}

// IsTerminalJobStatus reports whether a status ends the job lifecycle.
func IsTerminalJobStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled, JobStatusInterrupted:
		return true
	}
	return false
}

// IsRecoverableJobStatus reports whether a stale job in this status is
// eligible for the recovery sweep.
func IsRecoverableJobStatus(status string) bool {
	return status == JobStatusPending || status == JobStatusRunning
}

// CrawlJob is the durable record of one long-running job (a site crawl or a
// content-generation run). It survives restarts; the recovery service
// transitions stale non-terminal rows to a terminal status.
type CrawlJob struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ProjectID    uuid.UUID  `db:"project_id" json:"project_id"`
	JobType      string     `db:"job_type" json:"job_type"`
	Status       string     `db:"status" json:"status"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	PagesCrawled int        `db:"pages_crawled" json:"pages_crawled"`
	PagesFailed  int        `db:"pages_failed" json:"pages_failed"`
	Stats        JSONMap    `db:"stats" json:"stats"`
	ErrorLog     JSONList   `db:"error_log" json:"error_log"`
	ErrorMessage string     `db:"error_message" json:"error_message"`
}

// RecoveryStats is the blob merged into stats.recovery when a job is
// recovered after a restart.
type RecoveryStats struct {
	Interrupted    bool      `json:"interrupted"`
	RecoveryReason string    `json:"recovery_reason"`
	PreviousStatus string    `json:"previous_status"`
	InterruptedAt  time.Time `json:"interrupted_at"`
}
