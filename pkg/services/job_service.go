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

// ErrNotRecoverable is returned when a recovery is requested for a job that
// is already terminal.
var ErrNotRecoverable = errors.New("job is not in a recoverable status")

// JobService owns the durable job records for crawls and generation runs.
type JobService struct {
	db *database.Client
}

// NewJobService creates a new JobService
func NewJobService(db *database.Client) *JobService {
	return &JobService{db: db}
}

// Create inserts a pending job.
func (s *JobService) Create(ctx context.Context, projectID uuid.UUID, jobType string) (*models.CrawlJob, error) {
	job := &models.CrawlJob{
		ID:        uuid.New(),
		ProjectID: projectID,
		JobType:   jobType,
		Status:    models.JobStatusPending,
		Stats:     models.JSONMap{},
		ErrorLog:  models.JSONList{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO crawl_jobs (id, project_id, job_type, status, stats, error_log, error_message, created_at, updated_at)
		VALUES (:id, :project_id, :job_type, :status, :stats, :error_log, :error_message, :created_at, :updated_at)`,
		job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Get retrieves a job by ID.
func (s *JobService) Get(ctx context.Context, id uuid.UUID) (*models.CrawlJob, error) {
	var job models.CrawlJob
	err := s.db.GetContext(ctx, &job, `SELECT * FROM crawl_jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("job", id.String())
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// Start transitions a pending job to running. The conditional write makes a
// double start a no-op race loser rather than a corruption.
func (s *JobService) Start(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		models.JobStatusRunning, id, models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NewNotFoundError("pending job", id.String())
	}
	return nil
}

// UpdateProgress records page counts. Every call touches updated_at, which
// is what keeps an active job out of the recovery sweep's stale window.
func (s *JobService) UpdateProgress(ctx context.Context, id uuid.UUID, pagesCrawled, pagesFailed int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET pages_crawled = $1, pages_failed = $2, updated_at = NOW()
		WHERE id = $3`,
		pagesCrawled, pagesFailed, id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// AppendError adds one entry to the job's error log.
func (s *JobService) AppendError(ctx context.Context, id uuid.UUID, entry map[string]any) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var errorLog models.JSONList
	err = tx.GetContext(ctx, &errorLog,
		`SELECT error_log FROM crawl_jobs WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError("job", id.String())
		}
		return fmt.Errorf("failed to load error log: %w", err)
	}

	errorLog = append(errorLog, entry)
	_, err = tx.ExecContext(ctx,
		`UPDATE crawl_jobs SET error_log = $1, updated_at = NOW() WHERE id = $2`,
		errorLog, id)
	if err != nil {
		return fmt.Errorf("failed to append job error: %w", err)
	}
	return tx.Commit()
}

// Complete marks a job completed and overlays the given stats keys.
func (s *JobService) Complete(ctx context.Context, id uuid.UUID, stats models.JSONMap) error {
	return s.finish(ctx, id, models.JobStatusCompleted, "", stats)
}

// Fail marks a job failed with a message.
func (s *JobService) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.finish(ctx, id, models.JobStatusFailed, errMsg, nil)
}

func (s *JobService) finish(ctx context.Context, id uuid.UUID, status, errMsg string, stats models.JSONMap) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var existing models.JSONMap
	err = tx.GetContext(ctx, &existing,
		`SELECT stats FROM crawl_jobs WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewNotFoundError("job", id.String())
		}
		return fmt.Errorf("failed to load job stats: %w", err)
	}

	merged := existing.Merge(stats)
	_, err = tx.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET status = $1,
		    completed_at = NOW(),
		    error_message = $2,
		    stats = $3,
		    updated_at = NOW()
		WHERE id = $4`,
		status, errMsg, merged, id)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return tx.Commit()
}

// FindStale returns jobs still pending or running whose last update is older
// than the threshold: the recovery sweep's candidate set.
func (s *JobService) FindStale(ctx context.Context, threshold time.Duration) ([]models.CrawlJob, error) {
	var jobs []models.CrawlJob
	cutoff := time.Now().Add(-threshold)
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT * FROM crawl_jobs
		WHERE status IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at`,
		models.JobStatusPending, models.JobStatusRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale jobs: %w", err)
	}
	return jobs, nil
}

// ApplyRecovery transitions one job to failed or interrupted after a process
// restart, recording the previous status and the recovery reason in
// stats.recovery. Returns the previous status.
func (s *JobService) ApplyRecovery(ctx context.Context, id uuid.UUID, markAsFailed bool) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var job models.CrawlJob
	err = tx.GetContext(ctx, &job, `SELECT * FROM crawl_jobs WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewNotFoundError("job", id.String())
		}
		return "", fmt.Errorf("failed to load job: %w", err)
	}

	if !models.IsRecoverableJobStatus(job.Status) {
		return job.Status, ErrNotRecoverable
	}

	newStatus := models.JobStatusInterrupted
	if markAsFailed {
		newStatus = models.JobStatusFailed
	}
	now := time.Now()
	errMsg := fmt.Sprintf(
		"Job interrupted by server restart after %d pages; marked %s by recovery",
		job.PagesCrawled, newStatus)

	recovery := models.RecoveryStats{
		Interrupted:    true,
		RecoveryReason: "server_restart",
		PreviousStatus: job.Status,
		InterruptedAt:  now,
	}
	stats := job.Stats.Merge(models.JSONMap{"recovery": map[string]any{
		"interrupted":     recovery.Interrupted,
		"recovery_reason": recovery.RecoveryReason,
		"previous_status": recovery.PreviousStatus,
		"interrupted_at":  recovery.InterruptedAt.Format(time.RFC3339),
	}})

	_, err = tx.ExecContext(ctx, `
		UPDATE crawl_jobs
		SET status = $1,
		    completed_at = $2,
		    error_message = $3,
		    stats = $4,
		    updated_at = NOW()
		WHERE id = $5`,
		newStatus, now, errMsg, stats, id)
	if err != nil {
		return "", fmt.Errorf("failed to apply recovery: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit recovery: %w", err)
	}
	return job.Status, nil
}

// DeleteOldJobs removes terminal job rows whose last update is older than
// the retention window. Live jobs are never touched regardless of age.
func (s *JobService) DeleteOldJobs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM crawl_jobs
		WHERE status IN ($1, $2, $3, $4) AND updated_at < $5`,
		models.JobStatusCompleted, models.JobStatusFailed,
		models.JobStatusCancelled, models.JobStatusInterrupted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListByProject returns a project's jobs, newest first.
func (s *JobService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.CrawlJob, error) {
	var jobs []models.CrawlJob
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT * FROM crawl_jobs
		WHERE project_id = $1
		ORDER BY created_at DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
