// Package recovery closes out jobs orphaned by a crash or restart. A job
// that stops writing progress past the stale threshold is assumed dead and
// moved to a terminal status so the project can run again.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/models"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
)

// JobStore is the slice of the job service the sweep drives.
type JobStore interface {
	FindStale(ctx context.Context, threshold time.Duration) ([]models.CrawlJob, error)
	ApplyRecovery(ctx context.Context, id uuid.UUID, markAsFailed bool) (string, error)
}

// JobRecovery is the outcome for one swept job.
type JobRecovery struct {
	JobID          uuid.UUID `json:"job_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	JobType        string    `json:"job_type"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Recovered      bool      `json:"recovered"`
	Error          string    `json:"error,omitempty"`
}

// Summary aggregates one sweep for the startup log and the admin endpoint.
type Summary struct {
	TotalFound     int           `json:"total_found"`
	TotalRecovered int           `json:"total_recovered"`
	TotalFailed    int           `json:"total_failed"`
	Results        []JobRecovery `json:"results"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    time.Time     `json:"completed_at"`
	DurationMS     int64         `json:"duration_ms"`
}

// Service runs the stale-job sweep. It is called once at startup before the
// server listens, and on demand through the admin endpoint.
type Service struct {
	jobs   JobStore
	cfg    *config.RecoveryConfig
	logger *slog.Logger
}

func NewService(jobs JobStore, cfg *config.RecoveryConfig) *Service {
	return &Service{
		jobs:   jobs,
		cfg:    cfg,
		logger: slog.Default().With("component", "recovery"),
	}
}

// FindInterrupted lists jobs whose progress went quiet past the configured
// threshold without reaching a terminal status.
func (s *Service) FindInterrupted(ctx context.Context) ([]models.CrawlJob, error) {
	return s.jobs.FindStale(ctx, s.cfg.StaleThreshold)
}

// RecoverOne moves a single job to its recovery status and returns the
// status it had before. services.ErrNotRecoverable means the job reached a
// terminal status on its own.
func (s *Service) RecoverOne(ctx context.Context, id uuid.UUID, markAsFailed bool) (string, error) {
	prev, err := s.jobs.ApplyRecovery(ctx, id, markAsFailed)
	if err != nil {
		return prev, err
	}
	s.logger.Info("Recovered interrupted job",
		"job_id", id,
		"previous_status", prev,
		"new_status", recoveryStatus(markAsFailed))
	return prev, nil
}

// RecoverAll sweeps every stale job. Per-job failures are recorded in the
// summary and the sweep keeps going; only the initial scan can fail the
// whole call.
func (s *Service) RecoverAll(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		StartedAt: time.Now(),
		Results:   []JobRecovery{},
	}

	stale, err := s.jobs.FindStale(ctx, s.cfg.StaleThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for stale jobs: %w", err)
	}
	summary.TotalFound = len(stale)

	for _, job := range stale {
		outcome := JobRecovery{
			JobID:     job.ID,
			ProjectID: job.ProjectID,
			JobType:   job.JobType,
		}
		prev, err := s.jobs.ApplyRecovery(ctx, job.ID, s.cfg.MarkAsFailed)
		outcome.PreviousStatus = prev
		switch {
		case errors.Is(err, services.ErrNotRecoverable):
			// The job reached a terminal status between the scan and the
			// row lock. Nothing to do.
			outcome.NewStatus = prev
			s.logger.Info("Stale job already terminal; skipping",
				"job_id", job.ID,
				"status", prev)
		case err != nil:
			outcome.Error = err.Error()
			summary.TotalFailed++
			s.logger.Error("Job recovery failed",
				"job_id", job.ID,
				"job_type", job.JobType,
				"error", err)
		default:
			outcome.Recovered = true
			outcome.NewStatus = recoveryStatus(s.cfg.MarkAsFailed)
			summary.TotalRecovered++
			s.logger.Info("Recovered interrupted job",
				"job_id", job.ID,
				"job_type", job.JobType,
				"project_id", job.ProjectID,
				"previous_status", prev,
				"new_status", outcome.NewStatus)
		}
		summary.Results = append(summary.Results, outcome)
	}

	summary.CompletedAt = time.Now()
	summary.DurationMS = summary.CompletedAt.Sub(summary.StartedAt).Milliseconds()
	if summary.TotalFound > 0 {
		s.logger.Info("Recovery sweep finished",
			"found", summary.TotalFound,
			"recovered", summary.TotalRecovered,
			"failed", summary.TotalFailed,
			"duration_ms", summary.DurationMS)
	} else {
		s.logger.Info("Recovery sweep found nothing to do")
	}
	return summary, nil
}

func recoveryStatus(markAsFailed bool) string {
	if markAsFailed {
		return models.JobStatusFailed
	}
	return models.JobStatusInterrupted
}
