// Package cleanup provides data retention for the durable byproducts of
// generation runs.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
)

// JobPruner deletes terminal job rows past the retention window.
type JobPruner interface {
	DeleteOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

// PromptLogPruner deletes audit entries past their TTL.
type PromptLogPruner interface {
	DeleteOlderThan(ctx context.Context, ttl time.Duration) (int64, error)
}

// Service periodically enforces retention policies:
//   - Deletes terminal job rows past the retention window
//   - Prunes prompt audit entries past their TTL
//
// All operations are idempotent and safe to run from multiple replicas.
type Service struct {
	config  *config.RetentionConfig
	jobs    JobPruner
	prompts PromptLogPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, jobs JobPruner, prompts PromptLogPruner) *Service {
	return &Service{
		config:  cfg,
		jobs:    jobs,
		prompts: prompts,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"job_retention_days", s.config.JobRetentionDays,
		"prompt_log_ttl", s.config.PromptLogTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneOldJobs(ctx)
	s.prunePromptLogs(ctx)
}

// pruneOldJobs runs its delete on a short background context so a shutdown
// mid-sweep never leaves a half-applied pass behind.
func (s *Service) pruneOldJobs(_ context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.jobs.DeleteOldJobs(ctx, s.config.JobRetentionDays)
	if err != nil {
		slog.Error("Retention: job cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted old jobs", "count", count)
	}
}

func (s *Service) prunePromptLogs(_ context.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := s.prompts.DeleteOlderThan(ctx, s.config.PromptLogTTL)
	if err != nil {
		slog.Error("Retention: prompt log cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: pruned prompt logs", "count", count)
	}
}
