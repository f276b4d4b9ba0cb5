package config

import "time"

// PipelineConfig controls the content generation pipeline.
type PipelineConfig struct {
	// ContentGenerationConcurrency is the Phase-2 gate: how many pages may
	// be in the write+check step at once. Phase-1 brief prefetch is ungated.
	ContentGenerationConcurrency int

	// POPTaskPollInterval is how often the optimization-provider task
	// endpoint is polled while a submitted task is in flight.
	POPTaskPollInterval time.Duration

	// POPTaskTimeout bounds one complete poll loop. A task that has not
	// reached a terminal provider status within this window fails the step.
	POPTaskTimeout time.Duration

	// KeywordBatchConcurrency bounds concurrent keyword-volume batch
	// requests when a lookup is split across multiple batches of 100.
	KeywordBatchConcurrency int

	// ProgressTTL is how long per-project progress snapshots stay readable
	// after the last update before expiring from the tracker.
	ProgressTTL time.Duration
}

// DefaultPipelineConfig returns the built-in pipeline defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		ContentGenerationConcurrency: 1,
		POPTaskPollInterval:          5 * time.Second,
		POPTaskTimeout:               5 * time.Minute,
		KeywordBatchConcurrency:      4,
		ProgressTTL:                  30 * time.Minute,
	}
}

// RecoveryConfig controls the stale-job recovery sweep.
type RecoveryConfig struct {
	// StaleThreshold is how long a pending/running job may go without an
	// updated_at touch before it is considered interrupted. Must exceed the
	// longest legitimate quiet interval between progress writes.
	StaleThreshold time.Duration

	// MarkAsFailed selects the terminal status written by the startup
	// sweep: true writes "failed", false writes "interrupted".
	MarkAsFailed bool
}

// DefaultRecoveryConfig returns the built-in recovery defaults.
func DefaultRecoveryConfig() *RecoveryConfig {
	return &RecoveryConfig{
		StaleThreshold: 30 * time.Minute,
		MarkAsFailed:   true,
	}
}

// RetentionConfig controls the background retention sweep over the durable
// byproducts of generation runs.
type RetentionConfig struct {
	// JobRetentionDays is how long terminal job rows are kept.
	JobRetentionDays int

	// PromptLogTTL is how long prompt audit entries are kept.
	PromptLogTTL time.Duration

	// CleanupInterval is how often the sweep runs.
	CleanupInterval time.Duration
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		JobRetentionDays: 90,
		PromptLogTTL:     90 * 24 * time.Hour,
		CleanupInterval:  12 * time.Hour,
	}
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string
	Port int

	// ShutdownTimeout is the drain budget for in-flight HTTP requests.
	ShutdownTimeout time.Duration

	// PipelineDrainTimeout is the max time to wait for active pipeline
	// runs to finish during shutdown.
	PipelineDrainTimeout time.Duration
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:                 "0.0.0.0",
		Port:                 8080,
		ShutdownTimeout:      10 * time.Second,
		PipelineDrainTimeout: 5 * time.Minute,
	}
}
