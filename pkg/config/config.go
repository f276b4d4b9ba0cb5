// Package config loads typed application settings from the environment.
//
// Every knob has a built-in default so a bare process starts; provider
// credentials are the only settings with no default. Providers without a
// credential stay constructible but report themselves unavailable.
package config

import (
	"time"
)

// Provider names recognized by the integration layer.
const (
	ProviderPOP      = "pop"
	ProviderKeywords = "keywords"
	ProviderNLP      = "nlp"
	ProviderSERP     = "serp"
	ProviderCrawl    = "crawl"
	ProviderLLM      = "llm"
)

// Settings is the root configuration assembled at process start.
type Settings struct {
	Providers map[string]ProviderConfig
	Pipeline  *PipelineConfig
	Recovery  *RecoveryConfig
	Retention *RetentionConfig
	Server    *ServerConfig
}

// Load reads all settings from the environment, applying defaults.
func Load() *Settings {
	providers := map[string]ProviderConfig{
		// Optimization provider: credential travels in the request body
		// under "apiKey", task polling tuned separately below.
		ProviderPOP: loadProvider(ProviderPOP,
			defaultProvider(AuthBodyField, "https://api.pageoptimizer.pro/api")),

		// Keyword-volume provider: bearer auth, form-encoded requests.
		ProviderKeywords: loadProvider(ProviderKeywords,
			defaultProvider(AuthBearer, "https://api.keywordseverywhere.com")),

		// NLP entity provider: key as query parameter.
		ProviderNLP: loadProvider(ProviderNLP,
			defaultProvider(AuthQueryParam, "https://language.googleapis.com")),

		// SERP provider: bearer auth.
		ProviderSERP: loadProvider(ProviderSERP,
			defaultProvider(AuthBearer, "https://api.serpprovider.com")),

		// Crawl service: unauthenticated sidecar; plain-GET fallback when
		// no URL is configured either.
		ProviderCrawl: loadProvider(ProviderCrawl,
			defaultProvider(AuthNone, "")),

		// LLM completion provider: opaque JSON-over-HTTPS, bearer auth.
		// Generation calls get a generous per-request timeout.
		ProviderLLM: loadProvider(ProviderLLM, func() ProviderConfig {
			p := defaultProvider(AuthBearer, "")
			p.Timeout = 120 * time.Second
			return p
		}()),
	}

	pipeline := DefaultPipelineConfig()
	pipeline.ContentGenerationConcurrency = getEnvInt("CONTENT_GENERATION_CONCURRENCY", pipeline.ContentGenerationConcurrency)
	pipeline.POPTaskPollInterval = getEnvDuration("POP_TASK_POLL_INTERVAL", pipeline.POPTaskPollInterval)
	pipeline.POPTaskTimeout = getEnvDuration("POP_TASK_TIMEOUT", pipeline.POPTaskTimeout)
	pipeline.KeywordBatchConcurrency = getEnvInt("KEYWORD_BATCH_CONCURRENCY", pipeline.KeywordBatchConcurrency)

	recovery := DefaultRecoveryConfig()
	if minutes := getEnvInt("STALE_THRESHOLD_MINUTES", 0); minutes > 0 {
		recovery.StaleThreshold = time.Duration(minutes) * time.Minute
	}

	retention := DefaultRetentionConfig()
	retention.JobRetentionDays = getEnvInt("JOB_RETENTION_DAYS", retention.JobRetentionDays)
	retention.PromptLogTTL = getEnvDuration("PROMPT_LOG_TTL", retention.PromptLogTTL)
	retention.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", retention.CleanupInterval)

	server := DefaultServerConfig()
	server.Host = getEnvOrDefault("SERVER_HOST", server.Host)
	server.Port = getEnvInt("SERVER_PORT", server.Port)
	server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", server.ShutdownTimeout)
	server.PipelineDrainTimeout = getEnvDuration("PIPELINE_DRAIN_TIMEOUT", server.PipelineDrainTimeout)

	return &Settings{
		Providers: providers,
		Pipeline:  pipeline,
		Recovery:  recovery,
		Retention: retention,
		Server:    server,
	}
}

// Provider returns the named provider's config, or a zero-value config
// (unconfigured) if the name is unknown.
func (s *Settings) Provider(name string) ProviderConfig {
	return s.Providers[name]
}
