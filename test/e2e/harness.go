// Package e2e provides end-to-end test infrastructure for the content
// generation service: a real PostgreSQL schema, HTTP stubs for the
// optimization and completion providers, and the full service wired up
// behind a listening HTTP server.
package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/api"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/briefs"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/keywords"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/quality"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/recovery"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
	testdb "github.com/mike-seoasis/client-fulfillment-v2-sub003/test/database"
)

// TestApp boots a complete contentd instance for e2e testing.
type TestApp struct {
	// Core
	Settings *config.Settings
	DB       *database.Client

	// Domain services, exposed for fixtures and assertions
	Projects *services.ProjectService
	Pages    *services.PageService
	Content  *services.ContentService
	Briefs   *services.BriefService
	Keywords *services.KeywordService
	Jobs     *services.JobService
	Prompts  *services.PromptLogService

	// Wiring
	Clients  *integrations.Clients
	Runner   *pipeline.Orchestrator
	Recovery *recovery.Service

	// Runtime
	BaseURL string // e.g. "http://127.0.0.1:54321"

	t *testing.T
}

// testAppConfig holds options accumulated before creating the TestApp.
type testAppConfig struct {
	popURL      string
	llmURL      string
	keywordURL  string
	concurrency int
	recovery    *config.RecoveryConfig
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithPOP points the optimization provider at a stub server. Without it the
// provider is unconfigured and brief fetches fail over to brief-less writing.
func WithPOP(srv *POPStub) TestAppOption {
	return func(c *testAppConfig) { c.popURL = srv.URL() }
}

// WithLLM points the completion provider at a stub server.
func WithLLM(srv *LLMStub) TestAppOption {
	return func(c *testAppConfig) { c.llmURL = srv.URL() }
}

// WithKeywordProvider points the keyword-volume provider at a stub server.
// Without it, research requests fail with 503.
func WithKeywordProvider(srv *KeywordStub) TestAppOption {
	return func(c *testAppConfig) { c.keywordURL = srv.URL() }
}

// WithConcurrency sets the phase-2 write gate.
func WithConcurrency(n int) TestAppOption {
	return func(c *testAppConfig) { c.concurrency = n }
}

// WithRecoveryConfig overrides the stale-sweep settings.
func WithRecoveryConfig(cfg *config.RecoveryConfig) TestAppOption {
	return func(c *testAppConfig) { c.recovery = cfg }
}

// NewTestApp creates and starts a full contentd test instance.
// Shutdown is registered via t.Cleanup automatically.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	tc := &testAppConfig{
		concurrency: 2,
		recovery:    config.DefaultRecoveryConfig(),
	}
	for _, opt := range opts {
		opt(tc)
	}

	settings := testSettings(tc)

	// 1. Database, migrated and schema-isolated.
	dbClient := testdb.NewTestClient(t)

	// 2. Domain services.
	projectService := services.NewProjectService(dbClient)
	pageService := services.NewPageService(dbClient)
	contentService := services.NewContentService(dbClient)
	briefService := services.NewBriefService(dbClient)
	jobService := services.NewJobService(dbClient)
	promptLogService := services.NewPromptLogService(dbClient)

	// 3. Provider adapters against the stub servers.
	clients := integrations.NewClients(settings)

	// 4. Pipeline assembly, mirroring cmd/contentd.
	briefSource := briefs.NewOrchestrator(clients.POP, briefService)
	writer := pipeline.NewWriter(clients.LLM)
	checker := quality.NewChecker()
	registry := pipeline.NewRegistry()
	progress := pipeline.NewTracker(settings.Pipeline.ProgressTTL)

	orchestrator := pipeline.NewOrchestrator(settings.Pipeline, registry, progress, pipeline.Deps{
		Pages:   pageService,
		Content: contentService,
		Brands:  projectService,
		Jobs:    jobService,
		Prompts: promptLogService,
		Briefs:  briefSource,
		Writer:  writer,
		Checker: checker,
	})

	labelService := labels.NewService(clients.LLM, pageService, projectService, contentService, promptLogService)
	keywordService := services.NewKeywordService(dbClient)
	researchService := keywords.NewService(clients.Keywords, pageService, keywordService)
	recoveryService := recovery.NewService(jobService, tc.recovery)

	// 5. HTTP server on a random port.
	appCtx, cancelApp := context.WithCancel(context.Background())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	httpServer := api.NewServer(appCtx, api.Deps{
		DB:        dbClient,
		Projects:  projectService,
		Pages:     pageService,
		Content:   contentService,
		Runner:    orchestrator,
		Labels:    labelService,
		Keywords:  keywordService,
		Research:  researchService,
		Recovery:  recoveryService,
		Checker:   checker,
		Providers: clients,
	})
	httpServer.RegisterRoutes(router)

	srv := &http.Server{Handler: router}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = srv.Serve(ln) }()

	app := &TestApp{
		Settings: settings,
		DB:       dbClient,
		Projects: projectService,
		Pages:    pageService,
		Content:  contentService,
		Briefs:   briefService,
		Keywords: keywordService,
		Jobs:     jobService,
		Prompts:  promptLogService,
		Clients:  clients,
		Runner:   orchestrator,
		Recovery: recoveryService,
		BaseURL:  fmt.Sprintf("http://%s", ln.Addr().String()),
		t:        t,
	}

	// Register cleanup in reverse-creation order.
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		cancelApp()
		// Wait for canceled runs to release their registry slots before the
		// schema is dropped underneath them.
		deadline := time.Now().Add(5 * time.Second)
		for registry.Len() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		clients.Close()
		// DB cleanup handled by testdb.NewTestClient/SetupTestDatabase
	})

	return app
}

// testSettings builds a Settings tree pointing the configured providers at
// stub servers, with polling and retries tightened for tests.
func testSettings(tc *testAppConfig) *config.Settings {
	pipelineCfg := config.DefaultPipelineConfig()
	pipelineCfg.ContentGenerationConcurrency = tc.concurrency
	pipelineCfg.POPTaskPollInterval = 10 * time.Millisecond
	pipelineCfg.POPTaskTimeout = 5 * time.Second
	pipelineCfg.ProgressTTL = time.Minute

	providers := make(map[string]config.ProviderConfig)
	if tc.popURL != "" {
		providers[config.ProviderPOP] = testProvider(config.ProviderPOP, config.AuthBodyField, tc.popURL, POPTestKey)
	}
	if tc.llmURL != "" {
		providers[config.ProviderLLM] = testProvider(config.ProviderLLM, config.AuthBearer, tc.llmURL, LLMTestKey)
	}
	if tc.keywordURL != "" {
		providers[config.ProviderKeywords] = testProvider(config.ProviderKeywords, config.AuthBearer, tc.keywordURL, KeywordTestKey)
	}

	return &config.Settings{
		Providers: providers,
		Pipeline:  pipelineCfg,
		Recovery:  tc.recovery,
		Retention: config.DefaultRetentionConfig(),
		Server:    config.DefaultServerConfig(),
	}
}

func testProvider(name string, auth config.AuthPlacement, baseURL, apiKey string) config.ProviderConfig {
	return config.ProviderConfig{
		Name:                    name,
		APIKey:                  apiKey,
		BaseURL:                 baseURL,
		Auth:                    auth,
		Timeout:                 10 * time.Second,
		MaxRetries:              1,
		RetryDelay:              10 * time.Millisecond,
		CircuitFailureThreshold: 10,
		CircuitRecoveryTimeout:  time.Second,
	}
}
