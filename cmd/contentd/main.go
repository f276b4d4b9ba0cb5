// contentd is the content generation server: it exposes the HTTP API, runs
// the two-phase generation pipeline, and sweeps stale jobs at startup.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/api"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/briefs"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/cleanup"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/database"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/integrations"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/keywords"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/labels"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/quality"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/recovery"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/services"
	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	envFile := flag.String("env-file",
		getEnv("ENV_FILE", ".env"),
		"Path to .env file")
	flag.Parse()

	// Load .env file before reading any settings
	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envFile, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envFile)
	}

	settings := config.Load()

	slog.Info("Starting contentd",
		"version", version.Full(),
		"host", settings.Server.Host,
		"port", settings.Server.Port)

	ctx := context.Background()

	// 1. Initialize database (applies embedded migrations)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 2. Domain services
	projectService := services.NewProjectService(dbClient)
	pageService := services.NewPageService(dbClient)
	contentService := services.NewContentService(dbClient)
	briefService := services.NewBriefService(dbClient)
	keywordService := services.NewKeywordService(dbClient)
	jobService := services.NewJobService(dbClient)
	promptLogService := services.NewPromptLogService(dbClient)
	slog.Info("Services initialized")

	// 3. Provider adapters. The masker inside is seeded with every configured
	// credential so no provider's key can leak through another's logs.
	clients := integrations.NewClients(settings)
	defer clients.Close()

	// 4. Pipeline assembly
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
	researchService := keywords.NewService(clients.Keywords, pageService, keywordService)
	recoveryService := recovery.NewService(jobService, settings.Recovery)

	// 5. Startup recovery sweep, before the server accepts traffic. Jobs
	// orphaned by the previous process must reach a terminal status before
	// new runs start stacking on top of them.
	if summary, err := recoveryService.RecoverAll(ctx); err != nil {
		// Non-fatal: the admin endpoint can rerun the sweep.
		slog.Error("Startup recovery sweep failed", "error", err)
	} else if summary.TotalFound > 0 {
		slog.Info("Startup recovery sweep finished",
			"found", summary.TotalFound,
			"recovered", summary.TotalRecovered,
			"failed", summary.TotalFailed)
	}

	// 6. Background retention sweeps over terminal jobs and prompt logs
	cleanupService := cleanup.NewService(settings.Retention, jobService, promptLogService)
	cleanupService.Start(ctx)

	// 7. HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	httpServer := api.NewServer(ctx, api.Deps{
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

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port),
		Handler: router,
	}

	// 8. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("contentd started successfully",
		"generation_concurrency", settings.Pipeline.ContentGenerationConcurrency)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop accepting requests, then let active
	// generation runs finish inside their drain budget.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, settings.Server.ShutdownTimeout)
	defer httpCancel()
	if err := srv.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	drainPipeline(registry, settings.Server.PipelineDrainTimeout)
	cleanupService.Stop()

	slog.Info("Shutdown complete")
}

// drainPipeline waits for active generation runs to release their registry
// slots. Runs still active past the budget are abandoned; the job rows they
// leave behind are swept by the recovery pass at next startup.
func drainPipeline(registry *pipeline.Registry, timeout time.Duration) {
	active := registry.Len()
	if active == 0 {
		return
	}
	slog.Info("Waiting for active generation runs to finish", "active", active)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if registry.Len() == 0 {
			slog.Info("Generation runs drained")
			return
		}
		if time.Now().After(deadline) {
			slog.Warn("Pipeline drain timeout exceeded, abandoning active runs",
				"active", registry.Len())
			return
		}
	}
}
