package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mike-seoasis/client-fulfillment-v2-sub003/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// healthHandler handles GET /api/health.
// Returns a minimal, safe response suitable for unauthenticated access.
// Only the service's own database gates the status code; provider circuit
// states are reported for operators but never flip it, so the orchestrator
// does not restart this service because a third-party API is down.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	dbHealth, err := s.db.Health(reqCtx)
	if err != nil {
		status = healthStatusUnhealthy
		checks["database"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["database"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	resp := &HealthResponse{
		Status:   status,
		Version:  version.GitCommit,
		Checks:   checks,
		Database: dbHealth,
	}
	if s.providers != nil {
		resp.Providers = s.providers.Status()
	}
	c.JSON(httpStatus, resp)
}
