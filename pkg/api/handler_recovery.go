package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// recoveryRunHandler handles POST /api/admin/recovery/run.
// The same sweep runs automatically at startup; this endpoint exists for
// operators who want one without a restart.
func (s *Server) recoveryRunHandler(c *gin.Context) {
	summary, err := s.recovery.RecoverAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
