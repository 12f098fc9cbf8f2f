package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/internal/build"
	"github.com/arbiterhq/arbiter/internal/server/biz"
)

type SystemHandlers struct {
	System *biz.SystemService
}

func NewSystemHandlers(system *biz.SystemService) *SystemHandlers {
	return &SystemHandlers{System: system}
}

// Health is the liveness probe.
//
// GET /health
func (h *SystemHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": build.Version,
	})
}

// GetSystemStatus reports the loaded policy summary.
//
// GET /v1/system/status
func (h *SystemHandlers) GetSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.System.Status(c.Request.Context()))
}
