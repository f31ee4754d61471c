package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Checkpoints string `json:"checkpoints"`
}

// Health handles the health check endpoint
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handlers) Health(c *gin.Context) {
	response := HealthResponse{Status: "ok"}

	if h.ping == nil {
		response.Checkpoints = "not configured"
		c.JSON(http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Checkpoint store unreachable")
		response.Status = "degraded"
		response.Checkpoints = "disconnected"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	response.Checkpoints = "connected"
	c.JSON(http.StatusOK, response)
}
