package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soilfusion/cropadvisor/internal/services"
)

// Version is reported by the health endpoint; overridden at link time
var Version = "1.0.0"

// HealthHandler reports service liveness
type HealthHandler struct {
	predictionService services.PredictionService
	now               func() time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(predictionService services.PredictionService) *HealthHandler {
	return &HealthHandler{predictionService: predictionService, now: time.Now}
}

// Health always answers healthy; model_loaded tells whether predictions are real
func (h *HealthHandler) Health(c *gin.Context) {
	_, loaded := h.predictionService.ModelInfo()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"version":      Version,
		"timestamp":    h.now().Format(time.RFC3339),
		"model_loaded": loaded,
	})
}
