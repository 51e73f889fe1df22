package api

import (
	"github.com/gin-gonic/gin"

	"github.com/soilfusion/cropadvisor/internal/services"
	"github.com/soilfusion/cropadvisor/pkg/config"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, svcs *services.Services, cfg *config.Config) {
	predictionHandler := NewPredictionHandler(svcs.Prediction, cfg.MaxBatchSize)
	historyHandler := NewHistoryHandler(svcs.History)
	healthHandler := NewHealthHandler(svcs.Prediction)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)
		v1.GET("/model", predictionHandler.GetModel)

		// Recommendations
		v1.POST("/predict", predictionHandler.Predict)
		v1.POST("/predict/batch", predictionHandler.PredictBatch)

		// History
		v1.GET("/predictions", historyHandler.ListPredictions)
		v1.GET("/predictions/:id", historyHandler.GetPrediction)
	}
}
