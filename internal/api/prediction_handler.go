package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/models"
	"github.com/soilfusion/cropadvisor/internal/services"
)

// Response headers describing the outcome of POST /predict
const (
	HeaderPredictionStatus = "X-Prediction-Status"
	HeaderPredictionID     = "X-Prediction-ID"
)

// PredictionHandler serves crop recommendations
type PredictionHandler struct {
	predictionService services.PredictionService
	maxBatchSize      int
}

// NewPredictionHandler creates a new prediction handler with service injection
func NewPredictionHandler(predictionService services.PredictionService, maxBatchSize int) *PredictionHandler {
	return &PredictionHandler{
		predictionService: predictionService,
		maxBatchSize:      maxBatchSize,
	}
}

// Predict recommends crops for one soil sample. Degraded outcomes are still
// 200; only a malformed request is rejected.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req SoilSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid soil sample", err)
		return
	}
	sample, err := req.Sample()
	if err != nil {
		badRequest(c, "Invalid soil sample", err)
		return
	}

	outcome := h.predictionService.Recommend(c.Request.Context(), sample)

	resp := newPredictionResponse(outcome)
	if explain(c) {
		breakdown := h.predictionService.Breakdown(sample)
		resp.Breakdown = &breakdown
	}

	c.Header(HeaderPredictionStatus, outcome.Kind.String())
	if outcome.ID != "" {
		c.Header(HeaderPredictionID, outcome.ID)
	}
	c.JSON(http.StatusOK, resp)
}

// PredictBatch recommends crops for many samples, preserving input order
func (h *PredictionHandler) PredictBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid batch request", err)
		return
	}
	if h.maxBatchSize > 0 && len(req.Samples) > h.maxBatchSize {
		badRequest(c, "Invalid batch request",
			fmt.Errorf("batch has %d samples, the limit is %d", len(req.Samples), h.maxBatchSize))
		return
	}

	samples := make([]models.SoilSample, len(req.Samples))
	for i, r := range req.Samples {
		sample, err := r.Sample()
		if err != nil {
			badRequest(c, "Invalid batch request", fmt.Errorf("samples[%d]: %w", i, err))
			return
		}
		samples[i] = sample
	}

	outcomes, err := h.predictionService.RecommendBatch(c.Request.Context(), samples)
	if err != nil {
		respondError(c, err)
		return
	}

	withBreakdown := explain(c)
	resp := BatchResponse{
		Results: make([]PredictionResponse, len(outcomes)),
		Count:   len(outcomes),
	}
	for i, outcome := range outcomes {
		item := newPredictionResponse(outcome)
		item.Status = outcome.Kind.String()
		item.ID = outcome.ID
		if withBreakdown {
			breakdown := h.predictionService.Breakdown(samples[i])
			item.Breakdown = &breakdown
		}
		if !outcome.OK() {
			resp.Degraded++
		}
		resp.Results[i] = item
	}
	c.JSON(http.StatusOK, resp)
}

// GetModel returns metadata about the loaded model artifact
func (h *PredictionHandler) GetModel(c *gin.Context) {
	meta, ok := h.predictionService.ModelInfo()
	if !ok {
		respondError(c, errors.ModelUnavailable("Model not trained", nil).WithOperation("GetModel"))
		return
	}
	c.JSON(http.StatusOK, meta)
}

func explain(c *gin.Context) bool {
	v, err := strconv.ParseBool(c.DefaultQuery("explain", "false"))
	return err == nil && v
}
