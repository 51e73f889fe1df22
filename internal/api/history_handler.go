package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soilfusion/cropadvisor/internal/models"
	"github.com/soilfusion/cropadvisor/internal/repository"
	"github.com/soilfusion/cropadvisor/internal/services"
)

// HistoryHandler serves stored predictions
type HistoryHandler struct {
	historyService services.HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(historyService services.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// ListPredictions returns stored predictions, newest first.
// Query: crop, status (ok|degraded), limit, offset.
func (h *HistoryHandler) ListPredictions(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		badRequest(c, "Invalid query", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	page, err := h.historyService.List(ctx, filters)
	if err != nil {
		respondError(c, err)
		return
	}

	records := page.Records
	if records == nil {
		records = []repository.PredictionRecord{}
	}
	c.JSON(http.StatusOK, HistoryResponse{
		Predictions: records,
		Total:       page.Total,
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
}

// GetPrediction returns one stored prediction
func (h *HistoryHandler) GetPrediction(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.historyService.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func parseFilters(c *gin.Context) (repository.PredictionFilters, error) {
	filters := repository.PredictionFilters{
		Crop:   c.Query("crop"),
		Status: c.Query("status"),
	}

	switch filters.Status {
	case "", models.OutcomeSuccess.String(), models.OutcomeDegraded.String():
	default:
		return filters, fmt.Errorf("status must be %q or %q", models.OutcomeSuccess, models.OutcomeDegraded)
	}

	var err error
	if v := c.Query("limit"); v != "" {
		if filters.Limit, err = strconv.Atoi(v); err != nil || filters.Limit < 0 {
			return filters, fmt.Errorf("limit must be a non-negative integer")
		}
	}
	if v := c.Query("offset"); v != "" {
		if filters.Offset, err = strconv.Atoi(v); err != nil || filters.Offset < 0 {
			return filters, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	return filters, nil
}
