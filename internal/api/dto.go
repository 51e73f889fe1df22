package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soilfusion/cropadvisor/internal/models"
	"github.com/soilfusion/cropadvisor/internal/repository"
	"github.com/soilfusion/cropadvisor/internal/scoring"
)

// Measurement is a float that also accepts a numeric string, so
// {"ph": "6.5"} binds like {"ph": 6.5}
type Measurement float64

// UnmarshalJSON accepts a JSON number or a string holding one
func (m *Measurement) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("value is not a valid float: %q", s)
		}
		*m = Measurement(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("value is not a valid float: %s", data)
	}
	*m = Measurement(f)
	return nil
}

// SoilSampleRequest is the body of POST /predict
type SoilSampleRequest struct {
	Nitrogen    *Measurement `json:"nitrogen" binding:"required"`
	Phosphorous *Measurement `json:"phosphorous" binding:"required"`
	Potassium   *Measurement `json:"potassium" binding:"required"`
	Temperature *Measurement `json:"temperature" binding:"required"`
	Humidity    *Measurement `json:"humidity" binding:"required"`
	PH          *Measurement `json:"ph" binding:"required"`
	Rainfall    *Measurement `json:"rainfall" binding:"required"`
}

// Sample converts the request into a domain sample and rejects non-finite values
func (r SoilSampleRequest) Sample() (models.SoilSample, error) {
	get := func(m *Measurement) float64 {
		if m == nil {
			return math.NaN()
		}
		return float64(*m)
	}
	sample := models.SoilSample{
		Nitrogen:    get(r.Nitrogen),
		Phosphorous: get(r.Phosphorous),
		Potassium:   get(r.Potassium),
		Temperature: get(r.Temperature),
		Humidity:    get(r.Humidity),
		PH:          get(r.PH),
		Rainfall:    get(r.Rainfall),
	}
	return sample, sample.Validate()
}

// BatchRequest is the body of POST /predict/batch
type BatchRequest struct {
	Samples []SoilSampleRequest `json:"samples" binding:"required,min=1,dive"`
}

// PredictionResponse keeps the result's wire layout and adds optional fields
// for batch items and explanations
type PredictionResponse struct {
	RecommendedCrops          []string                `json:"recommended_crops"`
	ConfidenceScores          []float64               `json:"confidence_scores"`
	SoilHealthScore           float64                 `json:"soil_health_score"`
	AdditionalRecommendations string                  `json:"additional_recommendations"`
	Status                    string                  `json:"status,omitempty"`
	ID                        string                  `json:"id,omitempty"`
	Breakdown                 *scoring.ScoreBreakdown `json:"breakdown,omitempty"`
}

func newPredictionResponse(outcome models.Outcome) PredictionResponse {
	return PredictionResponse{
		RecommendedCrops:          outcome.Result.Crops(),
		ConfidenceScores:          outcome.Result.Confidences(),
		SoilHealthScore:           outcome.Result.SoilHealthScore,
		AdditionalRecommendations: outcome.Result.AdditionalRecommendations,
	}
}

// BatchResponse is the body returned by POST /predict/batch
type BatchResponse struct {
	Results  []PredictionResponse `json:"results"`
	Count    int                  `json:"count"`
	Degraded int                  `json:"degraded"`
}

// HistoryResponse is one page of stored predictions
type HistoryResponse struct {
	Predictions []repository.PredictionRecord `json:"predictions"`
	Total       int                           `json:"total"`
	Limit       int                           `json:"limit"`
	Offset      int                           `json:"offset"`
}
