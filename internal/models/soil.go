package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// SoilSample is one set of soil and weather measurements. No physical range is
// enforced; out-of-range values are scored and classified like any other.
type SoilSample struct {
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorous float64 `json:"phosphorous"`
	Potassium   float64 `json:"potassium"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	PH          float64 `json:"ph"`
	Rainfall    float64 `json:"rainfall"`
}

// Validate rejects values that cannot be treated as numbers (NaN, ±Inf)
func (s SoilSample) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"nitrogen", s.Nitrogen},
		{"phosphorous", s.Phosphorous},
		{"potassium", s.Potassium},
		{"temperature", s.Temperature},
		{"humidity", s.Humidity},
		{"ph", s.PH},
		{"rainfall", s.Rainfall},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
	}
	return nil
}

// CropPrediction is a crop label with the classifier's confidence in [0,1]
type CropPrediction struct {
	Crop       string  `json:"crop"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the response for one sample. On the wire it keeps the
// parallel-array layout the frontend consumes.
type PredictionResult struct {
	Predictions               []CropPrediction
	SoilHealthScore           float64
	AdditionalRecommendations string
}

type predictionResultWire struct {
	RecommendedCrops          []string  `json:"recommended_crops"`
	ConfidenceScores          []float64 `json:"confidence_scores"`
	SoilHealthScore           float64   `json:"soil_health_score"`
	AdditionalRecommendations string    `json:"additional_recommendations"`
}

// Crops returns the ranked crop labels
func (r PredictionResult) Crops() []string {
	crops := make([]string, len(r.Predictions))
	for i, p := range r.Predictions {
		crops[i] = p.Crop
	}
	return crops
}

// Confidences returns the ranked confidence scores
func (r PredictionResult) Confidences() []float64 {
	scores := make([]float64, len(r.Predictions))
	for i, p := range r.Predictions {
		scores[i] = p.Confidence
	}
	return scores
}

// MarshalJSON renders the parallel-array layout
func (r PredictionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(predictionResultWire{
		RecommendedCrops:          r.Crops(),
		ConfidenceScores:          r.Confidences(),
		SoilHealthScore:           r.SoilHealthScore,
		AdditionalRecommendations: r.AdditionalRecommendations,
	})
}

// UnmarshalJSON reads the parallel-array layout
func (r *PredictionResult) UnmarshalJSON(data []byte) error {
	var w predictionResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.RecommendedCrops) != len(w.ConfidenceScores) {
		return fmt.Errorf("recommended_crops has %d entries but confidence_scores has %d",
			len(w.RecommendedCrops), len(w.ConfidenceScores))
	}
	r.Predictions = make([]CropPrediction, len(w.RecommendedCrops))
	for i := range w.RecommendedCrops {
		r.Predictions[i] = CropPrediction{Crop: w.RecommendedCrops[i], Confidence: w.ConfidenceScores[i]}
	}
	r.SoilHealthScore = w.SoilHealthScore
	r.AdditionalRecommendations = w.AdditionalRecommendations
	return nil
}
