package repository

import (
	"time"

	"github.com/google/uuid"

	"github.com/soilfusion/cropadvisor/internal/models"
)

// PredictionRecord is one stored recommendation
type PredictionRecord struct {
	ID           uuid.UUID               `json:"id"`
	Sample       models.SoilSample       `json:"sample"`
	Result       models.PredictionResult `json:"result"`
	TopCrop      string                  `json:"top_crop"`
	Status       string                  `json:"status"`
	Reason       string                  `json:"reason,omitempty"`
	ModelVersion string                  `json:"model_version,omitempty"`
	Cached       bool                    `json:"cached"`
	CreatedAt    time.Time               `json:"created_at"`
}

// NewPredictionRecord builds a record for an outcome, assigning a fresh ID
func NewPredictionRecord(sample models.SoilSample, outcome models.Outcome, modelVersion string) *PredictionRecord {
	rec := &PredictionRecord{
		ID:           uuid.New(),
		Sample:       sample,
		Result:       outcome.Result,
		Status:       outcome.Kind.String(),
		Reason:       string(outcome.Reason),
		ModelVersion: modelVersion,
		Cached:       outcome.Cached,
		CreatedAt:    time.Now().UTC(),
	}
	if len(outcome.Result.Predictions) > 0 {
		rec.TopCrop = outcome.Result.Predictions[0].Crop
	}
	return rec
}
