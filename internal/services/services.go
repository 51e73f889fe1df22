package services

import (
	"context"

	"github.com/soilfusion/cropadvisor/internal/artifact"
	"github.com/soilfusion/cropadvisor/internal/cache"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/internal/models"
	"github.com/soilfusion/cropadvisor/internal/repository"
	"github.com/soilfusion/cropadvisor/internal/scoring"
)

// Services contains all application services
type Services struct {
	Prediction PredictionService
	History    HistoryService
}

// PredictionService turns soil samples into crop recommendations
type PredictionService interface {
	// Recommend never fails: problems come back as a degraded Outcome
	Recommend(ctx context.Context, sample models.SoilSample) models.Outcome
	// RecommendBatch preserves input order; it only fails when ctx is done
	RecommendBatch(ctx context.Context, samples []models.SoilSample) ([]models.Outcome, error)
	Breakdown(sample models.SoilSample) scoring.ScoreBreakdown
	ModelInfo() (artifact.Meta, bool)
}

// HistoryService reads stored predictions
type HistoryService interface {
	Enabled() bool
	Get(ctx context.Context, id string) (*repository.PredictionRecord, error)
	List(ctx context.Context, filters repository.PredictionFilters) (*HistoryPage, error)
}

// HistoryPage is one page of stored predictions
type HistoryPage struct {
	Records []repository.PredictionRecord `json:"records"`
	Total   int                           `json:"total"`
	Limit   int                           `json:"limit"`
	Offset  int                           `json:"offset"`
}

// Deps are the collaborators shared by the services. Artifact, Cache and
// Repos are optional: nil disables the matching feature.
type Deps struct {
	Artifact         *artifact.Artifact
	Scoring          *scoring.ScoringEngine
	Cache            cache.ResultCache
	Repos            *repository.Repositories
	Logger           logger.Logger
	BatchConcurrency int
}

// NewServices creates a new Services instance with all dependencies
func NewServices(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = logger.NewSimpleLogger()
	}
	if deps.Scoring == nil {
		deps.Scoring = scoring.NewScoringEngine()
	}
	return &Services{
		Prediction: newPredictionService(deps),
		History:    newHistoryService(deps.Repos),
	}
}
