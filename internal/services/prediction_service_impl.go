package services

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/soilfusion/cropadvisor/internal/artifact"
	"github.com/soilfusion/cropadvisor/internal/cache"
	"github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/internal/models"
	"github.com/soilfusion/cropadvisor/internal/repository"
	"github.com/soilfusion/cropadvisor/internal/scoring"
)

const defaultBatchConcurrency = 8

// predictionServiceImpl implements PredictionService
type predictionServiceImpl struct {
	artifact    *artifact.Artifact
	scoring     *scoring.ScoringEngine
	cache       cache.ResultCache
	repos       *repository.Repositories
	logger      logger.Logger
	concurrency int
}

func newPredictionService(deps Deps) PredictionService {
	concurrency := deps.BatchConcurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}
	return &predictionServiceImpl{
		artifact:    deps.Artifact,
		scoring:     deps.Scoring,
		cache:       deps.Cache,
		repos:       deps.Repos,
		logger:      deps.Logger,
		concurrency: concurrency,
	}
}

// Recommend predicts crops for one sample and records it in history
func (s *predictionServiceImpl) Recommend(ctx context.Context, sample models.SoilSample) models.Outcome {
	outcome := s.recommend(ctx, sample)
	if s.repos != nil {
		s.record(ctx, sample, &outcome)
	}
	return outcome
}

// record stores one outcome. Failures, panics included, are logged and leave
// outcome.ID empty.
func (s *predictionServiceImpl) record(ctx context.Context, sample models.SoilSample, outcome *models.Outcome) {
	rec := repository.NewPredictionRecord(sample, *outcome, s.modelVersion())
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Failed to record prediction", fmt.Errorf("panic: %v", r), "prediction_id", rec.ID.String())
		}
	}()

	if err := s.repos.Prediction.Store(ctx, rec); err != nil {
		s.logger.Error("Failed to record prediction", err, "prediction_id", rec.ID.String())
		return
	}
	outcome.ID = rec.ID.String()
}

// RecommendBatch runs Recommend logic concurrently and records the whole
// batch in one transaction
func (s *predictionServiceImpl) RecommendBatch(ctx context.Context, samples []models.SoilSample) ([]models.Outcome, error) {
	outcomes := make([]models.Outcome, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sample := range samples {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = s.recommend(gctx, sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.ServiceError("batch prediction cancelled", err).WithOperation("RecommendBatch")
	}

	if s.repos != nil {
		s.recordBatch(ctx, samples, outcomes)
	}
	return outcomes, nil
}

func (s *predictionServiceImpl) recordBatch(ctx context.Context, samples []models.SoilSample, outcomes []models.Outcome) {
	records := make([]*repository.PredictionRecord, len(samples))
	version := s.modelVersion()
	for i := range samples {
		records[i] = repository.NewPredictionRecord(samples[i], outcomes[i], version)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Failed to record prediction batch", fmt.Errorf("panic: %v", r), "size", len(records))
		}
	}()

	err := s.repos.Tx.WithTransaction(ctx, func(tx *repository.Repositories) error {
		for _, rec := range records {
			if err := tx.Prediction.Store(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record prediction batch", err, "size", len(records))
		return
	}
	for i, rec := range records {
		outcomes[i].ID = rec.ID.String()
	}
}

// recommend is the cache-aware pipeline without history. A panic anywhere
// below, cache calls included, becomes a computation failure.
func (s *predictionServiceImpl) recommend(ctx context.Context, sample models.SoilSample) (outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			s.logger.Error("Prediction panicked", err)
			outcome = models.PredictionFailed(
				errors.ComputationFailure("prediction failed", err).WithOperation("Recommend"),
				err.Error(),
			)
		}
	}()

	if s.artifact == nil {
		return models.ModelNotTrained(
			errors.ModelUnavailable("model not trained", nil).WithOperation("Recommend"),
		)
	}

	key := cache.Key(sample, s.artifact.Meta.Version, s.scoring.RulesFingerprint())
	if s.cache != nil {
		result, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Result cache read failed", "cache", s.cache.Name(), "error", err.Error())
		} else if ok {
			outcome := models.Succeeded(result)
			outcome.Cached = true
			return outcome
		}
	}

	result, err := s.compute(sample)
	if err != nil {
		s.logger.Error("Prediction failed", err, "model_version", s.artifact.Meta.Version)
		return models.PredictionFailed(
			errors.ComputationFailure("prediction failed", err).WithOperation("Recommend"),
			err.Error(),
		)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.logger.Warn("Result cache write failed", "cache", s.cache.Name(), "error", err.Error())
		}
	}
	return models.Succeeded(result)
}

// compute runs inference then scoring
func (s *predictionServiceImpl) compute(sample models.SoilSample) (result models.PredictionResult, err error) {
	predictions, err := s.artifact.Engine().Predict(sample)
	if err != nil {
		return result, err
	}

	score := s.scoring.SoilHealthScore(sample.Nitrogen, sample.Phosphorous, sample.Potassium, sample.PH)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return result, fmt.Errorf("soil health score is not finite")
	}

	return models.PredictionResult{
		Predictions:               predictions,
		SoilHealthScore:           score,
		AdditionalRecommendations: s.scoring.RecommendationsFor(score, ruleInput(score, sample)),
	}, nil
}

// Breakdown returns the per-nutrient components of the soil health score
func (s *predictionServiceImpl) Breakdown(sample models.SoilSample) scoring.ScoreBreakdown {
	return s.scoring.Breakdown(sample.Nitrogen, sample.Phosphorous, sample.Potassium, sample.PH)
}

// ModelInfo reports the loaded artifact metadata
func (s *predictionServiceImpl) ModelInfo() (artifact.Meta, bool) {
	if s.artifact == nil {
		return artifact.Meta{}, false
	}
	return s.artifact.Meta, true
}

func (s *predictionServiceImpl) modelVersion() string {
	if s.artifact == nil {
		return ""
	}
	return s.artifact.Meta.Version
}

func ruleInput(score float64, sample models.SoilSample) scoring.RuleInput {
	return scoring.RuleInput{
		Score:       score,
		Nitrogen:    sample.Nitrogen,
		Phosphorous: sample.Phosphorous,
		Potassium:   sample.Potassium,
		Temperature: sample.Temperature,
		Humidity:    sample.Humidity,
		PH:          sample.PH,
		Rainfall:    sample.Rainfall,
	}
}
