package services

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/repository"
)

// historyServiceImpl implements HistoryService
type historyServiceImpl struct {
	repos *repository.Repositories
}

func newHistoryService(repos *repository.Repositories) HistoryService {
	return &historyServiceImpl{repos: repos}
}

func (s *historyServiceImpl) Enabled() bool {
	return s.repos != nil
}

// Get retrieves one prediction. Disabled history and malformed IDs read as not found.
func (s *historyServiceImpl) Get(ctx context.Context, id string) (*repository.PredictionRecord, error) {
	if !s.Enabled() {
		return nil, errors.NotFound("prediction history is disabled", nil).WithOperation("History.Get")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.NotFound("prediction not found", err).WithOperation("History.Get")
	}

	rec, err := s.repos.Prediction.GetByID(ctx, parsed)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, errors.NotFound("prediction not found", err).WithOperation("History.Get")
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to get prediction", err).WithOperation("History.Get")
	}
	return rec, nil
}

// List returns a page of predictions, newest first
func (s *historyServiceImpl) List(ctx context.Context, filters repository.PredictionFilters) (*HistoryPage, error) {
	if !s.Enabled() {
		return nil, errors.NotFound("prediction history is disabled", nil).WithOperation("History.List")
	}

	records, err := s.repos.Prediction.List(ctx, filters)
	if err != nil {
		return nil, errors.DatabaseError("failed to list predictions", err).WithOperation("History.List")
	}
	total, err := s.repos.Prediction.Count(ctx, filters)
	if err != nil {
		return nil, errors.DatabaseError("failed to count predictions", err).WithOperation("History.List")
	}
	limit, offset := filters.Page()
	return &HistoryPage{
		Records: records,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}
