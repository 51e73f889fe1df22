package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// PredictionRepository defines the interface for prediction history access
type PredictionRepository interface {
	Store(ctx context.Context, record *PredictionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*PredictionRecord, error)
	List(ctx context.Context, filters PredictionFilters) ([]PredictionRecord, error)
	Count(ctx context.Context, filters PredictionFilters) (int, error)
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories groups all repository interfaces
type Repositories struct {
	Prediction PredictionRepository
	Tx         TransactionManager
}

// PredictionFilters narrows a history listing
type PredictionFilters struct {
	Crop   string
	Status string
	Limit  int
	Offset int
}
