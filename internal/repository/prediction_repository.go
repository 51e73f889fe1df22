package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// predictionRepository implements PredictionRepository
type predictionRepository struct {
	db dbExecutor
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db dbExecutor) PredictionRepository {
	return &predictionRepository{db: db}
}

const predictionColumns = `id, sample, result, top_crop, status, reason, model_version, cached, created_at`

// Store inserts a prediction record
func (r *predictionRepository) Store(ctx context.Context, rec *PredictionRecord) error {
	sampleJSON, err := json.Marshal(rec.Sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO predictions (` + predictionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, string(sampleJSON), string(resultJSON), rec.TopCrop, rec.Status,
		rec.Reason, rec.ModelVersion, rec.Cached, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// GetByID retrieves a prediction by ID
func (r *predictionRepository) GetByID(ctx context.Context, id uuid.UUID) (*PredictionRecord, error) {
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return rec, nil
}

// List retrieves predictions, newest first
func (r *predictionRepository) List(ctx context.Context, filters PredictionFilters) ([]PredictionRecord, error) {
	where, args := filters.where()
	limit, offset := filters.Page()

	query := fmt.Sprintf(`SELECT %s FROM predictions%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		predictionColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	records := []PredictionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return records, nil
}

// Count returns the number of predictions matching the filters
func (r *predictionRepository) Count(ctx context.Context, filters PredictionFilters) (int, error) {
	where, args := filters.where()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

func (f PredictionFilters) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Crop != "" {
		args = append(args, f.Crop)
		conds = append(conds, fmt.Sprintf("top_crop = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Page returns the effective limit and offset
func (f PredictionFilters) Page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*PredictionRecord, error) {
	var rec PredictionRecord
	var sampleJSON, resultJSON []byte

	err := row.Scan(&rec.ID, &sampleJSON, &resultJSON, &rec.TopCrop, &rec.Status,
		&rec.Reason, &rec.ModelVersion, &rec.Cached, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sampleJSON, &rec.Sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}
