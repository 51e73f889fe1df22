// Package cache stores successful prediction results for repeated samples.
package cache

import (
	"context"
	"strconv"
	"strings"

	"github.com/soilfusion/cropadvisor/internal/models"
)

const keyPrefix = "cropadvisor:predict:"

// ResultCache is a TTL key/value store for prediction results. A miss is
// reported as ok == false with a nil error.
type ResultCache interface {
	Name() string
	Get(ctx context.Context, key string) (result models.PredictionResult, ok bool, err error)
	Set(ctx context.Context, key string, result models.PredictionResult) error
	Close() error
}

// builtinRules stands in for an empty rules fingerprint
const builtinRules = "builtin"

// Key builds the canonical cache key for a sample scored by a given model
// version and advisory rule set. Fields are joined in feature order using the
// shortest exact float representation.
func Key(sample models.SoilSample, modelVersion, rulesFingerprint string) string {
	if rulesFingerprint == "" {
		rulesFingerprint = builtinRules
	}
	fields := []float64{
		sample.Nitrogen,
		sample.Phosphorous,
		sample.Potassium,
		sample.Temperature,
		sample.Humidity,
		sample.PH,
		sample.Rainfall,
	}
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(modelVersion)
	b.WriteByte(':')
	b.WriteString(rulesFingerprint)
	b.WriteByte(':')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return b.String()
}

func cloneResult(r models.PredictionResult) models.PredictionResult {
	r.Predictions = append([]models.CropPrediction(nil), r.Predictions...)
	return r
}
