package inference

import (
	"fmt"
	"math"

	"github.com/soilfusion/cropadvisor/internal/models"
)

// DefaultTopK is the number of crops returned per prediction
const DefaultTopK = 3

// Engine turns a soil sample into ranked crop predictions
type Engine struct {
	scaler     Scaler
	classifier Classifier
	k          int
}

// NewEngine pairs a fitted scaler with a fitted classifier
func NewEngine(scaler Scaler, classifier Classifier) (*Engine, error) {
	if scaler == nil || classifier == nil {
		return nil, fmt.Errorf("engine needs both a scaler and a classifier")
	}
	return &Engine{scaler: scaler, classifier: classifier, k: DefaultTopK}, nil
}

// Classes returns the labels the classifier can predict
func (e *Engine) Classes() []string {
	return e.classifier.Classes()
}

// Predict runs assemble, scale, predict_proba and top-k for one sample
func (e *Engine) Predict(sample models.SoilSample) ([]models.CropPrediction, error) {
	x, err := e.scaler.Transform(FeatureVector(sample))
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}

	probs, err := e.classifier.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("predict probabilities: %w", err)
	}

	classes := e.classifier.Classes()
	if len(probs) != len(classes) {
		return nil, fmt.Errorf("classifier returned %d probabilities for %d classes", len(probs), len(classes))
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("probability for class %q is not finite", classes[i])
		}
	}

	top := TopK(probs, e.k)
	out := make([]models.CropPrediction, len(top))
	for i, idx := range top {
		out[i] = models.CropPrediction{Crop: classes[idx], Confidence: probs[idx]}
	}
	return out, nil
}
