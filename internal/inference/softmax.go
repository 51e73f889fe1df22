package inference

import (
	"fmt"
	"math"
)

// SoftmaxRegression is a multinomial logistic model: one weight row and one
// intercept per class.
type SoftmaxRegression struct {
	classes    []string
	weights    [][]float64
	intercepts []float64
}

// NewSoftmaxRegression checks that weights form a classes x features matrix
func NewSoftmaxRegression(classes []string, weights [][]float64, intercepts []float64) (*SoftmaxRegression, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("softmax model has no classes")
	}
	if len(weights) != len(classes) {
		return nil, fmt.Errorf("softmax model has %d weight rows for %d classes", len(weights), len(classes))
	}
	if len(intercepts) != len(classes) {
		return nil, fmt.Errorf("softmax model has %d intercepts for %d classes", len(intercepts), len(classes))
	}
	width := len(weights[0])
	if width == 0 {
		return nil, fmt.Errorf("softmax model has empty weight rows")
	}
	rows := make([][]float64, len(weights))
	for i, row := range weights {
		if len(row) != width {
			return nil, fmt.Errorf("softmax weight row %d has %d columns, want %d", i, len(row), width)
		}
		rows[i] = append([]float64(nil), row...)
	}
	return &SoftmaxRegression{
		classes:    append([]string(nil), classes...),
		weights:    rows,
		intercepts: append([]float64(nil), intercepts...),
	}, nil
}

// Classes returns the class labels in native order
func (m *SoftmaxRegression) Classes() []string {
	return m.classes
}

// NumFeatures returns the expected input length
func (m *SoftmaxRegression) NumFeatures() int {
	return len(m.weights[0])
}

// PredictProba computes softmax(Wx + b), shifted by the max logit so large
// scores do not overflow.
func (m *SoftmaxRegression) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.NumFeatures() {
		return nil, fmt.Errorf("X has %d features, but LogisticRegression is expecting %d features as input", len(x), m.NumFeatures())
	}

	logits := make([]float64, len(m.classes))
	maxLogit := math.Inf(-1)
	for c, row := range m.weights {
		z := m.intercepts[c]
		for i, w := range row {
			z += w * x[i]
		}
		if math.IsNaN(z) {
			z = math.Inf(-1)
		}
		logits[c] = z
		if z > maxLogit {
			maxLogit = z
		}
	}

	if math.IsInf(maxLogit, 0) {
		return saturated(logits, maxLogit), nil
	}

	var sum float64
	for c, z := range logits {
		e := math.Exp(z - maxLogit)
		logits[c] = e
		sum += e
	}
	for c := range logits {
		logits[c] /= sum
	}
	return logits, nil
}

// saturated handles logits that overflowed: the mass is split evenly between
// the classes tied at +Inf, or across every class when no logit is usable.
func saturated(logits []float64, maxLogit float64) []float64 {
	hits := 0
	for _, z := range logits {
		if math.IsInf(maxLogit, 1) && math.IsInf(z, 1) {
			hits++
		}
	}
	for c, z := range logits {
		switch {
		case hits == 0:
			logits[c] = 1 / float64(len(logits))
		case math.IsInf(z, 1):
			logits[c] = 1 / float64(hits)
		default:
			logits[c] = 0
		}
	}
	return logits
}
