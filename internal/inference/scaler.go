package inference

import "fmt"

// Scaler maps a raw feature vector into the space the classifier was fit in
type Scaler interface {
	Transform(x []float64) ([]float64, error)
}

// StandardScaler standardises each feature with training-time statistics:
// z = (x - mean) / scale
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// NewStandardScaler validates and builds a scaler. A zero scale marks a
// constant training feature and is treated as 1.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("scaler mean is empty")
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler has %d means but %d scales", len(mean), len(scale))
	}
	s := &StandardScaler{
		Mean:  append([]float64(nil), mean...),
		Scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v < 0 {
			return nil, fmt.Errorf("scaler scale[%d] is negative: %g", i, v)
		}
		if v == 0 {
			v = 1
		}
		s.Scale[i] = v
	}
	return s, nil
}

// NumFeatures returns the expected vector length
func (s *StandardScaler) NumFeatures() int {
	return len(s.Mean)
}

// Transform standardises x into a new slice
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("X has %d features, but StandardScaler is expecting %d features as input", len(x), len(s.Mean))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
