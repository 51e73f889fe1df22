package inference

// Classifier estimates a probability for every known class. PredictProba
// returns one value per entry of Classes, in the same (native) order.
type Classifier interface {
	Classes() []string
	NumFeatures() int
	PredictProba(x []float64) ([]float64, error)
}
