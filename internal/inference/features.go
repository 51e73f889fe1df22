package inference

import "github.com/soilfusion/cropadvisor/internal/models"

// FeatureOrder is the column order the model was trained with
var FeatureOrder = []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

// NumFeatures is the length of every feature vector
const NumFeatures = 7

// FeatureVector lays out a sample in FeatureOrder
func FeatureVector(s models.SoilSample) []float64 {
	return []float64{
		s.Nitrogen,
		s.Phosphorous,
		s.Potassium,
		s.Temperature,
		s.Humidity,
		s.PH,
		s.Rainfall,
	}
}
