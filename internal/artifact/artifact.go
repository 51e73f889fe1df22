// Package artifact loads the trained crop model (scaler + classifier) from a
// local file or S3 and validates it before it is handed to the services.
package artifact

import (
	"fmt"
	"slices"
	"time"

	"github.com/soilfusion/cropadvisor/internal/inference"
)

// Model kinds understood by the loader
const (
	KindRandomForest = "random_forest"
	KindSoftmax      = "softmax"
)

// Meta describes a loaded artifact
type Meta struct {
	Version      string    `json:"version"`
	Kind         string    `json:"kind"`
	Classes      []string  `json:"classes"`
	FeatureNames []string  `json:"feature_names"`
	Source       string    `json:"source"`
	LoadedAt     time.Time `json:"loaded_at"`
	TrainedAt    string    `json:"trained_at,omitempty"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
}

// Artifact is an immutable fitted model ready for inference
type Artifact struct {
	Classifier inference.Classifier
	Scaler     inference.Scaler
	Meta       Meta

	engine *inference.Engine
}

// New assembles an artifact from already fitted parts
func New(meta Meta, scaler inference.Scaler, classifier inference.Classifier) (*Artifact, error) {
	engine, err := inference.NewEngine(scaler, classifier)
	if err != nil {
		return nil, err
	}
	if meta.Classes == nil {
		meta.Classes = classifier.Classes()
	}
	if meta.FeatureNames == nil {
		meta.FeatureNames = inference.FeatureOrder
	}
	return &Artifact{
		Classifier: classifier,
		Scaler:     scaler,
		Meta:       meta,
		engine:     engine,
	}, nil
}

// Engine returns the inference engine bound to this artifact
func (a *Artifact) Engine() *inference.Engine {
	return a.engine
}

// Document is the serialised artifact as written by the offline trainer
type Document struct {
	Version      string      `json:"version" yaml:"version"`
	Kind         string      `json:"kind" yaml:"kind"`
	FeatureNames []string    `json:"feature_names" yaml:"feature_names"`
	Classes      []string    `json:"classes" yaml:"classes"`
	TrainedAt    string      `json:"trained_at,omitempty" yaml:"trained_at,omitempty"`
	Accuracy     *float64    `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	Scaler       ScalerDoc   `json:"scaler" yaml:"scaler"`
	Forest       *ForestDoc  `json:"forest,omitempty" yaml:"forest,omitempty"`
	Softmax      *SoftmaxDoc `json:"softmax,omitempty" yaml:"softmax,omitempty"`
}

// ScalerDoc holds StandardScaler statistics
type ScalerDoc struct {
	Mean  []float64 `json:"mean" yaml:"mean"`
	Scale []float64 `json:"scale" yaml:"scale"`
}

// ForestDoc holds the trees of a random forest
type ForestDoc struct {
	Trees []inference.Tree `json:"trees" yaml:"trees"`
}

// SoftmaxDoc holds a multinomial linear model
type SoftmaxDoc struct {
	Weights    [][]float64 `json:"weights" yaml:"weights"`
	Intercepts []float64   `json:"intercepts" yaml:"intercepts"`
}

// Build validates a document and turns it into an artifact
func Build(doc Document, source string, loadedAt time.Time) (*Artifact, error) {
	if !slices.Equal(doc.FeatureNames, inference.FeatureOrder) {
		return nil, fmt.Errorf("feature_names %v do not match %v", doc.FeatureNames, inference.FeatureOrder)
	}
	if len(doc.Classes) == 0 {
		return nil, fmt.Errorf("artifact lists no classes")
	}

	scaler, err := inference.NewStandardScaler(doc.Scaler.Mean, doc.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	if scaler.NumFeatures() != inference.NumFeatures {
		return nil, fmt.Errorf("scaler covers %d features, want %d", scaler.NumFeatures(), inference.NumFeatures)
	}

	var classifier inference.Classifier
	switch doc.Kind {
	case KindRandomForest:
		if doc.Forest == nil {
			return nil, fmt.Errorf("kind %s without forest section", doc.Kind)
		}
		classifier, err = inference.NewRandomForest(doc.Classes, inference.NumFeatures, doc.Forest.Trees)
	case KindSoftmax:
		if doc.Softmax == nil {
			return nil, fmt.Errorf("kind %s without softmax section", doc.Kind)
		}
		classifier, err = inference.NewSoftmaxRegression(doc.Classes, doc.Softmax.Weights, doc.Softmax.Intercepts)
		if err == nil && classifier.NumFeatures() != inference.NumFeatures {
			err = fmt.Errorf("softmax weights cover %d features, want %d", classifier.NumFeatures(), inference.NumFeatures)
		}
	default:
		return nil, fmt.Errorf("unknown model kind %q", doc.Kind)
	}
	if err != nil {
		return nil, err
	}

	return New(Meta{
		Version:      doc.Version,
		Kind:         doc.Kind,
		Classes:      append([]string(nil), doc.Classes...),
		FeatureNames: append([]string(nil), doc.FeatureNames...),
		Source:       source,
		LoadedAt:     loadedAt,
		TrainedAt:    doc.TrainedAt,
		Accuracy:     doc.Accuracy,
	}, scaler, classifier)
}
