package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/inference"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/internal/models"
)

func leaf(v ...float64) inference.Node {
	return inference.Node{Left: -1, Right: -1, Value: v}
}

// forestDoc splits on rainfall (feature 6) after standardisation
func forestDoc() Document {
	return Document{
		Version:      "2024.06",
		Kind:         KindRandomForest,
		FeatureNames: append([]string(nil), inference.FeatureOrder...),
		Classes:      []string{"chickpea", "maize", "rice"},
		Scaler: ScalerDoc{
			Mean:  []float64{50, 50, 50, 25, 70, 6.5, 100},
			Scale: []float64{30, 30, 50, 5, 20, 0.8, 50},
		},
		Forest: &ForestDoc{Trees: []inference.Tree{
			{Nodes: []inference.Node{
				{Feature: 6, Threshold: 0, Left: 1, Right: 2},
				leaf(6, 4, 0),
				leaf(0, 2, 8),
			}},
			{Nodes: []inference.Node{
				{Feature: 6, Threshold: 1, Left: 1, Right: 2},
				leaf(1, 1, 0),
				leaf(0, 0, 1),
			}},
		}},
	}
}

func softmaxDoc() Document {
	doc := forestDoc()
	doc.Kind = KindSoftmax
	doc.Forest = nil
	doc.Softmax = &SoftmaxDoc{
		Weights: [][]float64{
			{0, 0, 0, 0, 0, 0, -1},
			{0, 0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0, 1},
		},
		Intercepts: []float64{0, 0, 0},
	}
	return doc
}

var wetSample = models.SoilSample{Nitrogen: 80, Phosphorous: 40, Potassium: 40, Temperature: 24, Humidity: 82, PH: 6.4, Rainfall: 220}

func writeJSON(t *testing.T, name string, doc Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestLoadJSONForest(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := writeJSON(t, "artifact.json", forestDoc())

	a, err := Load(context.Background(), p, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	assert.Equal(t, "2024.06", a.Meta.Version)
	assert.Equal(t, KindRandomForest, a.Meta.Kind)
	assert.Equal(t, p, a.Meta.Source)
	assert.Equal(t, fixed, a.Meta.LoadedAt)
	assert.Equal(t, []string{"chickpea", "maize", "rice"}, a.Meta.Classes)

	preds, err := a.Engine().Predict(wetSample)
	require.NoError(t, err)
	require.Len(t, preds, 3)
	// rainfall z = 2.4: right leaf in both trees -> rice 0.9, maize 0.1
	assert.Equal(t, "rice", preds[0].Crop)
	assert.InDelta(t, 0.9, preds[0].Confidence, 1e-12)
	assert.Equal(t, "maize", preds[1].Crop)
	assert.Equal(t, "chickpea", preds[2].Crop)
}

func TestLoadYAMLSoftmax(t *testing.T) {
	data, err := yaml.Marshal(softmaxDoc())
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "artifact.yaml")
	require.NoError(t, os.WriteFile(p, data, 0o600))

	a, err := Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, KindSoftmax, a.Meta.Kind)

	preds, err := a.Engine().Predict(wetSample)
	require.NoError(t, err)
	assert.Equal(t, "rice", preds[0].Crop)
}

func TestLoadZstdCompressed(t *testing.T) {
	data, err := json.Marshal(forestDoc())
	require.NoError(t, err)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(data, nil)
	require.NoError(t, enc.Close())

	p := filepath.Join(t.TempDir(), "artifact.json.zst")
	require.NoError(t, os.WriteFile(p, compressed, 0o600))

	a, err := Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "2024.06", a.Meta.Version)
}

func TestLoadDerivesVersionFromContent(t *testing.T) {
	doc := forestDoc()
	doc.Version = ""
	p := writeJSON(t, "artifact.json", doc)

	a, err := Load(context.Background(), p)
	require.NoError(t, err)
	assert.Regexp(t, `^sha256:[0-9a-f]{12}$`, a.Meta.Version)

	again, err := Load(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a.Meta.Version, again.Meta.Version)
}

func TestLoadRejectsInvalidArtifacts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"feature order", func(d *Document) { d.FeatureNames[0], d.FeatureNames[1] = d.FeatureNames[1], d.FeatureNames[0] }},
		{"no classes", func(d *Document) { d.Classes = nil }},
		{"short scaler", func(d *Document) { d.Scaler.Mean = d.Scaler.Mean[:6]; d.Scaler.Scale = d.Scaler.Scale[:6] }},
		{"unknown kind", func(d *Document) { d.Kind = "xgboost" }},
		{"missing forest", func(d *Document) { d.Forest = nil }},
		{"leaf width", func(d *Document) { d.Classes = d.Classes[:2] }},
		{"softmax width", func(d *Document) {
			d.Kind = KindSoftmax
			d.Softmax = &SoftmaxDoc{Weights: [][]float64{{1}, {1}, {1}}, Intercepts: []float64{0, 0, 0}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := forestDoc()
			tt.mutate(&doc)
			_, err := Load(context.Background(), writeJSON(t, "artifact.json", doc))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrCodeArtifactError))
		})
	}
}

func TestLoadMissingAndMalformed(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeArtifactError))

	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o600))
	_, err = Load(context.Background(), p)
	assert.ErrorContains(t, err, "parse json")
}

func TestLoadOptional(t *testing.T) {
	log := logger.NewNopLogger()
	assert.Nil(t, LoadOptional(context.Background(), filepath.Join(t.TempDir(), "missing.json"), log))
	assert.NotNil(t, LoadOptional(context.Background(), writeJSON(t, "a.json", forestDoc()), log))
}

type fakeS3 struct {
	objects map[string][]byte
	calls   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestLoadFromS3(t *testing.T) {
	data, err := json.Marshal(forestDoc())
	require.NoError(t, err)
	client := &fakeS3{objects: map[string][]byte{"models/crop/v3.json": data}}

	a, err := Load(context.Background(), "s3://models/crop/v3.json", WithS3Client(client))
	require.NoError(t, err)
	assert.Equal(t, "s3://models/crop/v3.json", a.Meta.Source)
	assert.Equal(t, 1, client.calls)

	_, err = Load(context.Background(), "s3://models/crop/missing.json", WithS3Client(client))
	assert.ErrorContains(t, err, "NoSuchKey")
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://bucket/path/to/model.json")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "path/to/model.json", key)

	for _, bad := range []string{"bucket/key", "s3://bucket", "s3:///key", "s3://bucket/"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}
