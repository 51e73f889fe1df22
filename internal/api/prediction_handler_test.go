package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilfusion/cropadvisor/internal/artifact"
	"github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/inference"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/internal/models"
	"github.com/soilfusion/cropadvisor/internal/scoring"
	"github.com/soilfusion/cropadvisor/internal/services"
	"github.com/soilfusion/cropadvisor/pkg/config"
)

const idealBody = `{"nitrogen":80,"phosphorous":30,"potassium":110,"temperature":25,"humidity":80,"ph":6.75,"rainfall":200}`

// Mock prediction service for testing
type mockPredictionService struct {
	outcome  models.Outcome
	batchErr error
	samples  []models.SoilSample
	meta     *artifact.Meta
}

func (m *mockPredictionService) Recommend(ctx context.Context, sample models.SoilSample) models.Outcome {
	m.samples = append(m.samples, sample)
	return m.outcome
}

func (m *mockPredictionService) RecommendBatch(ctx context.Context, samples []models.SoilSample) ([]models.Outcome, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	m.samples = append(m.samples, samples...)
	out := make([]models.Outcome, len(samples))
	for i := range samples {
		out[i] = m.outcome
	}
	return out, nil
}

func (m *mockPredictionService) Breakdown(sample models.SoilSample) scoring.ScoreBreakdown {
	return scoring.NewScoringEngine().Breakdown(sample.Nitrogen, sample.Phosphorous, sample.Potassium, sample.PH)
}

func (m *mockPredictionService) ModelInfo() (artifact.Meta, bool) {
	if m.meta == nil {
		return artifact.Meta{}, false
	}
	return *m.meta, true
}

func successOutcome() models.Outcome {
	out := models.Succeeded(models.PredictionResult{
		Predictions: []models.CropPrediction{
			{Crop: "rice", Confidence: 0.7},
			{Crop: "maize", Confidence: 0.2},
			{Crop: "chickpea", Confidence: 0.1},
		},
		SoilHealthScore:           100,
		AdditionalRecommendations: scoring.AdviceGood,
	})
	out.ID = "3f1c7d0a-6c55-4c44-9d7b-2f0f0b8e6e11"
	return out
}

func newTestRouter(pred services.PredictionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewPredictionHandler(pred, 3)
	router.POST("/predict", handler.Predict)
	router.POST("/predict/batch", handler.PredictBatch)
	router.GET("/model", handler.GetModel)
	return router
}

func postJSON(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPredict(t *testing.T) {
	svc := &mockPredictionService{outcome: successOutcome()}
	router := newTestRouter(svc)

	w := postJSON(router, "/predict", idealBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ok", w.Header().Get(HeaderPredictionStatus))
	assert.Equal(t, "3f1c7d0a-6c55-4c44-9d7b-2f0f0b8e6e11", w.Header().Get(HeaderPredictionID))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []interface{}{"rice", "maize", "chickpea"}, resp["recommended_crops"])
	assert.Equal(t, []interface{}{0.7, 0.2, 0.1}, resp["confidence_scores"])
	assert.EqualValues(t, 100, resp["soil_health_score"])
	assert.Equal(t, scoring.AdviceGood, resp["additional_recommendations"])
	assert.NotContains(t, resp, "breakdown")
	assert.NotContains(t, resp, "status")

	require.Len(t, svc.samples, 1)
	assert.Equal(t, models.SoilSample{
		Nitrogen: 80, Phosphorous: 30, Potassium: 110,
		Temperature: 25, Humidity: 80, PH: 6.75, Rainfall: 200,
	}, svc.samples[0])
}

func TestPredictAcceptsNumericStrings(t *testing.T) {
	svc := &mockPredictionService{outcome: successOutcome()}
	router := newTestRouter(svc)

	body := `{"nitrogen":"80","phosphorous":30,"potassium":" 110 ","temperature":25,"humidity":80,"ph":"6.75","rainfall":200}`
	w := postJSON(router, "/predict", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, svc.samples, 1)
	assert.Equal(t, 80.0, svc.samples[0].Nitrogen)
	assert.Equal(t, 110.0, svc.samples[0].Potassium)
	assert.Equal(t, 6.75, svc.samples[0].PH)
}

func TestPredictExplain(t *testing.T) {
	router := newTestRouter(&mockPredictionService{outcome: successOutcome()})

	w := postJSON(router, "/predict?explain=true", idealBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Breakdown)
	assert.Equal(t, 100.0, resp.Breakdown.Total)
	assert.Equal(t, 100.0, resp.Breakdown.PH)
}

func TestPredictDegradedIsStill200(t *testing.T) {
	router := newTestRouter(&mockPredictionService{outcome: models.ModelNotTrained(nil)})

	w := postJSON(router, "/predict", idealBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "degraded", w.Header().Get(HeaderPredictionStatus))
	assert.Empty(t, w.Header().Get(HeaderPredictionID))

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{models.LabelModelNotTrained}, resp.RecommendedCrops)
	assert.Equal(t, []float64{0}, resp.ConfidenceScores)
	assert.Equal(t, 0.0, resp.SoilHealthScore)
	assert.Equal(t, models.AdvisoryModelNotTrained, resp.AdditionalRecommendations)
}

func TestPredictRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not JSON", `{"nitrogen":`},
		{"missing field", `{"nitrogen":80,"phosphorous":30,"potassium":110,"temperature":25,"humidity":80,"ph":6.75}`},
		{"null field", `{"nitrogen":null,"phosphorous":30,"potassium":110,"temperature":25,"humidity":80,"ph":6.75,"rainfall":200}`},
		{"non-numeric string", `{"nitrogen":"lots","phosphorous":30,"potassium":110,"temperature":25,"humidity":80,"ph":6.75,"rainfall":200}`},
		{"boolean", `{"nitrogen":true,"phosphorous":30,"potassium":110,"temperature":25,"humidity":80,"ph":6.75,"rainfall":200}`},
		{"NaN string", `{"nitrogen":"NaN","phosphorous":30,"potassium":110,"temperature":25,"humidity":80,"ph":6.75,"rainfall":200}`},
		{"infinite string", `{"nitrogen":80,"phosphorous":30,"potassium":110,"temperature":"inf","humidity":80,"ph":6.75,"rainfall":200}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPredictionService{outcome: successOutcome()}
			router := newTestRouter(svc)

			w := postJSON(router, "/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), errors.ErrCodeInvalidInput)
			assert.Empty(t, svc.samples, "service must not be called")
		})
	}
}

func TestPredictBatch(t *testing.T) {
	svc := &mockPredictionService{outcome: successOutcome()}
	router := newTestRouter(svc)

	body := `{"samples":[` + idealBody + `,` + strings.Replace(idealBody, `"ph":6.75`, `"ph":5.5`, 1) + `]}`
	w := postJSON(router, "/predict/batch?explain=1", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 0, resp.Degraded)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "ok", resp.Results[0].Status)
	assert.NotEmpty(t, resp.Results[0].ID)
	require.NotNil(t, resp.Results[1].Breakdown)
	assert.Less(t, resp.Results[1].Breakdown.PH, 100.0)

	require.Len(t, svc.samples, 2)
	assert.Equal(t, 5.5, svc.samples[1].PH)
}

func TestPredictBatchRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"samples":[]}`},
		{"missing samples", `{}`},
		{"over the limit", `{"samples":[` + strings.Repeat(idealBody+",", 3) + idealBody + `]}`},
		{"invalid item", `{"samples":[` + idealBody + `,{"nitrogen":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPredictionService{outcome: successOutcome()}
			w := postJSON(newTestRouter(svc), "/predict/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Empty(t, svc.samples)
		})
	}
}

func TestPredictBatchServiceError(t *testing.T) {
	svc := &mockPredictionService{batchErr: errors.ServiceError("batch cancelled", context.Canceled)}
	w := postJSON(newTestRouter(svc), "/predict/batch", `{"samples":[`+idealBody+`]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "batch cancelled")
	assert.NotContains(t, w.Body.String(), "context canceled")
}

func TestGetModel(t *testing.T) {
	router := newTestRouter(&mockPredictionService{})

	req := httptest.NewRequest("GET", "/model", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), errors.ErrCodeModelUnavailable)

	meta := artifact.Meta{Version: "v3", Kind: artifact.KindRandomForest, Classes: []string{"rice"}}
	router = newTestRouter(&mockPredictionService{meta: &meta})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/model", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got artifact.Meta
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "v3", got.Version)
	assert.Equal(t, artifact.KindRandomForest, got.Kind)
}

// rainfallModel ranks rice above maize above chickpea as rainfall rises
func rainfallModel(t *testing.T) *artifact.Artifact {
	t.Helper()
	mean := []float64{0, 0, 0, 0, 0, 0, 100}
	scale := []float64{1, 1, 1, 1, 1, 1, 50}
	scaler, err := inference.NewStandardScaler(mean, scale)
	require.NoError(t, err)

	weights := [][]float64{
		{0, 0, 0, 0, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, -1},
	}
	clf, err := inference.NewSoftmaxRegression([]string{"rice", "maize", "chickpea"}, weights, []float64{0, 0, 0})
	require.NoError(t, err)

	a, err := artifact.New(artifact.Meta{Version: "test", Kind: artifact.KindSoftmax}, scaler, clf)
	require.NoError(t, err)
	return a
}

func TestRoutesEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{MaxBatchSize: 10}
	svcs := services.NewServices(services.Deps{
		Artifact: rainfallModel(t),
		Logger:   logger.NewNopLogger(),
	})

	router := gin.New()
	SetupRoutes(router, svcs, cfg)

	w := postJSON(router, "/api/v1/predict", idealBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ok", w.Header().Get(HeaderPredictionStatus))

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"rice", "maize", "chickpea"}, resp.RecommendedCrops)
	assert.InDelta(t, 1.0, resp.ConfidenceScores[0]+resp.ConfidenceScores[1]+resp.ConfidenceScores[2], 1e-9)
	assert.Equal(t, 100.0, resp.SoilHealthScore)
	assert.Equal(t, scoring.AdviceGood, resp.AdditionalRecommendations)

	// History is off without a database
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/predictions", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/model", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"softmax"`)
}
