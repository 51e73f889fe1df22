package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilfusion/cropadvisor/internal/api"
	"github.com/soilfusion/cropadvisor/internal/models"
)

// rainfallArtifact ranks rice above maize above chickpea as rainfall rises
const rainfallArtifact = `{
  "version": "cli-test",
  "kind": "softmax",
  "feature_names": ["N", "P", "K", "temperature", "humidity", "ph", "rainfall"],
  "classes": ["rice", "maize", "chickpea"],
  "scaler": {"mean": [0, 0, 0, 0, 0, 0, 100], "scale": [1, 1, 1, 1, 1, 1, 50]},
  "softmax": {
    "weights": [[0, 0, 0, 0, 0, 0, 1], [0, 0, 0, 0, 0, 0, 0], [0, 0, 0, 0, 0, 0, -1]],
    "intercepts": [0, 0, 0]
  }
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run(context.Background(), append([]string{"cropctl"}, args...))
	return stdout.String(), err
}

var idealFlags = []string{
	"--nitrogen", "80", "--phosphorous", "30", "--potassium", "110",
	"--temperature", "25", "--humidity", "80", "--ph", "6.75", "--rainfall", "200",
}

func TestPredictCommand(t *testing.T) {
	model := writeTemp(t, "model.json", rainfallArtifact)

	out, err := run(t, append([]string{"--model", model, "predict", "--explain"}, idealFlags...)...)
	require.NoError(t, err)

	var resp api.PredictionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"rice", "maize", "chickpea"}, resp.RecommendedCrops)
	assert.Equal(t, 100.0, resp.SoilHealthScore)
	require.NotNil(t, resp.Breakdown)
	assert.Equal(t, 100.0, resp.Breakdown.Nitrogen)
}

func TestPredictCommandWithoutModel(t *testing.T) {
	out, err := run(t, append([]string{"--model", filepath.Join(t.TempDir(), "none.json"), "predict"}, idealFlags...)...)
	require.NoError(t, err)

	var resp api.PredictionResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, []string{models.LabelModelNotTrained}, resp.RecommendedCrops)
	assert.Equal(t, models.AdvisoryModelNotTrained, resp.AdditionalRecommendations)
}

func TestPredictCommandRequiresAllReadings(t *testing.T) {
	model := writeTemp(t, "model.json", rainfallArtifact)
	_, err := run(t, "--model", model, "predict", "--nitrogen", "80")
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	model := writeTemp(t, "model.json", rainfallArtifact)
	input := writeTemp(t, "samples.csv", strings.Join([]string{
		"N,P,K,temperature,humidity,ph,rainfall,label",
		"80,30,110,25,80,6.75,200,rice",
		"10,5,10,30,20,5.5,20,chickpea",
	}, "\n"))

	out, err := run(t, "--model", model, "batch", input)
	require.NoError(t, err)

	var lines []api.PredictionResponse
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var resp api.PredictionResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		lines = append(lines, resp)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "rice", lines[0].RecommendedCrops[0])
	assert.Equal(t, "chickpea", lines[1].RecommendedCrops[0])
	assert.Contains(t, lines[1].AdditionalRecommendations, "Consider adding lime")
}

func TestBatchCommandWritesOutputFile(t *testing.T) {
	model := writeTemp(t, "model.json", rainfallArtifact)
	input := writeTemp(t, "samples.csv", "nitrogen,phosphorous,potassium,temperature,humidity,ph,rainfall\n80,30,110,25,80,6.75,200\n")
	output := filepath.Join(t.TempDir(), "out.jsonl")

	stdout, err := run(t, "--model", model, "batch", "--output", output, input)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"status":"ok"`)
}

func TestInspectCommand(t *testing.T) {
	model := writeTemp(t, "model.json", rainfallArtifact)

	out, err := run(t, "--model", model, "--format", "yaml", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "version: cli-test")
	assert.Contains(t, out, "kind: softmax")

	_, err = run(t, "--model", filepath.Join(t.TempDir(), "none.json"), "inspect")
	assert.ErrorContains(t, err, "no model artifact loaded")
}

func TestParseSamplesCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{name: "long header", input: "nitrogen,phosphorus,potassium,temperature,humidity,ph,rainfall\n1,2,3,4,5,6,7\n", want: 1},
		{name: "reordered columns", input: "rainfall,ph,humidity,temperature,K,P,N\n7,6,5,4,3,2,1\n8,6,5,4,3,2,1\n", want: 2},
		{name: "empty", input: "", wantErr: "empty"},
		{name: "header only", input: "N,P,K,temperature,humidity,ph,rainfall\n", wantErr: "no samples"},
		{name: "missing column", input: "N,P,K,temperature,humidity,ph\n1,2,3,4,5,6\n", wantErr: `missing column "rainfall"`},
		{name: "bad number", input: "N,P,K,temperature,humidity,ph,rainfall\n1,2,x,4,5,6,7\n", wantErr: "on line 2"},
		{name: "not finite", input: "N,P,K,temperature,humidity,ph,rainfall\n1,2,3,4,5,NaN,7\n", wantErr: "line 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples, err := parseSamplesCSV(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, samples, tt.want)
		})
	}

	samples, err := parseSamplesCSV(strings.NewReader("rainfall,ph,humidity,temperature,K,P,N\n7,6,5,4,3,2,1\n"))
	require.NoError(t, err)
	assert.Equal(t, models.SoilSample{
		Nitrogen: 1, Phosphorous: 2, Potassium: 3, Temperature: 4, Humidity: 5, PH: 6, Rainfall: 7,
	}, samples[0])
}
