package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soilfusion/cropadvisor/internal/models"
)

// columnAliases maps accepted header names to the canonical field. The short
// N/P/K names match the training data set.
var columnAliases = map[string]string{
	"nitrogen":    "nitrogen",
	"n":           "nitrogen",
	"phosphorous": "phosphorous",
	"phosphorus":  "phosphorous",
	"p":           "phosphorous",
	"potassium":   "potassium",
	"k":           "potassium",
	"temperature": "temperature",
	"humidity":    "humidity",
	"ph":          "ph",
	"rainfall":    "rainfall",
}

// parseSamplesCSV reads samples from a CSV file with a header row. Extra
// columns (a label, for instance) are ignored.
func parseSamplesCSV(r io.Reader) ([]models.SoilSample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	index := make(map[string]int, len(measurementFlags))
	for i, name := range records[0] {
		if field, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
			index[field] = i
		}
	}
	for _, field := range measurementFlags {
		if _, ok := index[field]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", field)
		}
	}

	samples := make([]models.SoilSample, 0, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		values := make(map[string]float64, len(measurementFlags))
		for _, field := range measurementFlags {
			raw := strings.TrimSpace(record[index[field]])
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q on line %d", field, raw, line)
			}
			values[field] = v
		}

		sample := models.SoilSample{
			Nitrogen:    values["nitrogen"],
			Phosphorous: values["phosphorous"],
			Potassium:   values["potassium"],
			Temperature: values["temperature"],
			Humidity:    values["humidity"],
			PH:          values["ph"],
			Rainfall:    values["rainfall"],
		}
		if err := sample.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, sample)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("CSV file has no samples")
	}
	return samples, nil
}
