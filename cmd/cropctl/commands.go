package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/soilfusion/cropadvisor/internal/api"
	"github.com/soilfusion/cropadvisor/internal/models"
)

var measurementFlags = []string{"nitrogen", "phosphorous", "potassium", "temperature", "humidity", "ph", "rainfall"}

var measurementUsage = map[string]string{
	"nitrogen":    "Nitrogen content (kg/ha)",
	"phosphorous": "Phosphorous content (kg/ha)",
	"potassium":   "Potassium content (kg/ha)",
	"temperature": "Temperature (°C)",
	"humidity":    "Relative humidity (%)",
	"ph":          "Soil pH",
	"rainfall":    "Rainfall (mm)",
}

func predictCmd(s *cliApp) *cli.Command {
	flags := make([]cli.Flag, 0, len(measurementFlags)+1)
	for _, name := range measurementFlags {
		flags = append(flags, &cli.FloatFlag{
			Name:     name,
			Usage:    measurementUsage[name],
			Required: true,
		})
	}
	flags = append(flags, &cli.BoolFlag{
		Name:  "explain",
		Usage: "Include the per-reading soil health breakdown",
	})

	return &cli.Command{
		Name:    "predict",
		Aliases: []string{"p"},
		Usage:   "Recommend crops for one sample",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sample := models.SoilSample{
				Nitrogen:    cmd.Float("nitrogen"),
				Phosphorous: cmd.Float("phosphorous"),
				Potassium:   cmd.Float("potassium"),
				Temperature: cmd.Float("temperature"),
				Humidity:    cmd.Float("humidity"),
				PH:          cmd.Float("ph"),
				Rainfall:    cmd.Float("rainfall"),
			}
			if err := sample.Validate(); err != nil {
				return fmt.Errorf("invalid sample: %w", err)
			}

			svc := s.app.Services.Prediction
			outcome := svc.Recommend(ctx, sample)
			resp := describe(outcome)
			if cmd.Bool("explain") {
				breakdown := svc.Breakdown(sample)
				resp.Breakdown = &breakdown
			}
			return s.encode(cmd.Root().Writer, resp)
		},
	}
}

func batchCmd(s *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Aliases:   []string{"b"},
		Usage:     "Recommend crops for every row of a CSV file, one JSON line per row",
		ArgsUsage: "<file.csv|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Usage: "Write results to this file instead of stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			in, closeIn, err := openInput(cmd.Args().First())
			if err != nil {
				return err
			}
			defer closeIn()

			samples, err := parseSamplesCSV(in)
			if err != nil {
				return err
			}

			outcomes, err := s.app.Services.Prediction.RecommendBatch(ctx, samples)
			if err != nil {
				return err
			}

			out := cmd.Root().Writer
			if path := cmd.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			enc := json.NewEncoder(out)
			degraded := 0
			for _, outcome := range outcomes {
				if !outcome.OK() {
					degraded++
				}
				if err := enc.Encode(describe(outcome)); err != nil {
					return fmt.Errorf("failed to write result: %w", err)
				}
			}
			s.log.Info("Batch complete", "samples", len(samples), "degraded", degraded)
			return nil
		},
	}
}

func inspectCmd(s *cliApp) *cli.Command {
	return &cli.Command{
		Name:    "inspect",
		Aliases: []string{"i"},
		Usage:   "Show metadata of the loaded model artifact",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			meta, ok := s.app.Services.Prediction.ModelInfo()
			if !ok {
				return errors.New("no model artifact loaded")
			}
			return s.encode(cmd.Root().Writer, meta)
		},
	}
}

func describe(outcome models.Outcome) api.PredictionResponse {
	return api.PredictionResponse{
		RecommendedCrops:          outcome.Result.Crops(),
		ConfidenceScores:          outcome.Result.Confidences(),
		SoilHealthScore:           outcome.Result.SoilHealthScore,
		AdditionalRecommendations: outcome.Result.AdditionalRecommendations,
		Status:                    outcome.Kind.String(),
		ID:                        outcome.ID,
	}
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}
