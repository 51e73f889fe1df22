// Command cropctl runs crop recommendations from the command line using the
// same model artifact, advisory rules and history store as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/soilfusion/cropadvisor/internal/bootstrap"
	"github.com/soilfusion/cropadvisor/internal/logger"
	"github.com/soilfusion/cropadvisor/pkg/config"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var version = "v0.0.1-default"

// cliApp is the state shared by every subcommand once Before has run
type cliApp struct {
	app    *bootstrap.App
	log    logger.Logger
	format string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	state := &cliApp{}

	return &cli.Command{
		Name:            "cropctl",
		Version:         version,
		Usage:           "Crop recommendations from soil and weather measurements",
		HideHelpCommand: true,
		Writer:          stdout,
		ErrWriter:       stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "model",
				Usage:   "Model artifact path or s3://bucket/key",
				Sources: cli.EnvVars("MODEL_PATH"),
			},
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "Advisory rules YAML file (optional)",
				Sources: cli.EnvVars("ADVISORY_RULES_PATH"),
			},
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Record predictions in the history database (requires DATABASE_URL)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Prints verbose logs",
			},
		},
		Commands: []*cli.Command{
			predictCmd(state),
			batchCmd(state),
			inspectCmd(state),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, state.init(ctx, cmd, stderr)
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if state.app != nil {
				return state.app.Close()
			}
			return nil
		},
	}
}

func (s *cliApp) init(ctx context.Context, cmd *cli.Command, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if v := cmd.String("model"); v != "" {
		cfg.ModelPath = v
	}
	if v := cmd.String("rules"); v != "" {
		cfg.AdvisoryRulesPath = v
	}

	level := "warn"
	if cmd.Bool("debug") {
		level = "debug"
	}
	s.log = logger.New(logger.Options{Level: level, Writer: stderr})

	switch f := cmd.String("format"); f {
	case formatJSON:
		s.format = formatJSON
	case formatYAML, "yml":
		s.format = formatYAML
	default:
		return fmt.Errorf("unsupported format %q", f)
	}

	s.app, err = bootstrap.New(ctx, cfg, s.log, bootstrap.Options{
		SkipHistory: !cmd.Bool("history"),
		SkipCache:   true,
	})
	return err
}

// encode writes v in the selected format. YAML goes through the JSON form
// so both formats use the same field names.
func (s *cliApp) encode(w io.Writer, v any) error {
	if s.format != formatYAML {
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	return yaml.NewEncoder(w).Encode(generic)
}
