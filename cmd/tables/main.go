// Package main is the table detection command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nvr-ai/go-tables/benchmark"
	"github.com/nvr-ai/go-tables/config"
	"github.com/nvr-ai/go-tables/detector"
	"github.com/nvr-ai/go-tables/images"
	"github.com/nvr-ai/go-tables/inference/providers"
	"github.com/nvr-ai/go-tables/logging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	flagConfig     = "config"
	flagDebug      = "debug"
	flagModel      = "model"
	flagLabels     = "labels"
	flagThreshold  = "threshold"
	flagBackend    = "backend"
	flagJSON       = "json"
	flagDraw       = "draw"
	flagShowScores = "show-scores"
	flagWarmUp     = "warmup"
	flagScenarios  = "scenarios"
	flagDir        = "dir"
	flagIterations = "iterations"
	flagOutput     = "output"
)

func main() {
	var (
		cfg    config.Config
		logger *zap.Logger
	)

	app := &cli.App{
		Name:  "tables",
		Usage: "detect tables in document images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg = config.Default()
			if path := c.String(flagConfig); path != "" {
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			if c.Bool(flagDebug) {
				cfg.Log.Level = "debug"
			}
			logger, err = logging.New("tables", cfg.Log)
			return err
		},
		After: func(*cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "find tables in images or URLs",
				ArgsUsage: "<image>...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagModel,
						Aliases: []string{"m"},
						Usage:   "ONNX model `FILE` (overrides the config)",
					},
					&cli.StringFlag{
						Name:  flagLabels,
						Usage: "config.json or YAML `FILE` with id2label",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "minimum confidence, exclusive",
					},
					&cli.StringFlag{
						Name:  flagBackend,
						Usage: "execution provider: " + backendList(),
					},
					&cli.BoolFlag{
						Name:  flagJSON,
						Usage: "print detections as JSON",
					},
					&cli.StringFlag{
						Name:  flagDraw,
						Usage: "write annotated copies into `DIR`",
					},
					&cli.BoolFlag{
						Name:  flagShowScores,
						Usage: "draw confidences above the boxes",
					},
					&cli.IntFlag{
						Name:  flagWarmUp,
						Usage: "warmup runs before the first image",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return errors.New("at least one image is required")
					}
					if err := applyOverrides(c, &cfg); err != nil {
						return err
					}
					return detect(c, cfg, logger)
				},
			},
			{
				Name:      "validate",
				Usage:     "check that files are JPEG or PNG",
				ArgsUsage: "<path>...",
				Action: func(c *cli.Context) error {
					return validate(c, logger)
				},
			},
			{
				Name:      "bench",
				Usage:     "measure detection throughput",
				ArgsUsage: "[image]...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagModel,
						Aliases: []string{"m"},
						Usage:   "ONNX model `FILE` (overrides the config)",
					},
					&cli.StringFlag{
						Name:  flagScenarios,
						Usage: "YAML `FILE` with a scenarios list",
					},
					&cli.StringFlag{
						Name:  flagDir,
						Usage: "benchmark every JPEG and PNG in `DIR`",
					},
					&cli.IntFlag{
						Name:  flagIterations,
						Value: 20,
						Usage: "predictions per scenario",
					},
					&cli.IntFlag{
						Name:  flagWarmUp,
						Value: 2,
						Usage: "warmup predictions per scenario",
					},
					&cli.StringFlag{
						Name:  flagOutput,
						Value: "benchmark_results",
						Usage: "write results into `DIR`",
					},
				},
				Action: func(c *cli.Context) error {
					if err := applyOverrides(c, &cfg); err != nil {
						return err
					}
					return bench(c, cfg, logger)
				},
			},
			{
				Name:  "info",
				Usage: "print information about the model",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagModel,
						Aliases: []string{"m"},
						Usage:   "ONNX model `FILE` (overrides the config)",
					},
				},
				Action: func(c *cli.Context) error {
					if err := applyOverrides(c, &cfg); err != nil {
						return err
					}
					d, err := detector.New(cfg, detector.WithLogger(logger))
					if err != nil {
						return err
					}
					defer d.Close()
					return printJSON(c, d.ModelInfo())
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fatal(logger, err)
	}
}

// fatal logs err and exits. Before the logger exists, for example when the
// config fails to load, the standard logger is used.
func fatal(logger *zap.Logger, err error) {
	if logger == nil {
		log.Fatal(err)
	}
	logger.Fatal("command failed", zap.Error(err))
}

func backendList() string {
	names := make([]string, 0, len(providers.Backends))
	for _, b := range providers.Backends {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

func applyOverrides(c *cli.Context, cfg *config.Config) error {
	if c.IsSet(flagModel) {
		cfg.Model.Path = c.String(flagModel)
	}
	if c.IsSet(flagLabels) {
		cfg.Model.LabelsPath = c.String(flagLabels)
	}
	if c.IsSet(flagThreshold) {
		cfg.Model.ConfidenceThreshold = float32(c.Float64(flagThreshold))
	}
	if c.IsSet(flagBackend) {
		backend, err := providers.ParseBackend(c.String(flagBackend))
		if err != nil {
			return err
		}
		cfg.Provider.Backend = backend
	}
	return cfg.Validate()
}

type result struct {
	Reference  string               `json:"reference"`
	Detections []detector.Detection `json:"detections"`
	Error      string               `json:"error,omitempty"`
}

func detect(c *cli.Context, cfg config.Config, logger *zap.Logger) error {
	d, err := detector.New(cfg, detector.WithLogger(logger))
	if err != nil {
		return err
	}
	defer d.Close()

	if runs := c.Int(flagWarmUp); runs > 0 {
		if err := d.WarmUp(c.Context, runs); err != nil {
			return errors.Wrap(err, "warmup")
		}
	}

	outDir := c.String(flagDraw)
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}
	}

	var (
		results []result
		failed  int
	)
	for _, ref := range c.Args().Slice() {
		r := result{Reference: ref}
		r.Detections, err = d.Predict(c.Context, ref)
		if err == nil && outDir != "" {
			err = draw(c, d, r.Detections, ref, outDir, logger)
		}
		if err != nil {
			failed++
			r.Error = err.Error()
			logger.Error("detection failed", zap.String("reference", ref), zap.Error(err))
		}
		results = append(results, r)
	}

	if c.Bool(flagJSON) {
		if err := printJSON(c, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			printText(c, r)
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

func draw(c *cli.Context, d *detector.Detector, detections []detector.Detection, ref, outDir string, logger *zap.Logger) error {
	img, err := d.DrawBoxes(c.Context, detections, ref, c.Bool(flagShowScores))
	if err != nil {
		return err
	}
	base := filepath.Base(ref)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "_tables.png"
	out := filepath.Join(outDir, name)
	if err := imaging.Save(img, out); err != nil {
		return errors.Wrapf(err, "saving %s", out)
	}
	logger.Info("annotated image written", zap.String("path", out))
	return nil
}

func printText(c *cli.Context, r result) {
	w := c.App.Writer
	if r.Error != "" {
		fmt.Fprintf(w, "%s: error: %s\n", r.Reference, r.Error)
		return
	}
	fmt.Fprintf(w, "%s: %d table(s)\n", r.Reference, len(r.Detections))
	for _, det := range r.Detections {
		fmt.Fprintf(w, "  %-14s %.3f  [%.2f, %.2f, %.2f, %.2f]\n",
			det.Label, det.Confidence, det.Box[0], det.Box[1], det.Box[2], det.Box[3])
	}
}

func printJSON(c *cli.Context, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func bench(c *cli.Context, cfg config.Config, logger *zap.Logger) error {
	var scenarios []benchmark.Scenario
	if path := c.String(flagScenarios); path != "" {
		loaded, err := benchmark.LoadScenarios(path)
		if err != nil {
			return err
		}
		scenarios = append(scenarios, loaded...)
	}

	refs := c.Args().Slice()
	if dir := c.String(flagDir); dir != "" {
		found, err := benchmark.CollectImages(dir)
		if err != nil {
			return err
		}
		refs = append(refs, found...)
	}
	if len(refs) > 0 {
		scenarios = append(scenarios, benchmark.NewScenarioBuilder("cli").
			WithReferences(refs...).
			WithIterations(c.Int(flagIterations)).
			WithWarmupRuns(c.Int(flagWarmUp)).
			Build())
	}
	if len(scenarios) == 0 {
		return errors.New("no images or scenarios given")
	}

	d, err := detector.New(cfg, detector.WithLogger(logger))
	if err != nil {
		return err
	}
	defer d.Close()

	suite := benchmark.NewSuite(d, c.String(flagOutput), logger)
	for _, s := range scenarios {
		suite.AddScenario(s)
	}
	if err := suite.RunAllScenarios(c.Context); err != nil {
		return err
	}
	return printJSON(c, suite.GetResults())
}

func validate(c *cli.Context, logger *zap.Logger) error {
	if c.NArg() == 0 {
		return errors.New("at least one path is required")
	}
	var failed int
	for _, path := range c.Args().Slice() {
		guess, err := images.ValidateFile(path)
		logger.Debug("format guess",
			zap.String("path", path),
			zap.String("signature", guess.Signature),
			zap.String("extension", guess.Extension),
		)
		if err != nil {
			failed++
			fmt.Fprintf(c.App.Writer, "%s: %v\n", path, err)
			continue
		}
		format, _ := guess.Format()
		fmt.Fprintf(c.App.Writer, "%s: ok (%s)\n", path, format)
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d unsupported file(s)", failed), 1)
	}
	return nil
}
