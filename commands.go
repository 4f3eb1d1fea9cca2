package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rent-radar/config"
	"rent-radar/scraper"
	"rent-radar/scraper/immodata"
	"rent-radar/scraper/wggesucht"
	"rent-radar/utils"
)

var ingestFlags struct {
	source string
}

var predictFlags struct {
	size float64
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch raw listings from the dataset export or a live scrape",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		_, err := ingest(cmd, a)
		return err
	}),
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean raw listings and write the train, test and activation files",
	RunE: withApp(func(_ *cobra.Command, a *app) error {
		_, err := a.pipeline.Clean()
		return err
	}),
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the ANN and OLS models in parallel",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		return a.pipeline.Train(cmd.Context())
	}),
}

var trainANNCmd = &cobra.Command{
	Use:   "train-ann",
	Short: "Train the neural network only",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		_, err := a.pipeline.TrainANN(cmd.Context())
		return err
	}),
}

var trainOLSCmd = &cobra.Command{
	Use:   "train-ols",
	Short: "Fit the linear model only",
	RunE: withApp(func(_ *cobra.Command, a *app) error {
		_, err := a.pipeline.TrainOLS()
		return err
	}),
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Predict rents for the activation listings with both models",
	RunE: withApp(func(_ *cobra.Command, a *app) error {
		_, err := a.pipeline.Apply()
		return err
	}),
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the rent of a single room",
	RunE: withApp(func(_ *cobra.Command, a *app) error {
		_, err := a.pipeline.PredictSize(predictFlags.size)
		return err
	}),
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print market insights over the cleaned listings",
	RunE: withApp(func(_ *cobra.Command, a *app) error {
		_, err := a.pipeline.Report()
		return err
	}),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest, clean, train and apply in one go",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		a.logger.Info("=== Rent Radar pipeline starting (source: %s) ===", a.cfg.Source)
		if _, err := ingest(cmd, a); err != nil {
			return err
		}
		if _, err := a.pipeline.Clean(); err != nil {
			return err
		}
		if err := a.pipeline.Train(cmd.Context()); err != nil {
			return err
		}
		if _, err := a.pipeline.Apply(); err != nil {
			return err
		}
		_, err := a.pipeline.Report()
		return err
	}),
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, runCmd} {
		c.Flags().StringVar(&ingestFlags.source, "source", "", "dataset or live (default from SOURCE)")
	}

	predictCmd.Flags().Float64Var(&predictFlags.size, "size", 0, "Room size in m² (required)")
	_ = predictCmd.MarkFlagRequired("size")
}

// withApp loads configuration for a subcommand and releases it afterwards.
func withApp(fn func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a)
	}
}

func ingest(cmd *cobra.Command, a *app) (int, error) {
	if ingestFlags.source != "" {
		a.cfg.Source = ingestFlags.source
	}
	src, err := newSource(a.cfg, a.logger)
	if err != nil {
		return 0, err
	}
	return a.pipeline.Ingest(cmd.Context(), src)
}

func newSource(cfg *config.Config, logger *utils.Logger) (scraper.Source, error) {
	switch cfg.Source {
	case "dataset":
		opts := immodata.DefaultOptions(cfg.DatasetPath)
		opts.Cities = cfg.TargetCities
		opts.SampleLimit = cfg.SampleLimit
		opts.SampleSeed = cfg.SampleSeed
		return immodata.New(opts, logger), nil
	case "live":
		return wggesucht.New(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want dataset or live)", cfg.Source)
	}
}
