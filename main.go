package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rent-radar/config"
	"rent-radar/services"
	"rent-radar/storage"
	"rent-radar/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rent-radar",
	Short: "Predict student room rents from size",
	Long: "rent-radar ingests room listings from a rental-market export or a live\n" +
		"WG-Gesucht scrape, cleans and splits them, trains a neural network and a\n" +
		"linear model on rent versus size and applies both to new listings.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML file overriding environment settings")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(trainANNCmd)
	rootCmd.AddCommand(trainOLSCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles what every subcommand needs.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	pipeline *services.Pipeline
	store    storage.ListingStore
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger := utils.NewLogger()
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return nil, err
		}
		a.store = pg
	}

	a.pipeline = services.NewPipeline(cfg, logger, a.store)
	a.pipeline.SetOutput(cmd.OutOrStdout())
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Closing database: %v", err)
	}
}
