package main

import (
	"testing"

	"rent-radar/config"
	"rent-radar/scraper/immodata"
	"rent-radar/scraper/wggesucht"
	"rent-radar/utils"
)

func TestNewSource(t *testing.T) {
	cfg := &config.Config{Source: "dataset", DatasetPath: "immo.csv", MaxConcurrency: 1}

	src, err := newSource(cfg, utils.Discard())
	if err != nil {
		t.Fatalf("dataset: %v", err)
	}
	if _, ok := src.(*immodata.Source); !ok {
		t.Errorf("dataset: got %T", src)
	}

	cfg.Source = "live"
	src, err = newSource(cfg, utils.Discard())
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if _, ok := src.(*wggesucht.Scraper); !ok {
		t.Errorf("live: got %T", src)
	}

	cfg.Source = "ftp"
	if _, err := newSource(cfg, utils.Discard()); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"ingest", "clean", "train", "train-ann", "train-ols", "apply", "predict", "report", "run"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
