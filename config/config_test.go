package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Source != "dataset" {
		t.Errorf("Source: got %q, want dataset", cfg.Source)
	}
	if cfg.RentMin != 100 || cfg.RentMax != 2000 {
		t.Errorf("rent bounds: got %v..%v, want 100..2000", cfg.RentMin, cfg.RentMax)
	}
	if cfg.SizeMin != 8 || cfg.SizeMax != 80 {
		t.Errorf("size bounds: got %v..%v, want 8..80", cfg.SizeMin, cfg.SizeMax)
	}
	if cfg.SplitSeed != 2026 {
		t.Errorf("SplitSeed: got %d, want 2026", cfg.SplitSeed)
	}
	if diff := cmp.Diff([]int{64, 64}, cfg.ANNHidden); diff != "" {
		t.Errorf("ANNHidden mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TARGET_CITIES", "Potsdam, Berlin")
	t.Setenv("LIVE_CITIES", "Potsdam:108")
	t.Setenv("ANN_HIDDEN", "16,8")
	t.Setenv("TRAIN_FRACTION", "0.75")
	t.Setenv("POSTGRES_ENABLED", "true")

	cfg := Load()

	if diff := cmp.Diff([]string{"Potsdam", "Berlin"}, cfg.TargetCities); diff != "" {
		t.Errorf("TargetCities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]City{{ID: 108, Name: "Potsdam"}}, cfg.LiveCities); diff != "" {
		t.Errorf("LiveCities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{16, 8}, cfg.ANNHidden); diff != "" {
		t.Errorf("ANNHidden mismatch (-want +got):\n%s", diff)
	}
	if cfg.TrainFraction != 0.75 {
		t.Errorf("TrainFraction: got %v, want 0.75", cfg.TrainFraction)
	}
	if !cfg.PostgresEnabled {
		t.Error("PostgresEnabled should be true")
	}
}

func TestMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("ANN_EPOCHS", "many")
	t.Setenv("LIVE_CITIES", "Potsdam")

	cfg := Load()
	if cfg.ANNEpochs != 100 {
		t.Errorf("ANNEpochs: got %d, want fallback 100", cfg.ANNEpochs)
	}
	if len(cfg.LiveCities) != 3 {
		t.Errorf("LiveCities: got %d entries, want fallback of 3", len(cfg.LiveCities))
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.yaml")
	yml := "source: live\nann_epochs: 5\ndata_dir: /tmp/radar\ntarget_cities:\n  - Köln\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Source != "live" {
		t.Errorf("Source: got %q, want live", cfg.Source)
	}
	if cfg.ANNEpochs != 5 {
		t.Errorf("ANNEpochs: got %d, want 5", cfg.ANNEpochs)
	}
	if cfg.TrainPath() != filepath.Join("/tmp/radar", "training_data.csv") {
		t.Errorf("TrainPath: got %q", cfg.TrainPath())
	}
	if diff := cmp.Diff([]string{"Köln"}, cfg.TargetCities); diff != "" {
		t.Errorf("TargetCities mismatch (-want +got):\n%s", diff)
	}
	// untouched fields keep their env defaults
	if cfg.SplitSeed != 2026 {
		t.Errorf("SplitSeed: got %d, want 2026", cfg.SplitSeed)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"unknown source", "source: ftp\n"},
		{"empty rent bounds", "rent_min: 500\nrent_max: 100\n"},
		{"train fraction", "train_fraction: 1.5\n"},
		{"validation split", "ann_validation_split: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "radar.yaml")
			if err := os.WriteFile(path, []byte(tt.yml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
