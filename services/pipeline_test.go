package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rent-radar/config"
	"rent-radar/models"
	"rent-radar/storage"
	"rent-radar/utils"
)

type fakeSource struct {
	rows []*models.RawListing
	err  error
}

func (f *fakeSource) Fetch(ctx context.Context) ([]*models.RawListing, error) {
	return f.rows, f.err
}

type fakeStore struct {
	split *models.Split
	preds []*models.Prediction
	rows  []*models.Listing
}

func (f *fakeStore) WriteSplit(split *models.Split) error              { f.split = split; return nil }
func (f *fakeStore) WritePredictions(preds []*models.Prediction) error { f.preds = preds; return nil }
func (f *fakeStore) FetchListings() ([]*models.Listing, error)         { return f.rows, nil }
func (f *fakeStore) Close() error                                      { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Source:             "dataset",
		DataDir:            filepath.Join(dir, "data"),
		ModelDir:           filepath.Join(dir, "model"),
		RentMin:            100,
		RentMax:            2000,
		SizeMin:            8,
		SizeMax:            80,
		TrainFraction:      0.8,
		SplitSeed:          2026,
		ANNHidden:          []int{8},
		ANNEpochs:          5,
		ANNBatchSize:       8,
		ANNLearningRate:    0.01,
		ANNValidationSplit: 0.2,
		ANNSeed:            1,
	}
}

// rooms returns 30 valid rooms from 10 to 39 m² whose rent is 200 + 20·size,
// followed by three rows the cleaner must drop.
func rooms() []*models.RawListing {
	var out []*models.RawListing
	for i := 0; i < 30; i++ {
		size := 10 + i
		out = append(out, &models.RawListing{
			ID:      fmt.Sprint(i + 1),
			City:    []string{"Potsdam", "Berlin", "Werder_Havel"}[i%3],
			Title:   fmt.Sprintf("Room %d", i+1),
			RentRaw: fmt.Sprintf("%d €", 200+20*size),
			SizeRaw: fmt.Sprintf("%d m²", size),
		})
	}
	return append(out,
		&models.RawListing{ID: "cheap", City: "Berlin", RentRaw: "50 €", SizeRaw: "20 m²"},
		&models.RawListing{ID: "huge", City: "Berlin", RentRaw: "900 €", SizeRaw: "100 m²"},
		&models.RawListing{ID: "bad", City: "Berlin", RentRaw: "VB", SizeRaw: "20 m²"},
	)
}

func newTestPipeline(t *testing.T, store storage.ListingStore) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	p := NewPipeline(testConfig(t), utils.Discard(), store)
	var out bytes.Buffer
	p.SetOutput(&out)
	return p, &out
}

func TestPipelineEndToEnd(t *testing.T) {
	store := &fakeStore{}
	p, out := newTestPipeline(t, store)
	ctx := context.Background()

	n, err := p.Ingest(ctx, &fakeSource{rows: rooms()})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 33 {
		t.Errorf("ingested %d rows, want 33", n)
	}

	split, err := p.Clean()
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if len(split.Train) != 24 || len(split.Test) != 6 {
		t.Errorf("split sizes: train %d, test %d, want 24/6", len(split.Train), len(split.Test))
	}
	if store.split != split {
		t.Error("split was not written to the store")
	}
	for _, path := range []string{
		p.cfg.JointPath(), p.cfg.TrainPath(), p.cfg.TestPath(), p.cfg.ActivationPath(), p.cfg.ScalerPath(),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}

	if err := p.Train(ctx); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !strings.Contains(out.String(), "OLS Regression Results") {
		t.Error("OLS summary was not printed")
	}
	if _, err := os.Stat(p.cfg.DiagnosticsPath("ann_history")); err != nil {
		t.Errorf("expected loss history: %v", err)
	}

	preds, err := p.Apply()
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("predictions: got %d, want 1", len(preds))
	}
	got := preds[0]
	if got.ID != split.Activation.ID || got.SizeSqm != split.Activation.Size {
		t.Errorf("prediction %+v does not match activation %+v", got, split.Activation)
	}
	if want := 200 + 20*got.SizeSqm; math.Abs(got.OLSRent-want) > 1e-6 {
		t.Errorf("OLS rent: got %.6f, want %.6f", got.OLSRent, want)
	}
	if got.RunID == "" || len(store.preds) != 1 || store.preds[0].RunID != got.RunID {
		t.Errorf("predictions not stored under one run id: %+v", store.preds)
	}
	if !strings.Contains(out.String(), "Listing "+got.ID+" in "+got.City) {
		t.Errorf("prediction line missing from output:\n%s", out.String())
	}
	if _, err := os.Stat(p.cfg.PredictionsPath()); err != nil {
		t.Errorf("expected predictions file: %v", err)
	}
}

func TestPipelinePredictSize(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	if _, err := p.Ingest(context.Background(), &fakeSource{rows: rooms()}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Clean(); err != nil {
		t.Fatal(err)
	}
	if err := p.Train(context.Background()); err != nil {
		t.Fatal(err)
	}

	pred, err := p.PredictSize(20)
	if err != nil {
		t.Fatalf("PredictSize: %v", err)
	}
	if math.Abs(pred.OLSRent-600) > 1e-6 {
		t.Errorf("OLS rent with scaler: got %.4f, want 600", pred.OLSRent)
	}

	// Without a scaler the size is normalized with the 8–80 m² bounds, so
	// the fitted line (400 + 580·x over 10–39 m²) is read at x = 12/72.
	if err := os.Remove(p.cfg.ScalerPath()); err != nil {
		t.Fatal(err)
	}
	pred, err = p.PredictSize(20)
	if err != nil {
		t.Fatalf("PredictSize without scaler: %v", err)
	}
	if want := 400 + 580*12.0/72; math.Abs(pred.OLSRent-want) > 1e-6 {
		t.Errorf("OLS rent with fallback: got %.4f, want %.4f", pred.OLSRent, want)
	}

	if _, err := p.PredictSize(0); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestPipelineCleanNoData(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	raw := []*models.RawListing{{ID: "1", RentRaw: "5000 €", SizeRaw: "20 m²"}}
	if _, err := p.Ingest(context.Background(), &fakeSource{rows: raw}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Clean(); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestPipelineIngestFailure(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	boom := errors.New("boom")

	if _, err := p.Ingest(context.Background(), &fakeSource{err: boom}); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
	if _, err := os.Stat(p.cfg.RawPath()); !errors.Is(err, os.ErrNotExist) {
		t.Error("raw file should not be written on failure")
	}
}

func TestPipelineIngestPartial(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	src := &fakeSource{rows: rooms()[:2], err: context.DeadlineExceeded}

	n, err := p.Ingest(context.Background(), src)
	if err != nil {
		t.Fatalf("partial results should be kept, got %v", err)
	}
	if n != 2 {
		t.Errorf("ingested %d rows, want 2", n)
	}
}

func TestPipelineApplyMissingColumns(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	if err := os.MkdirAll(p.cfg.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.cfg.ActivationPath(), []byte("id,title\n1,x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Apply(); !errors.Is(err, storage.ErrMissingColumns) {
		t.Errorf("expected ErrMissingColumns, got %v", err)
	}
}

func TestPipelineApplyWithoutModels(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	if _, err := p.Ingest(context.Background(), &fakeSource{rows: rooms()}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Clean(); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Apply(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected missing model error, got %v", err)
	}
}

func TestPipelineReportPrefersStore(t *testing.T) {
	store := &fakeStore{rows: []*models.Listing{
		{ID: "1", City: "Potsdam", Rent: 400, Size: 20},
		{ID: "2", City: "Potsdam", Rent: 500, Size: 25},
	}}
	p, _ := newTestPipeline(t, store)

	r, err := p.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.TotalListings != 2 || r.ListingsByCity["Potsdam"] != 2 {
		t.Errorf("report not built from store rows: %+v", r)
	}
}

func TestPipelineReportFromFile(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	if _, err := p.Ingest(context.Background(), &fakeSource{rows: rooms()}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Clean(); err != nil {
		t.Fatal(err)
	}

	r, err := p.Report()
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.TotalListings != 30 {
		t.Errorf("TotalListings: got %d, want 30", r.TotalListings)
	}
}
