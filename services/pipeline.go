package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rent-radar/config"
	"rent-radar/models"
	"rent-radar/regression"
	"rent-radar/regression/ann"
	"rent-radar/regression/ols"
	"rent-radar/scraper"
	"rent-radar/storage"
	"rent-radar/utils"
)

// trainColumns are the columns the trainers read from the handoff files.
var trainColumns = []string{"id", "rent", "size", "size_norm"}

// Pipeline runs the ingest → clean → train → apply stages over the files
// named by cfg. store is optional; a nil store keeps everything on disk.
type Pipeline struct {
	cfg    *config.Config
	logger *utils.Logger
	store  storage.ListingStore
	out    io.Writer
}

// NewPipeline creates a Pipeline that prints reports to stdout.
func NewPipeline(cfg *config.Config, logger *utils.Logger, store storage.ListingStore) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, store: store, out: os.Stdout}
}

// SetOutput redirects printed reports and predictions.
func (p *Pipeline) SetOutput(w io.Writer) {
	p.out = w
}

// Ingest fetches raw listings from src and writes the raw table.
func (p *Pipeline) Ingest(ctx context.Context, src scraper.Source) (int, error) {
	raw, err := src.Fetch(ctx)
	if err != nil && len(raw) == 0 {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	if err != nil {
		p.logger.Warn("[pipeline] Source returned a partial result: %v", err)
	}

	if err := storage.WriteRaw(p.cfg.RawPath(), raw); err != nil {
		return 0, fmt.Errorf("ingest: %w", err)
	}
	p.logger.Info("[pipeline] Saved %d raw listings to %s", len(raw), p.cfg.RawPath())
	return len(raw), nil
}

// Clean reads the raw table, cleans and splits it, and writes the joint,
// training, test and activation files plus the size scaler.
func (p *Pipeline) Clean() (*models.Split, error) {
	raw, err := storage.ReadRaw(p.cfg.RawPath())
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	p.logger.Info("[pipeline] Loaded %d raw listings", len(raw))

	cleaner := NewCleaner(p.logger, Bounds{
		RentMin: p.cfg.RentMin,
		RentMax: p.cfg.RentMax,
		SizeMin: p.cfg.SizeMin,
		SizeMax: p.cfg.SizeMax,
	})
	listings, scaler, err := cleaner.Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	split := NewSplitter(p.logger, p.cfg.TrainFraction, p.cfg.SplitSeed).Split(listings)

	var activation []*models.Listing
	if split.Activation != nil {
		activation = append(activation, split.Activation)
	}

	outputs := []struct {
		path string
		rows []*models.Listing
	}{
		{p.cfg.JointPath(), listings},
		{p.cfg.TrainPath(), split.Train},
		{p.cfg.TestPath(), split.Test},
		{p.cfg.ActivationPath(), activation},
	}
	for _, o := range outputs {
		if err := storage.WriteListings(o.path, o.rows); err != nil {
			return nil, fmt.Errorf("clean: %w", err)
		}
		p.logger.Debug("[pipeline] Wrote %d rows to %s", len(o.rows), o.path)
	}
	if err := storage.SaveScaler(p.cfg.ScalerPath(), scaler); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	if p.store != nil {
		if err := p.store.WriteSplit(split); err != nil {
			p.logger.Error("[pipeline] Database write failed: %v", err)
		} else {
			p.logger.Info("[pipeline] Cleaned listings stored in PostgreSQL (table: listings)")
		}
	}

	p.logger.Info("[pipeline] Clean data saved to %s", p.cfg.DataDir)
	return split, nil
}

// TrainANN fits the neural network on the training file, saves it and
// scores it on the test file.
func (p *Pipeline) TrainANN(ctx context.Context) (models.Evaluation, error) {
	train, test, err := p.loadTrainTest()
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("train ann: %w", err)
	}

	cfg := ann.DefaultConfig()
	cfg.Epochs = p.cfg.ANNEpochs
	cfg.BatchSize = p.cfg.ANNBatchSize
	cfg.LearningRate = p.cfg.ANNLearningRate
	cfg.ValidationSplit = p.cfg.ANNValidationSplit
	cfg.Seed = p.cfg.ANNSeed

	net := ann.New(1, p.cfg.ANNHidden, p.cfg.ANNSeed)
	p.logger.Info("[ann] Training %d parameters on %d rows for %d epochs", net.Params(), len(train), cfg.Epochs)

	hist, err := ann.Train(ctx, net, regression.Features(train), regression.Targets(train), cfg)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("train ann: %w", err)
	}
	if n := len(hist.Loss); n > 0 {
		p.logger.Info("[ann] Final loss %.2f (first epoch %.2f)", hist.Loss[n-1], hist.Loss[0])
	}

	if err := net.Save(p.cfg.ANNModelPath()); err != nil {
		return models.Evaluation{}, fmt.Errorf("train ann: %w", err)
	}
	p.logger.Info("[ann] Model saved to %s", p.cfg.ANNModelPath())

	if err := p.writeHistory(hist); err != nil {
		p.logger.Warn("[ann] Could not write loss history: %v", err)
	}
	return p.evaluate("ann", net, test)
}

// TrainOLS fits the linear model on the training file, prints its summary,
// saves it and scores it on the test file.
func (p *Pipeline) TrainOLS() (models.Evaluation, error) {
	train, test, err := p.loadTrainTest()
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("train ols: %w", err)
	}

	m, err := ols.Fit(regression.Features(train), regression.Targets(train), []string{"size_norm"})
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("train ols: %w", err)
	}
	fmt.Fprintln(p.out, m.Report())

	if err := m.Save(p.cfg.OLSModelPath()); err != nil {
		return models.Evaluation{}, fmt.Errorf("train ols: %w", err)
	}
	p.logger.Info("[ols] Model saved to %s", p.cfg.OLSModelPath())
	return p.evaluate("ols", m, test)
}

// Train fits both models concurrently. The first failure cancels the ANN.
func (p *Pipeline) Train(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := p.TrainANN(ctx)
		return err
	})
	g.Go(func() error {
		_, err := p.TrainOLS()
		return err
	})
	return g.Wait()
}

// Apply runs both persisted models over the activation file.
func (p *Pipeline) Apply() ([]*models.Prediction, error) {
	rows, err := storage.ReadListings(p.cfg.ActivationPath(), storage.ActivationColumns...)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("apply: %s has no rows", p.cfg.ActivationPath())
	}

	net, linear, err := p.loadModels()
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	runID := uuid.NewString()
	preds := make([]*models.Prediction, 0, len(rows))
	var sumANN, sumOLS float64
	for _, l := range rows {
		x := []float64{l.SizeNorm}
		pred := &models.Prediction{
			RunID:   runID,
			ID:      l.ID,
			City:    l.City,
			SizeSqm: l.Size,
			ANNRent: net.Predict(x),
			OLSRent: linear.Predict(x),
		}
		sumANN += pred.ANNRent
		sumOLS += pred.OLSRent
		preds = append(preds, pred)

		fmt.Fprintf(p.out, "Listing %s in %s (%.1f sqm): ANN = %.2f €, OLS = %.2f €\n",
			pred.ID, pred.City, pred.SizeSqm, pred.ANNRent, pred.OLSRent)
	}
	n := float64(len(preds))
	fmt.Fprintf(p.out, "Average over %d listings: ANN = %.2f €, OLS = %.2f €\n", len(preds), sumANN/n, sumOLS/n)

	if err := writePredictions(p.cfg.PredictionsPath(), preds); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	if p.store != nil {
		if err := p.store.WritePredictions(preds); err != nil {
			p.logger.Error("[pipeline] Database write failed: %v", err)
		} else {
			p.logger.Info("[pipeline] Predictions stored in PostgreSQL (run %s)", runID)
		}
	}

	p.logger.Info("[pipeline] Applied both models to %d listings (run %s)", len(preds), runID)
	return preds, nil
}

// PredictSize predicts the rent of a single room of size square metres. The
// size is normalized with the saved scaler, or with the cleaning bounds when
// no scaler has been written yet.
func (p *Pipeline) PredictSize(size float64) (*models.Prediction, error) {
	if size <= 0 {
		return nil, fmt.Errorf("predict: size must be positive, got %v", size)
	}

	scaler, err := storage.LoadScaler(p.cfg.ScalerPath())
	if errors.Is(err, os.ErrNotExist) {
		scaler = models.SizeScaler{Min: p.cfg.SizeMin, Max: p.cfg.SizeMax}
		p.logger.Warn("[pipeline] No scaler at %s, normalizing with %.0f–%.0f m²",
			p.cfg.ScalerPath(), scaler.Min, scaler.Max)
	} else if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	net, linear, err := p.loadModels()
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	x := []float64{scaler.Transform(size)}
	pred := &models.Prediction{
		SizeSqm: size,
		ANNRent: net.Predict(x),
		OLSRent: linear.Predict(x),
	}
	fmt.Fprintf(p.out, "Room of %.1f sqm: ANN = %.2f €, OLS = %.2f €\n", size, pred.ANNRent, pred.OLSRent)
	return pred, nil
}

// Report prints market insights over the cleaned listings, read from the
// database when one is configured and from the joint file otherwise.
func (p *Pipeline) Report() (*models.InsightReport, error) {
	var (
		listings []*models.Listing
		err      error
	)
	if p.store != nil {
		listings, err = p.store.FetchListings()
		if err != nil {
			p.logger.Error("[pipeline] Failed to fetch listings from DB for insights: %v", err)
		}
	}
	if p.store == nil || err != nil {
		listings, err = storage.ReadListings(p.cfg.JointPath(), storage.ListingColumns...)
		if err != nil {
			return nil, fmt.Errorf("report: %w", err)
		}
	}

	svc := NewInsightService(p.logger)
	report := svc.Generate(listings)
	svc.Print(report)
	return report, nil
}

func (p *Pipeline) loadTrainTest() (train, test []*models.Listing, err error) {
	train, err = storage.ReadListings(p.cfg.TrainPath(), trainColumns...)
	if err != nil {
		return nil, nil, err
	}
	test, err = storage.ReadListings(p.cfg.TestPath(), trainColumns...)
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func (p *Pipeline) loadModels() (*ann.Network, *ols.Model, error) {
	net, err := ann.Load(p.cfg.ANNModelPath())
	if err != nil {
		return nil, nil, err
	}
	linear, err := ols.Load(p.cfg.OLSModelPath())
	if err != nil {
		return nil, nil, err
	}
	return net, linear, nil
}

// evaluate scores m on test and writes per-row predictions for inspection.
func (p *Pipeline) evaluate(name string, m regression.Model, test []*models.Listing) (models.Evaluation, error) {
	if len(test) == 0 {
		p.logger.Warn("[%s] Test set is empty, skipping evaluation", name)
		return models.Evaluation{}, nil
	}

	predicted := regression.PredictAll(m, regression.Features(test))
	eval, err := regression.Evaluate(predicted, regression.Targets(test))
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("%s: evaluate: %w", name, err)
	}
	p.logger.Info("[%s] Test MAE %.2f | MSE %.2f | RMSE %.2f | R² %.4f", name, eval.MAE, eval.MSE, eval.RMSE, eval.R2)

	path := p.cfg.DiagnosticsPath(name + "_test_predictions")
	w, err := storage.NewCSVWriter(path, []string{"id", "size", "size_norm", "rent", "predicted", "residual"})
	if err != nil {
		p.logger.Warn("[%s] Could not write diagnostics: %v", name, err)
		return eval, nil
	}
	for i, l := range test {
		_ = w.WriteRow([]string{
			l.ID,
			storage.FormatFloat(l.Size),
			storage.FormatFloat(l.SizeNorm),
			storage.FormatFloat(l.Rent),
			storage.FormatFloat(predicted[i]),
			storage.FormatFloat(l.Rent - predicted[i]),
		})
	}
	if err := w.Close(); err != nil {
		p.logger.Warn("[%s] Could not write diagnostics: %v", name, err)
	}
	return eval, nil
}

func (p *Pipeline) writeHistory(hist *ann.History) error {
	w, err := storage.NewCSVWriter(p.cfg.DiagnosticsPath("ann_history"), []string{"epoch", "loss", "val_loss"})
	if err != nil {
		return err
	}
	for i, loss := range hist.Loss {
		val := ""
		if i < len(hist.ValLoss) {
			val = storage.FormatFloat(hist.ValLoss[i])
		}
		if err := w.WriteRow([]string{strconv.Itoa(i + 1), storage.FormatFloat(loss), val}); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}

func writePredictions(path string, preds []*models.Prediction) error {
	w, err := storage.NewCSVWriter(path, []string{"run_id", "id", "city", "size_sqm", "ann_rent", "ols_rent"})
	if err != nil {
		return err
	}
	for _, pr := range preds {
		row := []string{
			pr.RunID, pr.ID, pr.City,
			storage.FormatFloat(pr.SizeSqm), storage.FormatFloat(pr.ANNRent), storage.FormatFloat(pr.OLSRent),
		}
		if err := w.WriteRow(row); err != nil {
			_ = w.Close()
			return err
		}
	}
	return w.Close()
}
