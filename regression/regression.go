// Package regression holds what the ANN and OLS models share: the prediction
// interface and the error metrics used to compare them.
package regression

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"rent-radar/models"
)

// ErrShape is returned when features and targets disagree in length.
var ErrShape = errors.New("regression: features and targets differ in length")

// Model predicts rent from a feature vector. Implementations add their own
// bias/intercept; callers pass features only.
type Model interface {
	Predict(features []float64) float64
}

// PredictAll runs m over every row of xs.
func PredictAll(m Model, xs [][]float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = m.Predict(x)
	}
	return out
}

// Evaluate scores predictions against targets.
func Evaluate(predicted, actual []float64) (models.Evaluation, error) {
	if len(predicted) != len(actual) {
		return models.Evaluation{}, ErrShape
	}
	if len(actual) == 0 {
		return models.Evaluation{}, errors.New("regression: nothing to evaluate")
	}

	abs := make([]float64, len(actual))
	sq := make([]float64, len(actual))
	for i := range actual {
		r := actual[i] - predicted[i]
		abs[i] = math.Abs(r)
		sq[i] = r * r
	}

	mse := stat.Mean(sq, nil)
	return models.Evaluation{
		MAE:  stat.Mean(abs, nil),
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		R2:   stat.RSquaredFrom(predicted, actual, nil),
	}, nil
}

// Features extracts the single size_norm feature of each listing.
func Features(listings []*models.Listing) [][]float64 {
	xs := make([][]float64, len(listings))
	for i, l := range listings {
		xs[i] = []float64{l.SizeNorm}
	}
	return xs
}

// Targets extracts rent from each listing.
func Targets(listings []*models.Listing) []float64 {
	ys := make([]float64, len(listings))
	for i, l := range listings {
		ys[i] = l.Rent
	}
	return ys
}
