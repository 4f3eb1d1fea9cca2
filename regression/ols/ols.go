// Package ols fits rent = β0 + β1·x by ordinary least squares and reports the
// usual regression summary.
package ols

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"rent-radar/models"
	"rent-radar/regression"
)

const kind = "ols"

// Coefficient is one fitted parameter with its inference statistics.
type Coefficient struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	StdErr float64 `json:"std_err"`
	T      float64 `json:"t"`
	P      float64 `json:"p"`
}

// Summary is the statistical report of a fit.
type Summary struct {
	Observations int     `json:"observations"`
	DFResid      int     `json:"df_resid"`
	RSquared     float64 `json:"r_squared"`
	AdjRSquared  float64 `json:"adj_r_squared"`
	FStatistic   float64 `json:"f_statistic"`
	FPValue      float64 `json:"f_p_value"`
}

// Model is a fitted linear model. Coefficients[0] is the intercept.
type Model struct {
	Meta         models.ModelMeta `json:"meta"`
	Features     []string         `json:"features"`
	Coefficients []Coefficient    `json:"coefficients"`
	Summary      Summary          `json:"summary"`
}

var _ regression.Model = (*Model)(nil)

// Fit solves the least-squares problem for xs (without a constant column)
// and ys. names labels the feature columns.
func Fit(xs [][]float64, ys []float64, names []string) (*Model, error) {
	n := len(ys)
	if len(xs) != n {
		return nil, regression.ErrShape
	}
	if n == 0 {
		return nil, errors.New("ols: no observations")
	}
	k := len(xs[0])
	if len(names) != k {
		return nil, fmt.Errorf("ols: %d feature names for %d features", len(names), k)
	}
	p := k + 1
	if n <= p {
		return nil, fmt.Errorf("ols: need more than %d observations, got %d", p, n)
	}

	design := mat.NewDense(n, p, nil)
	for i, row := range xs {
		if len(row) != k {
			return nil, fmt.Errorf("ols: row %d has %d features, want %d", i, len(row), k)
		}
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return nil, fmt.Errorf("ols: solve: %w", err)
	}

	var fitted mat.VecDense
	fitted.MulVec(design, &beta)
	var rss float64
	for i := 0; i < n; i++ {
		r := ys[i] - fitted.AtVec(i)
		rss += r * r
	}
	meanY := stat.Mean(ys, nil)
	var tss float64
	for _, v := range ys {
		tss += (v - meanY) * (v - meanY)
	}

	dfResid := n - p
	sigma2 := rss / float64(dfResid)

	var xtx, xtxInv mat.Dense
	xtx.Mul(design.T(), design)
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("ols: singular design matrix: %w", err)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}
	coefs := make([]Coefficient, p)
	for j := 0; j < p; j++ {
		name := "const"
		if j > 0 {
			name = names[j-1]
		}
		c := Coefficient{Name: name, Value: beta.AtVec(j)}
		c.StdErr = math.Sqrt(sigma2 * xtxInv.At(j, j))
		// zero on a perfect fit; t and p stay 0 since JSON cannot hold Inf
		if c.StdErr > 0 {
			c.T = c.Value / c.StdErr
			c.P = 2 * tDist.Survival(math.Abs(c.T))
		}
		coefs[j] = c
	}

	sum := Summary{Observations: n, DFResid: dfResid}
	if tss > 0 {
		sum.RSquared = 1 - rss/tss
		sum.AdjRSquared = 1 - (1-sum.RSquared)*float64(n-1)/float64(dfResid)
	}
	if tss > 0 && sum.RSquared < 1 {
		dfModel := float64(k)
		sum.FStatistic = (sum.RSquared / dfModel) / ((1 - sum.RSquared) / float64(dfResid))
		sum.FPValue = distuv.F{D1: dfModel, D2: float64(dfResid)}.Survival(sum.FStatistic)
	}

	return &Model{
		Meta: models.ModelMeta{
			RunID:     uuid.NewString(),
			Kind:      kind,
			TrainedAt: time.Now().UTC(),
			TrainRows: n,
		},
		Features:     append([]string(nil), names...),
		Coefficients: coefs,
		Summary:      sum,
	}, nil
}

// Predict returns β0 + Σ βj·xj. The intercept is always applied, even for a
// single row.
func (m *Model) Predict(features []float64) float64 {
	out := m.Coefficients[0].Value
	for j, x := range features {
		if j+1 >= len(m.Coefficients) {
			break
		}
		out += m.Coefficients[j+1].Value * x
	}
	return out
}

// Report renders the summary table.
func (m *Model) Report() string {
	var b strings.Builder
	s := m.Summary
	fmt.Fprintf(&b, "OLS Regression Results\n")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 62))
	fmt.Fprintf(&b, "No. Observations: %8d    R-squared:      %10.4f\n", s.Observations, s.RSquared)
	fmt.Fprintf(&b, "Df Residuals:     %8d    Adj. R-squared: %10.4f\n", s.DFResid, s.AdjRSquared)
	fmt.Fprintf(&b, "F-statistic:      %8.2f    Prob (F):       %10.3g\n", s.FStatistic, s.FPValue)
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", 62))
	fmt.Fprintf(&b, "%-12s %12s %12s %10s %10s\n", "", "coef", "std err", "t", "P>|t|")
	for _, c := range m.Coefficients {
		fmt.Fprintf(&b, "%-12s %12.4f %12.4f %10.3f %10.3f\n", c.Name, c.Value, c.StdErr, c.T, c.P)
	}
	fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 62))
	return b.String()
}

// Save writes the model as JSON, creating parent directories.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ols: create dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("ols: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("ols: write %q: %w", path, err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ols: read %q: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ols: decode %q: %w", path, err)
	}
	if m.Meta.Kind != kind || len(m.Coefficients) == 0 {
		return nil, fmt.Errorf("ols: %q is not an OLS model", path)
	}
	return &m, nil
}
