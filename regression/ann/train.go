package ann

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"rent-radar/regression"
)

// Config holds the training hyper-parameters.
type Config struct {
	Epochs          int
	BatchSize       int
	LearningRate    float64
	ValidationSplit float64
	Seed            int64
	Beta1           float64
	Beta2           float64
	Epsilon         float64
}

// DefaultConfig mirrors the usual Adam defaults: lr 0.001, 100 epochs,
// batches of 32 and the last 20% of the rows held out for validation.
func DefaultConfig() Config {
	return Config{
		Epochs:          100,
		BatchSize:       32,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
		Seed:            7,
		Beta1:           0.9,
		Beta2:           0.999,
		Epsilon:         1e-7,
	}
}

// History records per-epoch training and validation loss (MSE).
type History struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss,omitempty"`
}

// Train fits net to xs/ys in place. The tail ValidationSplit fraction of the
// rows is held out and scored after every epoch; the rest is shuffled with a
// seeded RNG each epoch. Training stops early with ctx's error if ctx is done.
func Train(ctx context.Context, net *Network, xs [][]float64, ys []float64, cfg Config) (*History, error) {
	if len(xs) != len(ys) {
		return nil, regression.ErrShape
	}
	if len(xs) == 0 {
		return nil, errors.New("ann: no training rows")
	}
	for i, x := range xs {
		if len(x) != net.Inputs {
			return nil, fmt.Errorf("ann: row %d has %d features, want %d", i, len(x), net.Inputs)
		}
	}
	if cfg.Epochs < 1 || cfg.BatchSize < 1 {
		return nil, fmt.Errorf("ann: epochs and batch size must be positive (got %d, %d)", cfg.Epochs, cfg.BatchSize)
	}

	splitAt := int(float64(len(xs)) * (1 - cfg.ValidationSplit))
	if splitAt < 1 {
		return nil, fmt.Errorf("ann: validation split %.2f leaves no training rows", cfg.ValidationSplit)
	}
	trainX, trainY := xs[:splitAt], ys[:splitAt]
	valX, valY := xs[splitAt:], ys[splitAt:]

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	tr := newTrainer(net, cfg)
	hist := &History{}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, fmt.Errorf("ann: training stopped at epoch %d: %w", epoch, err)
		}

		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sumLoss float64
		for lo := 0; lo < len(order); lo += cfg.BatchSize {
			hi := lo + cfg.BatchSize
			if hi > len(order) {
				hi = len(order)
			}
			tr.zeroGrads()
			for _, idx := range order[lo:hi] {
				sumLoss += tr.accumulate(trainX[idx], trainY[idx], hi-lo)
			}
			tr.step()
		}
		hist.Loss = append(hist.Loss, sumLoss/float64(len(order)))

		if len(valX) > 0 {
			hist.ValLoss = append(hist.ValLoss, meanSquaredError(net, valX, valY))
		}
	}

	net.markTrained(len(trainX))
	return hist, nil
}

func meanSquaredError(net *Network, xs [][]float64, ys []float64) float64 {
	var sum float64
	for i, x := range xs {
		d := net.Predict(x) - ys[i]
		sum += d * d
	}
	return sum / float64(len(xs))
}

// params mirrors the shape of a network's weights and biases.
type params struct {
	w [][][]float64
	b [][]float64
}

func zerosLike(net *Network) *params {
	p := &params{
		w: make([][][]float64, len(net.Layers)),
		b: make([][]float64, len(net.Layers)),
	}
	for l, layer := range net.Layers {
		p.w[l] = make([][]float64, layer.outputs())
		for o := range p.w[l] {
			p.w[l][o] = make([]float64, layer.inputs())
		}
		p.b[l] = make([]float64, layer.outputs())
	}
	return p
}

type trainer struct {
	net  *Network
	cfg  Config
	grad *params
	m    *params
	v    *params
	t    int

	// per-sample scratch buffers
	zs     [][]float64
	acts   [][]float64
	deltas [][]float64
}

func newTrainer(net *Network, cfg Config) *trainer {
	tr := &trainer{
		net:  net,
		cfg:  cfg,
		grad: zerosLike(net),
		m:    zerosLike(net),
		v:    zerosLike(net),
	}
	tr.acts = append(tr.acts, nil)
	for _, layer := range net.Layers {
		tr.zs = append(tr.zs, make([]float64, layer.outputs()))
		tr.acts = append(tr.acts, make([]float64, layer.outputs()))
		tr.deltas = append(tr.deltas, make([]float64, layer.outputs()))
	}
	return tr
}

func (tr *trainer) zeroGrads() {
	for l := range tr.grad.w {
		for o := range tr.grad.w[l] {
			row := tr.grad.w[l][o]
			for i := range row {
				row[i] = 0
			}
		}
		for o := range tr.grad.b[l] {
			tr.grad.b[l][o] = 0
		}
	}
}

// accumulate backpropagates one sample into the batch gradient of the mean
// squared error and returns the sample's squared error.
func (tr *trainer) accumulate(x []float64, y float64, batchLen int) float64 {
	layers := tr.net.Layers
	tr.acts[0] = x
	for l, layer := range layers {
		layer.forward(tr.acts[l], tr.zs[l], tr.acts[l+1])
	}

	last := len(layers) - 1
	diff := tr.acts[last+1][0] - y
	tr.deltas[last][0] = 2 * diff / float64(batchLen)

	for l := last; l >= 0; l-- {
		layer := layers[l]
		in := tr.acts[l]
		delta := tr.deltas[l]
		for o, d := range delta {
			tr.grad.b[l][o] += d
			gw := tr.grad.w[l][o]
			for i, a := range in {
				gw[i] += d * a
			}
		}
		if l == 0 {
			break
		}
		prev := tr.deltas[l-1]
		prevZ := tr.zs[l-1]
		reluPrev := layers[l-1].Activation == activationReLU
		for i := range prev {
			var s float64
			for o, d := range delta {
				s += layer.Weights[o][i] * d
			}
			if reluPrev && prevZ[i] <= 0 {
				s = 0
			}
			prev[i] = s
		}
	}
	return diff * diff
}

// step applies one Adam update from the accumulated gradient.
func (tr *trainer) step() {
	tr.t++
	b1, b2 := tr.cfg.Beta1, tr.cfg.Beta2
	lr := tr.cfg.LearningRate * math.Sqrt(1-math.Pow(b2, float64(tr.t))) / (1 - math.Pow(b1, float64(tr.t)))

	update := func(p, g, m, v *float64) {
		grad := *g
		*m = b1*(*m) + (1-b1)*grad
		*v = b2*(*v) + (1-b2)*grad*grad
		*p -= lr * (*m) / (math.Sqrt(*v) + tr.cfg.Epsilon)
	}

	for l, layer := range tr.net.Layers {
		for o := range layer.Weights {
			for i := range layer.Weights[o] {
				update(&layer.Weights[o][i], &tr.grad.w[l][o][i], &tr.m.w[l][o][i], &tr.v.w[l][o][i])
			}
			update(&layer.Biases[o], &tr.grad.b[l][o], &tr.m.b[l][o], &tr.v.b[l][o])
		}
	}
}
