// Package ann is a small fully-connected regression network: ReLU hidden
// layers, a linear output, mean-squared-error loss and the Adam optimizer.
//
// A network is built with New, trained with Train and persisted with Save:
//
//	net := ann.New(1, []int{64, 64}, 7)
//	hist, err := ann.Train(ctx, net, xs, ys, ann.DefaultConfig())
//	err = net.Save("model_output/currentAiSolution.json")
package ann

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"rent-radar/models"
	"rent-radar/regression"
)

const kind = "ann"

const (
	activationReLU   = "relu"
	activationLinear = "linear"
)

// Layer is a dense layer. Weights is indexed [out][in].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Biases     []float64   `json:"biases"`
	Activation string      `json:"activation"`
}

func newLayer(in, out int, activation string, rng *rand.Rand) *Layer {
	// Glorot uniform
	limit := math.Sqrt(6 / float64(in+out))
	l := &Layer{
		Weights:    make([][]float64, out),
		Biases:     make([]float64, out),
		Activation: activation,
	}
	for o := range l.Weights {
		l.Weights[o] = make([]float64, in)
		for i := range l.Weights[o] {
			l.Weights[o][i] = (rng.Float64()*2 - 1) * limit
		}
	}
	return l
}

func (l *Layer) inputs() int  { return len(l.Weights[0]) }
func (l *Layer) outputs() int { return len(l.Weights) }

// forward writes pre-activations into z and activations into a.
func (l *Layer) forward(x, z, a []float64) {
	for o, row := range l.Weights {
		sum := l.Biases[o]
		for i, w := range row {
			sum += w * x[i]
		}
		z[o] = sum
		if l.Activation == activationReLU && sum < 0 {
			a[o] = 0
		} else {
			a[o] = sum
		}
	}
}

// Network is a trained (or trainable) feed-forward regressor.
type Network struct {
	Meta   models.ModelMeta `json:"meta"`
	Inputs int              `json:"inputs"`
	Layers []*Layer         `json:"layers"`
}

var _ regression.Model = (*Network)(nil)

// New creates a network with the given input width and hidden layer sizes,
// followed by a single linear output unit. Weights are seeded.
func New(inputs int, hidden []int, seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	net := &Network{
		Meta:   models.ModelMeta{RunID: uuid.NewString(), Kind: kind},
		Inputs: inputs,
	}

	in := inputs
	for _, h := range hidden {
		net.Layers = append(net.Layers, newLayer(in, h, activationReLU, rng))
		in = h
	}
	net.Layers = append(net.Layers, newLayer(in, 1, activationLinear, rng))
	return net
}

// Params returns the number of trainable parameters.
func (n *Network) Params() int {
	total := 0
	for _, l := range n.Layers {
		total += l.outputs()*l.inputs() + l.outputs()
	}
	return total
}

// Predict runs a forward pass for one feature vector.
func (n *Network) Predict(features []float64) float64 {
	a := features
	for _, l := range n.Layers {
		z := make([]float64, l.outputs())
		next := make([]float64, l.outputs())
		l.forward(a, z, next)
		a = next
	}
	return a[0]
}

func (n *Network) markTrained(rows int) {
	n.Meta.TrainedAt = time.Now().UTC()
	n.Meta.TrainRows = rows
}
