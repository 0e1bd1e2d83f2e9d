package nnet

import (
	"fmt"
	"math"
	"math/rand"
)

// Network is a fully connected feed-forward perceptron with sigmoid units.
// Weights[l][j][i] connects unit i of layer l to unit j of layer l+1.
type Network struct {
	Sizes   []int         `json:"sizes"`
	Weights [][][]float64 `json:"weights"`
	Biases  [][]float64   `json:"biases"`
}

func NewNetwork(rng *rand.Rand, sizes ...int) *Network {
	n := &Network{
		Sizes:   append([]int(nil), sizes...),
		Weights: make([][][]float64, len(sizes)-1),
		Biases:  make([][]float64, len(sizes)-1),
	}
	for l := 1; l < len(sizes); l++ {
		w := make([][]float64, sizes[l])
		for j := range w {
			w[j] = make([]float64, sizes[l-1])
			for i := range w[j] {
				w[j][i] = rng.Float64() - 0.5
			}
		}
		b := make([]float64, sizes[l])
		for j := range b {
			b[j] = rng.Float64() - 0.5
		}
		n.Weights[l-1] = w
		n.Biases[l-1] = b
	}
	return n
}

// Validate checks that weights and biases match Sizes, so a decoded network
// cannot index out of range on a forward pass.
func (n *Network) Validate() error {
	if len(n.Sizes) < 2 {
		return fmt.Errorf("network needs at least 2 layers, got %d", len(n.Sizes))
	}
	for l, size := range n.Sizes {
		if size <= 0 {
			return fmt.Errorf("layer %d has size %d", l, size)
		}
	}
	if len(n.Weights) != len(n.Sizes)-1 || len(n.Biases) != len(n.Sizes)-1 {
		return fmt.Errorf("%d weight and %d bias layers for %d sizes", len(n.Weights), len(n.Biases), len(n.Sizes))
	}
	for l := 1; l < len(n.Sizes); l++ {
		if len(n.Biases[l-1]) != n.Sizes[l] {
			return fmt.Errorf("layer %d: %d biases, want %d", l, len(n.Biases[l-1]), n.Sizes[l])
		}
		if len(n.Weights[l-1]) != n.Sizes[l] {
			return fmt.Errorf("layer %d: %d weight rows, want %d", l, len(n.Weights[l-1]), n.Sizes[l])
		}
		for j, row := range n.Weights[l-1] {
			if len(row) != n.Sizes[l-1] {
				return fmt.Errorf("layer %d row %d: %d weights, want %d", l, j, len(row), n.Sizes[l-1])
			}
		}
	}
	return nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// activations returns the output of every layer; missing inputs read as 0.
func (n *Network) activations(input []float64) [][]float64 {
	acts := make([][]float64, len(n.Sizes))
	acts[0] = make([]float64, n.Sizes[0])
	copy(acts[0], input)

	for l := 1; l < len(n.Sizes); l++ {
		acts[l] = make([]float64, n.Sizes[l])
		for j := range acts[l] {
			sum := n.Biases[l-1][j]
			for i, a := range acts[l-1] {
				sum += n.Weights[l-1][j][i] * a
			}
			acts[l][j] = sigmoid(sum)
		}
	}
	return acts
}

// Output runs a forward pass and returns the first output unit.
func (n *Network) Output(input []float64) float64 {
	acts := n.activations(input)
	return acts[len(acts)-1][0]
}

// step applies one online back-propagation update and returns the squared
// error of the sample before the update.
func (n *Network) step(input []float64, target, rate float64) float64 {
	acts := n.activations(input)
	last := len(n.Sizes) - 1

	deltas := make([][]float64, len(n.Sizes))
	deltas[last] = make([]float64, n.Sizes[last])
	var sq float64
	for j, o := range acts[last] {
		e := target - o
		sq += e * e
		deltas[last][j] = e * o * (1 - o)
	}

	for l := last - 1; l >= 1; l-- {
		deltas[l] = make([]float64, n.Sizes[l])
		for i := range deltas[l] {
			var sum float64
			for j, d := range deltas[l+1] {
				sum += n.Weights[l][j][i] * d
			}
			a := acts[l][i]
			deltas[l][i] = sum * a * (1 - a)
		}
	}

	for l := 1; l <= last; l++ {
		for j, d := range deltas[l] {
			for i, a := range acts[l-1] {
				n.Weights[l-1][j][i] += rate * d * a
			}
			n.Biases[l-1][j] += rate * d
		}
	}
	return sq / float64(n.Sizes[last])
}
