package nnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
)

var ErrNoSamples = errors.New("nnet: no training samples")

// Model pairs a network with the input window it scores on Forward.
// After training the window is the most recent sample seen.
type Model struct {
	Net   *Network  `json:"net"`
	Input []float64 `json:"input"`
}

func (m *Model) Forward() float64 { return m.Net.Output(m.Input) }

func (m *Model) MarshalBinary() ([]byte, error) { return json.Marshal(m) }

// Trainer builds window -> hidden -> 1 perceptrons.
type Trainer struct {
	window int
	hidden int
	seed   int64
	runs   atomic.Int64
}

type Option func(*Trainer)

// WithHiddenUnits overrides the default of 2*window+1.
func WithHiddenUnits(n int) Option {
	return func(t *Trainer) {
		if n > 0 {
			t.hidden = n
		}
	}
}

// WithSeed makes weight initialization reproducible.
func WithSeed(seed int64) Option {
	return func(t *Trainer) { t.seed = seed }
}

func NewTrainer(window int, opts ...Option) *Trainer {
	t := &Trainer{
		window: window,
		hidden: 2*window + 1,
		seed:   time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// each call gets its own source; rand.Rand is not safe for concurrent use
func (t *Trainer) rng() *rand.Rand {
	return rand.New(rand.NewSource(t.seed + t.runs.Add(1)))
}

func (t *Trainer) Fresh() service.Model {
	return &Model{
		Net:   NewNetwork(t.rng(), t.window, t.hidden, 1),
		Input: make([]float64, t.window),
	}
}

func (t *Trainer) Decode(data []byte) (service.Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if m.Net == nil {
		return nil, fmt.Errorf("decode model: missing network")
	}
	if err := m.Net.Validate(); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if m.Net.Sizes[0] != t.window || m.Net.Sizes[len(m.Net.Sizes)-1] != 1 {
		return nil, fmt.Errorf("decode model: topology %v does not match window %d", m.Net.Sizes, t.window)
	}
	if len(m.Input) != t.window {
		return nil, fmt.Errorf("decode model: input has %d values, want %d", len(m.Input), t.window)
	}
	return &m, nil
}

// Train runs online back-propagation until the mean squared error drops
// below hp.MaxError or hp.MaxIterations epochs have passed.
func (t *Trainer) Train(ctx context.Context, samples []models.TrainingSample, hp models.Hyperparameters) (service.Model, models.TrainingStats, error) {
	var stats models.TrainingStats
	if len(samples) == 0 {
		return nil, stats, ErrNoSamples
	}
	for i, s := range samples {
		if len(s.Inputs) != t.window {
			return nil, stats, fmt.Errorf("nnet: sample %d has %d inputs, want %d", i, len(s.Inputs), t.window)
		}
	}

	net := NewNetwork(t.rng(), t.window, t.hidden, 1)
	for stats.Iterations < hp.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		var total float64
		for _, s := range samples {
			total += net.step(s.Inputs, s.Target, hp.LearningRate)
		}
		stats.Iterations++
		stats.FinalError = total / float64(len(samples))
		if stats.FinalError < hp.MaxError {
			break
		}
	}

	last := samples[len(samples)-1].Inputs
	return &Model{Net: net, Input: append([]float64(nil), last...)}, stats, nil
}
