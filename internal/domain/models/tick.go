package models

import (
	"strconv"
	"strings"
	"time"
)

// SeriesKey identifies one independently modelled price series.
// TimeFrame 0 means the series spans every timeframe of the symbol.
type SeriesKey struct {
	Symbol    string `json:"symbol"`
	TimeFrame int    `json:"timeframe,omitempty"`
}

func NewSeriesKey(symbol string, timeFrame int) SeriesKey {
	return SeriesKey{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), TimeFrame: timeFrame}
}

// String renders SYMBOL@TF. The timeframe is always present and follows
// the last '@', so symbols such as "BINANCE:BTCUSDT" never collide with
// another key.
func (k SeriesKey) String() string {
	return k.Symbol + "@" + strconv.Itoa(k.TimeFrame)
}

// Tick is a single OHLC observation. Normalized is nil until the ingest
// path assigns it, and never changes afterwards.
type Tick struct {
	Symbol     string    `json:"symbol"`
	TimeFrame  int       `json:"timeframe"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	Normalized *float64  `json:"normalized,omitempty"`
}

func (t *Tick) Key() SeriesKey { return NewSeriesKey(t.Symbol, t.TimeFrame) }

// WithNormalized returns a copy carrying the normalized close.
func (t Tick) WithNormalized(v float64) Tick {
	t.Normalized = &v
	return t
}

// NormalizationRange is the min/max used to scale a series into (0.1, 0.9).
type NormalizationRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TrainingSample is one fixed-width window and the value the model should
// reproduce for it.
type TrainingSample struct {
	Inputs      []float64 `json:"inputs"`
	Target      float64   `json:"target"`
	TargetIndex int       `json:"target_index"`
}

// Hyperparameters drive one training run.
type Hyperparameters struct {
	MaxIterations int     `json:"max_iterations"`
	LearningRate  float64 `json:"learning_rate"`
	MaxError      float64 `json:"max_error"`
}

func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{MaxIterations: 1000, LearningRate: 0.5, MaxError: 0.00001}
}
