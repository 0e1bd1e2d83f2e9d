package models

import "time"

// TrainingEvent describes one completed (or failed) retrain.
type TrainingEvent struct {
	RunID      string        `json:"run_id"`
	Key        string        `json:"key"`
	Samples    int           `json:"samples"`
	Iterations int           `json:"iterations"`
	FinalError float64       `json:"final_error"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
	Error      string        `json:"error,omitempty"`
}

// TrainingStats is reported by a trainer after a run.
type TrainingStats struct {
	Iterations int
	FinalError float64
}

// Prediction is the value returned for a series key.
type Prediction struct {
	Symbol    string  `json:"symbol"`
	TimeFrame int     `json:"timeframe,omitempty"`
	Value     float64 `json:"value"`
}
