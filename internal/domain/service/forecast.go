package service

import (
	"context"

	"FinCast/internal/domain/models"
)

// Model is a trained (or freshly initialized) predictor for one series.
// Forward returns a score on the normalized scale.
type Model interface {
	Forward() float64
	MarshalBinary() ([]byte, error)
}

// Trainer fits a model to a set of samples. It must honour ctx cancellation.
type Trainer interface {
	Train(ctx context.Context, samples []models.TrainingSample, hp models.Hyperparameters) (Model, models.TrainingStats, error)
	// Fresh returns an untrained model.
	Fresh() Model
	// Decode restores a model produced by Model.MarshalBinary.
	Decode(data []byte) (Model, error)
}

// ModelStore persists models per series key.
type ModelStore interface {
	Save(ctx context.Context, key models.SeriesKey, m Model) error
	// Load returns ok=false when nothing was stored for key.
	Load(ctx context.Context, key models.SeriesKey) (m Model, ok bool, err error)
}
