package forecast

import (
	"context"
	"fmt"
	"sync"

	"FinCast/internal/domain/models"
	"FinCast/internal/domain/service"
	applogger "FinCast/pkg/logger"
)

// RetrainFunc requests a background retrain for key. It must not block.
type RetrainFunc func(key models.SeriesKey)

// Predictor keeps the current model per series key and turns its output
// back into a price.
type Predictor struct {
	ranges  *RangeCache
	trainer service.Trainer
	store   service.ModelStore
	models  sync.Map // models.SeriesKey -> service.Model
	retrain RetrainFunc
	logger  *applogger.Logger
}

func NewPredictor(ranges *RangeCache, trainer service.Trainer, store service.ModelStore, logger *applogger.Logger) *Predictor {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Predictor{ranges: ranges, trainer: trainer, store: store, logger: logger}
}

// SetRetrain installs the hook fired on every prediction that has a range.
func (p *Predictor) SetRetrain(fn RetrainFunc) { p.retrain = fn }

// Install replaces the model for key.
func (p *Predictor) Install(key models.SeriesKey, m service.Model) {
	p.models.Store(key, m)
}

// Model returns the installed model for key, if any.
func (p *Predictor) Model(key models.SeriesKey) (service.Model, bool) {
	m, ok := p.models.Load(key)
	if !ok {
		return nil, false
	}
	return m.(service.Model), true
}

// Predict returns the de-normalized model output for key, or 0 when no
// range is known for it yet.
func (p *Predictor) Predict(ctx context.Context, key models.SeriesKey) float64 {
	r, ok := p.ranges.Get(ctx, key)
	if !ok {
		return 0
	}

	if p.retrain != nil {
		p.retrain(key)
	}

	return Denormalize(p.forward(ctx, key), r)
}

// forward scores key with its resolved model. A model that panics is
// evicted and the prediction falls back to a fresh one.
func (p *Predictor) forward(ctx context.Context, key models.SeriesKey) (raw float64) {
	m := p.resolve(ctx, key)
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("model forward panicked",
				applogger.String("key", key.String()),
				applogger.String("panic", fmt.Sprint(rec)))
			p.models.Delete(key)
			raw = p.trainer.Fresh().Forward()
		}
	}()
	return m.Forward()
}

// resolve finds the model to score with: installed, then persisted, then a
// fresh untrained one. Only a persisted model is installed.
func (p *Predictor) resolve(ctx context.Context, key models.SeriesKey) service.Model {
	if m, ok := p.Model(key); ok {
		return m
	}

	if p.store != nil {
		m, ok, err := p.store.Load(ctx, key)
		switch {
		case err != nil:
			p.logger.Warn("model load failed", applogger.String("key", key.String()), applogger.Error(err))
		case ok:
			actual, _ := p.models.LoadOrStore(key, m)
			return actual.(service.Model)
		}
	}
	return p.trainer.Fresh()
}
