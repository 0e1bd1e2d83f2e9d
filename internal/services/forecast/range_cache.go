package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	drepo "FinCast/internal/domain/repository"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

// RangeCache holds the current normalization range per series key.
// Every recompute replaces the whole value; the last writer wins.
type RangeCache struct {
	store    drepo.TickStore
	lookback time.Duration
	ranges   sync.Map // models.SeriesKey -> models.NormalizationRange

	mirror    cache.Service
	mirrorTTL time.Duration
	logger    *applogger.Logger
	now       func() time.Time
}

type RangeOption func(*RangeCache)

// WithMirror copies every recomputed range into c, and reads it back on a
// local miss.
func WithMirror(c cache.Service, ttl time.Duration) RangeOption {
	return func(rc *RangeCache) {
		rc.mirror = c
		rc.mirrorTTL = ttl
	}
}

func WithRangeLogger(l *applogger.Logger) RangeOption {
	return func(rc *RangeCache) { rc.logger = l }
}

func WithRangeClock(now func() time.Time) RangeOption {
	return func(rc *RangeCache) { rc.now = now }
}

func NewRangeCache(store drepo.TickStore, lookback time.Duration, opts ...RangeOption) *RangeCache {
	rc := &RangeCache{
		store:    store,
		lookback: lookback,
		logger:   applogger.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

func mirrorKey(key models.SeriesKey) string {
	return cache.GenerateKeyWithParams("range", key.String())
}

// Get returns the cached range for key.
func (rc *RangeCache) Get(ctx context.Context, key models.SeriesKey) (models.NormalizationRange, bool) {
	if v, ok := rc.ranges.Load(key); ok {
		return v.(models.NormalizationRange), true
	}
	if rc.mirror == nil {
		return models.NormalizationRange{}, false
	}

	var r models.NormalizationRange
	if err := rc.mirror.Get(ctx, mirrorKey(key), &r); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			rc.logger.Warn("range mirror read failed", applogger.String("key", key.String()), applogger.Error(err))
		}
		return models.NormalizationRange{}, false
	}
	// a concurrent recompute may have landed meanwhile; keep it
	actual, _ := rc.ranges.LoadOrStore(key, r)
	return actual.(models.NormalizationRange), true
}

// Recompute derives the range for key from stored closes within the
// look-back window, falling back to the tick's own low/high when the store
// has nothing usable, and installs it.
func (rc *RangeCache) Recompute(ctx context.Context, key models.SeriesKey, fallback models.Tick) (models.NormalizationRange, error) {
	tr := drepo.Lookback(rc.now(), rc.lookback)

	lo, err := rc.store.QueryExtreme(ctx, key, drepo.FieldClose, drepo.OrderMin, tr)
	if err != nil {
		return models.NormalizationRange{}, fmt.Errorf("query min close: %w", err)
	}
	hi, err := rc.store.QueryExtreme(ctx, key, drepo.FieldClose, drepo.OrderMax, tr)
	if err != nil {
		return models.NormalizationRange{}, fmt.Errorf("query max close: %w", err)
	}

	r := ResolveRange(closeOf(lo), closeOf(hi), fallback)
	rc.Set(ctx, key, r)
	return r, nil
}

// Set installs r for key.
func (rc *RangeCache) Set(ctx context.Context, key models.SeriesKey, r models.NormalizationRange) {
	rc.ranges.Store(key, r)
	if rc.mirror != nil {
		if err := rc.mirror.Set(ctx, mirrorKey(key), r, rc.mirrorTTL); err != nil {
			rc.logger.Warn("range mirror write failed", applogger.String("key", key.String()), applogger.Error(err))
		}
	}
}

// ResolveRange applies the fallback rule per bound: a store bound is used
// only when it is positive and the two store bounds differ.
func ResolveRange(storeMin, storeMax float64, t models.Tick) models.NormalizationRange {
	r := models.NormalizationRange{Min: t.Low, Max: t.High}
	if storeMin > 0 && storeMax != storeMin {
		r.Min = storeMin
	}
	if storeMax > 0 && storeMax != storeMin {
		r.Max = storeMax
	}
	return r
}

func closeOf(t *models.Tick) float64 {
	if t == nil {
		return 0
	}
	return t.Close
}
