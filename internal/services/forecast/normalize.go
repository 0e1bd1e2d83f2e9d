// Package forecast holds the per-series state behind ingestion and
// prediction: scaling ranges, sample windows, the training lock table and
// the model registry.
package forecast

import (
	"math"

	"FinCast/internal/domain/models"
)

const (
	scaleLow  = 0.1
	scaleSpan = 0.8
)

// Normalize maps v into (0.1, 0.9) when min <= v <= max.
func Normalize(v float64, r models.NormalizationRange) float64 {
	return (v-r.Min)/(r.Max-r.Min)*scaleSpan + scaleLow
}

// Denormalize is the inverse of Normalize.
func Denormalize(n float64, r models.NormalizationRange) float64 {
	return r.Min + (n-scaleLow)*(r.Max-r.Min)/scaleSpan
}

// Storable reports whether a normalized value may be persisted.
func Storable(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0) && n > 0 && n < math.MaxFloat64
}
