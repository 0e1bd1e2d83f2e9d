package forecast

import (
	"math"
	"testing"

	"FinCast/internal/domain/models"
)

func TestNormalizeRoundTrip(t *testing.T) {
	r := models.NormalizationRange{Min: 90, Max: 130}
	for _, v := range []float64{90, 97.5, 110, 130} {
		n := Normalize(v, r)
		if n < 0.1-1e-12 || n > 0.9+1e-12 {
			t.Fatalf("normalized %v out of (0.1, 0.9): %v", v, n)
		}
		if back := Denormalize(n, r); math.Abs(back-v) > 1e-9 {
			t.Fatalf("round trip %v -> %v -> %v", v, n, back)
		}
	}
	if got := Normalize(90, r); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("min should map to 0.1, got %v", got)
	}
	if got := Normalize(130, r); math.Abs(got-0.9) > 1e-12 {
		t.Fatalf("max should map to 0.9, got %v", got)
	}
}

func TestStorable(t *testing.T) {
	tests := []struct {
		v    float64
		want bool
	}{
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
		{0, false},
		{-0.2, false},
		{math.MaxFloat64, false},
		{0.5, true},
		{1.7, true},
	}
	for _, tt := range tests {
		if got := Storable(tt.v); got != tt.want {
			t.Errorf("Storable(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestFlatRangeProducesUnstorableValue(t *testing.T) {
	r := models.NormalizationRange{Min: 5, Max: 5}
	if Storable(Normalize(5, r)) {
		t.Fatalf("expected flat range to be rejected")
	}
}
