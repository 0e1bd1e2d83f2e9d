package forecast

import "FinCast/internal/domain/models"

// Windower cuts an ordered series into fixed-width training samples.
type Windower struct {
	size int
}

func NewWindower(size int) *Windower {
	if size <= 0 {
		size = 1
	}
	return &Windower{size: size}
}

func (w *Windower) Size() int { return w.size }

// BuildSamples splits values into consecutive non-overlapping chunks of
// Size slots. Missing slots (nil, or past the end of a short final chunk)
// take the last present value to their left, or 0 before any. The target
// is the value at the last present slot. Chunks with no present value are
// dropped.
func (w *Windower) BuildSamples(values []*float64) []models.TrainingSample {
	samples := make([]models.TrainingSample, 0, (len(values)+w.size-1)/w.size)

	for start := 0; start < len(values); start += w.size {
		chunk := values[start:min(start+w.size, len(values))]

		inputs := make([]float64, w.size)
		carry := 0.0
		last := -1
		for j := range inputs {
			if j < len(chunk) && chunk[j] != nil {
				carry = *chunk[j]
				last = j
			}
			inputs[j] = carry
		}
		if last < 0 {
			continue
		}

		samples = append(samples, models.TrainingSample{
			Inputs:      inputs,
			Target:      *chunk[last],
			TargetIndex: last,
		})
	}
	return samples
}

// NormalizedSeries extracts the normalized values of ticks in order.
func NormalizedSeries(ticks []models.Tick) []*float64 {
	out := make([]*float64, len(ticks))
	for i := range ticks {
		out[i] = ticks[i].Normalized
	}
	return out
}
