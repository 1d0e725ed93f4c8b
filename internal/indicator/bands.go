package indicator

import "math"

// MinBandStd floors the deviation estimate at 0.1% so a quiet tape cannot
// collapse the bands onto the VWAP.
const MinBandStd = 0.001

// Bands derives upper/lower mean-reversion bands from the population standard
// deviation of percentage price deviations from VWAP over a fixed-size
// trailing window.
type Bands struct {
	window     int
	multiplier float64

	deviations []float64
	std        float64
}

func NewBands(window int, multiplier float64) *Bands {
	return &Bands{window: window, multiplier: multiplier}
}

// Update records the deviation of price from vwap and returns the new bands.
// With vwap <= 0 or price <= 0 no deviation is recorded and the bands are
// computed from the existing deviation estimate; callers guard vwap == 0.
func (b *Bands) Update(price, vwap float64) (upper, lower float64) {
	if vwap > 0 && price > 0 {
		b.deviations = append(b.deviations, (price-vwap)/vwap)
		if len(b.deviations) > b.window {
			b.deviations = append(b.deviations[:0], b.deviations[len(b.deviations)-b.window:]...)
		}
		if len(b.deviations) >= 2 {
			b.std = math.Max(populationStd(b.deviations), MinBandStd)
		}
	}
	return b.Current(vwap)
}

// Current returns the bands for a given vwap without recording a sample.
func (b *Bands) Current(vwap float64) (upper, lower float64) {
	upper = vwap * (1 + b.std*b.multiplier)
	lower = vwap * (1 - b.std*b.multiplier)
	return upper, lower
}

func (b *Bands) Std() float64 {
	return b.std
}

// Deviations returns a copy of the deviation window for snapshot persistence.
func (b *Bands) Deviations() []float64 {
	out := make([]float64, len(b.deviations))
	copy(out, b.deviations)
	return out
}

// Restore replaces the deviation window from a snapshot.
func (b *Bands) Restore(deviations []float64) {
	b.deviations = b.deviations[:0]
	b.deviations = append(b.deviations, deviations...)
	if len(b.deviations) > b.window {
		b.deviations = b.deviations[len(b.deviations)-b.window:]
	}
	if len(b.deviations) >= 2 {
		b.std = math.Max(populationStd(b.deviations), MinBandStd)
	}
}

// Reset clears the window, e.g. at the daily session boundary.
func (b *Bands) Reset() {
	b.deviations = b.deviations[:0]
	b.std = 0
}

func populationStd(values []float64) float64 {
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
