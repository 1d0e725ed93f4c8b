package indicator

import (
	"math"
	"testing"

	"go.uber.org/zap"
)

type ohlc struct {
	high, low, close float64
}

// trendingCandles produces a strictly rising series so +DM is always positive
// and DX is deterministic.
func trendingCandles(n int) []ohlc {
	out := make([]ohlc, 0, n)
	base := 100.0
	for i := 0; i < n; i++ {
		p := base + float64(i)
		out = append(out, ohlc{high: p + 1, low: p - 1, close: p})
	}
	return out
}

func TestADXUnavailableBeforeSeed(t *testing.T) {
	a := NewADX(3, zap.NewNop())
	// Seeding needs 1 priming candle, period TR samples, then period DX
	// samples (the first DX arrives with the last TR seed): 6 candles total.
	candles := trendingCandles(6)
	for i, c := range candles[:5] {
		if _, ok := a.Update(c.high, c.low, c.close); ok {
			t.Fatalf("adx available too early at candle %d", i)
		}
	}
	c := candles[5]
	if _, ok := a.Update(c.high, c.low, c.close); !ok {
		t.Fatalf("adx should be available after seeding")
	}
}

func TestADXSeedIsMeanOfDX(t *testing.T) {
	period := 3
	a := NewADX(period, zap.NewNop())

	var adx float64
	var ok bool
	for _, c := range trendingCandles(2 * period) {
		adx, ok = a.Update(c.high, c.low, c.close)
		if ok {
			break
		}
	}
	if !ok {
		t.Fatalf("adx never became available")
	}
	// The first ADX equals the simple mean of the seeded DX values; with a
	// monotone series every DX is 100, so the seed mean is 100.
	if math.Abs(adx-100) > 1e-9 {
		t.Fatalf("expected seeded adx 100, got %.6f", adx)
	}
}

func TestADXEMAUpdateAfterSeed(t *testing.T) {
	period := 3
	alpha := 2.0 / float64(period+1)
	a := NewADX(period, zap.NewNop())

	candles := trendingCandles(2*period + 1)
	var prev float64
	var ok bool
	for _, c := range candles[:2*period] {
		prev, ok = a.Update(c.high, c.low, c.close)
	}
	if !ok {
		t.Fatalf("adx not seeded after %d candles", 2*period)
	}
	// One more candle: the update must be alpha*DX + (1-alpha)*prev.
	c := candles[2*period]
	got, _ := a.Update(c.high, c.low, c.close)
	dx := a.dx()
	want := alpha*dx + (1-alpha)*prev
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected ema update %.6f, got %.6f", want, got)
	}
}

func TestADXRejectsInvalidOHLC(t *testing.T) {
	a := NewADX(3, zap.NewNop())
	for _, c := range trendingCandles(8) {
		a.Update(c.high, c.low, c.close)
	}
	before, ok := a.Value()
	if !ok {
		t.Fatalf("adx should be seeded")
	}
	if got, _ := a.Update(100, 105, 102); got != before { // high < low
		t.Fatalf("inverted ohlc should return prior adx, got %.6f", got)
	}
	if got, _ := a.Update(0, 0, 0); got != before {
		t.Fatalf("non-positive ohlc should return prior adx, got %.6f", got)
	}
}

func TestADXFlatTapeYieldsZeroDX(t *testing.T) {
	a := NewADX(2, zap.NewNop())
	for i := 0; i < 10; i++ {
		a.Update(100, 100, 100)
	}
	got, ok := a.Value()
	if !ok {
		t.Fatalf("adx should be seeded on a flat tape")
	}
	if got != 0 {
		t.Fatalf("flat tape should produce adx 0, got %.6f", got)
	}
}
