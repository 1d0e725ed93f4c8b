package indicator

import (
	"math"

	"go.uber.org/zap"
)

// ADX measures trend strength from closed candles. True range and directional
// movement are smoothed with an EMA (alpha = 2/(period+1)); the EMAs are
// seeded with a simple mean of the first period samples, and the ADX itself is
// an EMA of DX seeded the same way. Value is unavailable until seeding
// completes.
type ADX struct {
	period int
	alpha  float64
	log    *zap.Logger

	prevHigh  float64
	prevLow   float64
	prevClose float64
	hasPrev   bool

	atrEMA     float64
	plusDMEMA  float64
	minusDMEMA float64
	adxEMA     float64
	emaSeeded  bool
	adxSeeded  bool

	seedTR      []float64
	seedPlusDM  []float64
	seedMinusDM []float64
	seedDX      []float64

	current  float64
	hasValue bool
}

func NewADX(period int, log *zap.Logger) *ADX {
	if log == nil {
		log = zap.NewNop()
	}
	return &ADX{
		period: period,
		alpha:  2.0 / float64(period+1),
		log:    log,
	}
}

// Update folds one closed candle into the calculator. The returned bool is
// false until enough samples have been seen to produce an ADX. Invalid OHLC
// input is logged and leaves the state untouched.
func (a *ADX) Update(high, low, close float64) (float64, bool) {
	if high <= 0 || low <= 0 || close <= 0 || high < low {
		a.log.Debug("rejected invalid ohlc sample",
			zap.Float64("high", high), zap.Float64("low", low), zap.Float64("close", close))
		return a.current, a.hasValue
	}
	if !a.hasPrev {
		a.prevHigh, a.prevLow, a.prevClose = high, low, close
		a.hasPrev = true
		return a.current, a.hasValue
	}

	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	highDiff := high - a.prevHigh
	lowDiff := a.prevLow - low
	var plusDM, minusDM float64
	if highDiff > lowDiff {
		plusDM = math.Max(highDiff, 0)
	} else if lowDiff > highDiff {
		minusDM = math.Max(lowDiff, 0)
	}
	a.prevHigh, a.prevLow, a.prevClose = high, low, close

	if !a.emaSeeded {
		a.seedTR = append(a.seedTR, tr)
		a.seedPlusDM = append(a.seedPlusDM, plusDM)
		a.seedMinusDM = append(a.seedMinusDM, minusDM)
		if len(a.seedTR) < a.period {
			return a.current, a.hasValue
		}
		a.atrEMA = mean(a.seedTR)
		a.plusDMEMA = mean(a.seedPlusDM)
		a.minusDMEMA = mean(a.seedMinusDM)
		a.emaSeeded = true
		a.seedTR, a.seedPlusDM, a.seedMinusDM = nil, nil, nil
	} else {
		a.atrEMA = a.alpha*tr + (1-a.alpha)*a.atrEMA
		a.plusDMEMA = a.alpha*plusDM + (1-a.alpha)*a.plusDMEMA
		a.minusDMEMA = a.alpha*minusDM + (1-a.alpha)*a.minusDMEMA
	}

	return a.fold(a.dx())
}

func (a *ADX) dx() float64 {
	if a.atrEMA <= 0 {
		return 0
	}
	plusDI := 100 * a.plusDMEMA / a.atrEMA
	minusDI := 100 * a.minusDMEMA / a.atrEMA
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}

func (a *ADX) fold(dx float64) (float64, bool) {
	if !a.adxSeeded {
		a.seedDX = append(a.seedDX, dx)
		if len(a.seedDX) < a.period {
			return a.current, a.hasValue
		}
		a.adxEMA = mean(a.seedDX)
		a.adxSeeded = true
		a.seedDX = nil
	} else {
		a.adxEMA = a.alpha*dx + (1-a.alpha)*a.adxEMA
	}
	a.current = a.adxEMA
	a.hasValue = true
	return a.current, true
}

func (a *ADX) Value() (float64, bool) {
	return a.current, a.hasValue
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
