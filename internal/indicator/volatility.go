package indicator

import "time"

const (
	volLookback  = 5 * time.Second
	volBufferCap = 100
)

// VolatilityMonitor halts trading when the price moves more than a threshold
// fraction within the 5 second lookback. Once triggered the halt latches
// until the wall clock passes haltedUntil; price action inside the halt
// window neither extends nor clears it.
type VolatilityMonitor struct {
	threshold    float64
	haltDuration time.Duration
	now          func() time.Time

	buffer      []pricePoint
	haltedUntil time.Time
}

type pricePoint struct {
	price float64
	time  time.Time
}

func NewVolatilityMonitor(threshold float64, haltDuration time.Duration) *VolatilityMonitor {
	return &VolatilityMonitor{
		threshold:    threshold,
		haltDuration: haltDuration,
		now:          time.Now,
	}
}

// Update records a price and reports whether trading is halted.
func (m *VolatilityMonitor) Update(price float64) bool {
	if price <= 0 {
		return m.Halted()
	}
	now := m.now()
	m.buffer = append(m.buffer, pricePoint{price: price, time: now})
	if len(m.buffer) > volBufferCap {
		m.buffer = append(m.buffer[:0], m.buffer[len(m.buffer)-volBufferCap:]...)
	}
	if m.insideHalt(now) {
		return true
	}
	if m.lookbackMove(now, price) >= m.threshold {
		m.haltedUntil = now.Add(m.haltDuration)
		return true
	}
	return false
}

// Halted reports whether a halt is currently active, clearing it if the halt
// window has expired.
func (m *VolatilityMonitor) Halted() bool {
	return m.insideHalt(m.now())
}

func (m *VolatilityMonitor) insideHalt(now time.Time) bool {
	if m.haltedUntil.IsZero() {
		return false
	}
	if now.Before(m.haltedUntil) {
		return true
	}
	m.haltedUntil = time.Time{}
	return false
}

// lookbackMove returns |current - reference| / reference where reference is
// the most recent buffered price at least volLookback old, or 0 when the
// buffer does not yet reach that far back.
func (m *VolatilityMonitor) lookbackMove(now time.Time, current float64) float64 {
	if len(m.buffer) < 2 {
		return 0
	}
	cutoff := now.Add(-volLookback)
	var reference float64
	for i := len(m.buffer) - 1; i >= 0; i-- {
		if !m.buffer[i].time.After(cutoff) {
			reference = m.buffer[i].price
			break
		}
	}
	if reference == 0 {
		return 0
	}
	move := current - reference
	if move < 0 {
		move = -move
	}
	return move / reference
}
