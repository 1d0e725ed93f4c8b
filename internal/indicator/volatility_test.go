package indicator

import (
	"testing"
	"time"
)

func TestVolatilityTriggersHalt(t *testing.T) {
	now, advance := fakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	m := NewVolatilityMonitor(0.0015, 10*time.Minute)
	m.now = now

	if m.Update(100) {
		t.Fatalf("first price must not halt")
	}
	advance(6 * time.Second)
	// 0.5% move over the 5s lookback, well past the 0.15% threshold.
	if !m.Update(100.5) {
		t.Fatalf("expected halt on volatility breach")
	}
	if !m.Halted() {
		t.Fatalf("expected halt to remain active")
	}
}

func TestVolatilityHaltLatchesRegardlessOfPrice(t *testing.T) {
	now, advance := fakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	m := NewVolatilityMonitor(0.0015, 10*time.Minute)
	m.now = now

	m.Update(100)
	advance(6 * time.Second)
	if !m.Update(101) {
		t.Fatalf("expected halt")
	}
	// Calm prices inside the halt window must still report halted.
	for i := 0; i < 5; i++ {
		advance(time.Minute)
		if !m.Update(101) {
			t.Fatalf("halt must latch until expiry, cleared at step %d", i)
		}
	}
}

func TestVolatilityHaltClearsAfterExpiry(t *testing.T) {
	now, advance := fakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	m := NewVolatilityMonitor(0.0015, 10*time.Minute)
	m.now = now

	m.Update(100)
	advance(6 * time.Second)
	if !m.Update(101) {
		t.Fatalf("expected halt")
	}
	advance(10*time.Minute + time.Second)
	if m.Halted() {
		t.Fatalf("halt should clear once the window expires")
	}
}

func TestVolatilitySmallMovesDoNotHalt(t *testing.T) {
	now, advance := fakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	m := NewVolatilityMonitor(0.0015, 10*time.Minute)
	m.now = now

	m.Update(100)
	advance(6 * time.Second)
	if m.Update(100.1) { // 0.1% < 0.15%
		t.Fatalf("move below threshold must not halt")
	}
}

func TestVolatilityIgnoresInvalidPrice(t *testing.T) {
	m := NewVolatilityMonitor(0.0015, time.Minute)
	if m.Update(0) {
		t.Fatalf("invalid price must not halt")
	}
}
