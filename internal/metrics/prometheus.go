package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "bn_scalp_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	ordersPlaced    prometheus.Counter
	ordersFailed    prometheus.Counter
	positionsOpened prometheus.Counter
	positionsClosed prometheus.Counter
	exitFailed      prometheus.Counter
	volatilityHalts prometheus.Counter
	activePositions prometheus.Gauge
	totalPnL        prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of entry orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order placement failures.",
	})
	positionsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_opened_total",
		Help:      "Total number of positions promoted to active.",
	})
	positionsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_closed_total",
		Help:      "Total number of positions closed.",
	})
	exitFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "exit_failed_total",
		Help:      "Total number of exit flow failures.",
	})
	volatilityHalts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "volatility_halts_total",
		Help:      "Total number of volatility circuit breaker engagements.",
	})
	activePositions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "active_positions",
		Help:      "Number of currently active positions.",
	})
	totalPnL := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "total_pnl",
		Help:      "Cumulative realized PnL in quote currency.",
	})

	registry.MustRegister(ordersPlaced, ordersFailed, positionsOpened, positionsClosed,
		exitFailed, volatilityHalts, activePositions, totalPnL)

	m := &Metrics{
		OrdersPlaced:    promCounter{ordersPlaced},
		OrdersFailed:    promCounter{ordersFailed},
		PositionsOpened: promCounter{positionsOpened},
		PositionsClosed: promCounter{positionsClosed},
		ExitFailed:      promCounter{exitFailed},
		VolatilityHalts: promCounter{volatilityHalts},
		ActivePositions: promGauge{activePositions},
		TotalPnL:        promGauge{totalPnL},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		ordersPlaced:    ordersPlaced,
		ordersFailed:    ordersFailed,
		positionsOpened: positionsOpened,
		positionsClosed: positionsClosed,
		exitFailed:      exitFailed,
		volatilityHalts: volatilityHalts,
		activePositions: activePositions,
		totalPnL:        totalPnL,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
