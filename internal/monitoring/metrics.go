package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes engine counters and gauges to Prometheus
type Metrics struct {
	registry *prometheus.Registry

	MonitorCycles    prometheus.Counter
	PriceFetchErrors *prometheus.CounterVec
	PositionsOpened  prometheus.Counter
	PositionsClosed  *prometheus.CounterVec // by exit reason
	CloseFailures    prometheus.Counter
	SignalsRejected  *prometheus.CounterVec // by rejection reason
	KillSwitchTrips  prometheus.Counter
	TrailingUpdates  prometheus.Counter
	CycleDuration    prometheus.Histogram
	OpenPositions    prometheus.Gauge
	AccountEquity    prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		MonitorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_monitor_cycles_total",
			Help: "Number of completed monitoring cycles",
		}),
		PriceFetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_price_fetch_errors_total",
			Help: "Price fetch failures by symbol",
		}, []string{"symbol"}),
		PositionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_positions_opened_total",
			Help: "Number of positions opened",
		}),
		PositionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_positions_closed_total",
			Help: "Number of positions closed by exit reason",
		}, []string{"reason"}),
		CloseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_close_failures_total",
			Help: "Number of failed position close attempts",
		}),
		SignalsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_signals_rejected_total",
			Help: "Number of signals rejected by reason",
		}, []string{"reason"}),
		KillSwitchTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_kill_switch_trips_total",
			Help: "Number of kill switch activations",
		}),
		TrailingUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentinel_trailing_updates_total",
			Help: "Number of trailing stop adjustments",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_monitor_cycle_duration_seconds",
			Help:    "Wall time of one monitoring cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_open_positions",
			Help: "Number of currently open positions",
		}),
		AccountEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_account_equity_usd",
			Help: "Last observed account equity in USD",
		}),
	}

	registry.MustRegister(
		m.MonitorCycles,
		m.PriceFetchErrors,
		m.PositionsOpened,
		m.PositionsClosed,
		m.CloseFailures,
		m.SignalsRejected,
		m.KillSwitchTrips,
		m.TrailingUpdates,
		m.CycleDuration,
		m.OpenPositions,
		m.AccountEquity,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a metrics HTTP server on the given port. Blocks until the
// server fails; run it in a goroutine.
func (m *Metrics) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
