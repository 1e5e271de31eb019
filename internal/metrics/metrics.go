// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine exports. A single instance is
// shared by the pipeline stages.
type Metrics struct {
	registry *prometheus.Registry

	TxObserved       prometheus.Counter
	TxDecodeFailures prometheus.Counter
	TxDropped        prometheus.Counter

	OpportunitiesDetected *prometheus.CounterVec
	OpportunitiesExpired  prometheus.Counter

	AdmissionsTotal prometheus.Counter
	RejectionsTotal *prometheus.CounterVec
	BreakerTrips    prometheus.Counter
	TradingPaused   prometheus.Gauge

	BundlesSubmitted *prometheus.CounterVec
	BundleLatency    prometheus.Histogram
	TipLamports      prometheus.Histogram

	ActivePositions  prometheus.Gauge
	PositionsClosed  *prometheus.CounterVec
	RealizedPnLSOL   prometheus.Gauge
	CerberusTickAge  prometheus.Histogram
	CerberusTickSkew prometheus.Counter
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(c prometheus.Collector) {
		reg.MustRegister(c)
	}

	m := &Metrics{registry: reg}

	m.TxObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "mempool", Name: "tx_observed_total",
		Help: "Pending transactions received from the websocket feed.",
	})
	m.TxDecodeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "mempool", Name: "tx_decode_failures_total",
		Help: "Transactions dropped because they could not be decoded.",
	})
	m.TxDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "mempool", Name: "tx_dropped_total",
		Help: "Candidates dropped because the buffer was full.",
	})

	m.OpportunitiesDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "strategy", Name: "opportunities_detected_total",
		Help: "Opportunities emitted, by strategy.",
	}, []string{"strategy"})
	m.OpportunitiesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "strategy", Name: "opportunities_expired_total",
		Help: "Opportunities discarded because their deadline passed before execution.",
	})

	m.AdmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "risk", Name: "admissions_total",
		Help: "Opportunities admitted by the risk gate.",
	})
	m.RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "risk", Name: "rejections_total",
		Help: "Opportunities rejected by the risk gate, by reason.",
	}, []string{"reason"})
	m.BreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "risk", Name: "breaker_trips_total",
		Help: "Circuit breaker trips.",
	})
	m.TradingPaused = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hftninja", Subsystem: "risk", Name: "trading_paused",
		Help: "1 when trading is paused, 0 otherwise.",
	})

	m.BundlesSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "bundle", Name: "submitted_total",
		Help: "Bundle submissions, by outcome.",
	}, []string{"status"})
	m.BundleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hftninja", Subsystem: "bundle", Name: "submit_latency_seconds",
		Help:    "Wall time from build to block engine response.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	m.TipLamports = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hftninja", Subsystem: "bundle", Name: "tip_lamports",
		Help:    "Tip attached to submitted bundles.",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
	})

	m.ActivePositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hftninja", Subsystem: "positions", Name: "active",
		Help: "Open and exit-pending positions.",
	})
	m.PositionsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "positions", Name: "closed_total",
		Help: "Positions closed, by exit reason.",
	}, []string{"reason"})
	m.RealizedPnLSOL = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hftninja", Subsystem: "positions", Name: "realized_pnl_sol",
		Help: "Realized PnL since local midnight, in SOL.",
	})
	m.CerberusTickAge = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hftninja", Subsystem: "cerberus", Name: "tick_duration_seconds",
		Help:    "Duration of one decision-loop tick.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .2, .5},
	})
	m.CerberusTickSkew = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hftninja", Subsystem: "cerberus", Name: "tick_overruns_total",
		Help: "Ticks whose work exceeded the tick interval.",
	})

	factory(m.TxObserved)
	factory(m.TxDecodeFailures)
	factory(m.TxDropped)
	factory(m.OpportunitiesDetected)
	factory(m.OpportunitiesExpired)
	factory(m.AdmissionsTotal)
	factory(m.RejectionsTotal)
	factory(m.BreakerTrips)
	factory(m.TradingPaused)
	factory(m.BundlesSubmitted)
	factory(m.BundleLatency)
	factory(m.TipLamports)
	factory(m.ActivePositions)
	factory(m.PositionsClosed)
	factory(m.RealizedPnLSOL)
	factory(m.CerberusTickAge)
	factory(m.CerberusTickSkew)

	return m
}

// Handler returns the scrape handler for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the metrics HTTP server until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("metrics server listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
