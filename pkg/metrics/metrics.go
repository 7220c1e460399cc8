// Package metrics exports engine, HTTP and gRPC instrumentation through a
// private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Buckets are the histogram layouts. Latency is in milliseconds to match
// sr_latency_ms; HTTP durations are in seconds.
type Buckets struct {
	LatencyMS   []float64
	Results     []float64
	HTTPSeconds []float64
}

type Config struct {
	Enabled bool
	// Addr is where Serve listens, e.g. ":9091".
	Addr    string
	Path    string
	Buckets Buckets
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Addr:    ":9091",
		Path:    "/metrics",
		Buckets: Buckets{
			LatencyMS:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
			Results:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			HTTPSeconds: prometheus.DefBuckets,
		},
	}
}

// Manager is a reasoning.MetricsSink. Every method is safe on a disabled
// Manager, where it records nothing.
type Manager struct {
	cfg Config
	reg *prometheus.Registry

	latency    *prometheus.HistogramVec
	ingest     *prometheus.CounterVec
	results    prometheus.Histogram
	pruned     prometheus.Counter
	storeCount prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

func NewManager(cfg Config) *Manager {
	m := &Manager{cfg: cfg}
	if !cfg.Enabled {
		return m
	}

	m.reg = prometheus.NewRegistry()
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.registerEngine()
	m.registerHTTP()
	return m
}

// NoOpManager is a disabled Manager.
func NoOpManager() *Manager { return &Manager{} }

func (m *Manager) Enabled() bool { return m.reg != nil }

// Registerer lets other packages add collectors, such as the gRPC
// interceptors. It is nil when metrics are disabled.
func (m *Manager) Registerer() prometheus.Registerer {
	if m.reg == nil {
		return nil
	}
	return m.reg
}

// TrackQueueDepth exports depth as sr_async_queue_depth, sampled on each
// scrape.
func (m *Manager) TrackQueueDepth(depth func() int) error {
	if m.reg == nil {
		return nil
	}
	return m.reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sr_async_queue_depth",
			Help: "Queries waiting in the async worker pool",
		},
		func() float64 { return float64(depth()) },
	))
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
// A disabled Manager answers 404.
func (m *Manager) Handler() http.Handler {
	if m.reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		Registry:          m.reg,
		EnableOpenMetrics: true,
	})
}

// Serve exposes Handler on cfg.Addr at cfg.Path until ctx is done. It
// returns nil after a clean shutdown and immediately when disabled.
func (m *Manager) Serve(ctx context.Context) error {
	if m.reg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.cfg.Path, m.Handler())
	srv := &http.Server{
		Addr:              m.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
