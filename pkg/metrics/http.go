package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

func (m *Manager) registerHTTP() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sr_http_requests_total",
		Help: "HTTP requests served by method, route and status",
	}, []string{"method", "route", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sr_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: m.cfg.Buckets.HTTPSeconds,
	}, []string{"method", "route"})
	m.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sr_http_in_flight",
		Help: "HTTP requests currently being served",
	})

	m.reg.MustRegister(m.httpRequests, m.httpDuration, m.httpInFlight)
}

// ObserveHTTP records one finished request. A sampled span in ctx is
// attached to the duration sample as an exemplar.
func (m *Manager) ObserveHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m.reg == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()

	obs := m.httpDuration.WithLabelValues(method, route)
	sc := trace.SpanContextFromContext(ctx)
	if eo, ok := obs.(prometheus.ExemplarObserver); ok && sc.IsValid() && sc.IsSampled() {
		eo.ObserveWithExemplar(elapsed.Seconds(), prometheus.Labels{
			"trace_id": sc.TraceID().String(),
			"span_id":  sc.SpanID().String(),
		})
		return
	}
	obs.Observe(elapsed.Seconds())
}

func (m *Manager) AddHTTPInFlight(delta float64) {
	if m.reg == nil {
		return
	}
	m.httpInFlight.Add(delta)
}
