package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/softreason/softreason/pkg/reasoning"
)

var _ reasoning.MetricsSink = (*Manager)(nil)

func (m *Manager) registerEngine() {
	b := m.cfg.Buckets
	m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    reasoning.MetricLatency,
		Help:    "Engine operation latency in milliseconds",
		Buckets: b.LatencyMS,
	}, []string{reasoning.LabelOp})
	m.ingest = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: reasoning.MetricIngest,
		Help: "Ingest outcomes by reason",
	}, []string{reasoning.LabelReason})
	m.results = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    reasoning.MetricResults,
		Help:    "Results returned per query",
		Buckets: b.Results,
	})
	m.pruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: reasoning.MetricPruned,
		Help: "Records removed by TTL pruning",
	})
	m.storeCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: reasoning.MetricStoreCount,
		Help: "Records in the vector store at the last health check",
	})

	m.reg.MustRegister(m.latency, m.ingest, m.results, m.pruned, m.storeCount)
}

// Inc ignores names it does not export.
func (m *Manager) Inc(name string, labels map[string]string) {
	if m.reg == nil {
		return
	}
	switch name {
	case reasoning.MetricIngest:
		m.ingest.WithLabelValues(labels[reasoning.LabelReason]).Inc()
	case reasoning.MetricPruned:
		m.pruned.Inc()
	}
}

// Observe ignores names it does not export. sr_store_count is a gauge, so
// the value replaces the previous one.
func (m *Manager) Observe(name string, value float64, labels map[string]string) {
	if m.reg == nil {
		return
	}
	switch name {
	case reasoning.MetricLatency:
		m.latency.WithLabelValues(labels[reasoning.LabelOp]).Observe(value)
	case reasoning.MetricResults:
		m.results.Observe(value)
	case reasoning.MetricStoreCount:
		m.storeCount.Set(value)
	}
}
