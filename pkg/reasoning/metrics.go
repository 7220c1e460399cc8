package reasoning

// Metric names emitted by the engine.
const (
	MetricLatency    = "sr_latency_ms"
	MetricIngest     = "sr_ingest_total"
	MetricResults    = "sr_results"
	MetricPruned     = "sr_pruned_total"
	MetricStoreCount = "sr_store_count"
)

// Label keys and values.
const (
	LabelOp     = "op"
	LabelReason = "reason"

	OpQuery       = "query"
	OpIngest      = "ingest"
	OpBatchIngest = "batch_ingest"

	ReasonIngested = "ingested"
	ReasonNotNovel = "not_novel"
	ReasonBatch    = "batch"
)

// MetricsSink receives engine measurements. Implementations must be safe for
// concurrent use.
type MetricsSink interface {
	Inc(name string, labels map[string]string)
	Observe(name string, value float64, labels map[string]string)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

// Inc implements MetricsSink.
func (NopMetrics) Inc(string, map[string]string) {}

// Observe implements MetricsSink.
func (NopMetrics) Observe(string, float64, map[string]string) {}
