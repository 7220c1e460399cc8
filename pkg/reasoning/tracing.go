package reasoning

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "softreason.reasoning"

const (
	spanIngest      = "reasoning.ingest"
	spanBatchIngest = "reasoning.batch_ingest"
	spanQuery       = "reasoning.query"
	spanPrune       = "reasoning.prune"
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
