package reasoning

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/softreason/softreason/pkg/vectorstore"
)

// Health is a point-in-time snapshot of the engine.
type Health struct {
	// StoreCount is -1 when the store could not be counted.
	StoreCount int `json:"store_count"`

	LastQueryMs float64 `json:"last_query_ms"`

	// LastIngestTime is unix seconds, 0 before the first write.
	LastIngestTime float64 `json:"last_ingest_time"`

	Recall    RecallConfig    `json:"recall"`
	Writeback WritebackConfig `json:"writeback"`
}

// Prune deletes records older than their TTL (the record's positive
// override or DefaultTTLSeconds) and returns how many were removed. It only
// works on stores implementing vectorstore.Scanner and returns 0 for others. Prune
// never fails: errors and panics are logged and yield the count gathered
// so far.
func (e *Engine) Prune(ctx context.Context) (removed int) {
	scanner, ok := e.store.(vectorstore.Scanner)
	if !ok {
		return 0
	}

	ctx, span := tracer().Start(ctx, spanPrune)
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "prune panicked", "panic", fmt.Sprint(r))
		}
		span.SetAttributes(attribute.Int("softreason.removed", removed))
		span.End()
	}()

	records, err := scanner.Records(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "prune scan failed", "error", err)
		return 0
	}

	now := e.nowSeconds()
	var expired []string
	for _, rec := range records {
		ttl := e.writeback.DefaultTTLSeconds
		if rec.Payload.TTLOverride != nil && *rec.Payload.TTLOverride > 0 {
			ttl = *rec.Payload.TTLOverride
		}
		if now-rec.Payload.Timestamp > ttl {
			expired = append(expired, rec.ID)
		}
	}
	if len(expired) == 0 {
		return 0
	}

	if err := e.store.Delete(ctx, expired); err != nil {
		e.logger.WarnContext(ctx, "prune delete failed", "error", err, "ids", len(expired))
		return 0
	}

	removed = len(expired)
	for range expired {
		e.metrics.Inc(MetricPruned, nil)
	}
	e.emit(Event{Type: EventPruned, Count: removed})
	e.logger.DebugContext(ctx, "pruned expired records", "removed", removed)
	return removed
}

// Delete removes records by id. Failures are logged and otherwise ignored.
func (e *Engine) Delete(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "delete panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := e.store.Delete(ctx, ids); err != nil {
		e.logger.WarnContext(ctx, "delete failed", "error", err, "ids", len(ids))
	}
}

// Health returns a snapshot of the engine. It never fails and is safe to
// call from liveness probes.
func (e *Engine) Health(ctx context.Context) Health {
	return Health{
		StoreCount:     e.storeCount(ctx),
		LastQueryMs:    math.Float64frombits(e.lastQueryMs.Load()),
		LastIngestTime: math.Float64frombits(e.lastIngestTime.Load()),
		Recall:         e.recall,
		Writeback:      e.writeback,
	}
}

func (e *Engine) storeCount(ctx context.Context) (n int) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "store count panicked", "panic", fmt.Sprint(r))
			n = -1
		}
	}()

	n, err := e.store.Count(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "store count failed", "error", err)
		return -1
	}
	e.metrics.Observe(MetricStoreCount, float64(n), nil)
	return n
}
