// Package reasoning implements the soft reasoning engine: a retrieval
// memory cache that embeds short texts into a vector store, admits writes
// only when they are novel enough, ranks lookups by similarity blended with
// recency and evicts records on TTL.
//
// The engine holds no lock over records. Concurrent calls are as safe as
// the underlying vectorstore.Store; multi-step pipelines (novelty check then
// upsert, scan then delete) are not atomic.
package reasoning

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/softreason/softreason/pkg/embedding"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/vectorstore"
	"github.com/softreason/softreason/pkg/workerpool"
)

const (
	defaultAsyncWorkers = 4
	defaultAsyncQueue   = 64
)

// Engine is the soft reasoning engine.
type Engine struct {
	store     vectorstore.Store
	embedder  embedding.Provider
	recall    RecallConfig
	writeback WritebackConfig

	metrics  MetricsSink
	logger   logger.Logger
	observer Observer
	policy   NoveltyPolicy
	now      func() time.Time

	pool         *workerpool.Pool
	ownsPool     bool
	asyncWorkers int
	asyncQueue   int

	// float64 bits
	lastQueryMs    atomic.Uint64
	lastIngestTime atomic.Uint64
}

// New creates an engine. Both configs are validated and copied.
func New(store vectorstore.Store, embedder embedding.Provider, recall RecallConfig, writeback WritebackConfig, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if err := recall.Validate(); err != nil {
		return nil, err
	}
	if err := writeback.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		store:        store,
		embedder:     embedder,
		recall:       recall,
		writeback:    writeback,
		metrics:      NopMetrics{},
		logger:       logger.Nop(),
		policy:       FailOpen,
		now:          time.Now,
		ownsPool:     true,
		asyncWorkers: defaultAsyncWorkers,
		asyncQueue:   defaultAsyncQueue,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.pool == nil {
		e.pool = workerpool.New(e.asyncWorkers, e.asyncQueue, workerpool.WithLogger(e.logger))
	}
	e.pool.Start()
	return e, nil
}

// Close stops the async worker pool if the engine created it. Queued
// queries still run.
func (e *Engine) Close() error {
	if e.ownsPool {
		e.pool.Stop()
	}
	return nil
}

// RecallConfig returns the recall settings.
func (e *Engine) RecallConfig() RecallConfig {
	return e.recall
}

// WritebackConfig returns the writeback settings.
func (e *Engine) WritebackConfig() WritebackConfig {
	return e.writeback
}

func (e *Engine) nowSeconds() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

func (e *Engine) emit(ev Event) {
	if e.observer == nil {
		return
	}
	ev.Timestamp = e.now()
	e.observer.OnEvent(ev)
}

// buildPayload assembles the stored payload: the caller's metadata plus a
// timestamp (unless supplied), the TTL override and the truncated text.
func (e *Engine) buildPayload(text string, metadata map[string]any, o ingestOptions) vectorstore.Payload {
	flat := make(map[string]any, len(metadata)+3)
	for k, v := range metadata {
		flat[k] = v
	}

	if ts, ok := flat[vectorstore.KeyTimestamp]; !ok {
		flat[vectorstore.KeyTimestamp] = e.nowSeconds()
	} else if _, ok := vectorstore.ToFloat(ts); !ok {
		flat[vectorstore.KeyTimestamp] = e.nowSeconds()
	}

	switch {
	case o.ttl != nil && *o.ttl > 0:
		flat[vectorstore.KeyTTLOverride] = *o.ttl
	case o.longTTL && e.writeback.LongTTLSeconds > 0:
		flat[vectorstore.KeyTTLOverride] = e.writeback.LongTTLSeconds
	}

	flat[vectorstore.KeyText] = TruncateRunes(text, e.writeback.MaxLenChars)
	return vectorstore.PayloadFromMap(flat)
}

// entropy runs the novelty check. It returns 1 for an empty store. A non-nil
// error means the check could not run.
func (e *Engine) entropy(ctx context.Context, text string) (float64, error) {
	vec, err := e.embedder.EmbedFast(ctx, text)
	if err != nil {
		return 1, fmt.Errorf("fast embedding: %w", err)
	}
	hits, err := e.store.Search(ctx, vec, 1, nil)
	if err != nil {
		return 1, fmt.Errorf("search: %w", err)
	}
	if len(hits) == 0 {
		return 1, nil
	}
	return Entropy(hits[0].Score), nil
}

// admit applies the novelty gate. It reports whether the text may be
// written; the error is only set under FailClosed.
func (e *Engine) admit(ctx context.Context, text string) (bool, error) {
	ent, err := e.entropy(ctx, text)
	if err != nil {
		if e.policy == FailClosed {
			e.logger.WarnContext(ctx, "novelty check failed, refusing write", "error", err)
			return false, fmt.Errorf("%w: %v", ErrNoveltyCheck, err)
		}
		e.logger.WarnContext(ctx, "novelty check failed, admitting write", "error", err)
		ent = 1
	}
	if ent < e.writeback.NoveltyGate {
		e.metrics.Inc(MetricIngest, map[string]string{LabelReason: ReasonNotNovel})
		e.emit(Event{Type: EventRejected, Reason: ReasonNotNovel})
		return false, nil
	}
	return true, nil
}

// Ingest stores text unless it is empty or not novel enough, returning the
// new record id or "" when nothing was written. Upsert and precise-embedding
// failures are returned; novelty-check failures follow the NoveltyPolicy.
func (e *Engine) Ingest(ctx context.Context, text string, metadata map[string]any, opts ...IngestOption) (id string, err error) {
	if text == "" {
		return "", nil
	}

	var o ingestOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := tracer().Start(ctx, spanIngest)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("softreason.id", id))
		span.End()
	}()

	start := e.now()
	defer func() {
		e.metrics.Observe(MetricLatency, msSince(e.now(), start), map[string]string{LabelOp: OpIngest})
	}()

	payload := e.buildPayload(text, metadata, o)

	if !o.force {
		ok, err := e.admit(ctx, payload.Text)
		if err != nil || !ok {
			return "", err
		}
	}

	vec, err := e.embedder.EmbedPrecise(ctx, payload.Text)
	if err != nil {
		return "", fmt.Errorf("reasoning: precise embedding: %w", err)
	}

	raw, err := e.store.Upsert(ctx, vec, payload)
	if err != nil {
		return "", fmt.Errorf("reasoning: upsert: %w", err)
	}

	e.lastIngestTime.Store(math.Float64bits(e.nowSeconds()))
	e.metrics.Inc(MetricIngest, map[string]string{LabelReason: ReasonIngested})

	id = vectorstore.NormalizeID(raw)
	e.emit(Event{Type: EventIngested, ID: id})
	return id, nil
}

// Item is one BatchIngest input.
type Item struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BatchIngest ingests several items with one store write. The result always
// has one entry per item; empty, rejected and unmapped positions are "".
// The batch is not transactional: on error the returned slice reports the
// ids that are known to be stored.
func (e *Engine) BatchIngest(ctx context.Context, items []Item, opts ...IngestOption) (ids []string, err error) {
	ids = make([]string, len(items))
	if len(items) == 0 {
		return ids, nil
	}

	var o ingestOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := tracer().Start(ctx, spanBatchIngest)
	span.SetAttributes(attribute.Int("softreason.items", len(items)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := e.now()
	defer func() {
		e.metrics.Observe(MetricLatency, msSince(e.now(), start), map[string]string{LabelOp: OpBatchIngest})
	}()

	var (
		positions []int
		vectors   [][]float32
		payloads  []vectorstore.Payload
	)
	for i, item := range items {
		if item.Text == "" {
			continue
		}
		payload := e.buildPayload(item.Text, item.Metadata, o)
		if !o.force {
			ok, err := e.admit(ctx, payload.Text)
			if err != nil {
				return ids, err
			}
			if !ok {
				continue
			}
		}
		vec, err := e.embedder.EmbedPrecise(ctx, payload.Text)
		if err != nil {
			return ids, fmt.Errorf("reasoning: precise embedding item %d: %w", i, err)
		}
		positions = append(positions, i)
		vectors = append(vectors, vec)
		payloads = append(payloads, payload)
	}

	if len(positions) == 0 {
		return ids, nil
	}

	raw, upsertErr := e.store.BatchUpsert(ctx, vectors, payloads)
	accepted := 0
	for j, pos := range positions {
		if j >= len(raw) {
			break
		}
		ids[pos] = vectorstore.NormalizeID(raw[j])
		if ids[pos] != "" {
			accepted++
			e.metrics.Inc(MetricIngest, map[string]string{LabelReason: ReasonBatch})
			e.emit(Event{Type: EventIngested, ID: ids[pos]})
		}
	}
	if accepted > 0 {
		e.lastIngestTime.Store(math.Float64bits(e.nowSeconds()))
	}
	if upsertErr != nil {
		return ids, fmt.Errorf("reasoning: batch upsert: %w", upsertErr)
	}
	return ids, nil
}

func msSince(now, start time.Time) float64 {
	return float64(now.Sub(start).Microseconds()) / 1000
}
