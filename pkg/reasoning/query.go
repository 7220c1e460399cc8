package reasoning

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/softreason/softreason/pkg/vectorstore"
	"github.com/softreason/softreason/pkg/workerpool"
)

// Result is a ranked query hit. Score is in [0,1].
type Result struct {
	ID      string              `json:"id"`
	Score   float64             `json:"score"`
	Payload vectorstore.Payload `json:"payload"`
}

// QueryOutcome is delivered by QueryAsync.
type QueryOutcome struct {
	Results []Result
	Err     error
}

// Query returns up to max(1, min(topK, FinalTopK)) results ranked by
// similarity blended with recency, in non-increasing score order. Empty text
// returns nil without touching the store.
func (e *Engine) Query(ctx context.Context, text string, opts ...QueryOption) (results []Result, err error) {
	if text == "" {
		return nil, nil
	}

	o := queryOptions{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := tracer().Start(ctx, spanQuery)
	span.SetAttributes(attribute.Int("softreason.top_k", o.topK))

	start := e.now()
	defer func() {
		ms := msSince(e.now(), start)
		e.lastQueryMs.Store(math.Float64bits(ms))
		e.metrics.Observe(MetricLatency, ms, map[string]string{LabelOp: OpQuery})
		e.metrics.Observe(MetricResults, float64(len(results)), nil)

		span.SetAttributes(attribute.Int("softreason.results", len(results)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Stage 1: prefilter with the fast embedding.
	fastVec, err := e.embedder.EmbedFast(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("reasoning: fast embedding: %w", err)
	}
	hits, err := e.store.Search(ctx, fastVec, max(o.topK, e.recall.FastTopK), o.filter)
	if err != nil {
		return nil, fmt.Errorf("reasoning: search: %w", err)
	}

	candidates := make([]Result, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, Result{
			ID:      h.ID,
			Score:   clamp01(h.Score),
			Payload: h.Payload.Clone(),
		})
	}

	// Stage 2: rerank with the precise embedding.
	if e.recall.UseDualEmbedding && len(candidates) > 0 {
		preciseVec, err := e.embedder.EmbedPrecise(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("reasoning: precise embedding: %w", err)
		}
		e.rerank(ctx, preciseVec, candidates)
		sortResults(candidates)
	}

	// Stage 3: recency reweight, filter, order, truncate.
	now := e.nowSeconds()
	results = candidates[:0]
	for _, c := range candidates {
		recency := Recency(now-c.Payload.Timestamp, e.recall.RecencyHorizonSec)
		c.Score = Blend(e.recall.RecencyAlpha, c.Score, recency)
		if c.Score < e.recall.MinScore {
			continue
		}
		results = append(results, c)
	}
	sortResults(results)

	if limit := ResultLimit(o.topK, e.recall.FinalTopK); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// rerank rescores candidates in place. Stores implementing
// vectorstore.Rescorer recompute similarity against the precise vector when
// hybrid rerank is enabled; otherwise scores are sharpened.
func (e *Engine) rerank(ctx context.Context, preciseVec []float32, candidates []Result) {
	if rescorer, ok := e.store.(vectorstore.Rescorer); ok && e.recall.EnableHybridRerank {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		scores, err := rescorer.Rescore(ctx, preciseVec, ids)
		if err == nil {
			for i := range candidates {
				if s, ok := scores[candidates[i].ID]; ok {
					candidates[i].Score = clamp01(s)
				} else {
					candidates[i].Score = Sharpen(candidates[i].Score)
				}
			}
			return
		}
		e.logger.WarnContext(ctx, "rescore failed, falling back to sharpening", "error", err)
	}

	for i := range candidates {
		candidates[i].Score = Sharpen(candidates[i].Score)
	}
}

// QueryAsync runs Query on the engine's worker pool. The channel receives
// exactly one outcome. The query runs detached from ctx cancellation once
// queued; ctx only bounds the wait for a free queue slot.
func (e *Engine) QueryAsync(ctx context.Context, text string, opts ...QueryOption) <-chan QueryOutcome {
	out := make(chan QueryOutcome, 1)
	detached := context.WithoutCancel(ctx)

	err := e.pool.Submit(ctx, func() {
		var outcome QueryOutcome
		defer func() {
			if r := recover(); r != nil {
				e.logger.ErrorContext(detached, "query panicked", "panic", fmt.Sprint(r))
				outcome = QueryOutcome{Err: fmt.Errorf("reasoning: query panicked: %v", r)}
			}
			out <- outcome
		}()
		outcome.Results, outcome.Err = e.Query(detached, text, opts...)
	})
	if err != nil {
		if errors.Is(err, workerpool.ErrStopped) {
			err = ErrPoolClosed
		}
		out <- QueryOutcome{Err: err}
	}
	return out
}

// AQuery submits the query to the worker pool and waits for it. If ctx ends
// first, AQuery returns ctx.Err() while the query keeps running to
// completion in the background.
func (e *Engine) AQuery(ctx context.Context, text string, opts ...QueryOption) ([]Result, error) {
	select {
	case outcome := <-e.QueryAsync(ctx, text, opts...):
		return outcome.Results, outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
