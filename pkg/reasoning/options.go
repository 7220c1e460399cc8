package reasoning

import (
	"time"

	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/workerpool"
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithMetrics sets the metrics sink for the engine.
func WithMetrics(metrics MetricsSink) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an observer for ingest and prune events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithNoveltyPolicy selects how a failing novelty check is handled.
func WithNoveltyPolicy(p NoveltyPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAsyncPool sets the worker pool used by QueryAsync. The engine starts
// the pool but does not stop it on Close.
func WithAsyncPool(pool *workerpool.Pool) Option {
	return func(e *Engine) {
		if pool != nil {
			e.pool = pool
			e.ownsPool = false
		}
	}
}

// WithAsyncWorkers sizes the pool the engine creates for QueryAsync.
func WithAsyncWorkers(workers, queueSize int) Option {
	return func(e *Engine) {
		e.asyncWorkers = workers
		e.asyncQueue = queueSize
	}
}

// IngestOption configures a single Ingest or BatchIngest call.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	ttl     *float64
	force   bool
	longTTL bool
}

// WithTTL stores seconds as the record's TTL override. Non-positive values
// leave the default TTL in effect.
func WithTTL(seconds float64) IngestOption {
	return func(o *ingestOptions) {
		o.ttl = &seconds
	}
}

// WithLongTTL uses the configured long TTL as the record's TTL override.
// An explicit WithTTL takes precedence.
func WithLongTTL() IngestOption {
	return func(o *ingestOptions) {
		o.longTTL = true
	}
}

// WithForce skips the novelty gate.
func WithForce() IngestOption {
	return func(o *ingestOptions) {
		o.force = true
	}
}

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	topK   int
	filter map[string]any
}

// DefaultTopK is the result bound used when WithTopK is not given.
const DefaultTopK = 3

// WithTopK sets the requested number of results.
func WithTopK(n int) QueryOption {
	return func(o *queryOptions) {
		o.topK = n
	}
}

// WithFilter restricts candidates to records whose metadata matches every
// key of filter.
func WithFilter(filter map[string]any) QueryOption {
	return func(o *queryOptions) {
		o.filter = filter
	}
}
