// Package cache wraps an embedding.Embedder with a two-level cache: an
// in-process ristretto cache (L1) in front of an optional shared store such
// as Redis (L2). Cache failures never fail an embedding call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/softreason/softreason/pkg/embedding"
	"github.com/softreason/softreason/pkg/logger"
)

// L2 is a shared cache tier.
type L2 interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// Config holds configuration for the cached embedder.
type Config struct {
	// Namespace separates cache entries of different models.
	Namespace string

	// MaxEntries bounds the L1 cache; every vector costs 1.
	MaxEntries int64

	// TTL applies to L1 and L2 entries. Zero keeps entries until evicted.
	TTL time.Duration
}

// Stats reports cache effectiveness.
type Stats struct {
	L1Hits int64
	L2Hits int64
	Misses int64
}

// Embedder is a caching embedding.Embedder.
type Embedder struct {
	next      embedding.Embedder
	l1        *ristretto.Cache[string, []float32]
	l2        L2
	namespace string
	ttl       time.Duration
	logger    logger.Logger

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// Option configures the cached embedder.
type Option func(*Embedder)

// WithL2 adds a shared cache tier.
func WithL2(l2 L2) Option {
	return func(e *Embedder) {
		e.l2 = l2
	}
}

// WithLogger sets the logger used to report cache failures.
func WithLogger(l logger.Logger) Option {
	return func(e *Embedder) {
		e.logger = logger.OrNop(l)
	}
}

// New wraps next with a cache.
func New(next embedding.Embedder, cfg Config, opts ...Option) (*Embedder, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}

	l1, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: create l1: %w", err)
	}

	e := &Embedder{
		next:      next,
		l1:        l1,
		namespace: cfg.Namespace,
		ttl:       cfg.TTL,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Key returns the cache key for a text.
func (e *Embedder) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.namespace + ":" + hex.EncodeToString(sum[:])
}

// Dimension implements embedding.Embedder.
func (e *Embedder) Dimension() int {
	return e.next.Dimension()
}

// Embed implements embedding.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.Key(text)

	if vec, ok := e.l1.Get(key); ok {
		e.l1Hits.Add(1)
		return clone(vec), nil
	}

	if e.l2 != nil {
		vec, ok, err := e.l2.Get(ctx, key)
		if err != nil {
			e.logger.WarnContext(ctx, "embedding cache l2 get failed", "error", err)
		} else if ok {
			e.l2Hits.Add(1)
			e.setL1(key, vec)
			return clone(vec), nil
		}
	}

	e.misses.Add(1)
	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.setL1(key, vec)
	if e.l2 != nil {
		if err := e.l2.Set(ctx, key, vec, e.ttl); err != nil {
			e.logger.WarnContext(ctx, "embedding cache l2 set failed", "error", err)
		}
	}
	return clone(vec), nil
}

func (e *Embedder) setL1(key string, vec []float32) {
	stored := clone(vec)
	if e.ttl > 0 {
		e.l1.SetWithTTL(key, stored, 1, e.ttl)
	} else {
		e.l1.Set(key, stored, 1)
	}
}

// Wait blocks until pending L1 writes are applied.
func (e *Embedder) Wait() {
	e.l1.Wait()
}

// Stats returns hit and miss counters.
func (e *Embedder) Stats() Stats {
	return Stats{
		L1Hits: e.l1Hits.Load(),
		L2Hits: e.l2Hits.Load(),
		Misses: e.misses.Load(),
	}
}

// Close releases the L1 cache.
func (e *Embedder) Close() {
	e.l1.Close()
}

func clone(vec []float32) []float32 {
	return append([]float32(nil), vec...)
}
