// Package embedding defines the embedding providers consumed by the
// reasoning engine and ships a deterministic hash embedder.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmptyEmbedding is returned when a backend answers with no vector.
var ErrEmptyEmbedding = errors.New("embedding: empty embedding")

// Embedder turns a text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Provider exposes a cheap embedding used for candidate retrieval and the
// novelty gate, and a precise one used for stored vectors and re-ranking.
// Both must produce vectors of the same dimension.
type Provider interface {
	EmbedFast(ctx context.Context, text string) ([]float32, error)
	EmbedPrecise(ctx context.Context, text string) ([]float32, error)
}

// Dual is a Provider backed by two embedders.
type Dual struct {
	Fast    Embedder
	Precise Embedder
}

// NewDual returns a Provider using fast for EmbedFast and precise for
// EmbedPrecise. A nil precise embedder reuses fast.
func NewDual(fast, precise Embedder) *Dual {
	if precise == nil {
		precise = fast
	}
	return &Dual{Fast: fast, Precise: precise}
}

// Single returns a Provider that answers both calls with one embedder.
func Single(e Embedder) *Dual {
	return &Dual{Fast: e, Precise: e}
}

// EmbedFast implements Provider.
func (d *Dual) EmbedFast(ctx context.Context, text string) ([]float32, error) {
	return d.Fast.Embed(ctx, text)
}

// EmbedPrecise implements Provider.
func (d *Dual) EmbedPrecise(ctx context.Context, text string) ([]float32, error) {
	return d.Precise.Embed(ctx, text)
}

// Normalize scales vec to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}
