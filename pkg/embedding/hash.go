package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension matches all-MiniLM-L6-v2.
const DefaultHashDimension = 384

// Hash is a deterministic feature-hashing embedder. Every token (and, when
// enabled, every adjacent token pair) is hashed to a pseudo-random unit
// direction and the directions are summed, so texts sharing words end up
// close to each other. It needs no model and is meant for tests, demos and
// as a cheap first-stage embedder.
type Hash struct {
	dimension int
	bigrams   bool
}

// HashOption configures a Hash embedder.
type HashOption func(*Hash)

// WithBigrams adds adjacent token pairs as features, which makes the
// embedding sensitive to word order.
func WithBigrams() HashOption {
	return func(h *Hash) {
		h.bigrams = true
	}
}

// NewHash creates a hash embedder. A non-positive dimension selects
// DefaultHashDimension.
func NewHash(dimension int, opts ...HashOption) *Hash {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	h := &Hash{dimension: dimension}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Dimension implements Embedder.
func (h *Hash) Dimension() int {
	return h.dimension
}

// Embed implements Embedder.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dimension)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		h.addFeature(vec, text)
		return Normalize(vec), nil
	}

	for i, tok := range tokens {
		h.addFeature(vec, tok)
		if h.bigrams && i > 0 {
			h.addFeature(vec, tokens[i-1]+" "+tok)
		}
	}
	return Normalize(vec), nil
}

// addFeature adds the pseudo-random direction seeded by feature to vec.
func (h *Hash) addFeature(vec []float32, feature string) {
	hasher := fnv.New64a()
	hasher.Write([]byte(feature))
	seed := hasher.Sum64()

	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] += float32(int64(seed)) / float32(math.MaxInt64)
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
