// Package vectorstore defines the vector index contract consumed by the
// reasoning engine, together with the record and hit types shared by all
// backends.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors shared by store implementations.
var (
	ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")
	ErrLengthMismatch    = errors.New("vectorstore: vectors and payloads length mismatch")
	ErrClosed            = errors.New("vectorstore: store closed")
)

// Store is the nearest-neighbor index the engine writes to and reads from.
//
// Implementations must be safe for concurrent use. Scores returned by Search
// are similarities in [0,1], ordered from most to least similar.
type Store interface {
	// Upsert stores a vector with its payload and returns the assigned id.
	// The id shape is store-defined; callers normalize it with NormalizeID.
	Upsert(ctx context.Context, vector []float32, payload Payload) (any, error)

	// BatchUpsert stores several vectors in one call. The returned slice has
	// one entry per stored vector and may be shorter than the input on partial
	// failure.
	BatchUpsert(ctx context.Context, vectors [][]float32, payloads []Payload) ([]any, error)

	// Search returns up to topK hits. A nil filter matches every record.
	Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]Hit, error)

	// Delete removes records by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Scanner is implemented by stores whose record table can be walked locally.
// TTL pruning only works against stores that implement it.
type Scanner interface {
	Records(ctx context.Context) ([]Record, error)
}

// Rescorer is implemented by stores that can compute the similarity of
// already stored records against an arbitrary query vector without running a
// second full search.
type Rescorer interface {
	Rescore(ctx context.Context, vector []float32, ids []string) (map[string]float64, error)
}
