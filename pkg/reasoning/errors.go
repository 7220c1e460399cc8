package reasoning

import "errors"

var (
	// ErrNilStore is returned by New when no vector store is given.
	ErrNilStore = errors.New("reasoning: vector store is nil")

	// ErrNilEmbedder is returned by New when no embedding provider is given.
	ErrNilEmbedder = errors.New("reasoning: embedding provider is nil")

	// ErrInvalidConfig wraps every recall or writeback validation failure.
	ErrInvalidConfig = errors.New("reasoning: invalid config")

	// ErrPoolClosed is returned by the async query path once the engine is closed.
	ErrPoolClosed = errors.New("reasoning: async pool closed")

	// ErrNoveltyCheck is returned by Ingest under the FailClosed policy when
	// the novelty check itself could not run.
	ErrNoveltyCheck = errors.New("reasoning: novelty check failed")
)
