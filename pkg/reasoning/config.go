package reasoning

import "fmt"

// RecallConfig controls retrieval. It is copied into the engine at
// construction and never changes afterwards.
type RecallConfig struct {
	// FastTopK is the minimum candidate count fetched in the prefilter stage.
	FastTopK int `json:"fast_top_k"`

	// FinalTopK caps the number of results returned by a query.
	FinalTopK int `json:"final_top_k"`

	// RecencyAlpha weighs similarity against recency: 1 ignores age, 0
	// ranks by age only.
	RecencyAlpha float64 `json:"recency_alpha"`

	// MinScore drops results whose combined score is below it.
	MinScore float64 `json:"min_score"`

	// UseDualEmbedding enables the precise rerank stage.
	UseDualEmbedding bool `json:"use_dual_embedding"`

	// RecencyHorizonSec is the time constant of the recency decay.
	RecencyHorizonSec float64 `json:"recency_horizon_sec"`

	// EnableHybridRerank recomputes candidate similarity against the precise
	// query vector when the store can do so, instead of sharpening scores.
	EnableHybridRerank bool `json:"enable_hybrid_rerank"`
}

// WritebackConfig controls write admission and eviction.
type WritebackConfig struct {
	// NoveltyGate is the minimum entropy (1 - top similarity) a write needs.
	NoveltyGate float64 `json:"novelty_gate"`

	DefaultTTLSeconds float64 `json:"default_ttl_seconds"`
	LongTTLSeconds    float64 `json:"long_ttl_seconds"`

	// MaxLenChars bounds the stored text, counted in runes.
	MaxLenChars int `json:"max_len_chars"`
}

// DefaultRecallConfig returns the recall settings used when none are configured.
func DefaultRecallConfig() RecallConfig {
	return RecallConfig{
		FastTopK:          24,
		FinalTopK:         5,
		RecencyAlpha:      0.65,
		MinScore:          0,
		UseDualEmbedding:  true,
		RecencyHorizonSec: 86400,
	}
}

// DefaultWritebackConfig returns the writeback settings used when none are configured.
func DefaultWritebackConfig() WritebackConfig {
	return WritebackConfig{
		NoveltyGate:       0.18,
		DefaultTTLSeconds: 7 * 86400,
		LongTTLSeconds:    90 * 86400,
		MaxLenChars:       5000,
	}
}

// Validate checks the recall settings.
func (c RecallConfig) Validate() error {
	switch {
	case c.FastTopK < 1:
		return fmt.Errorf("%w: fast_top_k must be >= 1, got %d", ErrInvalidConfig, c.FastTopK)
	case c.FinalTopK < 1:
		return fmt.Errorf("%w: final_top_k must be >= 1, got %d", ErrInvalidConfig, c.FinalTopK)
	case c.RecencyAlpha < 0 || c.RecencyAlpha > 1:
		return fmt.Errorf("%w: recency_alpha must be in [0,1], got %g", ErrInvalidConfig, c.RecencyAlpha)
	case c.RecencyHorizonSec <= 0:
		return fmt.Errorf("%w: recency_horizon_sec must be > 0, got %g", ErrInvalidConfig, c.RecencyHorizonSec)
	}
	return nil
}

// Validate checks the writeback settings.
func (c WritebackConfig) Validate() error {
	switch {
	case c.NoveltyGate < 0 || c.NoveltyGate > 1:
		return fmt.Errorf("%w: novelty_gate must be in [0,1], got %g", ErrInvalidConfig, c.NoveltyGate)
	case c.DefaultTTLSeconds <= 0:
		return fmt.Errorf("%w: default_ttl_seconds must be > 0, got %g", ErrInvalidConfig, c.DefaultTTLSeconds)
	case c.LongTTLSeconds < 0:
		return fmt.Errorf("%w: long_ttl_seconds must be >= 0, got %g", ErrInvalidConfig, c.LongTTLSeconds)
	case c.MaxLenChars < 1:
		return fmt.Errorf("%w: max_len_chars must be >= 1, got %d", ErrInvalidConfig, c.MaxLenChars)
	}
	return nil
}

// NoveltyPolicy decides what Ingest does when the novelty check cannot run.
type NoveltyPolicy int

const (
	// FailOpen treats a failed check as maximal novelty and admits the write.
	FailOpen NoveltyPolicy = iota

	// FailClosed refuses the write and returns ErrNoveltyCheck.
	FailClosed
)

// String returns the string representation of the policy.
func (p NoveltyPolicy) String() string {
	switch p {
	case FailOpen:
		return "fail_open"
	case FailClosed:
		return "fail_closed"
	default:
		return "unknown"
	}
}

// ParseNoveltyPolicy parses a policy name. Unknown names select FailOpen.
func ParseNoveltyPolicy(s string) NoveltyPolicy {
	if s == "fail_closed" {
		return FailClosed
	}
	return FailOpen
}
