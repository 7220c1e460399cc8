package reasoning

import (
	"math"
	"sort"
)

// sharpenFactor is the share of the remaining distance to 1 added by Sharpen.
const sharpenFactor = 0.05

// Entropy is the novelty of a candidate whose nearest stored neighbor has
// similarity top.
func Entropy(top float64) float64 {
	return 1 - clamp01(top)
}

// Sharpen is the monotonic rerank transform used when the store cannot
// rescore candidates: s' = min(1, s + (1-s)*0.05).
func Sharpen(s float64) float64 {
	return math.Min(1, s+(1-s)*sharpenFactor)
}

// Recency returns exp(-age/horizon). Records from the future count as new.
func Recency(ageSec, horizonSec float64) float64 {
	if ageSec < 0 {
		ageSec = 0
	}
	if horizonSec <= 0 {
		return 0
	}
	return math.Exp(-ageSec / horizonSec)
}

// Blend mixes similarity and recency: alpha*s + (1-alpha)*recency.
func Blend(alpha, similarity, recency float64) float64 {
	return alpha*similarity + (1-alpha)*recency
}

// ResultLimit is the number of results a query may return:
// max(1, min(topK, finalTopK)).
func ResultLimit(topK, finalTopK int) int {
	return max(1, min(topK, finalTopK))
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n < 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func clamp01(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
