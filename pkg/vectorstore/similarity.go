package vectorstore

import (
	"math"
	"sort"
)

// CosineSimilarity calculates the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dotProduct / denom
}

// Similarity is the score reported by the brute-force stores: cosine
// similarity clamped into [0,1]. Opposite vectors are as unrelated as
// orthogonal ones for ranking purposes.
func Similarity(a, b []float32) float64 {
	return ClampScore(CosineSimilarity(a, b))
}

// ClampScore clamps a score into [0,1].
func ClampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// SortHits sorts hits by descending score, breaking ties by id so results
// are deterministic.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// TopK brute-force ranks records against a query vector and returns the best
// topK hits that pass the filter.
func TopK(records []Record, query []float32, topK int, filter map[string]any) []Hit {
	if topK <= 0 {
		return nil
	}
	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		if !rec.Payload.Matches(filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:      rec.ID,
			Score:   Similarity(query, rec.Vector),
			Payload: rec.Payload.Clone(),
		})
	}
	SortHits(hits)
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits
}
