package datastore

import "math"

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is empty, all-zero or of mismatched length. Zero vectors are
// the documented placeholder for failed embeddings and must never match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
