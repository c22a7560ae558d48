// Package embedder provides the text embedding client used by the memory and
// knowledge managers. The Embedder interface is intentionally tiny so that
// any vector-producing service can back it; the package ships a remote
// OpenAI-compatible implementation and a deterministic static one for tests.
package embedder

import (
	"context"
	"hash/fnv"
)

// Embedder converts text into a vector embedding.
type Embedder interface {
	// Embed returns the embedding for text. A failure is reported as an
	// error; callers that must not block on an embedding outage substitute
	// ZeroVector instead of propagating.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of vectors produced by this embedder.
	Dimensions() int
}

// ZeroVector returns the documented all-zero placeholder of the given width.
// It marks a memory whose embedding could not be computed; similarity search
// degrades to exact/metadata filters for such records.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// IsZeroVector reports whether v is an all-zero placeholder.
func IsZeroVector(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return len(v) > 0
}

// Static is a deterministic in-process Embedder for tests and development.
// Vectors are derived from an FNV hash of the input so equal texts embed
// equally and different texts (almost always) differ.
type Static struct {
	Dim int
	// Fixed, when non-nil, is returned for every input verbatim.
	Fixed []float32
}

// NewStatic creates a Static embedder of the given width.
func NewStatic(dim int) *Static { return &Static{Dim: dim} }

// Embed implements Embedder.
func (s *Static) Embed(_ context.Context, text string) ([]float32, error) {
	if s.Fixed != nil {
		return append([]float32(nil), s.Fixed...), nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float32, s.Dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)) / (1 << 30)
	}
	return vec, nil
}

// Dimensions implements Embedder.
func (s *Static) Dimensions() int {
	if s.Fixed != nil {
		return len(s.Fixed)
	}
	return s.Dim
}
