// Package embedding turns text into vectors for similarity search.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Embedder converts free text into a numeric vector. Implementations must
// return vectors of a fixed dimension for the lifetime of an index.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// New builds the embedder named by backend ("ollama" or "hashing").
func New(backend, baseURL, model string, dimension int) (Embedder, error) {
	switch backend {
	case "ollama":
		return NewOllamaClient(baseURL, model), nil
	case "hashing":
		return NewHashingEmbedder(dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", backend)
	}
}

// Normalize scales v to unit length in place. Zero vectors are left alone.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] /= norm
	}
	return v
}
