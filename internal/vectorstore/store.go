// Package vectorstore stores chunk embeddings and answers nearest-neighbour
// queries with optional exact-match metadata filters.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dgallion1/manualqa/internal/manual"
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// dimension the store was initialized with.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrNotInitialized is returned by Upsert and Search before Init.
var ErrNotInitialized = errors.New("vector store not initialized")

// Record is one stored chunk.
type Record struct {
	ID        string
	Text      string
	Metadata  manual.Record
	Embedding []float64
}

// Hit is a search result ordered by descending Score.
type Hit struct {
	ID       string
	Text     string
	Metadata manual.Record
	Score    float64
}

// Filter is a conjunction of exact-match conditions on flat metadata fields.
// A nil or empty filter matches everything.
type Filter map[string]any

// Matches reports whether md satisfies every condition in f. Numbers are
// compared by value so that ints match JSON-decoded float64s.
func (f Filter) Matches(md manual.Record) bool {
	for k, want := range f {
		got, ok := md[k]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Store is a vector index backend.
type Store interface {
	// Init prepares the store for vectors of the given dimension. Calling
	// Init again with the same dimension keeps existing data.
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float64, k int, filter Filter) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// CheckDimension validates that every vector has length dim.
func CheckDimension(dim int, vectors ...[]float64) error {
	if dim <= 0 {
		return ErrNotInitialized
	}
	for _, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), dim)
		}
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero
// vector. Both must have the same length.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopK sorts hits by descending score, ties broken by id, and keeps k.
func TopK(hits []Hit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
