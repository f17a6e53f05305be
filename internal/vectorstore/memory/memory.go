// Package memory is an in-process vector store using brute-force cosine
// similarity. Contents are lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgallion1/manualqa/internal/vectorstore"
)

type Store struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	records   map[string]vectorstore.Record
}

func New() *Store {
	return &Store{records: make(map[string]vectorstore.Record)}
}

func (s *Store) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.records) > 0 {
		return fmt.Errorf("%w: store holds %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(_ context.Context, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if err := vectorstore.CheckDimension(s.dimension, r.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *Store) Search(_ context.Context, vector []float64, k int, filter vectorstore.Filter) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}

	hits := make([]vectorstore.Hit, 0, len(s.records))
	for _, id := range s.order {
		r := s.records[id]
		if !filter.Matches(r.Metadata) {
			continue
		}
		hits = append(hits, vectorstore.Hit{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Score:    vectorstore.Cosine(r.Embedding, vector),
		})
	}
	return vectorstore.TopK(hits, k), nil
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]vectorstore.Record)
	s.order = nil
	s.dimension = 0
	return nil
}

func (s *Store) Close() error { return nil }
