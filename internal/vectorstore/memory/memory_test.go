package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/vectorstore"
)

func TestUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Init(ctx, 2); err != nil {
		t.Fatal(err)
	}
	s.Upsert(ctx, []vectorstore.Record{{ID: "a", Text: "old", Embedding: []float64{1, 0}}})
	s.Upsert(ctx, []vectorstore.Record{{ID: "a", Text: "new", Embedding: []float64{1, 0}}})

	n, _ := s.Count(ctx)
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	hits, err := s.Search(ctx, []float64{1, 0}, 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Text != "new" {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestSearchRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Init(ctx, 2)
	s.Upsert(ctx, []vectorstore.Record{
		{ID: "a", Embedding: []float64{1, 0}, Metadata: manual.Record{"chapter": "Charging"}},
		{ID: "b", Embedding: []float64{0.6, 0.8}, Metadata: manual.Record{"chapter": "Safety"}},
		{ID: "c", Embedding: []float64{0, 1}, Metadata: manual.Record{"chapter": "Charging"}},
	})

	hits, _ := s.Search(ctx, []float64{1, 0}, 2, nil)
	if len(hits) != 2 || hits[0].ID != "a" || hits[1].ID != "b" {
		t.Fatalf("ranked hits = %+v", hits)
	}

	hits, _ = s.Search(ctx, []float64{0, 1}, 5, vectorstore.Filter{"chapter": "Charging"})
	if len(hits) != 2 || hits[0].ID != "c" || hits[1].ID != "a" {
		t.Fatalf("filtered hits = %+v", hits)
	}
}

func TestDimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Init(ctx, 3)
	err := s.Upsert(ctx, []vectorstore.Record{{ID: "a", Embedding: []float64{1, 2}}})
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("upsert err = %v", err)
	}
	s.Upsert(ctx, []vectorstore.Record{{ID: "a", Embedding: []float64{1, 2, 3}}})
	if err := s.Init(ctx, 4); !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("re-init err = %v", err)
	}
	if _, err := s.Search(ctx, []float64{1}, 5, nil); !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("search err = %v", err)
	}

	s.Clear(ctx)
	if err := s.Init(ctx, 4); err != nil {
		t.Fatalf("init after clear: %v", err)
	}
}

func TestUpsertBeforeInit(t *testing.T) {
	err := New().Upsert(context.Background(), []vectorstore.Record{{ID: "a", Embedding: []float64{1}}})
	if !errors.Is(err, vectorstore.ErrNotInitialized) {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}
