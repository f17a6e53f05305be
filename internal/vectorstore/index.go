package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/manualqa/internal/embedding"
	"github.com/dgallion1/manualqa/internal/manual"
)

// Index pairs a Store with the Embedder used to fill and query it.
type Index struct {
	store    Store
	embedder embedding.Embedder
	log      *slog.Logger
}

func NewIndex(store Store, embedder embedding.Embedder, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{store: store, embedder: embedder, log: log}
}

// Store returns the underlying backend.
func (ix *Index) Store() Store { return ix.store }

// Embedder returns the embedder used for both chunks and queries.
func (ix *Index) Embedder() embedding.Embedder { return ix.embedder }

// EmbedChunk embeds c and returns the record to store.
func (ix *Index) EmbedChunk(ctx context.Context, c manual.Chunk) (Record, error) {
	vec, err := ix.embedder.Embed(ctx, c.Text)
	if err != nil {
		return Record{}, fmt.Errorf("embed %s: %w", c.ID, err)
	}
	return Record{
		ID:        c.ID,
		Text:      c.Text,
		Metadata:  c.Flatten(),
		Embedding: vec,
	}, nil
}

// Add embeds and upserts chunks, one embedding call per chunk.
func (ix *Index) Add(ctx context.Context, chunks []manual.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]Record, 0, len(chunks))
	for _, c := range chunks {
		rec, err := ix.EmbedChunk(ctx, c)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return ix.Put(ctx, records)
}

// Put initializes the store from the first record's dimension and upserts.
func (ix *Index) Put(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ix.store.Init(ctx, len(records[0].Embedding)); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	ix.log.Debug("indexed chunks", "count", len(records))
	return nil
}

// Search embeds queryText and returns up to k chunks ranked by similarity,
// restricted to those whose metadata matches filter.
func (ix *Index) Search(ctx context.Context, queryText string, k int, filter Filter) ([]manual.Chunk, error) {
	vec, err := ix.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.store.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	chunks := make([]manual.Chunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, manual.ChunkFromRecord(h.ID, h.Text, h.Metadata))
	}
	return chunks, nil
}

// Stats describes the index contents.
type Stats struct {
	Chunks   int    `json:"chunks"`
	Embedder string `json:"embedder"`
}

func (ix *Index) Stats(ctx context.Context) (Stats, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count: %w", err)
	}
	return Stats{Chunks: n, Embedder: ix.embedder.Name()}, nil
}
