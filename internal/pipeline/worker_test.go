package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/manualqa/internal/chunker"
	"github.com/dgallion1/manualqa/internal/cleaner"
	"github.com/dgallion1/manualqa/internal/config"
	"github.com/dgallion1/manualqa/internal/embedding"
	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/retry"
	"github.com/dgallion1/manualqa/internal/structure"
	"github.com/dgallion1/manualqa/internal/vectorstore"
	"github.com/dgallion1/manualqa/internal/vectorstore/memory"
)

const otherManual = "SAFETY\nSeat Belts\nAlways wear your seat belt, even on short trips. " +
	"Make sure the lap portion sits low across the hips and the shoulder strap crosses the chest."

const testManual = "CHARGING\nOpening the Charge Port\n" +
	"To open the charge port, press and release the button on the charge cable handle. " +
	"The charge port door opens and the light around the port turns white. " +
	"If the door does not open, make sure the vehicle is unlocked and try again.\n" +
	"\f" +
	"   \n" +
	"\f" +
	"MAINTENANCE\nTire Care\n" +
	"Check tire pressure monthly using an accurate gauge when the tires are cold. " +
	"Rotate the tires regularly to keep tread wear even across all four wheels. " +
	"Replace any tire that shows cuts, bulges or exposed cords.\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWorkerConfig() WorkerConfig {
	profile := config.DefaultProfile()
	return WorkerConfig{
		Normalizer:         cleaner.New(profile.Brand),
		Extractor:          structure.NewExtractor(profile),
		Chunking:           chunker.Config{ChunkSize: 200, ChunkOverlap: 20, MinLength: 40, Source: "Test Manual"},
		MaxConcurrentEmbed: 2,
		ReplaceIndex:       true,
	}
}

func newTestIndex() *vectorstore.Index {
	return vectorstore.NewIndex(memory.New(), embedding.NewHashingEmbedder(128), quietLogger())
}

// flakyIndexer fails chunks permanently, or a fixed number of times with a
// retryable error.
type flakyIndexer struct {
	*vectorstore.Index
	mu        sync.Mutex
	rejectAll bool
	permanent map[string]bool
	transient map[string]int
	calls     map[string]int
}

func (f *flakyIndexer) EmbedChunk(ctx context.Context, c manual.Chunk) (vectorstore.Record, error) {
	f.mu.Lock()
	f.calls[c.ID]++
	if f.rejectAll || f.permanent[c.ID] {
		f.mu.Unlock()
		return vectorstore.Record{}, errors.New("model rejected input")
	}
	if f.transient[c.ID] > 0 {
		f.transient[c.ID]--
		f.mu.Unlock()
		return vectorstore.Record{}, &retry.Error{StatusCode: 503, Message: "busy"}
	}
	f.mu.Unlock()
	return f.Index.EmbedChunk(ctx, c)
}

func TestWorker_IngestCompleted(t *testing.T) {
	ix := newTestIndex()
	w := NewWorker(ix, NewJobStore(time.Hour), quietLogger(), testWorkerConfig())

	snap := w.Ingest(context.Background(), "job-1", "manual.txt", []byte(testManual))
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	p := snap.Progress
	if p.Pages != 3 || p.EmptyPages != 1 {
		t.Errorf("pages = %d empty = %d, want 3 and 1", p.Pages, p.EmptyPages)
	}
	if p.TotalChunks < 2 || p.ChunksIndexed != p.TotalChunks {
		t.Errorf("chunks total = %d indexed = %d", p.TotalChunks, p.ChunksIndexed)
	}
	if p.Sections == 0 || p.Tokens == 0 {
		t.Errorf("sections = %d tokens = %d", p.Sections, p.Tokens)
	}
	if snap.ContentHash == "" {
		t.Error("content hash not recorded")
	}

	stats, err := ix.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks != p.TotalChunks {
		t.Errorf("index holds %d chunks, want %d", stats.Chunks, p.TotalChunks)
	}

	chunks, err := ix.Search(context.Background(), "how do I open the charge port", 1, nil)
	if err != nil || len(chunks) != 1 {
		t.Fatalf("Search = %v, %v", chunks, err)
	}
	if !strings.Contains(chunks[0].Text, "charge port") || chunks[0].Metadata.Page != 1 {
		t.Errorf("top hit = %+v", chunks[0])
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	ix := newTestIndex()
	w := NewWorker(ix, NewJobStore(time.Hour), quietLogger(), testWorkerConfig())

	first := w.Ingest(context.Background(), "job-1", "manual.txt", []byte(testManual))
	second := w.Ingest(context.Background(), "job-2", "copy.txt", []byte(testManual))
	if first.Status != StatusCompleted {
		t.Fatalf("first status = %q", first.Status)
	}
	if second.Status != StatusDupSkipped {
		t.Fatalf("second status = %q, want %q", second.Status, StatusDupSkipped)
	}
	if second.ContentHash != first.ContentHash {
		t.Error("duplicate should carry the same content hash")
	}
}

func TestWorker_ReplacesPreviousManual(t *testing.T) {
	ix := newTestIndex()
	w := NewWorker(ix, nil, quietLogger(), testWorkerConfig())

	w.Ingest(context.Background(), "job-1", "manual.txt", []byte(testManual))
	snap := w.Ingest(context.Background(), "job-2", "safety.txt", []byte(otherManual))
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q", snap.Status)
	}
	stats, _ := ix.Stats(context.Background())
	if stats.Chunks != snap.Progress.TotalChunks {
		t.Errorf("index holds %d chunks, want only the %d from the new manual", stats.Chunks, snap.Progress.TotalChunks)
	}
}

func TestWorker_FailedReingestKeepsIndex(t *testing.T) {
	ix := newTestIndex()
	first := NewWorker(ix, nil, quietLogger(), testWorkerConfig()).
		Ingest(context.Background(), "job-1", "manual.txt", []byte(testManual))
	if first.Status != StatusCompleted {
		t.Fatalf("first status = %q", first.Status)
	}

	broken := &flakyIndexer{Index: ix, rejectAll: true, transient: map[string]int{}, calls: map[string]int{}}
	snap := NewWorker(broken, nil, quietLogger(), testWorkerConfig()).
		Ingest(context.Background(), "job-2", "safety.txt", []byte(otherManual))
	if snap.Status != StatusFailed || snap.Phase != "indexing" {
		t.Fatalf("status = %q phase = %q, want failed in indexing", snap.Status, snap.Phase)
	}

	stats, err := ix.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Chunks != first.Progress.TotalChunks {
		t.Fatalf("index holds %d chunks after failed re-ingest, want %d", stats.Chunks, first.Progress.TotalChunks)
	}
	chunks, err := ix.Search(context.Background(), "how do I open the charge port", 1, nil)
	if err != nil || len(chunks) != 1 || !strings.Contains(chunks[0].Text, "charge port") {
		t.Errorf("previous manual no longer searchable: %v, %v", chunks, err)
	}
}

func TestWorker_ReingestAfterReplacement(t *testing.T) {
	ix := newTestIndex()
	w := NewWorker(ix, NewJobStore(time.Hour), quietLogger(), testWorkerConfig())

	a := w.Ingest(context.Background(), "job-a", "manual.txt", []byte(testManual))
	b := w.Ingest(context.Background(), "job-b", "safety.txt", []byte(otherManual))
	again := w.Ingest(context.Background(), "job-a2", "manual.txt", []byte(testManual))
	if a.Status != StatusCompleted || b.Status != StatusCompleted {
		t.Fatalf("a = %q b = %q", a.Status, b.Status)
	}
	if again.Status != StatusCompleted {
		t.Fatalf("re-upload of replaced manual = %q, want completed", again.Status)
	}

	chunks, err := ix.Search(context.Background(), "how do I open the charge port", 1, nil)
	if err != nil || len(chunks) != 1 || !strings.Contains(chunks[0].Text, "charge port") {
		t.Errorf("top hit = %v, %v", chunks, err)
	}
	stats, _ := ix.Stats(context.Background())
	if stats.Chunks != again.Progress.TotalChunks {
		t.Errorf("index holds %d chunks, want %d", stats.Chunks, again.Progress.TotalChunks)
	}
}

// indexedTexts returns the text of every chunk in ix.
func indexedTexts(t *testing.T, ix *vectorstore.Index) map[string]bool {
	t.Helper()
	chunks, err := ix.Search(context.Background(), "manual", 100, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	texts := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		texts[c.Text] = true
	}
	return texts
}

func sameTexts(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func TestWorker_ConcurrentIngestDoesNotInterleave(t *testing.T) {
	var want []map[string]bool
	for _, text := range []string{testManual, otherManual} {
		ix := newTestIndex()
		NewWorker(ix, nil, quietLogger(), testWorkerConfig()).Ingest(context.Background(), "solo", "manual.txt", []byte(text))
		want = append(want, indexedTexts(t, ix))
	}

	ix := newTestIndex()
	w := NewWorker(ix, NewJobStore(time.Hour), quietLogger(), testWorkerConfig())
	var wg sync.WaitGroup
	snaps := make([]JobSnapshot, 2)
	for i, text := range []string{testManual, otherManual} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i] = w.Ingest(context.Background(), fmt.Sprintf("job-%d", i), "manual.txt", []byte(text))
		}()
	}
	wg.Wait()
	for i, snap := range snaps {
		if snap.Status != StatusCompleted {
			t.Fatalf("job %d status = %q", i, snap.Status)
		}
	}

	got := indexedTexts(t, ix)
	if !sameTexts(got, want[0]) && !sameTexts(got, want[1]) {
		t.Errorf("index holds a mix of both manuals: %d chunks", len(got))
	}
}

func TestWorker_EmptyManualFails(t *testing.T) {
	w := NewWorker(newTestIndex(), nil, quietLogger(), testWorkerConfig())
	snap := w.Ingest(context.Background(), "job-1", "blank.txt", []byte("  \n\f \n"))
	if snap.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", snap.Status)
	}
	if len(snap.Progress.Errors) == 0 {
		t.Error("expected an error message")
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := NewWorker(newTestIndex(), nil, quietLogger(), testWorkerConfig())
	snap := w.Ingest(context.Background(), "job-1", "manual.xls", []byte("data"))
	if snap.Status != StatusFailed || snap.Phase != "reading" {
		t.Fatalf("status = %q phase = %q", snap.Status, snap.Phase)
	}
}

func TestWorker_PartialOnEmbeddingFailure(t *testing.T) {
	ix := &flakyIndexer{
		Index:     newTestIndex(),
		permanent: map[string]bool{"chunk-1": true},
		transient: map[string]int{},
		calls:     map[string]int{},
	}
	w := NewWorker(ix, nil, quietLogger(), testWorkerConfig())

	snap := w.Ingest(context.Background(), "job-1", "manual.txt", []byte(testManual))
	if snap.Status != StatusPartial {
		t.Fatalf("status = %q, want partial", snap.Status)
	}
	if snap.Progress.ChunksIndexed != snap.Progress.TotalChunks-1 {
		t.Errorf("indexed = %d total = %d", snap.Progress.ChunksIndexed, snap.Progress.TotalChunks)
	}
	if ix.calls["chunk-1"] != 1 {
		t.Errorf("non-retryable error retried %d times", ix.calls["chunk-1"])
	}
}

func TestWorker_RetriesTransientErrors(t *testing.T) {
	saved := baseBackoff
	baseBackoff = time.Millisecond
	t.Cleanup(func() { baseBackoff = saved })

	ix := &flakyIndexer{
		Index:     newTestIndex(),
		permanent: map[string]bool{},
		transient: map[string]int{"chunk-1": 2},
		calls:     map[string]int{},
	}
	w := NewWorker(ix, nil, quietLogger(), testWorkerConfig())

	snap := w.Ingest(context.Background(), "job-1", "manual.txt", []byte(testManual))
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %q, errors = %v", snap.Status, snap.Progress.Errors)
	}
	if ix.calls["chunk-1"] != 3 {
		t.Errorf("chunk-1 attempts = %d, want 3", ix.calls["chunk-1"])
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		if d < baseBackoff || d > maxBackoff+maxBackoff/2 {
			t.Errorf("Backoff(%d) = %v out of range", attempt, d)
		}
	}
}
