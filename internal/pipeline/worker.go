package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/manualqa/internal/chunker"
	"github.com/dgallion1/manualqa/internal/cleaner"
	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/parser"
	"github.com/dgallion1/manualqa/internal/retry"
	"github.com/dgallion1/manualqa/internal/structure"
	"github.com/dgallion1/manualqa/internal/vectorstore"
)

// Indexer is the part of the vector index ingestion writes to.
type Indexer interface {
	EmbedChunk(ctx context.Context, c manual.Chunk) (vectorstore.Record, error)
	Put(ctx context.Context, records []vectorstore.Record) error
	Store() vectorstore.Store
}

// WorkerConfig carries the per-manual settings shared by all workers.
type WorkerConfig struct {
	Normalizer         *cleaner.Normalizer
	Extractor          *structure.Extractor
	Chunking           chunker.Config
	Parser             parser.Options
	MaxConcurrentEmbed int
	// ReplaceIndex clears the index before writing, so it only ever holds
	// the most recently ingested manual. The clear happens only once the new
	// manual has been embedded.
	ReplaceIndex bool
}

// Worker processes manual ingestion jobs. One Worker may serve several
// goroutines; their index writes are serialized.
type Worker struct {
	index Indexer
	jobs  *JobStore
	log   *slog.Logger
	cfg   WorkerConfig

	writeMu sync.Mutex
}

// NewWorker creates a worker. jobs may be nil, which disables duplicate
// detection.
func NewWorker(index Indexer, jobs *JobStore, log *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{index: index, jobs: jobs, log: log, cfg: cfg}
}

// Ingest runs the pipeline synchronously outside any queue and returns the
// final job state.
func (w *Worker) Ingest(ctx context.Context, id, filename string, data []byte) JobSnapshot {
	job := NewJob(id, filename, data)
	if w.jobs != nil {
		w.jobs.Put(job)
	}
	w.Process(ctx, job)
	return job.Snapshot()
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	start := time.Now()

	// Phase 1: Read pages
	job.SetStatus(StatusReading, "reading")
	src, err := parser.ForFile(job.Filename, w.cfg.Parser)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "reading")
		return
	}
	pages, err := src.Pages(bytes.NewReader(job.FileData()), job.Filename)
	job.releaseData()
	if err != nil {
		log.Error("read failed", "error", err)
		job.AddError(fmt.Sprintf("read: %s", err))
		job.SetStatus(StatusFailed, "reading")
		return
	}
	empty := 0
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			empty++
		}
	}
	job.Update(func(p *Progress) {
		p.Pages = len(pages)
		p.EmptyPages = empty
	})
	log.Info("read pages", "pages", len(pages), "empty_pages", empty)

	job.setContentHash(ContentHashHex([]byte(manual.JoinPages(pages))))
	if w.jobs != nil {
		if existing, ok := w.jobs.FindIndexed(job.Snapshot().ContentHash); ok {
			log.Info("duplicate manual, skipping", "existing_job_id", existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Normalize
	job.SetStatus(StatusCleaning, "cleaning")
	for i := range pages {
		pages[i].Text = w.cfg.Normalizer.Normalize(pages[i].Text, pages[i].PageNo)
	}

	// Phase 3: Structure
	job.SetStatus(StatusStructuring, "structuring")
	sections := w.cfg.Extractor.ExtractSections(pages)
	job.Update(func(p *Progress) { p.Sections = len(sections) })
	log.Info("extracted sections", "sections", len(sections))

	// Phase 4: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.Run(pages, sections, w.cfg.Chunking)
	tokens := 0
	for _, c := range chunks {
		tokens += chunker.EstimateTokens(c.Text)
	}
	job.Update(func(p *Progress) {
		p.TotalChunks = len(chunks)
		p.Tokens = tokens
	})
	log.Info("chunked manual", "chunks", len(chunks), "estimated_tokens", tokens)

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 5: Embed, then write
	job.SetStatus(StatusIndexing, "indexing")
	records, hadErrors := w.embedAll(ctx, log, job, chunks)
	if len(records) == 0 || ctx.Err() != nil {
		log.Error("embedding incomplete, index left unchanged", "embedded", len(records), "total", len(chunks))
		if ctx.Err() != nil {
			job.AddError(fmt.Sprintf("canceled: %s", ctx.Err()))
		}
		job.SetStatus(StatusFailed, "indexing")
		return
	}

	existing, err := w.write(ctx, job.Snapshot().ContentHash, job.ID, records)
	if err != nil {
		log.Error("index write failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "indexing")
		return
	}
	if existing != "" {
		log.Info("duplicate manual indexed meanwhile, skipping", "existing_job_id", existing)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}
	job.IncrIndexed(len(records))
	log.Info("indexing complete", "indexed", len(records), "total", len(chunks), "duration_ms", time.Since(start).Milliseconds())

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}

// write stores records, clearing the previous manual first when configured.
// It returns the id of another job if that job indexed the same content while
// this one was embedding.
func (w *Worker) write(ctx context.Context, hash, jobID string, records []vectorstore.Record) (string, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.jobs != nil {
		if id, ok := w.jobs.FindIndexed(hash); ok {
			return id, nil
		}
	}
	if w.cfg.ReplaceIndex {
		if err := w.index.Store().Clear(ctx); err != nil {
			return "", fmt.Errorf("clear index: %w", err)
		}
		if w.jobs != nil {
			w.jobs.ForgetIndexed()
		}
	}
	if err := w.index.Put(ctx, records); err != nil {
		return "", fmt.Errorf("index: %w", err)
	}
	if w.jobs != nil {
		w.jobs.MarkIndexed(hash, jobID, w.cfg.ReplaceIndex)
	}
	return "", nil
}

// embedAll embeds chunks with bounded concurrency, retrying transient
// failures. Records come back in chunk order; failed chunks are skipped.
func (w *Worker) embedAll(ctx context.Context, log *slog.Logger, job *Job, chunks []manual.Chunk) ([]vectorstore.Record, bool) {
	type embedResult struct {
		rec vectorstore.Record
		err error
		idx int
	}
	results := make(chan embedResult, len(chunks))
	sem := make(chan struct{}, w.cfg.MaxConcurrentEmbed)

	for i, chunk := range chunks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results <- embedResult{err: ctx.Err(), idx: i}
			continue
		}
		go func(i int, chunk manual.Chunk) {
			defer func() { <-sem }()
			var rec vectorstore.Record
			var lastErr error
			for attempt := range MaxRetries {
				rec, lastErr = w.index.EmbedChunk(ctx, chunk)
				if lastErr == nil || !retry.IsRetryable(lastErr) {
					break
				}
				log.Warn("retryable embedding error", "chunk", chunk.ID, "attempt", attempt, "error", lastErr)
				select {
				case <-time.After(Backoff(attempt)):
				case <-ctx.Done():
					results <- embedResult{err: ctx.Err(), idx: i}
					return
				}
			}
			results <- embedResult{rec: rec, err: lastErr, idx: i}
		}(i, chunk)
	}

	ordered := make([]*vectorstore.Record, len(chunks))
	hadErrors := false
	for range chunks {
		r := <-results
		if r.err != nil {
			log.Error("embedding failed", "chunk", chunks[r.idx].ID, "error", r.err)
			job.AddError(fmt.Sprintf("%s: %s", chunks[r.idx].ID, r.err))
			hadErrors = true
			continue
		}
		rec := r.rec
		ordered[r.idx] = &rec
	}

	records := make([]vectorstore.Record, 0, len(chunks))
	for _, rec := range ordered {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, hadErrors
}
