// Package retrieval runs metadata-aware similarity search against the chunk
// index and guesses a chapter filter from the question text.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/vectorstore"
)

// DefaultK is the number of chunks returned when a query does not set K.
const DefaultK = 5

// Searcher is the part of the vector index the retriever needs.
type Searcher interface {
	Search(ctx context.Context, queryText string, k int, filter vectorstore.Filter) ([]manual.Chunk, error)
}

// Query is a retrieval request. Chapter and Heading, when set, restrict the
// search to chunks with exactly that metadata.
type Query struct {
	Text    string
	K       int
	Chapter string
	Heading string
}

// Result is the outcome of one retrieval.
type Result struct {
	Chunks    []manual.Chunk
	LatencyMs float64
	Filter    vectorstore.Filter
	NoAnswer  bool
}

type Retriever struct {
	index    Searcher
	defaultK int
	log      *slog.Logger
}

func New(index Searcher, defaultK int, log *slog.Logger) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{index: index, defaultK: defaultK, log: log}
}

// BuildFilter returns an equality filter on chapter and heading, or nil when
// both are empty.
func BuildFilter(chapter, heading string) vectorstore.Filter {
	f := vectorstore.Filter{}
	if chapter != "" {
		f[manual.KeyChapter] = chapter
	}
	if heading != "" {
		f[manual.KeyHeading] = heading
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// Retrieve searches the index. LatencyMs covers the index call only and is
// rounded to two decimals.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Result, error) {
	k := q.K
	if k <= 0 {
		k = r.defaultK
	}
	filter := BuildFilter(q.Chapter, q.Heading)
	r.log.Debug("retrieval filter", "filter", filter, "k", k)

	start := time.Now()
	chunks, err := r.index.Search(ctx, q.Text, k, filter)
	latency := math.Round(float64(time.Since(start).Microseconds())/10) / 100
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	r.log.Info("retrieved chunks", "count", len(chunks), "duration_ms", latency)

	return &Result{Chunks: chunks, LatencyMs: latency, Filter: filter}, nil
}

// SafeRetrieve is Retrieve with NoAnswer set when nothing matched.
func (r *Retriever) SafeRetrieve(ctx context.Context, q Query) (*Result, error) {
	res, err := r.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(res.Chunks) == 0 {
		r.log.Warn("no relevant chunks found", "query", q.Text)
		res.NoAnswer = true
	}
	return res, nil
}

// DetectChapterFromQuery returns the first chapter, in alphabetical order,
// whose name occurs in the query (case-insensitive substring), with its
// first letter upper-cased. It returns "" when none occurs.
func DetectChapterFromQuery(query string, chapters []string) string {
	sorted := make([]string, 0, len(chapters))
	for _, c := range chapters {
		sorted = append(sorted, strings.ToLower(c))
	}
	sort.Strings(sorted)

	q := strings.ToLower(query)
	for _, c := range sorted {
		if c != "" && strings.Contains(q, c) {
			return capitalize(c)
		}
	}
	return ""
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
