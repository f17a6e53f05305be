// Package assistant answers questions about the manual: it retrieves
// evidence, builds the grounded prompt, calls the generation service and
// keeps a bounded per-session transcript.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/dgallion1/manualqa/internal/llm"
	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/retrieval"
)

// MinEvidenceRunes is the combined chunk length below which retrieved
// evidence is treated as no evidence at all.
const MinEvidenceRunes = 120

// ErrEmptyQuestion is returned when the question is blank.
var ErrEmptyQuestion = errors.New("question is empty")

// Phase records how far a question got through the pipeline.
type Phase string

const (
	PhaseStart         Phase = "start"
	PhaseRetrieved     Phase = "retrieved"
	PhasePrompted      Phase = "prompted"
	PhaseAnswered      Phase = "answered"
	PhaseMemoryUpdated Phase = "memory_updated"
)

// Outcome classifies an answer.
type Outcome string

const (
	// Answered means the model produced an answer from retrieved evidence.
	Answered Outcome = "answered"
	// Refused means evidence was missing or too thin; no model call was made.
	Refused Outcome = "refused"
	// Failed means the generation call errored. Reason holds the cause.
	Failed Outcome = "failed"
)

// Retriever is the retrieval step used by the assistant.
type Retriever interface {
	SafeRetrieve(ctx context.Context, q retrieval.Query) (*retrieval.Result, error)
}

// AskRequest is one question. Chapter pins the chapter filter; when empty
// the chapter is guessed from the question.
type AskRequest struct {
	Question string
	Chapter  string
	Heading  string
}

// Answer is the result of one question.
type Answer struct {
	Outcome Outcome `json:"outcome"`
	Text    string  `json:"answer"`
	Reason  string  `json:"reason,omitempty"`

	ChapterUsed string         `json:"chapter_used,omitempty"`
	DocsUsed    int            `json:"docs_used"`
	Chunks      []manual.Chunk `json:"-"`

	RetrievalLatencyMs float64 `json:"retrieval_latency_ms"`
	LLMLatencyMs       float64 `json:"llm_latency_ms"`
	TotalLatencyMs     float64 `json:"total_latency_ms"`

	Phase   Phase  `json:"phase"`
	History string `json:"chat_history"`
}

// Options configures an Assistant. Zero values take defaults.
type Options struct {
	Chapters []string
	K        int
	Template llm.PromptTemplate
}

type Assistant struct {
	retriever Retriever
	generator llm.Generator
	chapters  []string
	k         int
	template  llm.PromptTemplate
	log       *slog.Logger
}

func New(retriever Retriever, generator llm.Generator, opts Options, log *slog.Logger) *Assistant {
	if opts.Template == (llm.PromptTemplate{}) {
		opts.Template = llm.DefaultTemplate
	}
	if log == nil {
		log = slog.Default()
	}
	return &Assistant{
		retriever: retriever,
		generator: generator,
		chapters:  opts.Chapters,
		k:         opts.K,
		template:  opts.Template,
		log:       log,
	}
}

// Ask answers one question within session s. Retrieval errors are returned
// and leave the transcript untouched. Generation errors are reported as a
// Failed answer, also without touching the transcript.
func (a *Assistant) Ask(ctx context.Context, s *Session, req AskRequest) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	log := a.log.With("session_id", s.ID)

	ans := &Answer{Phase: PhaseStart}

	chapter := req.Chapter
	if chapter == "" {
		chapter = retrieval.DetectChapterFromQuery(question, a.chapters)
	}
	res, err := a.retriever.SafeRetrieve(ctx, retrieval.Query{
		Text:    question,
		K:       a.k,
		Chapter: chapter,
		Heading: req.Heading,
	})
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	noAnswer := res.NoAnswer || manual.TotalTextLen(res.Chunks) < MinEvidenceRunes

	ans.Phase = PhaseRetrieved
	ans.ChapterUsed = chapter
	ans.DocsUsed = len(res.Chunks)
	ans.Chunks = res.Chunks
	ans.RetrievalLatencyMs = res.LatencyMs

	if noAnswer {
		ans.Outcome = Refused
		ans.Text = llm.RefusalAnswer
		ans.Phase = PhaseAnswered
		log.Info("refusing, evidence too thin", "docs", ans.DocsUsed)
	} else {
		prompt := a.template.Build(question, res.Chunks, s.Render())
		ans.Phase = PhasePrompted

		gen, err := a.generator.Generate(ctx, prompt)
		ans.LLMLatencyMs = gen.LatencyMs
		ans.Phase = PhaseAnswered
		if err != nil {
			ans.Outcome = Failed
			ans.Reason = err.Error()
			ans.Text = "LLM Error: " + ans.Reason
			ans.TotalLatencyMs = total(ans)
			ans.History = s.Render()
			log.Error("generation failed", "error", err, "model", a.generator.Model())
			return ans, nil
		}
		ans.Outcome = Answered
		ans.Text = gen.Text
	}

	s.Remember(question, ans.Text)
	ans.Phase = PhaseMemoryUpdated
	ans.TotalLatencyMs = total(ans)
	ans.History = s.Render()

	log.Info("question answered",
		"outcome", ans.Outcome,
		"chapter", ans.ChapterUsed,
		"docs", ans.DocsUsed,
		"retrieval_ms", ans.RetrievalLatencyMs,
		"llm_ms", ans.LLMLatencyMs,
	)
	return ans, nil
}

func total(a *Answer) float64 {
	return math.Round((a.RetrievalLatencyMs+a.LLMLatencyMs)*100) / 100
}

// Warmup forwards to the generator. Callers treat failure as non-fatal.
func (a *Assistant) Warmup(ctx context.Context) error {
	start := time.Now()
	err := a.generator.Warmup(ctx)
	a.log.Info("warm-up finished", "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
	return err
}
