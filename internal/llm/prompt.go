package llm

import (
	"fmt"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
)

// RefusalAnswer is the exact text returned when the manual does not cover a
// question.
const RefusalAnswer = "I don't know based on the provided manual information."

// EmptyHistory stands in for a transcript with no turns.
const EmptyHistory = "[None]"

const ragTemplate = `
You are a **%[1]s Expert AI Assistant**.

This is a Retrieval-Augmented Generation task (RAG).
Your answer MUST come *strictly* from the provided context.
No external knowledge. No assumptions. No hallucinations.

RULES YOU MUST FOLLOW:

1. Use ONLY the information found in the context.
2. If the answer does not exist in the context:
     → Respond exactly with:
       "%[2]s"
3. NEVER infer, guess, or fabricate steps.
4. If the user asks something unsafe or damaging:
     → Warn them and provide manual-approved guidance only.
5. Keep the tone technical, concise, and aligned with %[3]s documentation.
6. If justification is requested, cite:
     → Page number + Section heading.

------------------------------------------------
### Previous Conversation:
%[4]s

------------------------------------------------
### Retrieved Context (%[5]s):
%[6]s

------------------------------------------------
### User Question:
%[7]s

------------------------------------------------
### Provide the answer strictly grounded in the context:
`

// PromptTemplate names the product a prompt is written for.
type PromptTemplate struct {
	Product string // e.g. "Tesla Model 3"
	Brand   string
	Source  string // manual title shown above the context block
}

// DefaultTemplate targets the Tesla Model 3 Owner's Manual.
var DefaultTemplate = PromptTemplate{
	Product: "Tesla Model 3",
	Brand:   "Tesla",
	Source:  "Tesla Model 3 Owner Manual",
}

// BuildRAGPrompt builds the prompt with DefaultTemplate.
func BuildRAGPrompt(question string, chunks []manual.Chunk, history string) string {
	return DefaultTemplate.Build(question, chunks, history)
}

// Build fills the template with the rendered history, the context block and
// the question. An empty history renders as EmptyHistory.
func (t PromptTemplate) Build(question string, chunks []manual.Chunk, history string) string {
	if strings.TrimSpace(history) == "" {
		history = EmptyHistory
	}
	return fmt.Sprintf(ragTemplate,
		t.Product,
		RefusalAnswer,
		t.Brand,
		history,
		t.Source,
		FormatContext(chunks),
		question,
	)
}

// FormatContext renders each chunk as a [SECTION] block with its page,
// chapter and heading. Missing chapter or heading print as Unknown.
func FormatContext(chunks []manual.Chunk) string {
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, fmt.Sprintf("[SECTION]\nPage: %d\nChapter: %s\nHeading: %s\n%s",
			c.Metadata.Page,
			orUnknown(c.Chapter()),
			orUnknown(c.Heading()),
			strings.TrimSpace(c.Text),
		))
	}
	return strings.Join(blocks, "\n\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
