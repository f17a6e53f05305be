// Package llm talks to the answer-generation services and builds the
// retrieval-augmented prompt sent to them.
package llm

import (
	"context"
	"errors"
)

// ErrInvalidResponse is returned when the service answers with a body that
// cannot be decoded.
var ErrInvalidResponse = errors.New("invalid response format")

// Generation is the text produced for one prompt and how long it took.
type Generation struct {
	Text      string
	LatencyMs float64
}

// Generator produces answers from a fully built prompt.
type Generator interface {
	// Warmup loads the model so the first real question is not slowed down.
	Warmup(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (Generation, error)
	Model() string
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
