package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/manualqa/internal/assistant"
	"github.com/dgallion1/manualqa/internal/llm"
	"github.com/dgallion1/manualqa/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))
)

// printAnswer renders the answer text followed by its page citations.
func printAnswer(w io.Writer, ans *assistant.Answer) {
	style := successStyle
	switch ans.Outcome {
	case assistant.Refused:
		style = warnStyle
	case assistant.Failed:
		style = errorStyle
	}
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("AI:"), style.Render(ans.Text))

	if len(ans.Chunks) > 0 && ans.Outcome == assistant.Answered {
		var refs []string
		seen := make(map[string]bool)
		for _, c := range ans.Chunks {
			ref := fmt.Sprintf("p.%d", c.Metadata.Page)
			if h := c.Heading(); h != "" {
				ref += " " + h
			}
			if !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
		fmt.Fprintln(w, dimStyle.Render("Sources: "+strings.Join(refs, "; ")))
	}
}

// printMetrics renders the per-answer latency box.
func printMetrics(w io.Writer, ans *assistant.Answer) {
	chapter := ans.ChapterUsed
	if chapter == "" {
		chapter = "(all)"
	}
	content := fmt.Sprintf("%s %.2f ms  %s %.2f ms  %s %.2f ms\n%s %s  %s %d",
		dimStyle.Render("Retrieval:"), ans.RetrievalLatencyMs,
		dimStyle.Render("LLM:"), ans.LLMLatencyMs,
		dimStyle.Render("Total:"), ans.TotalLatencyMs,
		dimStyle.Render("Chapter:"), chapter,
		dimStyle.Render("Docs:"), ans.DocsUsed,
	)
	fmt.Fprintln(w, boxStyle.Render(content))
}

// printLLMStats renders the rolling generation latency summary.
func printLLMStats(w io.Writer, model string, s llm.StatsSnapshot) {
	content := fmt.Sprintf("%s %s  %s %d  %s %s\n%s %.2f  %s %.2f  %s %.2f  %s %.2f  %s %.2f",
		dimStyle.Render("Model:"), titleStyle.Render(model),
		dimStyle.Render("Calls:"), s.Count,
		dimStyle.Render("Window:"), s.Window,
		dimStyle.Render("avg"), s.AvgMs,
		dimStyle.Render("p50"), s.P50Ms,
		dimStyle.Render("p95"), s.P95Ms,
		dimStyle.Render("p99"), s.P99Ms,
		dimStyle.Render("max"), s.MaxMs,
	)
	fmt.Fprintln(w, boxStyle.Render(content))
}

// printIngest renders the ingestion summary for one manual.
func printIngest(w io.Writer, snap pipeline.JobSnapshot) {
	status := successStyle.Render(string(snap.Status))
	switch snap.Status {
	case pipeline.StatusFailed:
		status = errorStyle.Render(string(snap.Status))
	case pipeline.StatusPartial, pipeline.StatusDupSkipped:
		status = warnStyle.Render(string(snap.Status))
	}
	p := snap.Progress
	content := fmt.Sprintf("%s %s  %s %s\n%s %d (%d empty)  %s %d\n%s %d/%d  %s ~%d",
		dimStyle.Render("File:"), snap.Filename,
		dimStyle.Render("Status:"), status,
		dimStyle.Render("Pages:"), p.Pages, p.EmptyPages,
		dimStyle.Render("Sections:"), p.Sections,
		dimStyle.Render("Indexed:"), p.ChunksIndexed, p.TotalChunks,
		dimStyle.Render("Tokens:"), p.Tokens,
	)
	fmt.Fprintln(w, boxStyle.Render(content))
	for _, e := range p.Errors {
		fmt.Fprintln(w, errorStyle.Render("  "+e))
	}
}
