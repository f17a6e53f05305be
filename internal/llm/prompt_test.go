package llm

import (
	"strings"
	"testing"

	"github.com/dgallion1/manualqa/internal/manual"
)

func TestFormatContext(t *testing.T) {
	chunks := []manual.Chunk{
		{
			Text:     "  The charge port is on the left rear side.  ",
			Section:  &manual.SectionSpan{Chapter: "Charging", Heading: "Opening The Charge Port"},
			Metadata: manual.ChunkMetadata{Page: 180},
		},
		{
			Text:     "Check tire pressure monthly.",
			Metadata: manual.ChunkMetadata{Page: 12},
		},
	}

	got := FormatContext(chunks)
	want := "[SECTION]\nPage: 180\nChapter: Charging\nHeading: Opening The Charge Port\nThe charge port is on the left rear side." +
		"\n\n" +
		"[SECTION]\nPage: 12\nChapter: Unknown\nHeading: Unknown\nCheck tire pressure monthly."
	if got != want {
		t.Fatalf("FormatContext mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildRAGPrompt(t *testing.T) {
	chunks := []manual.Chunk{{Text: "Press the button.", Metadata: manual.ChunkMetadata{Page: 3}}}
	prompt := BuildRAGPrompt("How do I open the trunk?", chunks, "")

	for _, want := range []string{
		"Tesla Model 3 Expert AI Assistant",
		`"` + RefusalAnswer + `"`,
		"### Previous Conversation:\n[None]\n",
		"### Retrieved Context (Tesla Model 3 Owner Manual):\n[SECTION]\nPage: 3",
		"### User Question:\nHow do I open the trunk?\n",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildKeepsHistory(t *testing.T) {
	tmpl := PromptTemplate{Product: "Rivian R1T", Brand: "Rivian", Source: "R1T Owner's Guide"}
	history := "[User] How do I charge?\n[AI] Open the port."
	prompt := tmpl.Build("And unplug?", nil, history)

	if !strings.Contains(prompt, "### Previous Conversation:\n"+history+"\n") {
		t.Error("history not rendered")
	}
	if !strings.Contains(prompt, "Rivian R1T Expert") || !strings.Contains(prompt, "aligned with Rivian documentation") {
		t.Error("template fields not applied")
	}
}
