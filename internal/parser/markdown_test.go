package parser

import (
	"strings"
	"testing"
)

func TestMarkdownSource_ThematicBreaksSplitPages(t *testing.T) {
	input := `# Charging

Open the charge port from the touchscreen.

---

## Seat Belts

Always wear your seat belt.

- Check the buckle
- Adjust the height
`
	pages, err := (&MarkdownSource{}).Pages(strings.NewReader(input), "manual.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}

	if pages[0].PageNo != 1 || pages[1].PageNo != 2 {
		t.Errorf("unexpected page numbers %d, %d", pages[0].PageNo, pages[1].PageNo)
	}
	want0 := "CHARGING\n\nOpen the charge port from the touchscreen."
	if pages[0].Text != want0 {
		t.Errorf("page 1: got %q, want %q", pages[0].Text, want0)
	}
	if !strings.HasPrefix(pages[1].Text, "SEAT BELTS\n\nAlways wear your seat belt.") {
		t.Errorf("page 2: got %q", pages[1].Text)
	}
	if !strings.Contains(pages[1].Text, "Check the buckle\nAdjust the height") {
		t.Errorf("page 2 list items: got %q", pages[1].Text)
	}
}

func TestMarkdownSource_NoDuplicateParagraphText(t *testing.T) {
	pages, err := (&MarkdownSource{}).Pages(strings.NewReader("Only one paragraph here."), "one.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "Only one paragraph here." {
		t.Errorf("unexpected pages: %+v", pages)
	}
}

func TestMarkdownSource_InlineFormatting(t *testing.T) {
	pages, err := (&MarkdownSource{}).Pages(strings.NewReader("Press **Park** and `hold` it."), "fmt.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "Press Park and hold it." {
		t.Errorf("unexpected pages: %+v", pages)
	}
}

func TestMarkdownSource_Empty(t *testing.T) {
	pages, err := (&MarkdownSource{}).Pages(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected no pages, got %d", len(pages))
	}
}
