package manual

import (
	"fmt"
	"strings"
)

// Page is one page of extracted manual text.
type Page struct {
	PageNo int     // 1-based page number
	Text   string  // Raw text, replaced by the normalized text after cleaning
	Width  float64 // 0 if unknown
	Height float64 // 0 if unknown
}

// SectionSpan is a contiguous page range sharing one detected heading.
type SectionSpan struct {
	Chapter    string // "" when no chapter was detected
	Heading    string
	Subheading string
	PageStart  int
	PageEnd    int
	Keywords   []string // Never indexed
}

// ChunkMetadata is the fixed per-chunk metadata set by the chunker.
type ChunkMetadata struct {
	Page   int
	Source string
}

// Chunk is a bounded span of manual text indexed as one retrievable unit.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float64
	Section   *SectionSpan // Shared with the extractor output, not copied
	Metadata  ChunkMetadata
}

// Flat metadata keys stored alongside every indexed chunk.
const (
	KeyPage       = "page"
	KeySource     = "source"
	KeyChapter    = "chapter"
	KeyHeading    = "heading"
	KeySubheading = "subheading"
	KeyPageStart  = "page_start"
	KeyPageEnd    = "page_end"
)

// Record is the flat, primitive-only metadata stored with a chunk in the index.
// Values are string or int.
type Record map[string]any

// Flatten denormalizes the chunk metadata and its section into a flat record.
// Empty optional section fields are omitted. Keywords are not stored.
func (c Chunk) Flatten() Record {
	rec := Record{
		KeyPage:   c.Metadata.Page,
		KeySource: c.Metadata.Source,
	}
	if s := c.Section; s != nil {
		if s.Chapter != "" {
			rec[KeyChapter] = s.Chapter
		}
		if s.Heading != "" {
			rec[KeyHeading] = s.Heading
		}
		if s.Subheading != "" {
			rec[KeySubheading] = s.Subheading
		}
		rec[KeyPageStart] = s.PageStart
		rec[KeyPageEnd] = s.PageEnd
	}
	return rec
}

// String returns the value for key as a string, or "" if absent.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value for key as an int. Numbers decoded from JSON arrive as
// float64 and are truncated.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// ChunkFromRecord rebuilds a chunk from an indexed id, text and flat record.
func ChunkFromRecord(id, text string, rec Record) Chunk {
	page, _ := rec.Int(KeyPage)
	c := Chunk{
		ID:   id,
		Text: text,
		Metadata: ChunkMetadata{
			Page:   page,
			Source: rec.String(KeySource),
		},
	}
	start, hasStart := rec.Int(KeyPageStart)
	if hasStart || rec.String(KeyHeading) != "" || rec.String(KeyChapter) != "" {
		end, _ := rec.Int(KeyPageEnd)
		c.Section = &SectionSpan{
			Chapter:    rec.String(KeyChapter),
			Heading:    rec.String(KeyHeading),
			Subheading: rec.String(KeySubheading),
			PageStart:  start,
			PageEnd:    end,
		}
	}
	return c
}

// Chapter returns the chunk's chapter or "".
func (c Chunk) Chapter() string {
	if c.Section == nil {
		return ""
	}
	return c.Section.Chapter
}

// Heading returns the chunk's heading or "".
func (c Chunk) Heading() string {
	if c.Section == nil {
		return ""
	}
	return c.Section.Heading
}

// TotalTextLen returns the combined rune count of all chunk texts.
func TotalTextLen(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		n += len([]rune(c.Text))
	}
	return n
}

// JoinPages concatenates the trimmed, non-empty page texts with a blank line.
func JoinPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		t := strings.TrimSpace(p.Text)
		if t == "" {
			continue
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n\n")
}
