package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/manualqa/internal/manual"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int    // Target chunk size in characters.
	ChunkOverlap int    // Overlap between consecutive chunks in characters.
	MinLength    int    // Chunks shorter than this after trimming are dropped.
	Source       string // Source label stored with every chunk.
}

// DefaultConfig returns the defaults tuned for owner's manuals.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    950,
		ChunkOverlap: 150,
		MinLength:    40,
		Source:       "Tesla Model 3 Owner's Manual",
	}
}

// pageWindow is how many leading characters of a chunk are used to find its page.
const pageWindow = 20

// Run merges the normalized pages, splits them into overlapping chunks and
// attaches each chunk's estimated page and section.
func Run(pages []manual.Page, sections []manual.SectionSpan, cfg Config) []manual.Chunk {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(def.ChunkOverlap, cfg.ChunkSize/2)
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.Source == "" {
		cfg.Source = def.Source
	}

	text := manual.JoinPages(pages)
	if text == "" {
		return nil
	}

	byStart := make(map[int]*manual.SectionSpan, len(sections))
	for i := range sections {
		if _, ok := byStart[sections[i].PageStart]; !ok {
			byStart[sections[i].PageStart] = &sections[i]
		}
	}

	lowered := make([]string, len(pages))
	for i, p := range pages {
		lowered[i] = strings.ToLower(p.Text)
	}

	splitter := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	var chunks []manual.Chunk
	for _, part := range splitter.Split(text) {
		if runeLen(strings.TrimSpace(part)) < cfg.MinLength {
			continue
		}
		page := estimatePage(part, pages, lowered)
		chunks = append(chunks, manual.Chunk{
			ID:      fmt.Sprintf("chunk-%d", len(chunks)+1),
			Text:    part,
			Section: byStart[page],
			Metadata: manual.ChunkMetadata{
				Page:   page,
				Source: cfg.Source,
			},
		})
	}
	return chunks
}

// EstimatePage returns the number of the first page whose text contains the
// chunk's leading characters, or the first page when none does.
func EstimatePage(chunk string, pages []manual.Page) int {
	lowered := make([]string, len(pages))
	for i, p := range pages {
		lowered[i] = strings.ToLower(p.Text)
	}
	return estimatePage(chunk, pages, lowered)
}

func estimatePage(chunk string, pages []manual.Page, lowered []string) int {
	if len(pages) == 0 {
		return 1
	}
	r := []rune(chunk)
	if len(r) > pageWindow {
		r = r[:pageWindow]
	}
	probe := strings.ToLower(strings.TrimSpace(string(r)))
	for i, p := range pages {
		if strings.Contains(lowered[i], probe) {
			return p.PageNo
		}
	}
	return pages[0].PageNo
}
