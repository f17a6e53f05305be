package structure

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/manualqa/internal/config"
	"github.com/dgallion1/manualqa/internal/manual"
)

// OverviewChapter is assigned to table-of-contents pages.
const OverviewChapter = "Overview"

// Extractor applies a manual profile's chapter set and heading exclusions.
type Extractor struct {
	chapters   []string // sorted
	patterns   map[string]*regexp.Regexp
	exclusions []string
}

// NewExtractor builds an Extractor for profile p.
func NewExtractor(p config.Profile) *Extractor {
	e := &Extractor{
		chapters:   p.SortedChapters(),
		patterns:   make(map[string]*regexp.Regexp, len(p.Chapters)),
		exclusions: append([]string(nil), p.HeadingExclusions...),
	}
	for _, c := range e.chapters {
		e.patterns[c] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(c) + `\b`)
	}
	return e
}

// DetectChapter returns the dominant chapter of a page, or "" when no known
// chapter name occurs. Pages that look like a table of contents are Overview.
// Equal counts resolve to the alphabetically first chapter.
func (e *Extractor) DetectChapter(text string) string {
	if strings.Contains(text, "...") {
		return OverviewChapter
	}
	for _, line := range strings.Split(text, "\n") {
		if IsTOCLine(line) {
			return OverviewChapter
		}
	}

	best, bestCount := "", 0
	for _, c := range e.chapters {
		n := len(e.patterns[c].FindAllStringIndex(text, -1))
		if n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func (e *Extractor) excluded(heading string) bool {
	for _, term := range e.exclusions {
		if term != "" && strings.Contains(heading, term) {
			return true
		}
	}
	return false
}

// ExtractSections emits one single-page span per accepted heading, in page
// order, then merges consecutive spans with the same heading.
func (e *Extractor) ExtractSections(pages []manual.Page) []manual.SectionSpan {
	ordered := append([]manual.Page(nil), pages...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageNo < ordered[j].PageNo })

	var spans []manual.SectionSpan
	for _, p := range ordered {
		chapter := e.DetectChapter(p.Text)
		for _, h := range ExtractHeadings(p.Text) {
			if e.excluded(h) {
				continue
			}
			spans = append(spans, manual.SectionSpan{
				Chapter:   chapter,
				Heading:   h,
				PageStart: p.PageNo,
				PageEnd:   p.PageNo,
				Keywords:  []string{},
			})
		}
	}
	return MergeSpans(spans)
}

// MergeSpans extends a span over the next one when both carry the same
// heading. Only neighbours merge; the input must already be in page order.
func MergeSpans(spans []manual.SectionSpan) []manual.SectionSpan {
	if len(spans) == 0 {
		return nil
	}
	merged := []manual.SectionSpan{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Heading == last.Heading {
			last.PageEnd = s.PageEnd
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
