// Package cleaner strips page furniture (page numbers, running headers and
// footers, hyphenation, stray whitespace) from extracted page text.
package cleaner

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var pageNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^page\s*\d+\s*$`),
	regexp.MustCompile(`^\d+\s*$`),
	regexp.MustCompile(`^\d+\s*/\s*\d+\s*$`),
	regexp.MustCompile(`^page\s*\|\s*\d+$`),
}

var (
	blankRunRe = regexp.MustCompile(`\n{3,}`)
	digitsRe   = regexp.MustCompile(`^\d+$`)
)

// Normalizer cleans page text for one manual brand.
type Normalizer struct {
	Brand string // Manufacturer name used by the header/footer heuristics
}

// New returns a Normalizer for brand.
func New(brand string) *Normalizer {
	return &Normalizer{Brand: brand}
}

// Normalize cleans raw with the default Tesla brand.
func Normalize(raw string, pageNo int) string {
	return New("Tesla").Normalize(raw, pageNo)
}

// Normalize returns the cleaned text of one page. pageNo is informational.
func (n *Normalizer) Normalize(raw string, pageNo int) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = RemovePageNumbers(text)
	text = Dehyphenate(text)
	text = n.RemoveHeaderFooter(text)
	return NormalizeWhitespace(text)
}

// RemovePageNumbers drops lines that are only a page marker.
func RemovePageNumbers(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isPageNumber(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isPageNumber(line string) bool {
	s := strings.ToLower(strings.TrimSpace(line))
	for _, re := range pageNumberPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Dehyphenate joins a word broken across lines by a trailing hyphen when the
// next line starts with a letter.
func Dehyphenate(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	var prev rune = -1
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '-' && prev != -1 && isWordRune(prev) && strings.HasPrefix(text[i+size:], "\n") {
			next, _ := utf8.DecodeRuneInString(text[i+size+1:])
			if unicode.IsLetter(next) {
				i += size + 1
				continue
			}
		}
		sb.WriteRune(r)
		prev = r
		i += size
	}
	return sb.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// RemoveHeaderFooter drops a probable running header (first line) and footer
// (last line). Pages of two lines or fewer are left alone.
func (n *Normalizer) RemoveHeaderFooter(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= 2 {
		return text
	}

	first := strings.TrimSpace(lines[0])
	if n.isHeader(first) {
		lines = lines[1:]
	}

	last := strings.ToLower(strings.TrimSpace(lines[len(lines)-1]))
	if n.isFooter(last) {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func (n *Normalizer) isHeader(line string) bool {
	if len(strings.Fields(line)) > 5 {
		return false
	}
	if IsUpper(line) || utf8.RuneCountInString(line) < 25 {
		return true
	}
	return n.Brand != "" && strings.HasPrefix(line, strings.ToUpper(n.Brand))
}

func (n *Normalizer) isFooter(lower string) bool {
	switch {
	case strings.HasPrefix(lower, "page"):
		return true
	case digitsRe.MatchString(lower):
		return true
	case strings.HasPrefix(lower, "copyright"):
		return true
	case n.Brand != "" && strings.HasPrefix(lower, strings.ToLower(n.Brand)):
		return true
	}
	return false
}

// NormalizeWhitespace converts CRLF and lone CR to LF, trims trailing space
// from every line, then collapses runs of blank lines to a single blank line.
// Lines are trimmed first so whitespace-only lines count as blank.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	text = blankRunRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}

// IsUpper reports whether s has at least one cased rune and no lowercase ones.
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
