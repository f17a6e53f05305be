// Package structure detects headings and chapters in normalized manual pages
// and groups contiguous pages sharing a heading into section spans.
package structure

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/manualqa/internal/cleaner"
)

var (
	tocRe       = regexp.MustCompile(`^([A-Za-z][A-Za-z ]+?)\s*\.{3,}\s*\d+$`)
	titleCaseRe = regexp.MustCompile(`^([A-Z][a-z]+(\s+[A-Z][a-z]+){1,5})$`)
	alphaRe     = regexp.MustCompile(`^[A-Za-z ]+$`)
)

// ExtractHeadings returns the sorted, deduplicated heading candidates found in
// text. Each line is classified by the first matching layer: table-of-contents
// entry, all-caps line, Title Case line, then short alphabetic line.
func ExtractHeadings(text string) []string {
	seen := make(map[string]bool)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if h, ok := classifyLine(line); ok {
			seen[h] = true
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func classifyLine(line string) (string, bool) {
	if m := tocRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	n := utf8.RuneCountInString(line)
	if cleaner.IsUpper(line) && n >= 3 && n <= 60 {
		return TitleCase(line), true
	}

	if titleCaseRe.MatchString(line) {
		return line, true
	}

	words := len(strings.Fields(line))
	if words >= 2 && words <= 6 && alphaRe.MatchString(line) {
		return line, true
	}
	return "", false
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func TitleCase(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}

// IsTOCLine reports whether line looks like a table-of-contents entry.
func IsTOCLine(line string) bool {
	return tocRe.MatchString(strings.TrimSpace(line))
}
