package chunker

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens approximates how many model tokens text uses: one per word,
// plus one for every three runes a word runs past five. Only used for logs
// and progress counters.
func EstimateTokens(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		n++
		if l := utf8.RuneCountInString(w); l > 5 {
			n += (l - 5 + 2) / 3
		}
	}
	return n
}
