package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// HashingEmbedder is an offline bag-of-words embedder. Tokens are hashed into
// a fixed number of buckets, so no corpus preparation is needed and ingestion
// and query time always agree on the dimension.
type HashingEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewHashingEmbedder returns an embedder producing vectors of dimension d.
func NewHashingEmbedder(d int) *HashingEmbedder {
	if d <= 0 {
		d = 384
	}
	return &HashingEmbedder{
		dimension:    d,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\d+`),
		stopwords:    defaultStopwords(),
	}
}

func (e *HashingEmbedder) Name() string { return "hashing" }

// Dimension returns the vector length.
func (e *HashingEmbedder) Dimension() int { return e.dimension }

// Embed returns the L2-normalized term-frequency vector of text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, e.dimension)
	for _, tok := range e.tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dimension)]++
	}
	return Normalize(vec), nil
}

func (e *HashingEmbedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "do", "for", "from",
		"how", "i", "if", "in", "is", "it", "its", "my", "of", "on", "or",
		"that", "the", "this", "to", "was", "what", "when", "where", "which",
		"with", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
