package pipeline

import (
	"math/rand/v2"
	"time"
)

// MaxRetries bounds attempts per chunk embedding.
const MaxRetries = 3

// Backoff returns a duration for attempt n (0-indexed) with up to 50% jitter.
func Backoff(attempt int) time.Duration {
	base := baseBackoff << uint(attempt)
	if base > maxBackoff || base <= 0 {
		base = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(base)/2 + 1))
	return base + jitter
}

var (
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)
