package llm

import (
	"math"
	"sort"
	"sync"
	"time"
)

type sample struct {
	at        time.Time
	latencyMs float64
}

// StatsSnapshot summarizes the generation latencies currently in the window.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	LastMs float64 `json:"last_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
	Window string  `json:"window"`
}

// Stats keeps generation latencies from the last maxAge and reports
// percentiles over them. It is safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 128),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one latency in milliseconds. Negative values count as zero.
func (s *Stats) Record(latencyMs float64) {
	latencyMs = math.Max(latencyMs, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, latencyMs: latencyMs})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	snap := StatsSnapshot{Window: s.maxAge.String()}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]float64, len(s.samples))
	var sum float64
	for i, sm := range s.samples {
		values[i] = sm.latencyMs
		sum += sm.latencyMs
	}
	snap.LastMs = values[len(values)-1]
	sort.Float64s(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = sum / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

// samples are appended in time order, so expired ones form a prefix.
func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = append(s.samples[:0], s.samples[i:]...)
	}
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []float64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return sorted[0]
	case pct >= 100:
		return sorted[len(sorted)-1]
	}
	rank := float64(len(sorted)-1) * pct / 100
	lower := int(rank)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*weight
}
