package pipeline

import (
	"sync"
	"time"
)

// Stats tracks process-wide run counters. All methods are safe for
// concurrent use.
type Stats struct {
	mu            sync.Mutex
	requests      uint64
	failures      uint64
	degradedRuns  uint64
	totalDuration time.Duration
}

func (s *Stats) record(d time.Duration, failed, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if failed {
		s.failures++
	}
	if degraded {
		s.degradedRuns++
	}
	s.totalDuration += d
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	// Requests counts completed runs, successful or not.
	Requests uint64 `json:"requests"`

	// Failures counts runs that returned an Error.
	Failures uint64 `json:"failures"`

	// DegradedRuns counts runs that needed at least one fallback
	// substitution.
	DegradedRuns uint64 `json:"degraded_runs"`

	// AvgDurationMS is the mean run latency across all requests.
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{
		Requests:     s.requests,
		Failures:     s.failures,
		DegradedRuns: s.degradedRuns,
	}
	if s.requests > 0 {
		snap.AvgDurationMS = float64(s.totalDuration.Milliseconds()) / float64(s.requests)
	}
	return snap
}
