package agent

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentgate/agentgate/protocol"
)

const latencyWindow = 1024

// stats tracks runtime counters and a sliding latency window. Counters
// are atomics; the latency ring is mutex-guarded because p99 needs a
// consistent snapshot.
type stats struct {
	processed atomic.Int64
	blocked   atomic.Int64
	allowed   atomic.Int64
	errors    atomic.Int64
	active    atomic.Int64
	started   time.Time

	mu   sync.Mutex
	ring []time.Duration
	next int
	full bool
}

func newStats() *stats {
	return &stats{started: time.Now(), ring: make([]time.Duration, latencyWindow)}
}

// observe records one dispatched event and its verdict.
func (s *stats) observe(elapsed time.Duration, blocking bool, failed bool) {
	s.processed.Add(1)
	switch {
	case failed:
		s.errors.Add(1)
	case blocking:
		s.blocked.Add(1)
	default:
		s.allowed.Add(1)
	}

	s.mu.Lock()
	s.ring[s.next] = elapsed
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.full = true
	}
	s.mu.Unlock()
}

func (s *stats) requestStarted() { s.active.Add(1) }
func (s *stats) requestEnded()   { s.active.Add(-1) }

// latencies returns a copy of the filled portion of the window.
func (s *stats) latencies() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	if s.full {
		n = len(s.ring)
	}
	out := make([]time.Duration, n)
	copy(out, s.ring[:n])
	return out
}

// report snapshots the counters into a MetricsReport.
func (s *stats) report() protocol.MetricsReport {
	lat := s.latencies()
	var avg, p99 float64
	if len(lat) > 0 {
		var sum time.Duration
		for _, d := range lat {
			sum += d
		}
		avg = float64(sum.Microseconds()) / float64(len(lat)) / 1000

		sorted := make([]time.Duration, len(lat))
		copy(sorted, lat)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		idx := (len(sorted) * 99) / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		p99 = float64(sorted[idx].Microseconds()) / 1000
	}

	return protocol.MetricsReport{
		Processed:     s.processed.Load(),
		Blocked:       s.blocked.Load(),
		Allowed:       s.allowed.Load(),
		Errors:        s.errors.Load(),
		Active:        s.active.Load(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		AvgLatencyMS:  avg,
		P99LatencyMS:  p99,
	}
}
