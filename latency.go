package perfcore

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent control-cycle durations in a fixed
// ring and reports percentiles over them. A tick that takes longer than the
// tick period means the controller itself is starving the UI.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	write   int
	count   int64 // monotonic
	max     time.Duration

	sorted []time.Duration // cached, nil when stale
}

// LatencyStats summarizes a LatencyTracker.
type LatencyStats struct {
	Count int64
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration // over the whole run, not just the window
}

// TailRatio is P99/P50, or 1 without samples. Above 10 the loop has
// occasional stalls rather than uniform cost.
func (s LatencyStats) TailRatio() float64 {
	if s.P50 == 0 {
		return 1
	}
	return float64(s.P99) / float64(s.P50)
}

// NewLatencyTracker keeps the last size samples (256 if size ≤ 0).
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 256
	}
	return &LatencyTracker{samples: make([]time.Duration, size)}
}

// Record adds one sample.
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.write] = d
	t.write = (t.write + 1) % len(t.samples)
	t.count++
	if d > t.max {
		t.max = d
	}
	t.sorted = nil
}

func (t *LatencyTracker) window() int {
	if t.count < int64(len(t.samples)) {
		return int(t.count)
	}
	return len(t.samples)
}

// percentile expects the lock held and p in [0,1].
func (t *LatencyTracker) percentile(p float64) time.Duration {
	n := t.window()
	if n == 0 {
		return 0
	}
	if t.sorted == nil {
		t.sorted = make([]time.Duration, n)
		copy(t.sorted, t.samples[:n])
		sort.Slice(t.sorted, func(i, j int) bool { return t.sorted[i] < t.sorted[j] })
	}
	return t.sorted[int(float64(n-1)*p)]
}

// Stats snapshots the tracker.
func (t *LatencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.window()
	if n == 0 {
		return LatencyStats{}
	}
	var sum time.Duration
	for _, d := range t.samples[:n] {
		sum += d
	}
	return LatencyStats{
		Count: t.count,
		Mean:  sum / time.Duration(n),
		P50:   t.percentile(0.50),
		P99:   t.percentile(0.99),
		Max:   t.max,
	}
}

// Reset drops every sample.
func (t *LatencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.samples {
		t.samples[i] = 0
	}
	t.write, t.count, t.max = 0, 0, 0
	t.sorted = nil
}
