package perfcore

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNoSample is returned by Profiler.CPULoad when no time has passed since
// the previous sample.
var ErrNoSample = errors.New("perfcore: no elapsed time to sample")

// Profiler estimates CPU load from busy time. Subsystems wrap their work in
// spans; load is the share of wall time during which at least one span was
// open since the previous sample. It is safe for concurrent use and satisfies
// LoadSource, which makes it the load estimate on devices without an OS load
// counter.
type Profiler struct {
	mu    sync.Mutex
	clock func() time.Time

	windowStart time.Time
	busy        time.Duration
	open        int
	openSince   time.Time

	spans map[string]*SpanStats
}

// SpanStats aggregates all spans that share a name.
type SpanStats struct {
	Name  string
	Count int64
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average span duration.
func (s SpanStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Span is an open timing handle.
type Span struct {
	p     *Profiler
	name  string
	start time.Time
	done  bool
}

// NewProfiler creates a profiler. clock may be nil to use time.Now.
func NewProfiler(clock func() time.Time) *Profiler {
	if clock == nil {
		clock = time.Now
	}
	return &Profiler{
		clock:       clock,
		windowStart: clock(),
		spans:       make(map[string]*SpanStats),
	}
}

// Begin opens a span.
func (p *Profiler) Begin(name string) *Span {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.open == 0 {
		p.openSince = now
	}
	p.open++
	return &Span{p: p, name: name, start: now}
}

// End closes the span. Ending a span twice has no effect.
func (s *Span) End() {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()

	if s.done {
		return
	}
	s.done = true

	now := p.clock()
	p.open--
	if p.open == 0 && now.After(p.openSince) {
		p.busy += now.Sub(p.openSince)
	}

	d := now.Sub(s.start)
	st, ok := p.spans[s.name]
	if !ok {
		st = &SpanStats{Name: s.name}
		p.spans[s.name] = st
	}
	st.Count++
	st.Total += d
	if d > st.Max {
		st.Max = d
	}
}

// Measure runs fn inside a span.
func (p *Profiler) Measure(name string, fn func()) {
	span := p.Begin(name)
	defer span.End()
	fn()
}

// CPULoad returns the busy percentage since the previous call and starts a
// new window.
func (p *Profiler) CPULoad() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	elapsed := now.Sub(p.windowStart)
	if elapsed <= 0 {
		return 0, ErrNoSample
	}

	busy := p.busy
	if p.open > 0 && now.After(p.openSince) {
		busy += now.Sub(p.openSince)
		p.openSince = now
	}

	p.busy = 0
	p.windowStart = now
	return clamp(100*float64(busy)/float64(elapsed), 0, 100), nil
}

// Spans returns per-name span statistics, sorted by name.
func (p *Profiler) Spans() []SpanStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SpanStats, 0, len(p.spans))
	for _, st := range p.spans {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
