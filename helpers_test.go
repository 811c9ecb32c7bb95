package perfcore

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

//go:generate mockgen -destination mock_perfcore_test.go -package $GOPACKAGE -write_package_comment=false github.com/alexshd/perfcore FrequencySetter,LoadSource,HeapSource,Observer

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type fakeTouch struct{ active, longPress, burst bool }

func (f *fakeTouch) IsActive() bool          { return f.active }
func (f *fakeTouch) IsLongPressActive() bool { return f.longPress }
func (f *fakeTouch) IsBurstActive() bool     { return f.burst }

type fakeNetwork struct {
	active, burst bool
	depth         int
}

func (f *fakeNetwork) HasActivity() bool   { return f.active }
func (f *fakeNetwork) IsBurstActive() bool { return f.burst }
func (f *fakeNetwork) QueueDepth() int     { return f.depth }

type fakeDisplay struct{ on, rendering bool }

func (f *fakeDisplay) IsScreenOn() bool              { return f.on }
func (f *fakeDisplay) IsIntensiveRenderActive() bool { return f.rendering }

type fakeHeap struct{ free, total uint64 }

func (f *fakeHeap) FreeHeapBytes() uint64  { return f.free }
func (f *fakeHeap) TotalHeapBytes() uint64 { return f.total }

// recordingObserver keeps every notification.
type recordingObserver struct {
	changes  []TierChange
	outcomes []PredictionOutcome
}

func (r *recordingObserver) TierChanged(c TierChange)              { r.changes = append(r.changes, c) }
func (r *recordingObserver) PredictionResolved(p PredictionOutcome) { r.outcomes = append(r.outcomes, p) }

// idleSnapshot is a snapshot in which nothing ever happened.
func idleSnapshot(now time.Time) ActivitySnapshot {
	return ActivitySnapshot{Now: now, BatteryPercent: 100}
}
