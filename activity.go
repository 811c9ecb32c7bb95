package perfcore

import (
	"sync/atomic"
	"time"
)

// ActivitySignal is the last-activity timestamp of one subsystem plus a
// "currently active" flag. Detectors running on other goroutines write it; the
// control loop only reads it, so both fields are atomic.
type ActivitySignal struct {
	last   atomic.Int64 // unix nanoseconds, 0 = never
	active atomic.Bool
}

// Mark stamps the signal with now.
func (s *ActivitySignal) Mark(now time.Time) {
	s.last.Store(now.UnixNano())
}

// SetActive updates the "currently active" flag.
func (s *ActivitySignal) SetActive(active bool) {
	s.active.Store(active)
}

// Active reports the "currently active" flag.
func (s *ActivitySignal) Active() bool {
	return s.active.Load()
}

// Last returns the last activity time, or the zero time if the signal never fired.
func (s *ActivitySignal) Last() time.Time {
	ns := s.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Within reports whether the signal fired no earlier than window before now.
func (s *ActivitySignal) Within(now time.Time, window time.Duration) bool {
	return recent(now, s.Last(), window)
}

// SignalStats is a read-only view of one activity signal.
type SignalStats struct {
	Last   time.Time
	Active bool // flag set by the last snapshot
	Recent bool // fired within the activity window
}

// Stats snapshots the signal at now, judging recency against window.
func (s *ActivitySignal) Stats(now time.Time, window time.Duration) SignalStats {
	return SignalStats{
		Last:   s.Last(),
		Active: s.Active(),
		Recent: s.Within(now, window),
	}
}

// ActivityStats groups the signal views of every subsystem.
type ActivityStats struct {
	Touch   SignalStats
	Network SignalStats
	Display SignalStats
	General SignalStats
}

// names returns the subsystems for which pick holds, in fixed order.
func (a ActivityStats) names(pick func(SignalStats) bool) []string {
	out := []string{}
	for _, s := range []struct {
		name string
		sig  SignalStats
	}{{"touch", a.Touch}, {"network", a.Network}, {"display", a.Display}, {"general", a.General}} {
		if pick(s.sig) {
			out = append(out, s.name)
		}
	}
	return out
}

func (s *ActivitySignal) reset() {
	s.last.Store(0)
	s.active.Store(false)
}

// TouchSource is the touch/gesture detector.
type TouchSource interface {
	IsActive() bool
	IsLongPressActive() bool
	IsBurstActive() bool
}

// NetworkSource is the network request queue.
type NetworkSource interface {
	HasActivity() bool
	IsBurstActive() bool
	QueueDepth() int
}

// DisplaySource is the display driver.
type DisplaySource interface {
	IsScreenOn() bool
	IsIntensiveRenderActive() bool
}

// PowerSource reports the battery state of charge.
type PowerSource interface {
	BatteryLevelPercent() int
}

// LoadSource supplies a CPU load estimate in percent (0-100).
type LoadSource interface {
	CPULoad() (float64, error)
}

// HeapSource reports the general-purpose heap the allocator falls back to.
type HeapSource interface {
	FreeHeapBytes() uint64
	TotalHeapBytes() uint64
}

// FrequencySetter applies a clock target to the CPU.
type FrequencySetter interface {
	SetClock(f Freq) error
}

// idleSources answers every collaborator query with "nothing is happening".
// It stands in for any collaborator the caller did not wire.
type idleSources struct{}

func (idleSources) IsActive() bool                { return false }
func (idleSources) IsLongPressActive() bool       { return false }
func (idleSources) IsBurstActive() bool           { return false }
func (idleSources) HasActivity() bool             { return false }
func (idleSources) QueueDepth() int               { return 0 }
func (idleSources) IsScreenOn() bool              { return false }
func (idleSources) IsIntensiveRenderActive() bool { return false }
func (idleSources) BatteryLevelPercent() int      { return 100 }
func (idleSources) SetClock(Freq) error           { return nil }

// ActivitySnapshot is what the control loop sees of the outside world in one
// cycle. It is read once per Tick and never mutated afterwards.
type ActivitySnapshot struct {
	Now time.Time

	TouchActive bool
	LongPress   bool
	TouchBurst  bool
	LastTouch   time.Time

	NetworkActive bool
	NetworkBurst  bool
	QueueDepth    int
	LastNetwork   time.Time

	ScreenOn        bool
	ScreenOnAt      time.Time
	IntensiveRender bool
	LastDisplay     time.Time

	LastGeneral time.Time

	BatteryPercent int
}

// LastActivity returns the most recent activity timestamp across all sources.
func (s ActivitySnapshot) LastActivity() time.Time {
	last := s.LastTouch
	for _, t := range []time.Time{s.LastNetwork, s.LastDisplay, s.LastGeneral} {
		if t.After(last) {
			last = t
		}
	}
	return last
}

// recent reports whether t is set and no older than window.
func recent(now, t time.Time, window time.Duration) bool {
	return !t.IsZero() && now.Sub(t) <= window
}
