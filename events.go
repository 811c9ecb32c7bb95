package perfcore

import "time"

// EventType classifies a performance event.
type EventType string

const (
	EventTouch           EventType = "TOUCH"            // single tap
	EventLongPress       EventType = "LONG_PRESS"       // long gesture
	EventTouchBurst      EventType = "TOUCH_BURST"      // rapid repeated input
	EventNetworkRequest  EventType = "NETWORK_REQUEST"  // request to the lighting controller
	EventNetworkBurst    EventType = "NETWORK_BURST"    // several requests back to back
	EventDisplayUpdate   EventType = "DISPLAY_UPDATE"   // partial redraw
	EventIntensiveRender EventType = "INTENSIVE_RENDER" // full-screen or animated render
	EventScreenWake      EventType = "SCREEN_WAKE"      // backlight on
	EventSystemStress    EventType = "SYSTEM_STRESS"    // synthesized by the learner
)

// defaultTypeTiers is the tier each known event type usually needs. It is only
// consulted when the event history holds no sample of the type.
var defaultTypeTiers = map[EventType]Tier{
	EventTouch:           TierNormal,
	EventLongPress:       TierHigh,
	EventTouchBurst:      TierHigh,
	EventNetworkRequest:  TierNormal,
	EventNetworkBurst:    TierHigh,
	EventDisplayUpdate:   TierNormal,
	EventIntensiveRender: TierHigh,
	EventScreenWake:      TierHigh,
	EventSystemStress:    TierHigh,
}

// DefaultTierFor returns the nominal tier of an event type; unknown types
// need NORMAL.
func DefaultTierFor(t EventType) Tier {
	if tier, ok := defaultTypeTiers[t]; ok {
		return tier
	}
	return TierNormal
}

// RequiredTier maps an event's intensity (1-10) and duration to the tier it
// needs: intensity ≥ 8 or longer than 500ms → HIGH; intensity ≥ 5 or longer
// than 200ms → NORMAL; else LOW.
func RequiredTier(intensity int, duration time.Duration) Tier {
	switch {
	case intensity >= 8 || duration > 500*time.Millisecond:
		return TierHigh
	case intensity >= 5 || duration > 200*time.Millisecond:
		return TierNormal
	}
	return TierLow
}

// clampIntensity forces intensity into 1..10.
func clampIntensity(intensity int) int {
	if intensity < 1 {
		return 1
	}
	if intensity > 10 {
		return 10
	}
	return intensity
}

// PerformanceEvent is one recorded load event. Events are immutable once
// stored.
type PerformanceEvent struct {
	Type           EventType
	Timestamp      time.Time
	Duration       time.Duration
	Intensity      int
	RequiredTier   Tier
	MemoryPressure float64 // percent at capture
}

// sameShape reports whether two events carry identical type, duration and
// intensity.
func (e PerformanceEvent) sameShape(o PerformanceEvent) bool {
	return e.Type == o.Type && e.Duration == o.Duration && e.Intensity == o.Intensity
}

// EventRing is a fixed-size ring buffer of events that overwrites the
// oldest entry once full.
type EventRing struct {
	slots []PerformanceEvent
	write int   // next write position
	count int   // valid entries
	total int64 // entries ever pushed (monotonic)
}

// NewEventRing creates a ring with the given capacity (32 if size ≤ 0).
func NewEventRing(size int) *EventRing {
	if size <= 0 {
		size = MaxRingSize
	}
	return &EventRing{slots: make([]PerformanceEvent, size)}
}

// Push appends e, overwriting the oldest entry when full.
func (r *EventRing) Push(e PerformanceEvent) {
	r.slots[r.write] = e
	r.write = (r.write + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
	r.total++
}

// Len returns the number of stored events.
func (r *EventRing) Len() int { return r.count }

// Cap returns the fixed capacity.
func (r *EventRing) Cap() int { return len(r.slots) }

// Total returns how many events were ever pushed.
func (r *EventRing) Total() int64 { return r.total }

// At returns the i-th stored event, oldest first.
func (r *EventRing) At(i int) PerformanceEvent {
	start := (r.write - r.count + len(r.slots)) % len(r.slots)
	return r.slots[(start+i)%len(r.slots)]
}

// Last returns the newest event.
func (r *EventRing) Last() (PerformanceEvent, bool) {
	if r.count == 0 {
		return PerformanceEvent{}, false
	}
	return r.At(r.count - 1), true
}

// Events copies the stored events, oldest first.
func (r *EventRing) Events() []PerformanceEvent {
	out := make([]PerformanceEvent, r.count)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

// Reset empties the ring.
func (r *EventRing) Reset() {
	for i := range r.slots {
		r.slots[i] = PerformanceEvent{}
	}
	r.write, r.count, r.total = 0, 0, 0
}
