package perfcore

import (
	"sort"
	"time"
)

// PatternKey identifies a learned correlation: Target tends to follow Trigger.
type PatternKey struct {
	Trigger EventType
	Target  EventType
}

func (k PatternKey) String() string {
	return string(k.Trigger) + "->" + string(k.Target)
}

func (k PatternKey) less(o PatternKey) bool {
	if k.Trigger != o.Trigger {
		return k.Trigger < o.Trigger
	}
	return k.Target < o.Target
}

// PredictivePattern is a (trigger → target) temporal correlation with delay
// statistics and a confidence score.
type PredictivePattern struct {
	Trigger         EventType
	Target          EventType
	AverageDelay    time.Duration
	MinDelay        time.Duration
	MaxDelay        time.Duration
	OccurrenceCount int
	Accuracy        float64 // always within [0,1]
	LastSeen        time.Time
	Active          bool
}

// Key returns the table key of p.
func (p PredictivePattern) Key() PatternKey {
	return PatternKey{Trigger: p.Trigger, Target: p.Target}
}

// observe folds one more observed delay into the statistics.
func (p *PredictivePattern) observe(delay time.Duration, now time.Time) {
	p.OccurrenceCount++
	if p.OccurrenceCount == 1 {
		p.AverageDelay, p.MinDelay, p.MaxDelay = delay, delay, delay
	} else {
		p.AverageDelay += (delay - p.AverageDelay) / time.Duration(p.OccurrenceCount)
		if delay < p.MinDelay {
			p.MinDelay = delay
		}
		if delay > p.MaxDelay {
			p.MaxDelay = delay
		}
	}
	p.LastSeen = now
}

// PatternTable holds at most a fixed number of patterns keyed by
// (trigger, target). Once full it refuses new keys instead of evicting.
type PatternTable struct {
	entries  map[PatternKey]*PredictivePattern
	capacity int
}

// NewPatternTable creates a table holding at most capacity patterns (16 if
// capacity ≤ 0).
func NewPatternTable(capacity int) *PatternTable {
	if capacity <= 0 {
		capacity = MaxPatterns
	}
	return &PatternTable{
		entries:  make(map[PatternKey]*PredictivePattern, capacity),
		capacity: capacity,
	}
}

// Len returns the number of live patterns.
func (t *PatternTable) Len() int { return len(t.entries) }

// Cap returns the table capacity.
func (t *PatternTable) Cap() int { return t.capacity }

// Get returns the pattern stored under key.
func (t *PatternTable) Get(key PatternKey) (*PredictivePattern, bool) {
	p, ok := t.entries[key]
	return p, ok
}

// Observe records one occurrence of key with the given delay, creating the
// pattern at initialAccuracy if needed. It returns nil when the key is new
// and the table is full.
func (t *PatternTable) Observe(key PatternKey, delay time.Duration, now time.Time, initialAccuracy float64) *PredictivePattern {
	p, ok := t.entries[key]
	if !ok {
		if len(t.entries) >= t.capacity {
			return nil
		}
		p = &PredictivePattern{
			Trigger:  key.Trigger,
			Target:   key.Target,
			Accuracy: clamp(initialAccuracy, 0, 1),
			Active:   true,
		}
		t.entries[key] = p
	}
	p.observe(delay, now)
	return p
}

// Adjust adds delta to the accuracy of key, clamped to [0,1], and returns
// the new accuracy.
func (t *PatternTable) Adjust(key PatternKey, delta float64) (float64, bool) {
	p, ok := t.entries[key]
	if !ok {
		return 0, false
	}
	p.Accuracy = clamp(p.Accuracy+delta, 0, 1)
	return p.Accuracy, true
}

// Prune removes patterns below minAccuracy or unseen for longer than ttl and
// returns how many were removed.
func (t *PatternTable) Prune(now time.Time, minAccuracy float64, ttl time.Duration) int {
	removed := 0
	for key, p := range t.entries {
		if p.Accuracy < minAccuracy || now.Sub(p.LastSeen) > ttl {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}

// Best returns the strongest active pattern for trigger that meets both
// thresholds: highest accuracy, then most occurrences, then key order.
func (t *PatternTable) Best(trigger EventType, minAccuracy float64, minCount int) (*PredictivePattern, bool) {
	var best *PredictivePattern
	for _, p := range t.entries {
		if p.Trigger != trigger || !p.Active || p.Accuracy < minAccuracy || p.OccurrenceCount < minCount {
			continue
		}
		if best == nil ||
			p.Accuracy > best.Accuracy ||
			(p.Accuracy == best.Accuracy && p.OccurrenceCount > best.OccurrenceCount) ||
			(p.Accuracy == best.Accuracy && p.OccurrenceCount == best.OccurrenceCount && p.Key().less(best.Key())) {
			best = p
		}
	}
	return best, best != nil
}

// KeysFor returns the keys of every pattern with the given trigger, sorted.
func (t *PatternTable) KeysFor(trigger EventType) []PatternKey {
	var keys []PatternKey
	for key := range t.entries {
		if key.Trigger == trigger {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys
}

// Snapshot copies every pattern, sorted by key.
func (t *PatternTable) Snapshot() []PredictivePattern {
	out := make([]PredictivePattern, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().less(out[j].Key()) })
	return out
}

// Reset empties the table.
func (t *PatternTable) Reset() {
	t.entries = make(map[PatternKey]*PredictivePattern, t.capacity)
}
