package perfcore

import (
	"fmt"
	"log/slog"
	"time"
)

// PressureSource reports memory pressure in percent. *Allocator implements it.
type PressureSource interface {
	MemoryPressure() float64
}

// Prediction is a pending proactive escalation waiting for its target event.
type Prediction struct {
	Key        PatternKey
	Tier       Tier
	IssuedAt   time.Time
	ExpectedAt time.Time
	ValidUntil time.Time
}

// LearnerStats is a read-only view of the learner.
type LearnerStats struct {
	Recorded   int64
	Duplicates int64
	Events     int
	Patterns   int

	Predictions int64
	Correct     int64
	Wrong       int64
	Expired     int64
	Accuracy    float64 // correct / validated, 0 before the first validation

	ReactiveEscalations  int64
	ProactiveEscalations int64
	StressEvents         int64
	Downscales           int64

	Analyses   int64
	Pruned     int64
	TableFull  int64
	LoadErrors int64

	Pending bool
	Context SystemContext
}

// Learner records performance events, mines (trigger → target) correlations
// from its history, and drives the governor ahead of predicted load. It also
// escalates reactively whenever an event needs more than the current tier.
type Learner struct {
	cfg      LearnerConfig
	gov      *Governor
	pressure PressureSource
	load     LoadSource
	observer Observer
	logger   *slog.Logger

	ring     *EventRing
	patterns *PatternTable
	sys      SystemContext

	pending    Prediction
	hasPending bool

	analyzedSeq  int64 // sequence of the newest event folded into the pattern table
	scoredSeq    int64 // sequence of the newest trigger already shadow-scored
	lastAnalysis time.Time
	lastSample   time.Time

	recorded, duplicates              int64
	predictions, correct, wrong       int64
	expired                           int64
	reactive, proactive, stress       int64
	downscales                        int64
	analyses, pruned, full, loadError int64
}

// NewLearner wires a learner to the governor it commands. pressure, load and
// observer may be nil; without a load source the learner estimates load from
// the activity snapshot.
func NewLearner(cfg LearnerConfig, gov *Governor, pressure PressureSource, load LoadSource, observer Observer, logger *slog.Logger) *Learner {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{
		cfg:      cfg,
		gov:      gov,
		pressure: pressure,
		load:     load,
		observer: observer,
		logger:   logger,
		ring:     NewEventRing(cfg.RingSize),
		patterns: NewPatternTable(cfg.MaxPatterns),
	}
}

// Reset forgets every event, pattern and counter.
func (l *Learner) Reset() {
	l.ring.Reset()
	l.patterns.Reset()
	l.sys = SystemContext{}
	l.pending, l.hasPending = Prediction{}, false
	l.analyzedSeq, l.scoredSeq = 0, 0
	l.lastAnalysis, l.lastSample = time.Time{}, time.Time{}
	l.recorded, l.duplicates = 0, 0
	l.predictions, l.correct, l.wrong, l.expired = 0, 0, 0, 0
	l.reactive, l.proactive, l.stress, l.downscales = 0, 0, 0, 0
	l.analyses, l.pruned, l.full, l.loadError = 0, 0, 0, 0
}

func (l *Learner) memoryPressure() float64 {
	if l.pressure == nil {
		return 0
	}
	return l.pressure.MemoryPressure()
}

// RecordEvent stores one event and runs the reactive and predictive paths.
// An event identical in type, duration and intensity to the previous one and
// no more than DedupeWindow after it is dropped; RecordEvent then returns false.
func (l *Learner) RecordEvent(now time.Time, typ EventType, duration time.Duration, intensity int) bool {
	if !l.cfg.Enabled {
		return false
	}
	if duration < 0 {
		duration = 0
	}
	intensity = clampIntensity(intensity)

	e := PerformanceEvent{
		Type:           typ,
		Timestamp:      now,
		Duration:       duration,
		Intensity:      intensity,
		RequiredTier:   RequiredTier(intensity, duration),
		MemoryPressure: l.memoryPressure(),
	}

	if last, ok := l.ring.Last(); ok && last.sameShape(e) && now.Sub(last.Timestamp) <= l.cfg.DedupeWindow {
		l.duplicates++
		return false
	}

	l.ring.Push(e)
	l.recorded++

	if e.RequiredTier > l.gov.Current() {
		reason := fmt.Sprintf("%s needs %s (intensity %d, %v)", typ, e.RequiredTier, intensity, duration)
		if l.gov.Escalate(now, e.RequiredTier, RuleReactive, reason) {
			l.reactive++
			l.sys.LastScalingDecision = now
		}
		if duration > 0 {
			l.gov.Hold(now, HoldReactive, e.RequiredTier, now.Add(duration))
		}
	}

	l.validatePrediction(now, typ)
	l.makePrediction(now, typ)
	return true
}

// Update runs the timed parts of the learner for one control cycle: context
// sampling, pattern analysis and prediction expiry.
func (l *Learner) Update(now time.Time, snap ActivitySnapshot) {
	if !l.cfg.Enabled {
		return
	}

	if l.lastSample.IsZero() || now.Sub(l.lastSample) >= l.cfg.SampleInterval {
		l.sampleContext(now, snap)
	}

	if l.lastAnalysis.IsZero() {
		l.lastAnalysis = now
	} else if now.Sub(l.lastAnalysis) >= l.cfg.AnalysisInterval {
		l.AnalyzePatterns(now)
	}

	l.expirePrediction(now)
}

func (l *Learner) sampleContext(now time.Time, snap ActivitySnapshot) {
	l.lastSample = now

	load := EstimateLoad(snap)
	if l.load != nil {
		v, err := l.load.CPULoad()
		if err != nil {
			l.loadError++
			l.logger.Debug("cpu load sample failed, using activity estimate", "err", err)
		} else {
			load = v
		}
	}

	l.sys.sample(now, load, l.memoryPressure(), snap.BatteryPercent, l.cfg)

	streak := l.sys.ConsecutiveOverloads
	if l.cfg.OverloadStreak <= 0 || streak < l.cfg.OverloadStreak {
		return
	}

	reason := fmt.Sprintf("%d overload samples (load %.0f%%, memory %.0f%%)",
		streak, l.sys.CurrentLoad, l.sys.MemoryPressure)
	l.gov.Escalate(now, TierHigh, RuleOverload, reason)
	l.sys.LastScalingDecision = now

	if streak == l.cfg.OverloadStreak {
		l.stress++
		l.logger.Warn("system stress detected", "streak", streak,
			"load", l.sys.CurrentLoad, "memory_pressure", l.sys.MemoryPressure)
		l.RecordEvent(now, EventSystemStress, time.Duration(streak)*l.cfg.SampleInterval, 9)
	}
}

// AnalyzePatterns folds every new correlation in the event history into the
// pattern table and prunes weak or stale patterns. Every ordered pair of
// stored events within the correlation window counts, same-type pairs
// included. Only pairs whose later event was stored after the previous
// analysis are counted, so an occurrence is never counted twice. It returns
// the number of pattern updates.
func (l *Learner) AnalyzePatterns(now time.Time) int {
	l.lastAnalysis = now
	if !l.cfg.Enabled || l.ring.Len() < l.cfg.MinEvents {
		return 0
	}
	l.analyses++

	events := l.ring.Events()
	first := l.ring.Total() - int64(len(events)) + 1 // sequence of events[0]
	updates := 0
	for j := 1; j < len(events); j++ {
		later := events[j]
		if first+int64(j) <= l.analyzedSeq {
			continue
		}
		for i := 0; i < j; i++ {
			earlier := events[i]
			gap := later.Timestamp.Sub(earlier.Timestamp)
			if gap <= 0 || gap > l.cfg.CorrelationWindow {
				continue
			}
			key := PatternKey{Trigger: earlier.Type, Target: later.Type}
			if l.patterns.Observe(key, gap, later.Timestamp, l.cfg.InitialAccuracy) == nil {
				l.full++
				continue
			}
			updates++
		}
	}
	l.analyzedSeq = l.ring.Total()

	scored := l.shadowScore(now, events, first)

	pruned := l.patterns.Prune(now, l.cfg.PruneAccuracy, l.cfg.PatternTTL)
	l.pruned += int64(pruned)

	l.logger.Debug("patterns analyzed",
		"events", len(events), "updates", updates, "scored", scored,
		"pruned", pruned, "patterns", l.patterns.Len())
	return updates
}

// shadowScore grades patterns that are not yet confident enough to predict.
// For every trigger whose correlation window has closed, each such pattern is
// rewarded if its target followed within the window and penalized otherwise.
// Patterns at or above PredictAccuracy are graded by live predictions only.
func (l *Learner) shadowScore(now time.Time, events []PerformanceEvent, first int64) int {
	scored := 0
	for i, trig := range events {
		seq := first + int64(i)
		if seq <= l.scoredSeq {
			continue
		}
		if trig.Timestamp.Add(l.cfg.CorrelationWindow).After(now) {
			break
		}
		for _, key := range l.patterns.KeysFor(trig.Type) {
			p, _ := l.patterns.Get(key)
			if p.Accuracy >= l.cfg.PredictAccuracy {
				continue
			}
			delta := -l.cfg.Penalty
			if followedBy(events, i, key.Target, l.cfg.CorrelationWindow) {
				delta = l.cfg.Reward
			}
			if accuracy, _ := l.patterns.Adjust(key, delta); accuracy < l.cfg.PruneAccuracy {
				p.Active = false
			}
			scored++
		}
		l.scoredSeq = seq
	}
	return scored
}

// followedBy reports whether an event of type target occurs after events[i]
// within window.
func followedBy(events []PerformanceEvent, i int, target EventType, window time.Duration) bool {
	start := events[i].Timestamp
	for _, e := range events[i+1:] {
		gap := e.Timestamp.Sub(start)
		if gap > window {
			return false
		}
		if gap > 0 && e.Type == target {
			return true
		}
	}
	return false
}

// tierFor returns the tier an event type needs: the highest requirement seen
// in the history, or its nominal tier if it never occurred.
func (l *Learner) tierFor(typ EventType) Tier {
	tier, seen := TierLow, false
	for i := 0; i < l.ring.Len(); i++ {
		e := l.ring.At(i)
		if e.Type == typ {
			tier = maxTier(tier, e.RequiredTier)
			seen = true
		}
	}
	if !seen {
		return DefaultTierFor(typ)
	}
	return tier
}

func (l *Learner) makePrediction(now time.Time, trigger EventType) {
	if l.hasPending && !now.After(l.pending.ValidUntil) {
		return
	}

	p, ok := l.patterns.Best(trigger, l.cfg.PredictAccuracy, l.cfg.PredictOccurrences)
	if !ok {
		return
	}
	tier := l.tierFor(p.Target)
	if tier <= l.gov.Current() {
		return
	}

	expected := now.Add(p.AverageDelay)
	until := expected.Add(l.cfg.ValidityGrace)
	reason := fmt.Sprintf("%s expected in %v (accuracy %.2f, seen %d times)",
		p.Target, p.AverageDelay.Round(time.Millisecond), p.Accuracy, p.OccurrenceCount)
	if !l.gov.Escalate(now, tier, RulePredictive, reason) {
		return
	}
	l.gov.Hold(now, HoldPredictive, tier, until)

	l.pending = Prediction{
		Key:        p.Key(),
		Tier:       tier,
		IssuedAt:   now,
		ExpectedAt: expected,
		ValidUntil: until,
	}
	l.hasPending = true
	l.predictions++
	l.proactive++
	l.sys.LastScalingDecision = now

	l.logger.Debug("prediction issued", "pattern", p.Key().String(), "tier", tier, "valid_until", until)
}

// validatePrediction scores the pending prediction against the event that
// just arrived. Early arrivals count; anything after ValidUntil is handled by
// expiry instead.
func (l *Learner) validatePrediction(now time.Time, actual EventType) {
	if !l.hasPending {
		return
	}
	if now.After(l.pending.ValidUntil) {
		l.expirePrediction(now)
		return
	}

	pending := l.pending
	l.pending, l.hasPending = Prediction{}, false

	p, ok := l.patterns.Get(pending.Key)
	if !ok {
		l.logger.Warn("pending prediction lost its pattern", "pattern", pending.Key.String())
		return
	}

	result := PredictionCorrect
	delta := l.cfg.Reward
	if actual != p.Target {
		result = PredictionWrong
		delta = -l.cfg.Penalty
	}
	accuracy, _ := l.patterns.Adjust(pending.Key, delta)

	if result == PredictionCorrect {
		l.correct++
	} else {
		l.wrong++
		l.gov.ReleaseHold(HoldPredictive)
	}
	if accuracy < l.cfg.PruneAccuracy {
		p.Active = false
	}

	l.observer.PredictionResolved(PredictionOutcome{
		IssuedAt:   pending.IssuedAt,
		ResolvedAt: now,
		Trigger:    pending.Key.Trigger,
		Target:     pending.Key.Target,
		Actual:     actual,
		Tier:       pending.Tier,
		Result:     result,
		Accuracy:   accuracy,
	})
}

// expirePrediction drops a pending prediction whose window has passed. It is
// not penalized. If the load is low again the learner steps HIGH down to
// NORMAL, never straight to LOW.
func (l *Learner) expirePrediction(now time.Time) {
	if !l.hasPending || !now.After(l.pending.ValidUntil) {
		return
	}

	pending := l.pending
	l.pending, l.hasPending = Prediction{}, false
	l.expired++
	l.gov.ReleaseHold(HoldPredictive)

	accuracy := 0.0
	if p, ok := l.patterns.Get(pending.Key); ok {
		accuracy = p.Accuracy
	}
	l.observer.PredictionResolved(PredictionOutcome{
		IssuedAt:   pending.IssuedAt,
		ResolvedAt: now,
		Trigger:    pending.Key.Trigger,
		Target:     pending.Key.Target,
		Tier:       pending.Tier,
		Result:     PredictionExpired,
		Accuracy:   accuracy,
	})

	if l.sys.CurrentLoad < l.cfg.IdleLoad && l.gov.Current() == TierHigh {
		reason := fmt.Sprintf("prediction %s expired, load %.0f%%", pending.Key, l.sys.CurrentLoad)
		if l.gov.Apply(now, TierNormal, RuleRecovery, reason) {
			l.downscales++
			l.sys.LastScalingDecision = now
		}
	}
}

// PendingPrediction returns the prediction awaiting validation, if any.
func (l *Learner) PendingPrediction() (Prediction, bool) {
	return l.pending, l.hasPending
}

// Context returns a copy of the system context.
func (l *Learner) Context() SystemContext {
	return l.sys
}

// Patterns returns a sorted copy of the pattern table.
func (l *Learner) Patterns() []PredictivePattern {
	return l.patterns.Snapshot()
}

// Events returns the event history, oldest first.
func (l *Learner) Events() []PerformanceEvent {
	return l.ring.Events()
}

// Stats snapshots the learner counters.
func (l *Learner) Stats() LearnerStats {
	accuracy := 0.0
	if validated := l.correct + l.wrong; validated > 0 {
		accuracy = float64(l.correct) / float64(validated)
	}
	return LearnerStats{
		Recorded:             l.recorded,
		Duplicates:           l.duplicates,
		Events:               l.ring.Len(),
		Patterns:             l.patterns.Len(),
		Predictions:          l.predictions,
		Correct:              l.correct,
		Wrong:                l.wrong,
		Expired:              l.expired,
		Accuracy:             accuracy,
		ReactiveEscalations:  l.reactive,
		ProactiveEscalations: l.proactive,
		StressEvents:         l.stress,
		Downscales:           l.downscales,
		Analyses:             l.analyses,
		Pruned:               l.pruned,
		TableFull:            l.full,
		LoadErrors:           l.loadError,
		Pending:              l.hasPending,
		Context:              l.sys,
	}
}
