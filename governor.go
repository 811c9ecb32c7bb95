package perfcore

import (
	"fmt"
	"log/slog"
	"time"
)

// HoldSource names who placed a tier hold.
type HoldSource int

const (
	HoldReactive   HoldSource = iota // an event's own duration
	HoldPredictive                   // a pending prediction's validity window
	numHoldSources
)

func (s HoldSource) String() string {
	switch s {
	case HoldReactive:
		return "reactive"
	case HoldPredictive:
		return "predictive"
	}
	return fmt.Sprintf("HoldSource(%d)", int(s))
}

type hold struct {
	tier  Tier
	until time.Time
}

func (h hold) active(now time.Time) bool {
	return now.Before(h.until)
}

// Governor picks the CPU performance tier from activity recency. It is the
// ground truth of the control loop: whatever the learner predicts, the
// governor re-evaluates the raw signals on its own cadence.
//
// Control loop:
// - Render check on every tick (escalation only, arms the render lock)
// - Full re-evaluation at most once per EvalInterval
// - Learner holds act as a floor until they expire
// - A tier is applied only when it differs from the current one
type Governor struct {
	cfg      TierConfig
	setter   FrequencySetter
	observer Observer
	logger   *slog.Logger

	current   Tier
	enteredAt time.Time
	lastEval  time.Time

	// Hysteresis
	renderLockUntil time.Time
	holds           [numHoldSources]hold

	timeInTier   [NumTiers]time.Duration
	lastDecision TierDecision

	// Action history
	evaluations int
	transitions int
	escalations int
	renderLocks int
	suppressed  int
}

// GovernorStats is a read-only view of the governor.
type GovernorStats struct {
	Current      Tier
	Clock        Freq
	LastDecision TierDecision
	TimeInTier   [NumTiers]time.Duration
	Evaluations  int
	Transitions  int
	Escalations  int
	RenderLocks  int
	Suppressed   int
	RenderLocked bool
}

// NewGovernor creates a governor. setter and observer may be nil.
func NewGovernor(cfg TierConfig, setter FrequencySetter, observer Observer, logger *slog.Logger) *Governor {
	if setter == nil {
		setter = idleSources{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Governor{
		cfg:      cfg,
		setter:   setter,
		observer: observer,
		logger:   logger,
	}
	g.Reset()
	return g
}

// Reset returns the governor to its initial tier and clears all history.
func (g *Governor) Reset() {
	g.current = g.cfg.InitialTier
	if !g.cfg.Enabled {
		g.current = g.cfg.FixedTier
	}
	g.enteredAt = time.Time{}
	g.lastEval = time.Time{}
	g.renderLockUntil = time.Time{}
	g.holds = [numHoldSources]hold{}
	g.timeInTier = [NumTiers]time.Duration{}
	g.lastDecision = TierDecision{Tier: g.current, Rule: RuleDefault, Reason: "initial"}
	g.evaluations, g.transitions, g.escalations = 0, 0, 0
	g.renderLocks, g.suppressed = 0, 0
}

// Start begins residency accounting at now and programs the clock of the
// starting tier.
func (g *Governor) Start(now time.Time) {
	g.enteredAt = now
	if !g.cfg.Enabled {
		g.lastDecision = TierDecision{Tier: g.current, Rule: RuleFixed, Reason: "governor disabled"}
	}
	g.setClock(g.current)
}

// Current returns the active tier.
func (g *Governor) Current() Tier {
	return g.current
}

// RenderLocked reports whether the render lock suppresses transitions at now.
func (g *Governor) RenderLocked(now time.Time) bool {
	return now.Before(g.renderLockUntil)
}

// Tick runs one control cycle and reports whether the tier changed.
func (g *Governor) Tick(now time.Time, snap ActivitySnapshot, sys SystemContext) bool {
	if !g.cfg.Enabled {
		return false
	}
	if g.enteredAt.IsZero() {
		g.enteredAt = now
	}

	changed := false
	if snap.IntensiveRender {
		if !g.RenderLocked(now) {
			g.renderLocks++
		}
		g.renderLockUntil = now.Add(g.cfg.RenderLock)
		if g.current != TierHigh {
			changed = g.apply(now, TierHigh, RuleRender, "intensive render active")
		}
	}

	if !g.lastEval.IsZero() && now.Sub(g.lastEval) < g.cfg.EvalInterval {
		return changed
	}
	g.lastEval = now
	g.evaluations++

	d := SelectTier(snap, sys, g.cfg)
	if h, src, ok := g.floor(now); ok && h.tier > d.Tier {
		d = TierDecision{
			Tier:   h.tier,
			Rule:   RuleHold,
			Reason: fmt.Sprintf("%s hold at %s for %v (policy wanted %s)", src, h.tier, h.until.Sub(now).Round(time.Millisecond), d.Tier),
		}
	}
	g.lastDecision = d

	return g.apply(now, d.Tier, d.Rule, d.Reason) || changed
}

// Apply switches to tier unless it is already active or the render lock
// forbids leaving HIGH. It reports whether the tier changed.
func (g *Governor) Apply(now time.Time, tier Tier, rule TierRule, reason string) bool {
	if !g.cfg.Enabled {
		return false
	}
	return g.apply(now, tier, rule, reason)
}

// Escalate applies tier only if it is above the current tier.
func (g *Governor) Escalate(now time.Time, tier Tier, rule TierRule, reason string) bool {
	if tier <= g.current {
		return false
	}
	return g.Apply(now, tier, rule, reason)
}

// Hold keeps the periodic evaluation from selecting anything below tier until
// the given time. Each source has its own slot; within a slot a weaker or
// shorter hold never overrides a stronger one that is still running.
func (g *Governor) Hold(now time.Time, src HoldSource, tier Tier, until time.Time) {
	if src < 0 || src >= numHoldSources {
		return
	}
	h := &g.holds[src]
	if h.active(now) && h.tier > tier {
		return
	}
	if h.active(now) && h.tier == tier && h.until.After(until) {
		return
	}
	*h = hold{tier: tier, until: until}
}

// ReleaseHold drops the hold of one source. Holds of other sources stay.
func (g *Governor) ReleaseHold(src HoldSource) {
	if src >= 0 && src < numHoldSources {
		g.holds[src] = hold{}
	}
}

// floor returns the strongest hold still running at now.
func (g *Governor) floor(now time.Time) (hold, HoldSource, bool) {
	var (
		best  hold
		owner HoldSource
		found bool
	)
	for src, h := range g.holds {
		if !h.active(now) {
			continue
		}
		if !found || h.tier > best.tier || (h.tier == best.tier && h.until.After(best.until)) {
			best, owner, found = h, HoldSource(src), true
		}
	}
	return best, owner, found
}

func (g *Governor) apply(now time.Time, tier Tier, rule TierRule, reason string) bool {
	if !tier.Valid() || tier == g.current {
		return false
	}
	if tier < TierHigh && g.RenderLocked(now) {
		g.suppressed++
		g.logger.Debug("tier change suppressed by render lock",
			"current", g.current, "wanted", tier, "rule", rule)
		return false
	}

	from := g.current
	g.account(now)
	g.current = tier
	g.transitions++
	if tier > from {
		g.escalations++
	}
	clock := g.setClock(tier)

	g.logger.Info("tier changed",
		"from", from, "to", tier, "clock", clock, "rule", rule, "reason", reason)
	g.observer.TierChanged(TierChange{
		At:     now,
		From:   from,
		To:     tier,
		Clock:  clock,
		Rule:   rule,
		Reason: reason,
	})
	return true
}

func (g *Governor) setClock(tier Tier) Freq {
	clock := g.cfg.Clocks.Clock(tier)
	if err := g.setter.SetClock(clock); err != nil {
		g.logger.Warn("failed to set cpu clock", "tier", tier, "clock", clock, "err", err)
	}
	return clock
}

// account closes the residency interval of the current tier at now.
func (g *Governor) account(now time.Time) {
	if !g.enteredAt.IsZero() && now.After(g.enteredAt) {
		g.timeInTier[g.current] += now.Sub(g.enteredAt)
	}
	g.enteredAt = now
}

// TimeInTier returns the cumulative residency per tier up to now.
func (g *Governor) TimeInTier(now time.Time) [NumTiers]time.Duration {
	out := g.timeInTier
	if !g.enteredAt.IsZero() && now.After(g.enteredAt) {
		out[g.current] += now.Sub(g.enteredAt)
	}
	return out
}

// Stats snapshots the governor at now.
func (g *Governor) Stats(now time.Time) GovernorStats {
	return GovernorStats{
		Current:      g.current,
		Clock:        g.cfg.Clocks.Clock(g.current),
		LastDecision: g.lastDecision,
		TimeInTier:   g.TimeInTier(now),
		Evaluations:  g.evaluations,
		Transitions:  g.transitions,
		Escalations:  g.escalations,
		RenderLocks:  g.renderLocks,
		Suppressed:   g.suppressed,
		RenderLocked: g.RenderLocked(now),
	}
}

// GetStatistics returns governor operational stats.
func (g *Governor) GetStatistics(now time.Time) map[string]interface{} {
	residency := g.TimeInTier(now)
	return map[string]interface{}{
		"current_tier":       g.current.String(),
		"clock":              g.cfg.Clocks.Clock(g.current).String(),
		"last_rule":          string(g.lastDecision.Rule),
		"evaluations":        g.evaluations,
		"transitions":        g.transitions,
		"escalations":        g.escalations,
		"render_locks":       g.renderLocks,
		"suppressed_changes": g.suppressed,
		"time_low":           residency[TierLow].String(),
		"time_normal":        residency[TierNormal].String(),
		"time_high":          residency[TierHigh].String(),
	}
}
