package perfcore

import (
	"fmt"
	"time"
)

// TierRule names the rule that produced a tier decision.
type TierRule string

const (
	RuleRender   TierRule = "RENDER"   // intensive render active: force HIGH and lock
	RuleActivity TierRule = "ACTIVITY" // gesture, fresh touch, deep queue or screen wake
	RuleOverload TierRule = "OVERLOAD" // sustained load or memory pressure
	RuleIdle     TierRule = "IDLE"     // nothing recent and idle threshold passed
	RuleDefault  TierRule = "DEFAULT"  // none of the above
	RuleHold     TierRule = "HOLD"     // a learner hold kept the tier up
	RuleFixed    TierRule = "FIXED"    // governor disabled

	// Commands issued by the learner.
	RuleReactive   TierRule = "REACTIVE"   // event needs more than the current tier
	RulePredictive TierRule = "PREDICTIVE" // pattern predicts a heavier event
	RuleRecovery   TierRule = "RECOVERY"   // expired prediction, load is low again
)

// TierDecision is the outcome of one evaluation and the reasoning behind it.
type TierDecision struct {
	Tier   Tier
	Rule   TierRule
	Reason string
}

// SelectTier is the activity-recency policy, in priority order:
//
//  1. display rendering is active → HIGH (the caller arms the render lock)
//  2. long gesture, touch within TouchWindow, queue depth > QueueDepthHigh or
//     screen woke within ScreenOnWindow → HIGH
//  3. sustained overload in the shared context → HIGH
//  4. no signal within ActivityWindow and nothing at all for IdleThreshold → LOW
//  5. otherwise → NORMAL
//
// It is a pure function of its inputs.
func SelectTier(snap ActivitySnapshot, sys SystemContext, cfg TierConfig) TierDecision {
	now := snap.Now

	if snap.IntensiveRender {
		return TierDecision{
			Tier:   TierHigh,
			Rule:   RuleRender,
			Reason: "intensive render active",
		}
	}

	switch {
	case snap.LongPress:
		return TierDecision{TierHigh, RuleActivity, "long gesture active"}
	case recent(now, snap.LastTouch, cfg.TouchWindow):
		return TierDecision{TierHigh, RuleActivity,
			fmt.Sprintf("touch %v ago", now.Sub(snap.LastTouch).Round(time.Millisecond))}
	case snap.QueueDepth > cfg.QueueDepthHigh:
		return TierDecision{TierHigh, RuleActivity,
			fmt.Sprintf("network queue depth %d > %d", snap.QueueDepth, cfg.QueueDepthHigh)}
	case snap.ScreenOn && recent(now, snap.ScreenOnAt, cfg.ScreenOnWindow):
		return TierDecision{TierHigh, RuleActivity,
			fmt.Sprintf("screen woke %v ago", now.Sub(snap.ScreenOnAt).Round(time.Millisecond))}
	}

	if cfg.OverloadStreak > 0 && sys.ConsecutiveOverloads >= cfg.OverloadStreak {
		return TierDecision{TierHigh, RuleOverload,
			fmt.Sprintf("%d consecutive overload samples", sys.ConsecutiveOverloads)}
	}

	anyRecent := recent(now, snap.LastTouch, cfg.ActivityWindow) ||
		recent(now, snap.LastNetwork, cfg.ActivityWindow) ||
		recent(now, snap.LastDisplay, cfg.ActivityWindow) ||
		snap.TouchActive || snap.NetworkActive
	if !anyRecent && idleFor(snap, cfg.IdleThreshold) {
		return TierDecision{TierLow, RuleIdle, "no activity within idle threshold"}
	}

	return TierDecision{TierNormal, RuleDefault, "moderate activity"}
}

// idleFor reports whether nothing happened for longer than threshold. A
// source that never fired counts as idle forever.
func idleFor(snap ActivitySnapshot, threshold time.Duration) bool {
	last := snap.LastActivity()
	if last.IsZero() {
		return true
	}
	return snap.Now.Sub(last) > threshold
}
