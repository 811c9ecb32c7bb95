package perfcore

import (
	"sort"
	"testing"
)

// AssertionConfig contains the bounds checked by the Assert helpers.
type AssertionConfig struct {
	// Upper bound on stored events (ring capacity)
	MaxEvents int

	// Upper bound on live patterns (table capacity)
	MaxPatterns int

	// Upper bound on pool descriptors
	MaxBlocks int

	// Arena size the blocks must fit in
	ArenaSize int
}

// AssertionConfigFor derives the bounds from a Config.
func AssertionConfigFor(cfg Config) AssertionConfig {
	return AssertionConfig{
		MaxEvents:   cfg.Learner.RingSize,
		MaxPatterns: cfg.Learner.MaxPatterns,
		MaxBlocks:   cfg.Allocator.MaxBlocks,
		ArenaSize:   cfg.Allocator.ArenaSize,
	}
}

// AssertAccuracyBounds verifies every pattern accuracy lies in [0,1].
func AssertAccuracyBounds(t testing.TB, patterns []PredictivePattern) {
	t.Helper()

	for _, p := range patterns {
		if p.Accuracy < 0 || p.Accuracy > 1 {
			t.Errorf("Accuracy out of bounds: %s = %.4f (want 0 ≤ a ≤ 1)", p.Key(), p.Accuracy)
		}
		if p.OccurrenceCount < 1 {
			t.Errorf("Pattern %s stored with %d occurrences", p.Key(), p.OccurrenceCount)
		}
		if p.MinDelay > p.AverageDelay || p.AverageDelay > p.MaxDelay {
			t.Errorf("Delay statistics inconsistent for %s: min %v, avg %v, max %v",
				p.Key(), p.MinDelay, p.AverageDelay, p.MaxDelay)
		}
	}
}

// AssertNoOverlap verifies that the in-use blocks occupy disjoint ranges of
// the arena and that none extends past it.
func AssertNoOverlap(t testing.TB, blocks []MemoryBlock, cfg AssertionConfig) {
	t.Helper()

	if cfg.MaxBlocks > 0 && len(blocks) > cfg.MaxBlocks {
		t.Errorf("Too many descriptors: %d (max: %d)", len(blocks), cfg.MaxBlocks)
	}

	var live []MemoryBlock
	for _, b := range blocks {
		if !b.InUse {
			continue
		}
		if b.Offset < 0 || (cfg.ArenaSize > 0 && b.Offset+b.Size > cfg.ArenaSize) {
			t.Errorf("Block %s [%d,%d) outside arena of %d bytes",
				b.Handle, b.Offset, b.Offset+b.Size, cfg.ArenaSize)
		}
		if b.Size < b.Requested {
			t.Errorf("Block %s smaller than requested: %d < %d", b.Handle, b.Size, b.Requested)
		}
		live = append(live, b)
	}

	sort.Slice(live, func(i, j int) bool { return live[i].Offset < live[j].Offset })
	for i := 1; i < len(live); i++ {
		prev, cur := live[i-1], live[i]
		if prev.Offset+prev.Size > cur.Offset {
			t.Errorf("Blocks overlap: %s [%d,%d) and %s [%d,%d)",
				prev.Handle, prev.Offset, prev.Offset+prev.Size,
				cur.Handle, cur.Offset, cur.Offset+cur.Size)
		}
	}
}

// AssertBoundedTables verifies the learner never outgrows its fixed tables.
func AssertBoundedTables(t testing.TB, stats LearnerStats, cfg AssertionConfig) {
	t.Helper()

	if stats.Events > cfg.MaxEvents {
		t.Errorf("Event history exceeds capacity: %d (max: %d)", stats.Events, cfg.MaxEvents)
	}
	if stats.Patterns > cfg.MaxPatterns {
		t.Errorf("Pattern table exceeds capacity: %d (max: %d)", stats.Patterns, cfg.MaxPatterns)
	}
}

// AssertTier verifies the core runs at the expected tier.
func AssertTier(t testing.TB, c *Core, want Tier) {
	t.Helper()

	if got := c.CurrentTier(); got != want {
		stats := c.Stats()
		t.Errorf("Expected tier %s, got %s (last decision: %s, %s)",
			want, got, stats.Governor.LastDecision.Rule, stats.Governor.LastDecision.Reason)
	}
}

// AssertInvariants runs every structural assertion against a core.
func AssertInvariants(t *testing.T, c *Core) {
	t.Helper()

	cfg := AssertionConfigFor(c.Config())
	stats := c.Stats()

	t.Run("AccuracyBounds", func(t *testing.T) {
		AssertAccuracyBounds(t, c.Patterns())
	})

	t.Run("NoOverlap", func(t *testing.T) {
		AssertNoOverlap(t, c.Blocks(), cfg)
	})

	t.Run("BoundedTables", func(t *testing.T) {
		AssertBoundedTables(t, stats.Learner, cfg)
	})
}

// PrintAnalysis writes a readable summary of a core to the test log.
func PrintAnalysis(t testing.TB, c *Core) {
	t.Helper()

	s := c.Stats()
	g, a, l := s.Governor, s.Allocator, s.Learner

	t.Logf("\n=== perfcore Analysis ===")
	t.Logf("Governor:")
	t.Logf("  tier        = %s @ %s", g.Current, g.Clock)
	t.Logf("  decision    = %s (%s)", g.LastDecision.Rule, g.LastDecision.Reason)
	t.Logf("  transitions = %d (escalations %d, render locks %d)", g.Transitions, g.Escalations, g.RenderLocks)
	for tier := TierLow; tier <= TierHigh; tier++ {
		t.Logf("  %-7s %v", tier.String()+":", g.TimeInTier[tier])
	}

	t.Logf("\nAllocator:")
	t.Logf("  pool        = %d/%d bytes, %d live blocks, %d freed", a.PoolUsed, a.PoolCapacity, a.LiveBlocks, a.FreedBlocks)
	t.Logf("  secondary   = %d/%d bytes", a.SecondaryUsed, a.SecondaryLimit)
	t.Logf("  pressure    = %.1f%%  fragmentation = %.2f", a.MemoryPressure, a.Fragmentation)
	t.Logf("  allocations = %d (pool %d, secondary %d, general %d)",
		a.TotalAllocations, a.PoolAllocations, a.SecondaryAllocations, a.GeneralAllocations)

	t.Logf("\nLearner:")
	t.Logf("  events      = %d stored, %d recorded, %d suppressed", l.Events, l.Recorded, l.Duplicates)
	t.Logf("  predictions = %d (correct %d, wrong %d, expired %d)", l.Predictions, l.Correct, l.Wrong, l.Expired)
	t.Logf("  load        = %.1f%% avg, %.1f%% peak", l.Context.RunningAverageLoad, l.Context.PeakLoad)
	t.Logf("  Pattern                              Accuracy  Count  AvgDelay")
	t.Logf("  -----------------------------------  --------  -----  --------")
	for _, p := range c.Patterns() {
		t.Logf("  %-35s  %8.2f  %5d  %v", p.Key(), p.Accuracy, p.OccurrenceCount, p.AverageDelay)
	}

	t.Logf("\nInterpretation:")
	switch {
	case l.Accuracy >= 0.75:
		t.Logf("  ✓ Predictions reliable (%.0f%% correct)", l.Accuracy*100)
	case l.Correct+l.Wrong == 0:
		t.Logf("  - No predictions validated yet")
	default:
		t.Logf("  ⚠ Predictions unreliable (%.0f%% correct)", l.Accuracy*100)
	}
	if a.Fragmentation > 0.7 {
		t.Logf("  ⚠ Pool fragmented (%.2f), compaction pending", a.Fragmentation)
	}
}
