package perfcore

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Series(t *testing.T) {
	clock := newFakeClock()
	c := newTestCore(t, clock)
	collector := NewCollector(c, "")

	// 3 residency, 3 allocation origins, 3 results, 2 quantiles and 13 scalars.
	if n := testutil.CollectAndCount(collector); n != 24 {
		t.Errorf("Expected 24 series, got %d", n)
	}
}

func TestCollector_FollowsCore(t *testing.T) {
	clock := newFakeClock()
	c := newTestCore(t, clock)
	collector := NewCollector(c, "perfcore")

	expected := `
# HELP perfcore_tier Active performance tier (0=LOW, 1=NORMAL, 2=HIGH).
# TYPE perfcore_tier gauge
perfcore_tier 1
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "perfcore_tier"); err != nil {
		t.Errorf("Unexpected initial tier metric: %v", err)
	}

	c.NotifyPerformanceEvent(EventIntensiveRender, 300*time.Millisecond, 9)
	for i := 0; i < 4; i++ {
		c.RequestAllocation(1024)
	}

	expected = `
# HELP perfcore_tier Active performance tier (0=LOW, 1=NORMAL, 2=HIGH).
# TYPE perfcore_tier gauge
perfcore_tier 2
# HELP perfcore_memory_pressure_percent Allocator memory pressure.
# TYPE perfcore_memory_pressure_percent gauge
perfcore_memory_pressure_percent 25
# HELP perfcore_allocations_total Successful allocations by region.
# TYPE perfcore_allocations_total counter
perfcore_allocations_total{origin="general"} 0
perfcore_allocations_total{origin="pool"} 4
perfcore_allocations_total{origin="secondary"} 0
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"perfcore_tier", "perfcore_memory_pressure_percent", "perfcore_allocations_total"); err != nil {
		t.Errorf("Unexpected metrics: %v", err)
	}
}

func TestCollector_Register(t *testing.T) {
	c := newTestCore(t, newFakeClock())
	reg := prometheus.NewPedanticRegistry()

	if err := reg.Register(NewCollector(c, "remote")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Errorf("Gather failed: %v", err)
	}
}

func TestCollector_TickTail(t *testing.T) {
	c := newTestCore(t, newFakeClock())
	collector := NewCollector(c, "perfcore")

	expected := `
# HELP perfcore_tick_latency_max_seconds Longest control cycle since start.
# TYPE perfcore_tick_latency_max_seconds gauge
perfcore_tick_latency_max_seconds 0
# HELP perfcore_tick_tail_ratio P99 over P50 control cycle duration.
# TYPE perfcore_tick_tail_ratio gauge
perfcore_tick_tail_ratio 1
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"perfcore_tick_latency_max_seconds", "perfcore_tick_tail_ratio"); err != nil {
		t.Errorf("Unexpected tick metrics before the first tick: %v", err)
	}
}
