package perfcore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a Core's statistics as Prometheus metrics. Every scrape
// takes one Stats snapshot.
type Collector struct {
	core *Core

	tier        *prometheus.Desc
	clock       *prometheus.Desc
	timeInTier  *prometheus.Desc
	transitions *prometheus.Desc
	pressure    *prometheus.Desc
	fragment    *prometheus.Desc
	poolUsed    *prometheus.Desc
	allocations *prometheus.Desc
	events      *prometheus.Desc
	duplicates  *prometheus.Desc
	issued      *prometheus.Desc
	resolved    *prometheus.Desc
	patterns    *prometheus.Desc
	load        *prometheus.Desc
	tickLatency *prometheus.Desc
	tickMax     *prometheus.Desc
	tickTail    *prometheus.Desc
}

// NewCollector builds a collector for core. namespace defaults to "perfcore".
func NewCollector(core *Core, namespace string) *Collector {
	if namespace == "" {
		namespace = "perfcore"
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		core:        core,
		tier:        desc("tier", "Active performance tier (0=LOW, 1=NORMAL, 2=HIGH)."),
		clock:       desc("cpu_clock_hz", "Clock target of the active tier."),
		timeInTier:  desc("time_in_tier_seconds_total", "Cumulative residency per tier.", "tier"),
		transitions: desc("tier_transitions_total", "Applied tier transitions."),
		pressure:    desc("memory_pressure_percent", "Allocator memory pressure."),
		fragment:    desc("fragmentation_ratio", "Freed but unreclaimed pool descriptors over all descriptors."),
		poolUsed:    desc("pool_used_bytes", "Arena write offset."),
		allocations: desc("allocations_total", "Successful allocations by region.", "origin"),
		events:      desc("events_recorded_total", "Performance events stored by the learner."),
		duplicates:  desc("events_suppressed_total", "Duplicate events dropped by the learner."),
		issued:      desc("predictions_issued_total", "Proactive escalations issued."),
		resolved:    desc("predictions_resolved_total", "Resolved predictions by result.", "result"),
		patterns:    desc("patterns", "Live learned patterns."),
		load:        desc("running_load_percent", "Running average CPU load."),
		tickLatency: desc("tick_latency_seconds", "Control cycle duration over the recent window.", "quantile"),
		tickMax:     desc("tick_latency_max_seconds", "Longest control cycle since start."),
		tickTail:    desc("tick_tail_ratio", "P99 over P50 control cycle duration."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.tier, c.clock, c.timeInTier, c.transitions, c.pressure, c.fragment,
		c.poolUsed, c.allocations, c.events, c.duplicates, c.issued, c.resolved,
		c.patterns, c.load, c.tickLatency, c.tickMax, c.tickTail,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.core.Stats()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}

	gauge(c.tier, float64(s.Governor.Current))
	gauge(c.clock, float64(s.Governor.Clock))
	for t := TierLow; t <= TierHigh; t++ {
		counter(c.timeInTier, s.Governor.TimeInTier[t].Seconds(), t.String())
	}
	counter(c.transitions, float64(s.Governor.Transitions))

	gauge(c.pressure, s.Allocator.MemoryPressure)
	gauge(c.fragment, s.Allocator.Fragmentation)
	gauge(c.poolUsed, float64(s.Allocator.PoolUsed))
	counter(c.allocations, float64(s.Allocator.PoolAllocations), OriginPool.String())
	counter(c.allocations, float64(s.Allocator.SecondaryAllocations), OriginSecondary.String())
	counter(c.allocations, float64(s.Allocator.GeneralAllocations), OriginGeneral.String())

	counter(c.events, float64(s.Learner.Recorded))
	counter(c.duplicates, float64(s.Learner.Duplicates))
	counter(c.issued, float64(s.Learner.Predictions))
	counter(c.resolved, float64(s.Learner.Correct), string(PredictionCorrect))
	counter(c.resolved, float64(s.Learner.Wrong), string(PredictionWrong))
	counter(c.resolved, float64(s.Learner.Expired), string(PredictionExpired))
	gauge(c.patterns, float64(s.Learner.Patterns))
	gauge(c.load, s.Learner.Context.RunningAverageLoad)
	gauge(c.tickLatency, s.TickLatency.P50.Seconds(), "0.5")
	gauge(c.tickLatency, s.TickLatency.P99.Seconds(), "0.99")
	gauge(c.tickMax, s.TickLatency.Max.Seconds())
	gauge(c.tickTail, s.TickLatency.TailRatio())
}
