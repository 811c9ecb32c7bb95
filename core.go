package perfcore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Core owns the allocator, the governor and the learner and runs them as one
// cooperative control loop. Every mutation happens under a single mutex;
// activity notifications are lock-free so detectors on other goroutines never
// wait for the loop.
type Core struct {
	mu sync.Mutex

	cfg    Config
	clock  func() time.Time
	logger *slog.Logger

	touch   TouchSource
	network NetworkSource
	display DisplaySource
	power   PowerSource
	load    LoadSource
	heap    HeapSource
	setter  FrequencySetter

	touchSignal   ActivitySignal
	networkSignal ActivitySignal
	displaySignal ActivitySignal
	generalSignal ActivitySignal

	screenOn   bool
	screenOnAt time.Time

	observers multiObserver
	alloc     *Allocator
	gov       *Governor
	learner   *Learner

	ticks         int64
	tickLatency   *LatencyTracker
	notifications *xsync.Counter
}

// Option configures a Core.
type Option func(*Core)

// WithTouch wires the touch detector.
func WithTouch(s TouchSource) Option { return func(c *Core) { c.touch = s } }

// WithNetwork wires the network queue.
func WithNetwork(s NetworkSource) Option { return func(c *Core) { c.network = s } }

// WithDisplay wires the display driver.
func WithDisplay(s DisplaySource) Option { return func(c *Core) { c.display = s } }

// WithPower wires the battery monitor.
func WithPower(s PowerSource) Option { return func(c *Core) { c.power = s } }

// WithLoadSource wires a CPU load estimator. Without one the learner derives
// load from the activity snapshot.
func WithLoadSource(s LoadSource) Option { return func(c *Core) { c.load = s } }

// WithHeapSource wires the general heap monitor used for memory pressure and
// the low-water GC trigger.
func WithHeapSource(s HeapSource) Option { return func(c *Core) { c.heap = s } }

// WithFrequencySetter wires the CPU clock driver.
func WithFrequencySetter(s FrequencySetter) Option { return func(c *Core) { c.setter = s } }

// WithObserver adds an observer of tier changes and prediction outcomes.
func WithObserver(o Observer) Option {
	return func(c *Core) { c.observers = append(c.observers, o) }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(c *Core) { c.logger = l } }

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(c *Core) { c.clock = now } }

// New builds a core from cfg. Collaborators that are not wired behave as idle.
func New(cfg Config, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	idle := idleSources{}
	c := &Core{
		cfg:           cfg,
		clock:         time.Now,
		logger:        slog.Default(),
		touch:         idle,
		network:       idle,
		display:       idle,
		power:         idle,
		setter:        idle,
		tickLatency:   NewLatencyTracker(0),
		notifications: xsync.NewCounter(),
	}
	for _, opt := range opts {
		opt(c)
	}

	log := c.logger.With("component", "perfcore")
	c.alloc = NewAllocator(cfg.Allocator, c.heap, log.With("part", "allocator"))
	c.gov = NewGovernor(cfg.Tier, c.setter, c.observers, log.With("part", "governor"))
	c.learner = NewLearner(cfg.Learner, c.gov, c.alloc, c.load, c.observers, log.With("part", "learner"))
	c.gov.Start(c.clock())

	log.Info("core started",
		"tier", c.gov.Current(),
		"governor", cfg.Tier.Enabled,
		"allocator", cfg.Allocator.Enabled,
		"learner", cfg.Learner.Enabled)
	return c, nil
}

// Tick runs one control cycle: allocator housekeeping and pressure read,
// learner update, governor re-evaluation.
func (c *Core) Tick() {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick(c.clock())
	c.tickLatency.Record(time.Since(start))
}

func (c *Core) tick(now time.Time) {
	snap := c.snapshot(now)
	c.alloc.Maintain(now)
	c.learner.Update(now, snap)
	c.gov.Tick(now, snap, c.learner.Context())
	c.ticks++
}

// Run calls Tick every interval until ctx is done and returns ctx.Err().
func (c *Core) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: tick interval %v", ErrInvalidConfig, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick()
		}
	}
}

// snapshot reads every collaborator once and refreshes the activity signals
// from what they report.
func (c *Core) snapshot(now time.Time) ActivitySnapshot {
	touchActive := c.touch.IsActive()
	netActive := c.network.HasActivity()
	render := c.display.IsIntensiveRenderActive()
	screenOn := c.display.IsScreenOn()

	c.touchSignal.SetActive(touchActive)
	c.networkSignal.SetActive(netActive)
	c.displaySignal.SetActive(render)
	if touchActive {
		c.touchSignal.Mark(now)
	}
	if netActive {
		c.networkSignal.Mark(now)
	}
	if render {
		c.displaySignal.Mark(now)
	}
	if screenOn && !c.screenOn {
		c.screenOnAt = now
		c.displaySignal.Mark(now)
	}
	c.screenOn = screenOn

	battery := c.power.BatteryLevelPercent()
	if battery < 0 {
		battery = 0
	} else if battery > 100 {
		battery = 100
	}

	return ActivitySnapshot{
		Now:             now,
		TouchActive:     touchActive,
		LongPress:       c.touch.IsLongPressActive(),
		TouchBurst:      c.touch.IsBurstActive(),
		LastTouch:       c.touchSignal.Last(),
		NetworkActive:   netActive,
		NetworkBurst:    c.network.IsBurstActive(),
		QueueDepth:      c.network.QueueDepth(),
		LastNetwork:     c.networkSignal.Last(),
		ScreenOn:        screenOn,
		ScreenOnAt:      c.screenOnAt,
		IntensiveRender: render,
		LastDisplay:     c.displaySignal.Last(),
		LastGeneral:     c.generalSignal.Last(),
		BatteryPercent:  battery,
	}
}

// NotifyTouchActivity timestamps touch activity.
func (c *Core) NotifyTouchActivity() {
	c.touchSignal.Mark(c.clock())
	c.notifications.Inc()
}

// NotifyNetworkActivity timestamps network activity.
func (c *Core) NotifyNetworkActivity() {
	c.networkSignal.Mark(c.clock())
	c.notifications.Inc()
}

// NotifyDisplayActivity timestamps display activity.
func (c *Core) NotifyDisplayActivity() {
	c.displaySignal.Mark(c.clock())
	c.notifications.Inc()
}

// NotifyGeneralActivity timestamps activity that belongs to no subsystem.
func (c *Core) NotifyGeneralActivity() {
	c.generalSignal.Mark(c.clock())
	c.notifications.Inc()
}

// NotifyPerformanceEvent feeds one event to the learner. Intensity is 1-10
// and is clamped. It reports whether the event was stored (duplicates within
// the dedupe window are not).
func (c *Core) NotifyPerformanceEvent(typ EventType, duration time.Duration, intensity int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if sig := c.signalFor(typ); sig != nil {
		sig.Mark(now)
	}
	return c.learner.RecordEvent(now, typ, duration, intensity)
}

func (c *Core) signalFor(typ EventType) *ActivitySignal {
	switch typ {
	case EventTouch, EventLongPress, EventTouchBurst:
		return &c.touchSignal
	case EventNetworkRequest, EventNetworkBurst:
		return &c.networkSignal
	case EventDisplayUpdate, EventIntensiveRender, EventScreenWake:
		return &c.displaySignal
	}
	return nil
}

// RequestAllocation returns a handle to size bytes. Exhausted pool or
// secondary regions fall back to the general heap; only a non-positive size
// fails.
func (c *Core) RequestAllocation(size int) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alloc.Allocate(c.clock(), size)
}

// ReleaseAllocation frees h. Unknown handles are logged and otherwise ignored.
func (c *Core) ReleaseAllocation(h Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.alloc.Release(c.clock(), h)
	if err != nil {
		c.logger.Warn("ignoring release", "handle", h.String(), "err", err)
	}
	return err
}

// Bytes resolves h to its memory. Pool memory may move between ticks, so do
// not keep the slice across a Tick.
func (c *Core) Bytes(h Handle) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alloc.Bytes(h)
}

// CurrentTier returns the active performance tier.
func (c *Core) CurrentTier() Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gov.Current()
}

// MemoryPressurePercent returns the allocator's memory pressure, 0-100.
func (c *Core) MemoryPressurePercent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.alloc.MemoryPressure() + 0.5)
}

// Config returns the configuration the core was built with.
func (c *Core) Config() Config { return c.cfg }

// Blocks returns a copy of the allocator's pool descriptors.
func (c *Core) Blocks() []MemoryBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alloc.Blocks()
}

// Patterns returns the learned patterns, sorted by key.
func (c *Core) Patterns() []PredictivePattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.learner.Patterns()
}

// Events returns the learner's event history, oldest first.
func (c *Core) Events() []PerformanceEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.learner.Events()
}

// Stats is a diagnostic snapshot of the whole core.
type Stats struct {
	At            time.Time
	Ticks         int64
	Notifications int64
	TickLatency   LatencyStats
	Activity      ActivityStats
	Governor      GovernorStats
	Allocator     AllocatorStats
	Learner       LearnerStats
}

// Stats snapshots every component.
func (c *Core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	return Stats{
		At:            now,
		Ticks:         c.ticks,
		Notifications: c.notifications.Value(),
		TickLatency:   c.tickLatency.Stats(),
		Activity:      c.activity(now),
		Governor:      c.gov.Stats(now),
		Allocator:     c.alloc.Stats(),
		Learner:       c.learner.Stats(),
	}
}

func (c *Core) activity(now time.Time) ActivityStats {
	window := c.cfg.Tier.ActivityWindow
	return ActivityStats{
		Touch:   c.touchSignal.Stats(now, window),
		Network: c.networkSignal.Stats(now, window),
		Display: c.displaySignal.Stats(now, window),
		General: c.generalSignal.Stats(now, window),
	}
}

// GetStatistics returns a flat map of the most useful figures for logs and
// status endpoints.
func (c *Core) GetStatistics() map[string]interface{} {
	s := c.Stats()

	c.mu.Lock()
	out := c.gov.GetStatistics(s.At)
	c.mu.Unlock()

	out["ticks"] = s.Ticks
	out["notifications"] = s.Notifications
	out["tick_p99"] = s.TickLatency.P99.String()
	out["tick_max"] = s.TickLatency.Max.String()
	out["tick_tail_ratio"] = s.TickLatency.TailRatio()
	out["active_sources"] = s.Activity.names(func(sig SignalStats) bool { return sig.Active })
	out["recent_sources"] = s.Activity.names(func(sig SignalStats) bool { return sig.Recent })
	out["memory_pressure"] = s.Allocator.MemoryPressure
	out["fragmentation"] = s.Allocator.Fragmentation
	out["allocations"] = s.Allocator.TotalAllocations
	out["general_fallbacks"] = s.Allocator.GeneralAllocations
	out["events_recorded"] = s.Learner.Recorded
	out["duplicates_suppressed"] = s.Learner.Duplicates
	out["patterns"] = s.Learner.Patterns
	out["predictions"] = s.Learner.Predictions
	out["prediction_accuracy"] = s.Learner.Accuracy
	out["running_load"] = s.Learner.Context.RunningAverageLoad
	return out
}

// Reset returns every component and signal to its initial state.
func (c *Core) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.touchSignal.reset()
	c.networkSignal.reset()
	c.displaySignal.reset()
	c.generalSignal.reset()
	c.screenOn, c.screenOnAt = false, time.Time{}
	c.ticks = 0
	c.tickLatency.Reset()
	c.notifications.Reset()

	c.alloc.Reset()
	c.learner.Reset()
	c.gov.Reset()
	c.gov.Start(c.clock())
}
