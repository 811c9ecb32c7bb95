package perfcore

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// TierConfig tunes the governor.
type TierConfig struct {
	// Enabled=false pins the CPU to FixedTier and ignores every request.
	Enabled   bool
	FixedTier Tier

	InitialTier Tier
	Clocks      TierClocks

	EvalInterval   time.Duration // full re-evaluation cadence
	RenderLock     time.Duration // no transitions after a render is seen
	TouchWindow    time.Duration // touch this recent → HIGH
	QueueDepthHigh int           // queue depth above this → HIGH
	ScreenOnWindow time.Duration // screen woke this recently → HIGH
	ActivityWindow time.Duration // any signal this recent counts as "recent"
	IdleThreshold  time.Duration // no activity for this long → LOW
	OverloadStreak int           // context overload streak that keeps HIGH
}

// AllocatorConfig tunes the pool and secondary region.
type AllocatorConfig struct {
	// Enabled=false makes every allocation a general-heap pass-through.
	Enabled bool

	ArenaSize       int
	MaxBlocks       int
	SmallThreshold  int
	Alignment       int
	SecondaryBudget int

	DefragThreshold float64
	GCInterval      time.Duration
	HeapLowWater    uint64
}

// LearnerConfig tunes the predictive pattern learner.
type LearnerConfig struct {
	// Enabled=false turns recording and prediction into no-ops.
	Enabled bool

	RingSize    int
	MaxPatterns int

	DedupeWindow      time.Duration
	AnalysisInterval  time.Duration
	MinEvents         int
	CorrelationWindow time.Duration
	PatternTTL        time.Duration

	InitialAccuracy    float64
	PruneAccuracy      float64
	PredictAccuracy    float64
	PredictOccurrences int
	ValidityGrace      time.Duration
	Reward             float64
	Penalty            float64

	SampleInterval   time.Duration
	OverloadLoad     float64 // percent
	OverloadPressure float64 // percent
	OverloadStreak   int
	IdleLoad         float64 // percent; below this an expired prediction may downscale
	ThermalLoad      float64 // percent; running average above this sets the thermal flag
}

// Config is the complete core configuration.
type Config struct {
	Tier      TierConfig
	Allocator AllocatorConfig
	Learner   LearnerConfig
}

// DefaultConfig returns the tuning the remote ships with.
func DefaultConfig() Config {
	return Config{
		Tier: TierConfig{
			Enabled:        true,
			FixedTier:      TierHigh,
			InitialTier:    TierNormal,
			Clocks:         DefaultTierClocks(),
			EvalInterval:   1000 * time.Millisecond,
			RenderLock:     200 * time.Millisecond,
			TouchWindow:    1000 * time.Millisecond,
			QueueDepthHigh: 3,
			ScreenOnWindow: 3000 * time.Millisecond,
			ActivityWindow: 2000 * time.Millisecond,
			IdleThreshold:  10000 * time.Millisecond,
			OverloadStreak: 3,
		},
		Allocator: AllocatorConfig{
			Enabled:         true,
			ArenaSize:       16 * 1024,
			MaxBlocks:       32,
			SmallThreshold:  1024,
			Alignment:       4,
			SecondaryBudget: 256 * 1024,
			DefragThreshold: 0.7,
			GCInterval:      30 * time.Second,
			HeapLowWater:    16 * 1024,
		},
		Learner: LearnerConfig{
			Enabled:            true,
			RingSize:           32,
			MaxPatterns:        16,
			DedupeWindow:       100 * time.Millisecond,
			AnalysisInterval:   10 * time.Second,
			MinEvents:          10,
			CorrelationWindow:  5 * time.Second,
			PatternTTL:         5 * time.Minute,
			InitialAccuracy:    0.5,
			PruneAccuracy:      0.3,
			PredictAccuracy:    0.75,
			PredictOccurrences: 3,
			ValidityGrace:      2 * time.Second,
			Reward:             0.1,
			Penalty:            0.05,
			SampleInterval:     500 * time.Millisecond,
			OverloadLoad:       80,
			OverloadPressure:   85,
			OverloadStreak:     3,
			IdleLoad:           30,
			ThermalLoad:        90,
		},
	}
}

// Upper bounds of the fixed-size tables.
const (
	MaxPoolBlocks = 32
	MaxRingSize   = 32
	MaxPatterns   = 16
)

// Validate checks that the configuration can drive a working core.
func (c Config) Validate() error {
	t, a, l := c.Tier, c.Allocator, c.Learner

	switch {
	case !t.FixedTier.Valid() || !t.InitialTier.Valid():
		return fmt.Errorf("%w: tier out of range", ErrInvalidConfig)
	case t.EvalInterval <= 0:
		return fmt.Errorf("%w: eval interval must be positive", ErrInvalidConfig)
	case t.RenderLock < 0:
		return fmt.Errorf("%w: render lock must not be negative", ErrInvalidConfig)
	case t.IdleThreshold < t.ActivityWindow:
		return fmt.Errorf("%w: idle threshold %v shorter than activity window %v",
			ErrInvalidConfig, t.IdleThreshold, t.ActivityWindow)
	}

	switch {
	case a.ArenaSize <= 0 || a.MaxBlocks <= 0:
		return fmt.Errorf("%w: arena size and block count must be positive", ErrInvalidConfig)
	case a.MaxBlocks > MaxPoolBlocks:
		return fmt.Errorf("%w: %d pool blocks exceed the limit of %d", ErrInvalidConfig, a.MaxBlocks, MaxPoolBlocks)
	case a.Alignment <= 0 || a.Alignment&(a.Alignment-1) != 0:
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidConfig, a.Alignment)
	case a.SmallThreshold <= 0 || a.SecondaryBudget < 0:
		return fmt.Errorf("%w: bad size thresholds", ErrInvalidConfig)
	case a.SmallThreshold > a.ArenaSize:
		return fmt.Errorf("%w: small threshold %d larger than arena %d", ErrInvalidConfig, a.SmallThreshold, a.ArenaSize)
	case a.DefragThreshold <= 0 || a.DefragThreshold > 1:
		return fmt.Errorf("%w: defrag threshold %.2f outside (0,1]", ErrInvalidConfig, a.DefragThreshold)
	case a.GCInterval <= 0:
		return fmt.Errorf("%w: gc interval must be positive", ErrInvalidConfig)
	}

	switch {
	case l.RingSize <= 0 || l.MaxPatterns <= 0:
		return fmt.Errorf("%w: ring and pattern table must have capacity", ErrInvalidConfig)
	case l.RingSize > MaxRingSize || l.MaxPatterns > MaxPatterns:
		return fmt.Errorf("%w: ring %d / patterns %d exceed the limits %d / %d",
			ErrInvalidConfig, l.RingSize, l.MaxPatterns, MaxRingSize, MaxPatterns)
	case l.CorrelationWindow <= 0:
		return fmt.Errorf("%w: correlation window must be positive", ErrInvalidConfig)
	case l.PredictOccurrences < 1:
		return fmt.Errorf("%w: a prediction needs at least one occurrence", ErrInvalidConfig)
	case l.AnalysisInterval <= 0 || l.SampleInterval <= 0:
		return fmt.Errorf("%w: learner intervals must be positive", ErrInvalidConfig)
	case !unitInterval(l.InitialAccuracy) || !unitInterval(l.PruneAccuracy) || !unitInterval(l.PredictAccuracy):
		return fmt.Errorf("%w: accuracy thresholds must lie in [0,1]", ErrInvalidConfig)
	case l.Reward < 0 || l.Penalty < 0:
		return fmt.Errorf("%w: reward and penalty must not be negative", ErrInvalidConfig)
	}

	return nil
}

func unitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

// EnvPrefix prefixes every key LoadConfig understands.
const EnvPrefix = "PERFCORE_"

// LoadConfig starts from DefaultConfig, overlays the keys found in the dotenv
// file at path (skipped when path is empty), then overlays the process
// environment, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	values := map[string]string{}
	if path != "" {
		fileValues, err := godotenv.Read(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		values = fileValues
	}
	for _, key := range configKeys(&cfg) {
		if v, ok := os.LookupEnv(EnvPrefix + key.name); ok {
			values[EnvPrefix+key.name] = v
		}
	}

	for _, key := range configKeys(&cfg) {
		raw, ok := values[EnvPrefix+key.name]
		if !ok {
			continue
		}
		if err := key.set(raw); err != nil {
			return cfg, fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, EnvPrefix, key.name, raw, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type configKey struct {
	name string
	set  func(string) error
}

func configKeys(c *Config) []configKey {
	return []configKey{
		{"TIER_ENABLED", boolSetter(&c.Tier.Enabled)},
		{"FIXED_TIER", tierSetter(&c.Tier.FixedTier)},
		{"INITIAL_TIER", tierSetter(&c.Tier.InitialTier)},
		{"CLOCK_LOW_MHZ", clockSetter(&c.Tier.Clocks[TierLow])},
		{"CLOCK_NORMAL_MHZ", clockSetter(&c.Tier.Clocks[TierNormal])},
		{"CLOCK_HIGH_MHZ", clockSetter(&c.Tier.Clocks[TierHigh])},
		{"EVAL_INTERVAL", durationSetter(&c.Tier.EvalInterval)},
		{"RENDER_LOCK", durationSetter(&c.Tier.RenderLock)},
		{"ACTIVITY_WINDOW", durationSetter(&c.Tier.ActivityWindow)},
		{"IDLE_THRESHOLD", durationSetter(&c.Tier.IdleThreshold)},
		{"ALLOCATOR_ENABLED", boolSetter(&c.Allocator.Enabled)},
		{"ARENA_SIZE", intSetter(&c.Allocator.ArenaSize)},
		{"SECONDARY_BUDGET", intSetter(&c.Allocator.SecondaryBudget)},
		{"DEFRAG_THRESHOLD", floatSetter(&c.Allocator.DefragThreshold)},
		{"GC_INTERVAL", durationSetter(&c.Allocator.GCInterval)},
		{"HEAP_LOW_WATER", uintSetter(&c.Allocator.HeapLowWater)},
		{"LEARNER_ENABLED", boolSetter(&c.Learner.Enabled)},
		{"ANALYSIS_INTERVAL", durationSetter(&c.Learner.AnalysisInterval)},
		{"SAMPLE_INTERVAL", durationSetter(&c.Learner.SampleInterval)},
		{"PREDICT_ACCURACY", floatSetter(&c.Learner.PredictAccuracy)},
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err == nil {
			*dst = v
		}
		return err
	}
}

func intSetter(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err == nil {
			*dst = v
		}
		return err
	}
}

func uintSetter(dst *uint64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseUint(s, 10, 64)
		if err == nil {
			*dst = v
		}
		return err
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			*dst = v
		}
		return err
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err == nil {
			*dst = v
		}
		return err
	}
}

func tierSetter(dst *Tier) func(string) error {
	return func(s string) error {
		v, err := ParseTier(s)
		if err == nil {
			*dst = v
		}
		return err
	}
}

func clockSetter(dst *Freq) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			*dst = Freq(v) * MHz
		}
		return err
	}
}
