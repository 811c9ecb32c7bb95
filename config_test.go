package perfcore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perfcore.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TierNormal, cfg.Tier.InitialTier)
	assert.Equal(t, 16*1024, cfg.Allocator.ArenaSize)
	assert.Equal(t, 32, cfg.Allocator.MaxBlocks)
	assert.Equal(t, 32, cfg.Learner.RingSize)
	assert.Equal(t, 16, cfg.Learner.MaxPatterns)
	assert.Equal(t, 240*MHz, cfg.Tier.Clocks.Clock(TierHigh))
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"initial tier", func(c *Config) { c.Tier.InitialTier = Tier(7) }},
		{"eval interval", func(c *Config) { c.Tier.EvalInterval = 0 }},
		{"idle shorter than window", func(c *Config) { c.Tier.IdleThreshold = time.Second }},
		{"alignment", func(c *Config) { c.Allocator.Alignment = 3 }},
		{"arena", func(c *Config) { c.Allocator.ArenaSize = 0 }},
		{"defrag threshold", func(c *Config) { c.Allocator.DefragThreshold = 1.5 }},
		{"pool blocks above limit", func(c *Config) { c.Allocator.MaxBlocks = 33 }},
		{"small threshold above arena", func(c *Config) { c.Allocator.ArenaSize = 512 }},
		{"ring", func(c *Config) { c.Learner.RingSize = 0 }},
		{"ring above limit", func(c *Config) { c.Learner.RingSize = 64 }},
		{"patterns above limit", func(c *Config) { c.Learner.MaxPatterns = 17 }},
		{"correlation window", func(c *Config) { c.Learner.CorrelationWindow = 0 }},
		{"predict occurrences", func(c *Config) { c.Learner.PredictOccurrences = 0 }},
		{"predict accuracy", func(c *Config) { c.Learner.PredictAccuracy = 2 }},
		{"penalty", func(c *Config) { c.Learner.Penalty = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeEnvFile(t, `
# remote tuning
PERFCORE_INITIAL_TIER=LOW
PERFCORE_CLOCK_HIGH_MHZ=200
PERFCORE_EVAL_INTERVAL=500ms
PERFCORE_ARENA_SIZE=8192
PERFCORE_LEARNER_ENABLED=false
PERFCORE_PREDICT_ACCURACY=0.9
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, TierLow, cfg.Tier.InitialTier)
	assert.Equal(t, 200*MHz, cfg.Tier.Clocks.Clock(TierHigh))
	assert.Equal(t, 500*time.Millisecond, cfg.Tier.EvalInterval)
	assert.Equal(t, 8192, cfg.Allocator.ArenaSize)
	assert.False(t, cfg.Learner.Enabled)
	assert.Equal(t, 0.9, cfg.Learner.PredictAccuracy)

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().Learner.RingSize, cfg.Learner.RingSize)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeEnvFile(t, "PERFCORE_FIXED_TIER=LOW\nPERFCORE_TIER_ENABLED=false\n")
	t.Setenv("PERFCORE_FIXED_TIER", "NORMAL")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Tier.Enabled)
	assert.Equal(t, TierNormal, cfg.Tier.FixedTier)
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv("PERFCORE_GC_INTERVAL", "1m")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Allocator.GCInterval)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)

	path := writeEnvFile(t, "PERFCORE_SAMPLE_INTERVAL=soon\n")
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "PERFCORE_SAMPLE_INTERVAL")

	path = writeEnvFile(t, "PERFCORE_INITIAL_TIER=TURBO\n")
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	path = writeEnvFile(t, "PERFCORE_IDLE_THRESHOLD=1s\n")
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseTier(t *testing.T) {
	for _, tier := range []Tier{TierLow, TierNormal, TierHigh} {
		got, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}

	_, err := ParseTier("high")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
