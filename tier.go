package perfcore

import "fmt"

// Freq is a CPU clock frequency in Hz.
type Freq float64

// Units of frequency.
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

func (f Freq) String() string {
	switch {
	case f >= GHz:
		return fmt.Sprintf("%.2fGHz", float64(f/GHz))
	case f >= MHz:
		return fmt.Sprintf("%.0fMHz", float64(f/MHz))
	case f >= KHz:
		return fmt.Sprintf("%.0fKHz", float64(f/KHz))
	}
	return fmt.Sprintf("%.0fHz", float64(f))
}

// Tier is one of the three discrete CPU performance levels.
type Tier int

const (
	TierLow Tier = iota
	TierNormal
	TierHigh
)

// NumTiers is the number of performance tiers.
const NumTiers = 3

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierNormal:
		return "NORMAL"
	case TierHigh:
		return "HIGH"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Valid reports whether t is one of the three defined tiers.
func (t Tier) Valid() bool {
	return t >= TierLow && t <= TierHigh
}

// ParseTier accepts the names produced by Tier.String, case-sensitively.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "LOW":
		return TierLow, nil
	case "NORMAL":
		return TierNormal, nil
	case "HIGH":
		return TierHigh, nil
	}
	return TierLow, fmt.Errorf("%w: unknown tier %q", ErrInvalidConfig, s)
}

// TierClocks maps every tier to its target clock.
type TierClocks [NumTiers]Freq

// DefaultTierClocks are the stock clock targets of the remote's SoC.
func DefaultTierClocks() TierClocks {
	return TierClocks{
		TierLow:    80 * MHz,
		TierNormal: 160 * MHz,
		TierHigh:   240 * MHz,
	}
}

// Clock returns the target clock for t, or 0 if t is out of range.
func (c TierClocks) Clock(t Tier) Freq {
	if !t.Valid() {
		return 0
	}
	return c[t]
}

// maxTier returns the higher of two tiers.
func maxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}
