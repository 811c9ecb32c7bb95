package perfcore

import "time"

// SystemContext is the learner's rolling view of system load. The learner
// mutates it on every sampling tick; the governor reads it.
type SystemContext struct {
	CurrentLoad        float64 // percent
	RunningAverageLoad float64 // percent, weighted 7:1 toward history
	PeakLoad           float64 // percent
	MemoryPressure     float64 // percent

	BatteryPercent   int
	BatteryDrainRate float64 // percent per minute, negative while charging
	Thermal          bool

	ConsecutiveOverloads int
	LastScalingDecision  time.Time

	LastSample time.Time
	Samples    int64
}

// sample folds one measurement into the context and reports whether it
// counted as an overload sample.
func (c *SystemContext) sample(now time.Time, load, pressure float64, battery int, cfg LearnerConfig) bool {
	load = clamp(load, 0, 100)
	pressure = clamp(pressure, 0, 100)

	c.CurrentLoad = load
	if c.Samples == 0 {
		c.RunningAverageLoad = load
	} else {
		c.RunningAverageLoad = (c.RunningAverageLoad*7 + load) / 8
	}
	if load > c.PeakLoad {
		c.PeakLoad = load
	}
	c.MemoryPressure = pressure

	if c.Samples > 0 && now.After(c.LastSample) {
		minutes := now.Sub(c.LastSample).Minutes()
		instant := float64(c.BatteryPercent-battery) / minutes
		c.BatteryDrainRate = (c.BatteryDrainRate*7 + instant) / 8
	}
	c.BatteryPercent = battery
	c.Thermal = c.RunningAverageLoad > cfg.ThermalLoad

	overloaded := load > cfg.OverloadLoad || pressure > cfg.OverloadPressure
	if overloaded {
		c.ConsecutiveOverloads++
	} else {
		c.ConsecutiveOverloads = 0
	}

	c.LastSample = now
	c.Samples++
	return overloaded
}

// EstimateLoad derives a CPU load figure from the activity snapshot. The
// learner falls back to it when no LoadSource is wired or the source fails.
func EstimateLoad(snap ActivitySnapshot) float64 {
	load := 5.0 // idle UI loop

	if snap.TouchActive {
		load += 25
	}
	if snap.TouchBurst {
		load += 15
	}
	if snap.LongPress {
		load += 10
	}

	if snap.NetworkActive {
		load += 20
	}
	if snap.NetworkBurst {
		load += 15
	}
	queue := float64(snap.QueueDepth) * 5
	if queue > 20 {
		queue = 20
	}
	load += queue

	switch {
	case snap.IntensiveRender:
		load += 40
	case snap.ScreenOn:
		load += 5
	}

	return clamp(load, 0, 100)
}
