// Package perfcore is the adaptive performance controller of a battery
// powered remote: it picks a CPU performance tier from live activity, hands
// out memory from a fixed pool, and learns which activity tends to follow
// which so the CPU is already fast when the next burst arrives.
//
// # Overview
//
// A Core owns three components and runs them as one cooperative loop:
//
//   - Allocator - fixed arena with a bounded descriptor table, a secondary
//     region and a general-heap fallback; compaction keeps handles stable
//   - Governor  - decides LOW, NORMAL or HIGH from the activity snapshot and
//     drives the clock through a FrequencySetter
//   - Learner   - records performance events, mines (trigger → target)
//     patterns and escalates ahead of predicted load
//
// Every Tick runs allocator housekeeping, then the learner, then the governor.
//
// # Quick Start
//
//	core, err := perfcore.New(perfcore.DefaultConfig(),
//	    perfcore.WithTouch(touch),
//	    perfcore.WithDisplay(display),
//	    perfcore.WithFrequencySetter(cpu),
//	    perfcore.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go core.Run(ctx, 100*time.Millisecond)
//
//	// From input handlers, on any goroutine:
//	core.NotifyTouchActivity()
//	core.NotifyPerformanceEvent(perfcore.EventTouchBurst, 300*time.Millisecond, 7)
//
// # Tier Selection
//
// Rules are checked in order; the first that matches wins:
//
//   - intensive rendering      → HIGH, locked for RenderLock
//   - long press, recent touch, queue depth > 3, screen just woken → HIGH
//   - sustained overload       → HIGH
//   - no activity for IdleThreshold → LOW
//   - otherwise                → NORMAL
//
// Escalations apply at once. Downscales wait for the evaluation interval and
// never happen while the render lock or a learner hold is active.
//
// # Prediction
//
// Every AnalysisInterval the learner pairs events of different types that
// occurred within CorrelationWindow of each other. A pattern starts at
// accuracy 0.5 and is graded each time its trigger is seen. Once it reaches
// PredictAccuracy with enough occurrences, the next trigger raises the tier
// the target needs and holds it until the target is due plus ValidityGrace.
//
// # Configuration
//
// DefaultConfig holds the stock values. LoadConfig reads overrides from a
// .env file and PERFCORE_* environment variables:
//
//	cfg, err := perfcore.LoadConfig("perfcore.env")
//
// # Observability
//
// Stats and GetStatistics snapshot every component. Collector exports the
// same figures to Prometheus, and SQLiteRecorder persists every tier change
// and prediction outcome through the Observer interface.
//
// # Testing
//
// The Assert helpers check the structural invariants of a running core:
//
//	func TestSession(t *testing.T) {
//	    core := newCore(t)
//	    replay(core, session)
//	    perfcore.AssertInvariants(t, core)
//	}
package perfcore
