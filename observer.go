package perfcore

import "time"

// TierChange describes one applied tier transition.
type TierChange struct {
	At     time.Time
	From   Tier
	To     Tier
	Clock  Freq
	Rule   TierRule
	Reason string
}

// PredictionResult is how a pending prediction ended.
type PredictionResult string

const (
	PredictionCorrect PredictionResult = "CORRECT"
	PredictionWrong   PredictionResult = "WRONG"
	PredictionExpired PredictionResult = "EXPIRED"
)

// PredictionOutcome reports a resolved prediction.
type PredictionOutcome struct {
	IssuedAt   time.Time
	ResolvedAt time.Time
	Trigger    EventType
	Target     EventType
	Actual     EventType // empty when expired
	Tier       Tier
	Result     PredictionResult
	Accuracy   float64 // pattern accuracy after the update
}

// Observer receives control-loop decisions. Calls happen on the control
// goroutine while the core lock is held, so implementations must not call
// back into Core and should return quickly.
type Observer interface {
	TierChanged(TierChange)
	PredictionResolved(PredictionOutcome)
}

type nopObserver struct{}

func (nopObserver) TierChanged(TierChange)              {}
func (nopObserver) PredictionResolved(PredictionOutcome) {}

// multiObserver fans out to several observers in order.
type multiObserver []Observer

func (m multiObserver) TierChanged(c TierChange) {
	for _, o := range m {
		o.TierChanged(c)
	}
}

func (m multiObserver) PredictionResolved(p PredictionOutcome) {
	for _, o := range m {
		o.PredictionResolved(p)
	}
}
