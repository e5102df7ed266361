package strategy

import (
	"github.com/newthinker/signalcore/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Enabled bool
	Params  map[string]any
}

// Phase is what a pattern sees on the latest bar
type Phase int

const (
	PhaseNone Phase = iota
	PhaseForming
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseForming:
		return "forming"
	case PhaseCompleted:
		return "completed"
	default:
		return "none"
	}
}

// Setup is a pattern's reading of the latest bar.
type Setup struct {
	Phase  Phase
	Action core.Action
	// Stop is the structural invalidation level before buffering; zero when
	// the pattern has no usable reference.
	Stop float64
	// Target is an optional structural objective; zero derives it from the
	// target risk/reward.
	Target float64
	// Strength in [0,1]: how far the confirming value cleared its threshold.
	Strength       float64
	VolumeRatio    float64
	Divergence     bool
	RequiresVolume bool
	Reason         string
	Metadata       map[string]any
}

// None is the setup for bars without a pattern
func None() Setup {
	return Setup{Phase: PhaseNone, Action: core.ActionHold}
}

// Forming is the setup for a pattern whose preconditions hold but has not completed
func Forming(reason string) Setup {
	return Setup{Phase: PhaseForming, Action: core.ActionHold, Reason: reason}
}

// Pattern detects one family of pattern completions.
//
// Detect must compare the previous and current bar state and report
// PhaseCompleted only on the bar where the completion condition becomes true,
// never on bars where it merely remains true.
type Pattern interface {
	Name() string
	Description() string
	MinCandles() int
	Init(cfg Config) error
	Detect(bars []core.Candle) Setup
}
