package supertrend

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// Supertrend fires when the supertrend direction flips. The new trailing
// band is the stop.
type Supertrend struct {
	period int
	mult   float64
}

// New creates a supertrend flip strategy
func New(period int, mult float64) *Supertrend {
	return &Supertrend{period: period, mult: mult}
}

func (s *Supertrend) Name() string {
	return "supertrend"
}

func (s *Supertrend) Description() string {
	return fmt.Sprintf("Supertrend Flip (%d, x%.1f)", s.period, s.mult)
}

func (s *Supertrend) MinCandles() int {
	return max(30, s.period*3)
}

func (s *Supertrend) Init(cfg strategy.Config) error {
	s.period = strategy.IntParam(cfg.Params, "period", s.period)
	s.mult = strategy.FloatParam(cfg.Params, "mult", s.mult)
	if s.period < 2 || s.mult <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("supertrend: period %d, mult %.2f", s.period, s.mult))
	}
	return nil
}

func (s *Supertrend) Detect(bars []core.Candle) strategy.Setup {
	line, dir := indicator.Supertrend(bars, s.period, s.mult)
	if len(dir) < 2 {
		return strategy.None()
	}

	c := bars[len(bars)-1]
	prevDir, currDir := dir[len(dir)-2], dir[len(dir)-1]
	band := line[len(line)-1]
	atr := indicator.LastATR(bars, s.period)

	var action core.Action
	switch {
	case prevDir < 0 && currDir > 0:
		action = core.ActionBuy
	case prevDir > 0 && currDir < 0:
		action = core.ActionSell
	default:
		if atr > 0 && math.Abs(c.Close-band) <= 0.5*atr {
			return strategy.Forming(fmt.Sprintf("price testing supertrend %.2f", band))
		}
		return strategy.None()
	}

	var strength float64
	if atr > 0 {
		strength = indicator.Clamp(strategy.Direction(action)*(c.Close-band)/(2*s.mult*atr), 0, 1)
	}

	trend := "up"
	if action == core.ActionSell {
		trend = "down"
	}

	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        band,
		Strength:    strength,
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Supertrend flipped %s, trailing band %.2f", trend, band),
		Metadata: map[string]any{
			"supertrend": band,
			"atr":        atr,
		},
	}
}
