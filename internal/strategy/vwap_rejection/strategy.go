package vwap_rejection

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// VWAPRejection fires when a bar pierces the rolling VWAP and closes back on
// the other side with a dominant rejection wick.
type VWAPRejection struct {
	period         int
	wickRatio      float64
	volumeLookback int
	formingBand    float64
}

// New creates a VWAP rejection strategy
func New(period int, wickRatio float64) *VWAPRejection {
	return &VWAPRejection{
		period:         period,
		wickRatio:      wickRatio,
		volumeLookback: 20,
		formingBand:    0.002,
	}
}

func (v *VWAPRejection) Name() string {
	return "vwap_rejection"
}

func (v *VWAPRejection) Description() string {
	return fmt.Sprintf("VWAP Rejection (VWAP%d, wick >= %.0f%% of range)", v.period, v.wickRatio*100)
}

func (v *VWAPRejection) MinCandles() int {
	return max(50, v.period+v.volumeLookback)
}

func (v *VWAPRejection) Init(cfg strategy.Config) error {
	v.period = strategy.IntParam(cfg.Params, "period", v.period)
	v.wickRatio = strategy.FloatParam(cfg.Params, "wick_ratio", v.wickRatio)
	v.volumeLookback = strategy.IntParam(cfg.Params, "volume_lookback", v.volumeLookback)
	if v.period <= 0 || v.wickRatio <= 0 || v.wickRatio >= 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("vwap_rejection: period %d, wick_ratio %.2f", v.period, v.wickRatio))
	}
	return nil
}

func (v *VWAPRejection) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, v.evaluate)
}

func (v *VWAPRejection) evaluate(bars []core.Candle) strategy.Setup {
	vwap := indicator.VWAP(bars, v.period)
	if len(vwap) == 0 {
		return strategy.None()
	}
	ref := indicator.Last(vwap)
	c := bars[len(bars)-1]
	rng := c.Range()
	if rng <= 0 {
		return strategy.None()
	}

	var setup strategy.Setup
	switch {
	case c.Low < ref && c.Close > ref && c.LowerWick()/rng >= v.wickRatio:
		setup = strategy.Setup{
			Phase:    strategy.PhaseCompleted,
			Action:   core.ActionBuy,
			Stop:     c.Low,
			Strength: v.strength(c.LowerWick() / rng),
			Reason:   fmt.Sprintf("Bullish VWAP rejection: low %.2f pierced VWAP %.2f, closed %.2f", c.Low, ref, c.Close),
		}
	case c.High > ref && c.Close < ref && c.UpperWick()/rng >= v.wickRatio:
		setup = strategy.Setup{
			Phase:    strategy.PhaseCompleted,
			Action:   core.ActionSell,
			Stop:     c.High,
			Strength: v.strength(c.UpperWick() / rng),
			Reason:   fmt.Sprintf("Bearish VWAP rejection: high %.2f pierced VWAP %.2f, closed %.2f", c.High, ref, c.Close),
		}
	case math.Abs(c.Close-ref)/ref <= v.formingBand:
		return strategy.Forming("testing VWAP")
	default:
		return strategy.None()
	}

	setup.VolumeRatio = indicator.VolumeRatio(bars, v.volumeLookback)
	setup.Metadata = map[string]any{"vwap": ref}
	return setup
}

// strength scales wick dominance above the threshold into [0,1]
func (v *VWAPRejection) strength(ratio float64) float64 {
	return indicator.Clamp((ratio-v.wickRatio)/(1-v.wickRatio), 0, 1)
}
