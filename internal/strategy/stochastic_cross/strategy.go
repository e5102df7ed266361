package stochastic_cross

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// StochasticCross fires when %K crosses %D out of an extreme zone.
type StochasticCross struct {
	kPeriod      int
	smooth       int
	dPeriod      int
	oversold     float64
	overbought   float64
	stopLookback int
}

// New creates a stochastic crossover strategy with 3-bar smoothing
func New(kPeriod int, oversold, overbought float64) *StochasticCross {
	return &StochasticCross{
		kPeriod:      kPeriod,
		smooth:       3,
		dPeriod:      3,
		oversold:     oversold,
		overbought:   overbought,
		stopLookback: 10,
	}
}

func (s *StochasticCross) Name() string {
	return "stochastic_cross"
}

func (s *StochasticCross) Description() string {
	return fmt.Sprintf("Stochastic Cross (%d,%d,%d) %.0f/%.0f", s.kPeriod, s.smooth, s.dPeriod, s.oversold, s.overbought)
}

func (s *StochasticCross) MinCandles() int {
	return 30
}

func (s *StochasticCross) Init(cfg strategy.Config) error {
	s.kPeriod = strategy.IntParam(cfg.Params, "k_period", s.kPeriod)
	s.smooth = strategy.IntParam(cfg.Params, "smooth", s.smooth)
	s.dPeriod = strategy.IntParam(cfg.Params, "d_period", s.dPeriod)
	s.oversold = strategy.FloatParam(cfg.Params, "oversold", s.oversold)
	s.overbought = strategy.FloatParam(cfg.Params, "overbought", s.overbought)
	if s.kPeriod < 2 || s.smooth < 1 || s.dPeriod < 1 || s.oversold <= 0 || s.overbought >= 100 || s.oversold >= s.overbought {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("stochastic_cross: k %d, oversold %.0f, overbought %.0f", s.kPeriod, s.oversold, s.overbought))
	}
	return nil
}

func (s *StochasticCross) Detect(bars []core.Candle) strategy.Setup {
	k, d := indicator.Stochastic(bars, s.kPeriod, s.smooth, s.dPeriod)
	prevK, currK, ok := indicator.LastTwo(k)
	if !ok {
		return strategy.None()
	}
	prevD, currD, _ := indicator.LastTwo(d)

	window := bars[max(0, len(bars)-s.stopLookback):]
	meta := map[string]any{"k": currK, "d": currD}

	// Bullish: %K crosses above %D from oversold
	if prevK <= prevD && currK > currD && math.Min(prevK, prevD) < s.oversold {
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionBuy,
			Stop:        indicator.Lowest(window),
			Strength:    indicator.Clamp((s.oversold-math.Min(prevK, prevD))/s.oversold, 0, 1),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Stochastic %%K (%.1f) crossed above %%D (%.1f) from oversold", currK, currD),
			Metadata:    meta,
		}
	}

	// Bearish: %K crosses below %D from overbought
	if prevK >= prevD && currK < currD && math.Max(prevK, prevD) > s.overbought {
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionSell,
			Stop:        indicator.Highest(window),
			Strength:    indicator.Clamp((math.Max(prevK, prevD)-s.overbought)/(100-s.overbought), 0, 1),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Stochastic %%K (%.1f) crossed below %%D (%.1f) from overbought", currK, currD),
			Metadata:    meta,
		}
	}

	if currK < s.oversold || currK > s.overbought {
		return strategy.Forming(fmt.Sprintf("stochastic at extreme %.1f", currK))
	}
	return strategy.None()
}
